// cmd/container.go
//
// Root composition root. Owns infrastructure (DB, identity provider client)
// and composes bounded-context containers. This is the only place that
// knows about all modules.
package main

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/protomil/core/pkg/config"
	"github.com/protomil/core/pkg/iam/iamcontainer"
	"github.com/protomil/core/pkg/iam/idp"
	"github.com/protomil/core/pkg/iam/idp/idpcognito"
	"github.com/protomil/core/pkg/iam/idp/idpmock"
	"github.com/protomil/core/pkg/logx"
)

// Container holds shared infrastructure and composed module containers.
type Container struct {
	Config *config.Config

	DB       *sqlx.DB
	Provider idp.Provider

	IAM *iamcontainer.Container
}

func NewContainer(cfg *config.Config) *Container {
	logx.Info("🔧 Initializing application container...")

	c := &Container{Config: cfg}

	c.initInfrastructure()
	c.initModules()

	logx.Info("✅ Application container initialized")
	return c
}

func (c *Container) initInfrastructure() {
	// 1. Database
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Config.Database.Host,
		c.Config.Database.Port,
		c.Config.Database.User,
		c.Config.Database.Password,
		c.Config.Database.Name,
		c.Config.Database.SSLMode,
	)

	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		logx.Fatalf("Failed to connect to database: %v", err)
	}
	db.SetMaxOpenConns(c.Config.Database.MaxOpenConns)
	db.SetMaxIdleConns(c.Config.Database.MaxIdleConns)
	db.SetConnMaxLifetime(c.Config.Database.ConnMaxLifetime)
	c.DB = db
	logx.Info("  ✅ Database connected")

	// 2. Identity provider
	c.Provider = c.buildProvider()
}

// buildProvider picks Cognito or the deterministic in-memory mock.
func (c *Container) buildProvider() idp.Provider {
	if !c.Config.Cognito.Enabled {
		logx.Warn("  ⚠️ Cognito disabled, using in-memory mock identity provider")
		return idpmock.New()
	}

	if c.Config.Cognito.UserPoolID == "" || c.Config.Cognito.ClientID == "" {
		logx.Fatal("COGNITO_USER_POOL_ID and COGNITO_CLIENT_ID are required when Cognito is enabled")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(c.Config.Cognito.Region))
	if err != nil {
		logx.Fatalf("Unable to load AWS SDK config: %v", err)
	}

	client := cognitoidentityprovider.NewFromConfig(awsCfg)
	logx.Infof("  ✅ Cognito provider configured (pool: %s, region: %s)",
		c.Config.Cognito.UserPoolID, c.Config.Cognito.Region)
	return idpcognito.New(client, c.Config.Cognito)
}

func (c *Container) initModules() {
	c.IAM = iamcontainer.New(iamcontainer.Deps{
		DB:       c.DB,
		Cfg:      c.Config,
		Provider: c.Provider,
	})
}

// StartBackgroundServices launches the session sweeper and the status sync
// scheduler.
func (c *Container) StartBackgroundServices(ctx context.Context) {
	logx.Info("🔄 Starting background services...")
	c.IAM.StartBackgroundServices(ctx)
}

func (c *Container) Cleanup() {
	logx.Info("🧹 Cleaning up resources...")

	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			logx.Errorf("Error closing database: %v", err)
		} else {
			logx.Info("  ✅ Database connection closed")
		}
	}
}
