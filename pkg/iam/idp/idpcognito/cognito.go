// Package idpcognito implements the identity-provider gateway over AWS
// Cognito admin APIs.
package idpcognito

import (
	"context"
	"errors"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	"github.com/aws/smithy-go"
	"github.com/protomil/core/pkg/config"
	"github.com/protomil/core/pkg/iam/idp"
	"github.com/protomil/core/pkg/logx"
)

// Gateway wraps the Cognito client with fault mapping and per-call timeouts.
type Gateway struct {
	client     *cognitoidentityprovider.Client
	userPoolID string
	clientID   string
	timeout    time.Duration
}

func New(client *cognitoidentityprovider.Client, cfg config.CognitoConfig) *Gateway {
	return &Gateway{
		client:     client,
		userPoolID: cfg.UserPoolID,
		clientID:   cfg.ClientID,
		timeout:    cfg.RequestTimeout,
	}
}

func (g *Gateway) Authenticate(ctx context.Context, username, password string) (*idp.AuthResult, error) {
	ctx, cancel := g.bound(ctx)
	defer cancel()

	out, err := g.client.AdminInitiateAuth(ctx, &cognitoidentityprovider.AdminInitiateAuthInput{
		UserPoolId: aws.String(g.userPoolID),
		ClientId:   aws.String(g.clientID),
		AuthFlow:   types.AuthFlowTypeAdminNoSrpAuth,
		AuthParameters: map[string]string{
			"USERNAME": username,
			"PASSWORD": password,
		},
	})
	if err != nil {
		return nil, g.mapError(err, "authenticate")
	}
	if out.AuthenticationResult == nil {
		// Challenge flows (MFA, forced password change) are not supported here.
		return nil, idp.Err(idp.FaultInvalidCredentials).WithDetail("reason", "challenge required")
	}

	sub, err := g.lookupSub(ctx, username)
	if err != nil {
		return nil, err
	}

	return &idp.AuthResult{
		Sub:          sub,
		AccessToken:  aws.ToString(out.AuthenticationResult.AccessToken),
		RefreshToken: aws.ToString(out.AuthenticationResult.RefreshToken),
		IDToken:      aws.ToString(out.AuthenticationResult.IdToken),
		ExpiresIn:    int(out.AuthenticationResult.ExpiresIn),
	}, nil
}

func (g *Gateway) GetUser(ctx context.Context, username string) (*idp.RemoteAccount, error) {
	ctx, cancel := g.bound(ctx)
	defer cancel()

	out, err := g.client.AdminGetUser(ctx, &cognitoidentityprovider.AdminGetUserInput{
		UserPoolId: aws.String(g.userPoolID),
		Username:   aws.String(username),
	})
	if err != nil {
		if idp.IsFault(g.mapError(err, "get user"), idp.FaultNotFound) {
			return &idp.RemoteAccount{Exists: false}, nil
		}
		return nil, g.mapError(err, "get user")
	}

	attrs := make(map[string]string, len(out.UserAttributes))
	for _, a := range out.UserAttributes {
		attrs[aws.ToString(a.Name)] = aws.ToString(a.Value)
	}

	state := idp.Confirmed
	if out.UserStatus == types.UserStatusTypeUnconfirmed {
		state = idp.Unconfirmed
	}

	return &idp.RemoteAccount{
		Exists:            true,
		ConfirmationState: state,
		Enabled:           out.Enabled,
		ApprovalAttribute: attrs[idp.AttrApprovalStatus],
		Attributes:        attrs,
	}, nil
}

func (g *Gateway) SetEnabled(ctx context.Context, username string) error {
	ctx, cancel := g.bound(ctx)
	defer cancel()

	_, err := g.client.AdminEnableUser(ctx, &cognitoidentityprovider.AdminEnableUserInput{
		UserPoolId: aws.String(g.userPoolID),
		Username:   aws.String(username),
	})
	if err != nil {
		return g.mapError(err, "enable user")
	}
	return nil
}

func (g *Gateway) SetDisabled(ctx context.Context, username string) error {
	ctx, cancel := g.bound(ctx)
	defer cancel()

	_, err := g.client.AdminDisableUser(ctx, &cognitoidentityprovider.AdminDisableUserInput{
		UserPoolId: aws.String(g.userPoolID),
		Username:   aws.String(username),
	})
	if err != nil {
		return g.mapError(err, "disable user")
	}
	return nil
}

func (g *Gateway) UpdateAttributes(ctx context.Context, username string, attrs map[string]string) error {
	ctx, cancel := g.bound(ctx)
	defer cancel()

	userAttrs := make([]types.AttributeType, 0, len(attrs))
	for name, value := range attrs {
		userAttrs = append(userAttrs, types.AttributeType{
			Name:  aws.String(name),
			Value: aws.String(value),
		})
	}

	_, err := g.client.AdminUpdateUserAttributes(ctx, &cognitoidentityprovider.AdminUpdateUserAttributesInput{
		UserPoolId:     aws.String(g.userPoolID),
		Username:       aws.String(username),
		UserAttributes: userAttrs,
	})
	if err != nil {
		return g.mapError(err, "update attributes")
	}
	return nil
}

func (g *Gateway) ResendConfirmation(ctx context.Context, username string) error {
	ctx, cancel := g.bound(ctx)
	defer cancel()

	_, err := g.client.ResendConfirmationCode(ctx, &cognitoidentityprovider.ResendConfirmationCodeInput{
		ClientId: aws.String(g.clientID),
		Username: aws.String(username),
	})
	if err != nil {
		return g.mapError(err, "resend confirmation")
	}
	return nil
}

func (g *Gateway) ConfirmSignUp(ctx context.Context, username, code string) error {
	ctx, cancel := g.bound(ctx)
	defer cancel()

	_, err := g.client.ConfirmSignUp(ctx, &cognitoidentityprovider.ConfirmSignUpInput{
		ClientId:         aws.String(g.clientID),
		Username:         aws.String(username),
		ConfirmationCode: aws.String(code),
	})
	if err != nil {
		return g.mapError(err, "confirm sign up")
	}
	return nil
}

func (g *Gateway) Refresh(ctx context.Context, refreshToken string) (*idp.AuthResult, error) {
	ctx, cancel := g.bound(ctx)
	defer cancel()

	out, err := g.client.InitiateAuth(ctx, &cognitoidentityprovider.InitiateAuthInput{
		ClientId: aws.String(g.clientID),
		AuthFlow: types.AuthFlowTypeRefreshTokenAuth,
		AuthParameters: map[string]string{
			"REFRESH_TOKEN": refreshToken,
		},
	})
	if err != nil {
		return nil, g.mapError(err, "refresh")
	}
	if out.AuthenticationResult == nil {
		return nil, idp.Err(idp.FaultInvalidCredentials).WithDetail("reason", "no authentication result")
	}

	return &idp.AuthResult{
		AccessToken:  aws.ToString(out.AuthenticationResult.AccessToken),
		RefreshToken: aws.ToString(out.AuthenticationResult.RefreshToken),
		IDToken:      aws.ToString(out.AuthenticationResult.IdToken),
		ExpiresIn:    int(out.AuthenticationResult.ExpiresIn),
	}, nil
}

// lookupSub reads the provider's subject identifier for a username.
func (g *Gateway) lookupSub(ctx context.Context, username string) (string, error) {
	out, err := g.client.AdminGetUser(ctx, &cognitoidentityprovider.AdminGetUserInput{
		UserPoolId: aws.String(g.userPoolID),
		Username:   aws.String(username),
	})
	if err != nil {
		return "", g.mapError(err, "lookup sub")
	}
	for _, a := range out.UserAttributes {
		if aws.ToString(a.Name) == "sub" {
			return aws.ToString(a.Value), nil
		}
	}
	return "", idp.Err(idp.FaultConfigError).WithDetail("reason", "user has no sub attribute")
}

func (g *Gateway) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, g.timeout)
}

func (g *Gateway) mapError(err error, op string) error {
	var (
		notAuthorized   *types.NotAuthorizedException
		notConfirmed    *types.UserNotConfirmedException
		userNotFound    *types.UserNotFoundException
		tooManyRequests *types.TooManyRequestsException
		invalidParam    *types.InvalidParameterException
		poolNotFound    *types.ResourceNotFoundException
	)

	switch {
	case errors.As(err, &notAuthorized):
		return idp.ErrWithCause(idp.FaultInvalidCredentials, err)
	case errors.As(err, &notConfirmed):
		return idp.ErrWithCause(idp.FaultNotConfirmed, err)
	case errors.As(err, &userNotFound):
		return idp.ErrWithCause(idp.FaultNotFound, err)
	case errors.As(err, &tooManyRequests):
		return idp.ErrWithCause(idp.FaultRateLimited, err)
	case errors.As(err, &invalidParam), errors.As(err, &poolNotFound):
		return idp.ErrWithCause(idp.FaultConfigError, err)
	case errors.Is(err, context.DeadlineExceeded):
		logx.WithField("op", op).Warn("cognito call timed out")
		return idp.ErrWithCause(idp.FaultUnavailable, err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		logx.WithFields(logx.Fields{"op": op, "code": apiErr.ErrorCode()}).
			Warn("unmapped cognito error")
	}
	return idp.ErrWithCause(idp.FaultUnavailable, err)
}
