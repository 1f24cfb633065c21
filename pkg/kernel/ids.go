package kernel

import "github.com/google/uuid"

// UserID is the stable local identifier of a user record.
type UserID string

func NewUserID() UserID                   { return UserID(uuid.NewString()) }
func UserIDFrom(id string) UserID         { return UserID(id) }
func (u UserID) String() string           { return string(u) }
func (u UserID) IsEmpty() bool            { return string(u) == "" }
func (u UserID) UUID() (uuid.UUID, error) { return uuid.Parse(string(u)) }
