package users

import (
	"errors"
	"strings"
)

var (
	// ErrUserNotFound indicates that no user matched the lookup.
	ErrUserNotFound = errors.New("users: user not found")
	// ErrDuplicateIdentity indicates that the external identity or email already belongs to another user.
	ErrDuplicateIdentity = errors.New("users: duplicate identity")
	// ErrInvalidIdentity indicates the sign-in payload did not contain a usable identifier.
	ErrInvalidIdentity = errors.New("users: invalid identity")
)

// User is the canonical account record created on first Google sign-in.
type User struct {
	ID           uint64  `gorm:"column:id;primaryKey;autoIncrement"`
	Email        string  `gorm:"column:email;size:320;not null;uniqueIndex"`
	Name         string  `gorm:"column:name;size:320;not null"`
	Picture      *string `gorm:"column:picture;size:1024"`
	GoogleID     string  `gorm:"column:google_id;size:190;not null;uniqueIndex"`
	AccessToken  *string `gorm:"column:access_token;type:text"`
	RefreshToken *string `gorm:"column:refresh_token;type:text"`
}

// TableName exposes the table backing users.
func (User) TableName() string {
	return "users"
}

// HasDriveAccess reports whether the user holds a stored Drive access credential.
func (u User) HasDriveAccess() bool {
	return u.AccessToken != nil && *u.AccessToken != ""
}

// Profile carries the fields required to create a user.
type Profile struct {
	GoogleID string
	Email    string
	Name     string
	Picture  *string
}

// Credentials carries OAuth credentials granted for Drive access.
type Credentials struct {
	AccessToken  string
	RefreshToken string
}

func normalize(value string) string {
	return strings.TrimSpace(value)
}

func optional(value string) *string {
	trimmed := normalize(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
