// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"

	"github.com/google/uuid"
)

// Display names are capped so roster frames stay small.
const maxDisplayNameLen = 36

var (
	ErrDisplayNameTooLong = errors.New("display name too long")
	ErrDisplayNameEmpty   = errors.New("display name empty")
)

type UserID string

// User is the authenticated identity available before a voice session starts.
// The relay may replace the ID with its own canonical one on join.
type User struct {
	ID          UserID `json:"id"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// NewUser mints a user with a random ID and a validated display name.
func NewUser(displayName string) (User, error) {
	if err := validateDisplayName(displayName); err != nil {
		return User{}, err
	}
	return User{ID: UserID(uuid.NewString()), DisplayName: displayName}, nil
}

func (u *User) SetDisplayName(displayName string) error {
	if err := validateDisplayName(displayName); err != nil {
		return err
	}
	u.DisplayName = displayName
	return nil
}

func validateDisplayName(name string) error {
	switch {
	case len(name) == 0:
		return ErrDisplayNameEmpty
	case len(name) > maxDisplayNameLen:
		return ErrDisplayNameTooLong
	}
	return nil
}
