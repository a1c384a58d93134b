package domain

import (
	"fmt"
	"net/mail"
	"strings"
	"time"
)

// DefaultCredits is the balance a user starts with and is reset to.
const DefaultCredits = 100

// User is an account holder with an integer credit balance. The password
// hash is opaque to everything outside the auth service.
type User struct {
	ID             int64     `json:"id"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	HashedPassword string    `json:"-"`
	Credits        int       `json:"credits"`
	CreatedAt      time.Time `json:"created_at"`
}

// NewUser creates a user with the starting credit balance.
func NewUser(username, email, hashedPassword string) (*User, error) {
	user := &User{
		Username:       strings.TrimSpace(username),
		Email:          strings.TrimSpace(email),
		HashedPassword: hashedPassword,
		Credits:        DefaultCredits,
		CreatedAt:      time.Now().UTC(),
	}

	if err := user.Validate(); err != nil {
		return nil, err
	}

	return user, nil
}

// Validate checks that the user has the fields required for persistence.
func (u *User) Validate() error {
	if n := len(u.Username); n < 3 || n > 50 {
		return fmt.Errorf("%w: username must be 3 to 50 characters", ErrValidation)
	}

	if _, err := mail.ParseAddress(u.Email); err != nil {
		return ErrInvalidEmail
	}

	if u.HashedPassword == "" {
		return fmt.Errorf("%w: password hash", ErrEmptyContent)
	}

	return nil
}
