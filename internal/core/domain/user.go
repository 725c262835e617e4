package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrUsernameTaken = errors.New("username already exists")

// User is a registered donor or staff member.
type User struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Never expose
	IsActive     bool      `json:"is_active"`
	IsStaff      bool      `json:"is_staff"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CanLogin returns true if the account may obtain tokens.
func (u *User) CanLogin() bool {
	return u.IsActive
}
