package users

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a user lookup fails.
	ErrNotFound = errors.New("user not found")

	// ErrEmailTaken is returned when registering with an email that is
	// already in use. Email matching is case-exact.
	ErrEmailTaken = errors.New("email is already in use")

	// ErrInvalidCredentials is returned for both unknown email and wrong
	// password so the two cases are indistinguishable to a caller.
	ErrInvalidCredentials = errors.New("invalid email or password")
)

type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type CreateParams struct {
	Name         string
	Email        string
	PasswordHash string
	Role         string
}

type Repository interface {
	Create(ctx context.Context, params CreateParams) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
}
