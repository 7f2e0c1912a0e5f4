package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gatherline/server/internal/auth"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

const (
	// BcryptCost is the cost factor for password hashing.
	BcryptCost = 12

	// MinPasswordLength is the minimum accepted password length.
	MinPasswordLength = 8
)

// Service handles registration and credential checks.
type Service struct {
	repo      Repository
	logger    zerolog.Logger
	validator *validator.Validate
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		logger:    logger.With().Str("component", "users").Logger(),
		validator: validator.New(),
	}
}

type RegisterParams struct {
	Name     string
	Email    string
	Password string
	Role     string
}

// ValidationError reports one message per offending input field.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %d field(s)", len(e.Fields))
}

// Register stores a new user with a hashed password. The role is taken
// as requested (default USER); there is no approval step for admins.
func (s *Service) Register(ctx context.Context, params RegisterParams) (*User, error) {
	if params.Role == "" {
		params.Role = string(auth.RoleUser)
	}
	if err := s.validateRegistration(params); err != nil {
		return nil, err
	}

	taken, err := s.repo.ExistsByEmail(ctx, params.Email)
	if err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if taken {
		return nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(params.Password), BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	// The unique index still backs this up if two registrations race past
	// the ExistsByEmail check; the store maps that to ErrEmailTaken.
	user, err := s.repo.Create(ctx, CreateParams{
		Name:         params.Name,
		Email:        params.Email,
		PasswordHash: string(hash),
		Role:         params.Role,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("user_id", user.ID).Msg("user registered")
	return user, nil
}

// Authenticate verifies an email/password pair. Unknown email and wrong
// password both come back as ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	s.logger.Info().Str("user_id", user.ID).Msg("user authenticated")
	return user, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) validateRegistration(params RegisterParams) error {
	fields := map[string]string{}

	if strings.TrimSpace(params.Name) == "" {
		fields["name"] = "Name is required"
	}
	if strings.TrimSpace(params.Email) == "" {
		fields["email"] = "Email is required"
	} else if err := s.validator.Var(params.Email, "email"); err != nil {
		fields["email"] = "Email must be valid"
	}
	if params.Password == "" {
		fields["password"] = "Password is required"
	} else if len(params.Password) < MinPasswordLength {
		fields["password"] = fmt.Sprintf("Password must be at least %d characters", MinPasswordLength)
	}
	if auth.Role(params.Role) != auth.RoleUser && auth.Role(params.Role) != auth.RoleAdmin {
		fields["role"] = "Role must be USER or ADMIN"
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}
