package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"donation-payments/internal/core/domain"
	"donation-payments/internal/core/ports"
	"donation-payments/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const minPasswordLength = 8

// AuthServiceImpl implements ports.AuthService.
type AuthServiceImpl struct {
	userRepo ports.UserRepository
	hashSvc  ports.HashService
	tokenSvc ports.TokenService
	denylist ports.TokenDenylist
	log      zerolog.Logger
}

// NewAuthService creates a new AuthServiceImpl.
func NewAuthService(
	userRepo ports.UserRepository,
	hashSvc ports.HashService,
	tokenSvc ports.TokenService,
	denylist ports.TokenDenylist,
	log zerolog.Logger,
) *AuthServiceImpl {
	return &AuthServiceImpl{
		userRepo: userRepo,
		hashSvc:  hashSvc,
		tokenSvc: tokenSvc,
		denylist: denylist,
		log:      log,
	}
}

// Register creates a donor account.
func (s *AuthServiceImpl) Register(ctx context.Context, req ports.RegisterRequest) (*domain.User, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" {
		return nil, apperror.Validation("username is required")
	}
	if len(req.Password) < minPasswordLength {
		return nil, apperror.Validation(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	if req.Password != req.Password2 {
		return nil, apperror.Validation("passwords do not match")
	}
	email := strings.TrimSpace(req.Email)
	if email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			return nil, apperror.Validation("email is invalid")
		}
	}

	existing, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("check username: %w", err))
	}
	if existing != nil {
		return nil, apperror.ErrUsernameExists()
	}

	passwordHash, err := s.hashSvc.Hash(req.Password)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("hash password: %w", err))
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:           uuid.New(),
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		// Lost a race with a concurrent registration of the same username.
		if errors.Is(err, domain.ErrUsernameTaken) {
			return nil, apperror.ErrUsernameExists()
		}
		return nil, apperror.ErrDatabaseError(fmt.Errorf("create user: %w", err))
	}

	s.log.Info().Str("user_id", user.ID.String()).Str("username", user.Username).Msg("user registered")
	return user, nil
}

// Login validates credentials and issues a JWT.
func (s *AuthServiceImpl) Login(ctx context.Context, username, password string) (*ports.LoginResult, error) {
	user, err := s.userRepo.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("find user: %w", err))
	}
	if user == nil {
		return nil, apperror.ErrInvalidCredentials()
	}

	valid, err := s.hashSvc.Verify(password, user.PasswordHash)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("verify password: %w", err))
	}
	if !valid {
		return nil, apperror.ErrInvalidCredentials()
	}

	if !user.CanLogin() {
		return nil, apperror.ErrAccountDisabled()
	}

	token, expiry, err := s.tokenSvc.Generate(user)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("generate token: %w", err))
	}

	return &ports.LoginResult{Token: token, Expiry: expiry, User: user}, nil
}

// Logout revokes the caller's token for the rest of its lifetime.
func (s *AuthServiceImpl) Logout(ctx context.Context, principal *ports.Principal) error {
	if principal == nil || principal.TokenID == "" {
		return apperror.ErrInvalidToken()
	}
	ttl := time.Until(principal.ExpiresAt)
	if err := s.denylist.Revoke(ctx, principal.TokenID, ttl); err != nil {
		return apperror.ErrStorageFailure(fmt.Errorf("revoke token: %w", err))
	}
	return nil
}

// Me returns the caller's profile.
func (s *AuthServiceImpl) Me(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("find user: %w", err))
	}
	if user == nil {
		return nil, apperror.ErrNotFound("User")
	}
	return user, nil
}
