package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/phrazzld/digest-api/internal/domain"
	"github.com/phrazzld/digest-api/internal/service/auth"
	"github.com/phrazzld/digest-api/internal/store"
)

// MinPasswordLength is the shortest password accepted at signup.
const MinPasswordLength = 6

// UserService registers and authenticates users.
type UserService struct {
	users  store.UserStore
	hasher auth.PasswordHasher
	tokens auth.JWTService
	logger *slog.Logger
}

// NewUserService creates a UserService.
func NewUserService(
	users store.UserStore,
	hasher auth.PasswordHasher,
	tokens auth.JWTService,
	logger *slog.Logger,
) *UserService {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserService{
		users:  users,
		hasher: hasher,
		tokens: tokens,
		logger: logger.With(slog.String("component", "user_service")),
	}
}

// Register creates a user with the starting credit balance.
// Returns store.ErrUsernameExists or store.ErrEmailExists on conflicts.
func (s *UserService) Register(ctx context.Context, username, email, password string) (*domain.User, error) {
	if len(password) < MinPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", domain.ErrValidation, MinPasswordLength)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, newOperationError("register", "failed to hash password", err)
	}

	user, err := domain.NewUser(username, email, hash)
	if err != nil {
		return nil, err
	}

	if err := s.users.Create(ctx, user); err != nil {
		if store.IsDuplicateError(err) {
			s.logger.DebugContext(ctx, "signup conflict", "username", user.Username)
			return nil, err
		}
		s.logger.ErrorContext(ctx, "failed to save user", "error", err, "username", user.Username)
		return nil, newOperationError("register", "failed to save user", err)
	}

	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID)
	return user, nil
}

// TokenPair is the access and refresh token issued on login or refresh.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// Login checks the credentials and issues a token pair.
func (s *UserService) Login(ctx context.Context, username, password string) (*TokenPair, *domain.User, error) {
	user, err := s.users.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, newOperationError("login", "failed to load user", err)
	}

	if err := s.hasher.Compare(user.HashedPassword, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, newOperationError("login", "failed to verify password", err)
	}

	pair, err := s.issueTokens(ctx, user.ID)
	if err != nil {
		return nil, nil, newOperationError("login", "failed to issue tokens", err)
	}
	return pair, user, nil
}

// Refresh exchanges a valid refresh token for a new token pair. A token
// whose user no longer exists is rejected with auth.ErrInvalidRefreshToken.
func (s *UserService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, *domain.User, error) {
	claims, err := s.tokens.ValidateRefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, nil, err
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			s.logger.DebugContext(ctx, "refresh token for missing user", "user_id", claims.UserID)
			return nil, nil, auth.ErrInvalidRefreshToken
		}
		return nil, nil, newOperationError("refresh", "failed to load user", err)
	}

	pair, err := s.issueTokens(ctx, user.ID)
	if err != nil {
		return nil, nil, newOperationError("refresh", "failed to issue tokens", err)
	}
	return pair, user, nil
}

func (s *UserService) issueTokens(ctx context.Context, userID int64) (*TokenPair, error) {
	access, err := s.tokens.GenerateToken(ctx, userID)
	if err != nil {
		return nil, err
	}
	refresh, err := s.tokens.GenerateRefreshToken(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Get returns the user by ID.
func (s *UserService) Get(ctx context.Context, userID int64) (*domain.User, error) {
	return s.users.GetByID(ctx, userID)
}
