package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"user-auth/internal/credential"
	"user-auth/internal/domain"
	"user-auth/internal/repository"
	"user-auth/internal/token"
)

var (
	// ErrAlreadyExists is returned when registering an email that is already taken.
	ErrAlreadyExists = errors.New("email already registered")
	// ErrNotRegistered is returned when a reset is requested for an unknown email.
	ErrNotRegistered = errors.New("email not registered")
	// ErrInvalidToken is returned when no user holds the supplied reset token.
	ErrInvalidToken = errors.New("invalid reset token")
)

// AuthService describes registration, login, session and password reset operations.
type AuthService interface {
	Register(ctx context.Context, email, password string) (*domain.User, error)
	ValidateLogin(ctx context.Context, email, password string) (bool, error)
	CreateSession(ctx context.Context, email string) (string, error)
	GetUserBySession(ctx context.Context, sessionID string) (*domain.User, error)
	DestroySession(ctx context.Context, userID int64) error
	RequestPasswordReset(ctx context.Context, email string) (string, error)
	CompletePasswordReset(ctx context.Context, resetToken, newPassword string) error
}

type authService struct {
	users  repository.UserRepository
	hasher credential.Hasher
	tokens token.Generator
	log    logrus.FieldLogger
}

// NewAuthService wires the user store, password hasher and token generator.
// A nil generator defaults to token.New and a nil logger discards output.
func NewAuthService(users repository.UserRepository, hasher credential.Hasher, tokens token.Generator, logger logrus.FieldLogger) AuthService {
	if tokens == nil {
		tokens = token.New
	}
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}
	return &authService{
		users:  users,
		hasher: hasher,
		tokens: tokens,
		log:    logger,
	}
}

func (s *authService) Register(ctx context.Context, email, password string) (*domain.User, error) {
	_, err := s.users.FindBy(ctx, repository.ByEmail(email))
	if err == nil {
		return nil, ErrAlreadyExists
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	user, err := s.users.Add(ctx, email, hash)
	if err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return nil, ErrAlreadyExists
		}
		return nil, fmt.Errorf("add user: %w", err)
	}

	s.log.WithField("user_id", user.ID).Info("user registered")
	return user, nil
}

// ValidateLogin reports whether password matches the stored hash for email.
// An unknown email is not an error.
func (s *authService) ValidateLogin(ctx context.Context, email, password string) (bool, error) {
	user, err := s.users.FindBy(ctx, repository.ByEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("lookup user: %w", err)
	}
	return s.hasher.Verify(password, user.HashedPassword), nil
}

// CreateSession issues a new session id for email, replacing any previous one.
// It returns an empty id when the email is unknown; callers are expected to
// have checked ValidateLogin first.
func (s *authService) CreateSession(ctx context.Context, email string) (string, error) {
	user, err := s.users.FindBy(ctx, repository.ByEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("lookup user: %w", err)
	}

	sessionID, err := s.tokens()
	if err != nil {
		return "", err
	}
	if err := s.users.Update(ctx, user.ID, repository.UserUpdate{SessionID: domain.SetString(sessionID)}); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}

	s.log.WithField("user_id", user.ID).Debug("session created")
	return sessionID, nil
}

// GetUserBySession returns the owner of sessionID, or nil when there is none.
func (s *authService) GetUserBySession(ctx context.Context, sessionID string) (*domain.User, error) {
	if sessionID == "" {
		return nil, nil
	}
	user, err := s.users.FindBy(ctx, repository.BySessionID(sessionID))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("lookup session: %w", err)
	}
	return user, nil
}

func (s *authService) DestroySession(ctx context.Context, userID int64) error {
	err := s.users.Update(ctx, userID, repository.UserUpdate{SessionID: domain.ClearString()})
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("clear session: %w", err)
	}
	s.log.WithField("user_id", userID).Debug("session destroyed")
	return nil
}

// RequestPasswordReset stores and returns a fresh reset token for email.
func (s *authService) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	user, err := s.users.FindBy(ctx, repository.ByEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrNotRegistered
		}
		return "", fmt.Errorf("lookup user: %w", err)
	}

	resetToken, err := s.tokens()
	if err != nil {
		return "", err
	}
	if err := s.users.Update(ctx, user.ID, repository.UserUpdate{ResetToken: domain.SetString(resetToken)}); err != nil {
		return "", fmt.Errorf("store reset token: %w", err)
	}

	s.log.WithField("user_id", user.ID).Info("password reset requested")
	return resetToken, nil
}

// CompletePasswordReset consumes resetToken and replaces the owner's password hash.
func (s *authService) CompletePasswordReset(ctx context.Context, resetToken, newPassword string) error {
	if resetToken == "" {
		return ErrInvalidToken
	}
	user, err := s.users.FindBy(ctx, repository.ByResetToken(resetToken))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidToken
		}
		return fmt.Errorf("lookup reset token: %w", err)
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}

	err = s.users.Update(ctx, user.ID, repository.UserUpdate{
		HashedPassword: hash,
		ResetToken:     domain.ClearString(),
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidToken
		}
		return fmt.Errorf("store password: %w", err)
	}

	s.log.WithField("user_id", user.ID).Info("password updated")
	return nil
}
