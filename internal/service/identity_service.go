package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"

	"spaces-planner/internal/model"
	"spaces-planner/internal/repository"
)

// UserStore persists user records.
type UserStore interface {
	Create(ctx context.Context, user *model.User) error
	FindByUsernameKey(ctx context.Context, key string) (*model.User, error)
	FindByID(ctx context.Context, id string) (*model.User, error)
}

// IdentityService registers and authenticates users.
type IdentityService struct {
	users             UserStore
	minPasswordLength int
	now               func() time.Time
}

func NewIdentityService(users UserStore, minPasswordLength int) *IdentityService {
	return &IdentityService{
		users:             users,
		minPasswordLength: minPasswordLength,
		now:               time.Now,
	}
}

// Register creates a new user. Usernames are unique regardless of case.
func (s *IdentityService) Register(ctx context.Context, username, password string) (*model.User, error) {
	if err := s.validate(username, password); err != nil {
		return nil, err
	}

	user := &model.User{
		ID:                  uuid.NewString(),
		Username:            username,
		UsernameKey:         usernameKey(username),
		PasswordFingerprint: Fingerprint(password),
		CreatedAt:           s.now().UTC(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrDuplicateUsername
		}
		return nil, err
	}
	return user, nil
}

// Authenticate returns the user whose fingerprint matches password.
func (s *IdentityService) Authenticate(ctx context.Context, username, password string) (*model.User, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.FindByUsernameKey(ctx, usernameKey(username))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if user.PasswordFingerprint != Fingerprint(password) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// Lookup resolves a stored session pointer.
func (s *IdentityService) Lookup(ctx context.Context, id string) (*model.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func (s *IdentityService) validate(username, password string) error {
	if username == "" || password == "" {
		return ErrInvalidCredentials
	}
	if strings.ContainsFunc(username, unicode.IsSpace) || strings.ContainsFunc(password, unicode.IsSpace) {
		return ErrInvalidCredentials
	}
	if utf8.RuneCountInString(password) < s.minPasswordLength {
		return ErrInvalidCredentials
	}
	return nil
}

func usernameKey(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}
