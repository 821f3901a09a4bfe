package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"spaces-planner/internal/model"
)

const sessionKeyPrefix = "session:"

// SettingStore keeps global key/value preferences.
type SettingStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	ListPrefix(ctx context.Context, prefix string) (map[string]string, error)
}

// SessionDeps are the collaborators shared by all sessions.
type SessionDeps struct {
	Identity   *IdentityService
	Settings   SettingStore
	Partitions PartitionStore
	Log        *zap.Logger
	// AfterFunc drives undo expiry; nil uses the runtime timer.
	AfterFunc AfterFunc
}

// Session is the logged-in state of one device. Logging in opens the user's
// workspace; logging out or switching users tears it down completely.
type Session struct {
	device   string
	deps     SessionDeps
	notifier Notifier
	onExpire func(UndoEntry)

	user *model.User
	ws   *Workspace
}

// NewSession binds a session to device. notifier receives the workspace cues
// and onExpire is called when an undo offer times out; both may be nil.
func NewSession(device string, deps SessionDeps, notifier Notifier, onExpire func(UndoEntry)) *Session {
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	return &Session{device: device, deps: deps, notifier: notifier, onExpire: onExpire}
}

func (s *Session) Device() string { return s.device }

// User returns the logged-in user or nil.
func (s *Session) User() *model.User { return s.user }

// Workspace returns the open workspace.
func (s *Session) Workspace() (*Workspace, error) {
	if s.ws == nil {
		return nil, ErrNotAuthenticated
	}
	return s.ws, nil
}

// SignUp registers a user and logs them in.
func (s *Session) SignUp(ctx context.Context, username, password string) (*model.User, error) {
	user, err := s.deps.Identity.Register(ctx, username, password)
	if err != nil {
		return nil, err
	}
	if err := s.open(ctx, user); err != nil {
		return nil, err
	}
	s.deps.Log.Info("user signed up", zap.String("device", s.device), zap.String("user", user.Username))
	return user, nil
}

// LogIn authenticates and replaces any open workspace.
func (s *Session) LogIn(ctx context.Context, username, password string) (*model.User, error) {
	user, err := s.deps.Identity.Authenticate(ctx, username, password)
	if err != nil {
		return nil, err
	}
	if err := s.open(ctx, user); err != nil {
		return nil, err
	}
	s.deps.Log.Info("user logged in", zap.String("device", s.device), zap.String("user", user.Username))
	return user, nil
}

// Resume reopens the workspace named by the persisted session pointer.
// It reports false when there is nothing to resume.
func (s *Session) Resume(ctx context.Context) (bool, error) {
	id, ok, err := s.deps.Settings.Get(ctx, s.key())
	if err != nil || !ok {
		return false, err
	}
	user, err := s.deps.Identity.Lookup(ctx, id)
	if errors.Is(err, ErrUserNotFound) {
		return false, s.deps.Settings.Delete(ctx, s.key())
	}
	if err != nil {
		return false, err
	}
	if err := s.open(ctx, user); err != nil {
		return false, err
	}
	return true, nil
}

// LogOut closes the workspace and clears the session pointer.
func (s *Session) LogOut(ctx context.Context) error {
	s.teardown()
	if err := s.deps.Settings.Delete(ctx, s.key()); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

func (s *Session) open(ctx context.Context, user *model.User) error {
	undo := NewUndoBuffer(UndoWindow, s.deps.AfterFunc)
	if s.onExpire != nil {
		undo.OnExpire(s.onExpire)
	}
	ws, err := OpenWorkspace(ctx, *user, s.deps.Partitions, undo, s.notifier, s.deps.Log)
	if err != nil {
		return err
	}
	if err := s.deps.Settings.Set(ctx, s.key(), user.ID); err != nil {
		return fmt.Errorf("store session: %w", err)
	}

	s.teardown()
	s.user = user
	s.ws = ws
	return nil
}

func (s *Session) teardown() {
	if s.ws != nil {
		s.ws.Close()
	}
	s.ws = nil
	s.user = nil
}

func (s *Session) key() string {
	return sessionKeyPrefix + s.device
}

// ActiveSessions maps every device with a stored session to its user id.
func ActiveSessions(ctx context.Context, settings SettingStore) (map[string]string, error) {
	return settings.ListPrefix(ctx, sessionKeyPrefix)
}
