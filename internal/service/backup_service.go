package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"spaces-planner/internal/model"
)

// UserLister enumerates every registered user.
type UserLister interface {
	ListAll(ctx context.Context) ([]model.User, error)
}

// BackupService writes a backup document per user into a directory.
type BackupService struct {
	users      UserLister
	partitions PartitionStore
	dir        string
	log        *zap.Logger
}

func NewBackupService(users UserLister, partitions PartitionStore, dir string, log *zap.Logger) *BackupService {
	if log == nil {
		log = zap.NewNop()
	}
	return &BackupService{users: users, partitions: partitions, dir: dir, log: log}
}

// ExportAll writes <dir>/<username>-<yyyymmdd>.json for every user and
// returns the written paths. A failing user is logged and skipped.
func (s *BackupService) ExportAll(ctx context.Context, now time.Time) ([]string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create backup dir: %w", err)
	}
	users, err := s.users.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	var written []string
	for _, user := range users {
		path, err := s.exportUser(ctx, user, now)
		if err != nil {
			s.log.Error("backup user", zap.String("user", user.Username), zap.Error(err))
			continue
		}
		written = append(written, path)
	}
	s.log.Info("backup finished", zap.Int("users", len(users)), zap.Int("written", len(written)))
	return written, nil
}

func (s *BackupService) exportUser(ctx context.Context, user model.User, now time.Time) (string, error) {
	p, err := s.partitions.Load(ctx, user.ID)
	if err != nil {
		return "", err
	}
	data, err := ExportBackup(p.ActiveTasks, p.ActiveCategories, now)
	if err != nil {
		return "", err
	}
	path := filepath.Join(s.dir, BackupFileName(user.UsernameKey, now))
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

// BackupFileName is the file name used for exports of user at now.
func BackupFileName(user string, now time.Time) string {
	safe := strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == os.PathSeparator {
			return '_'
		}
		return r
	}, user)
	return fmt.Sprintf("%s-%s.json", safe, now.UTC().Format("20060102"))
}
