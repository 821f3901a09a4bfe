package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spaces-planner/internal/model"
)

func TestBackupService_ExportAll(t *testing.T) {
	ctx := context.Background()
	users := &memUsers{users: []model.User{
		{ID: "u-1", Username: "Alice", UsernameKey: "alice"},
		{ID: "u-2", Username: "Bob", UsernameKey: "bob"},
	}}
	partitions := newMemPartitions()
	partitions.data["u-1"] = model.Partition{
		ActiveTasks:      []model.Task{{ID: "t", Text: "a", Category: "Home", Priority: model.PriorityLow, CreatedAt: fixedNow}},
		ActiveCategories: []string{"Home"},
		ArchivedTasks:    []model.Task{{ID: "gone", Text: "b", Category: "Home", Priority: model.PriorityLow}},
	}
	dir := filepath.Join(t.TempDir(), "backups")
	svc := NewBackupService(users, partitions, dir, nil)

	paths, err := svc.ExportAll(ctx, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "alice-20240310.json"),
		filepath.Join(dir, "bob-20240310.json"),
	}, paths)

	data, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	b, err := ParseBackup(data)
	require.NoError(t, err)
	require.Len(t, b.Tasks, 1)
	assert.Equal(t, "t", b.Tasks[0].ID)
	assert.Equal(t, []string{"Home"}, b.Categories)

	data, err = os.ReadFile(paths[1])
	require.NoError(t, err)
	b, err = ParseBackup(data)
	require.NoError(t, err)
	assert.True(t, b.HasTasks)
	assert.Empty(t, b.Tasks)
}

func TestBackupFileName(t *testing.T) {
	at := time.Date(2024, 12, 31, 23, 0, 0, 0, time.FixedZone("X", -3600))
	assert.Equal(t, "a_b-20250101.json", BackupFileName("a/b", at))
}
