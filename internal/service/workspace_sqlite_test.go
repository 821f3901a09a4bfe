package service

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spaces-planner/internal/model"
	"spaces-planner/internal/repository"
)

type sqliteFixture struct {
	ws     *Workspace
	store  *repository.PartitionRepository
	timers *manualTimers
	user   model.User
}

// newSQLiteWorkspace opens a workspace over the real partition repository.
func newSQLiteWorkspace(t *testing.T) sqliteFixture {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := repository.NewDB(fmt.Sprintf("file:%s?mode=memory&cache=shared", name), nil)
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	store := repository.NewPartitionRepository(db)
	user := model.User{ID: "u-1", Username: "alice"}
	timers := &manualTimers{}
	ws, err := OpenWorkspace(context.Background(), user, store, NewUndoBuffer(UndoWindow, timers.After), nil, nil)
	require.NoError(t, err)
	return sqliteFixture{ws: ws, store: store, timers: timers, user: user}
}

// reload reads the stored partition back.
func (f sqliteFixture) reload(t *testing.T) model.Partition {
	t.Helper()
	p, err := f.store.Load(context.Background(), f.user.ID)
	require.NoError(t, err)
	return p
}

func TestSQLiteWorkspace_DeleteThenUndo(t *testing.T) {
	ctx := context.Background()
	f := newSQLiteWorkspace(t)
	_, err := f.ws.CreateCategory(ctx, "Home")
	require.NoError(t, err)
	task, err := f.ws.CreateTask(ctx, TaskInput{Text: "water plants", Priority: model.PriorityHigh})
	require.NoError(t, err)

	_, err = f.ws.DeleteTask(ctx, task.ID)
	require.NoError(t, err)
	stored := f.reload(t)
	assert.Empty(t, stored.ActiveTasks)
	require.Len(t, stored.ArchivedTasks, 1)

	_, ok, err := f.ws.Undo(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	stored = f.reload(t)
	require.Len(t, stored.ActiveTasks, 1)
	assert.Equal(t, task.ID, stored.ActiveTasks[0].ID)
	assert.Equal(t, model.PriorityHigh, stored.ActiveTasks[0].Priority)
	assert.Empty(t, stored.ArchivedTasks)
}

func TestSQLiteWorkspace_RestoreTask(t *testing.T) {
	ctx := context.Background()
	f := newSQLiteWorkspace(t)
	task, err := f.ws.CreateTask(ctx, TaskInput{Text: "call mom"})
	require.NoError(t, err)
	_, err = f.ws.DeleteTask(ctx, task.ID)
	require.NoError(t, err)
	f.timers.FireAll()

	restored, err := f.ws.RestoreTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, task.ID, restored.ID)

	stored := f.reload(t)
	require.Len(t, stored.ActiveTasks, 1)
	assert.Equal(t, task.ID, stored.ActiveTasks[0].ID)
	assert.Equal(t, "call mom", stored.ActiveTasks[0].Text)
	assert.Empty(t, stored.ArchivedTasks)
	assert.Equal(t, []string{model.DefaultCategory}, stored.ActiveCategories)
}

func TestSQLiteWorkspace_UndoSpaceDeletion(t *testing.T) {
	ctx := context.Background()
	f := newSQLiteWorkspace(t)
	_, err := f.ws.CreateCategory(ctx, "Work")
	require.NoError(t, err)
	_, err = f.ws.CreateCategory(ctx, "Home")
	require.NoError(t, err)

	_, _, err = f.ws.DeleteCategory(ctx, "Home")
	require.NoError(t, err)
	_, ok, err := f.ws.Undo(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	stored := f.reload(t)
	assert.Equal(t, []string{"Home", "Work"}, stored.ActiveCategories)
	assert.Empty(t, stored.ArchivedCategories)
}

func TestSQLiteWorkspace_ImportOverlappingArchive(t *testing.T) {
	ctx := context.Background()
	f := newSQLiteWorkspace(t)
	_, err := f.ws.CreateCategory(ctx, "Home")
	require.NoError(t, err)
	task, err := f.ws.CreateTask(ctx, TaskInput{Text: "fix sink"})
	require.NoError(t, err)

	data, err := f.ws.Export()
	require.NoError(t, err)
	_, err = f.ws.DeleteTask(ctx, task.ID)
	require.NoError(t, err)

	backup, err := ParseBackup(data)
	require.NoError(t, err)
	require.NoError(t, f.ws.Import(ctx, backup))

	stored := f.reload(t)
	require.Len(t, stored.ActiveTasks, 1)
	assert.Equal(t, task.ID, stored.ActiveTasks[0].ID)
	assert.Empty(t, stored.ArchivedTasks)
	assert.Equal(t, []string{"Home"}, stored.ActiveCategories)
}
