package service

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spaces-planner/internal/model"
)

func TestUndoBuffer_RecordTakeDismiss(t *testing.T) {
	timers := &manualTimers{}
	b := NewUndoBuffer(UndoWindow, timers.After)

	_, ok := b.Take()
	assert.False(t, ok)

	b.Record(UndoEntry{Kind: UndoCategory, Category: "Work"})
	entry, ok := b.Pending()
	require.True(t, ok)
	assert.Equal(t, "Work", entry.Category)
	assert.False(t, entry.RecordedAt.IsZero())

	taken, ok := b.Take()
	require.True(t, ok)
	assert.Equal(t, entry, taken)
	_, ok = b.Pending()
	assert.False(t, ok)
	assert.Zero(t, timers.Live())

	b.Record(UndoEntry{Kind: UndoCategory, Category: "Home"})
	b.Dismiss()
	_, ok = b.Take()
	assert.False(t, ok)
}

func TestUndoBuffer_StaleTimerDoesNotExpireNewEntry(t *testing.T) {
	var mu sync.Mutex
	var fns []func()
	after := func(_ time.Duration, f func()) func() bool {
		mu.Lock()
		defer mu.Unlock()
		fns = append(fns, f)
		return func() bool { return false }
	}
	b := NewUndoBuffer(time.Second, after)
	var expired []string
	b.OnExpire(func(e UndoEntry) { expired = append(expired, e.Category) })

	b.Record(UndoEntry{Kind: UndoCategory, Category: "first"})
	b.Record(UndoEntry{Kind: UndoCategory, Category: "second"})

	// the first timer fires even though stopping it was too late
	fns[0]()
	entry, ok := b.Pending()
	require.True(t, ok)
	assert.Equal(t, "second", entry.Category)
	assert.Empty(t, expired)

	fns[1]()
	_, ok = b.Pending()
	assert.False(t, ok)
	assert.Equal(t, []string{"second"}, expired)
}

func TestUndoBuffer_EntryIsIsolated(t *testing.T) {
	b := NewUndoBuffer(UndoWindow, (&manualTimers{}).After)
	due := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	task := model.Task{ID: "1", DueDate: &due}

	b.Record(UndoEntry{Kind: UndoTask, Task: task})
	*task.DueDate = due.Add(time.Hour)

	entry, ok := b.Pending()
	require.True(t, ok)
	assert.True(t, entry.Task.DueDate.Equal(due))
}

func TestUndoBuffer_RealTimerExpires(t *testing.T) {
	b := NewUndoBuffer(10*time.Millisecond, nil)
	expired := make(chan UndoEntry, 1)
	b.OnExpire(func(e UndoEntry) { expired <- e })

	b.Record(UndoEntry{Kind: UndoCategory, Category: "Gym"})

	select {
	case e := <-expired:
		assert.Equal(t, "Gym", e.Category)
	case <-time.After(2 * time.Second):
		t.Fatal("entry did not expire")
	}
	_, ok := b.Pending()
	assert.False(t, ok)
}
