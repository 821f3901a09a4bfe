package service

import (
	"sync"
	"time"

	"spaces-planner/internal/model"
)

const (
	// UndoWindow is how long a task or space deletion can be undone.
	UndoWindow = 4 * time.Second
	// ConfirmationWindow is how long restore and purge confirmations stay visible.
	ConfirmationWindow = 3 * time.Second
)

// UndoKind tells what a pending undo entry restores.
type UndoKind int

const (
	UndoTask UndoKind = iota + 1
	UndoCategory
)

// UndoEntry is a deletion that can still be reversed with one tap.
type UndoEntry struct {
	Kind       UndoKind
	Task       model.Task
	Category   string
	RecordedAt time.Time
}

// AfterFunc schedules f after d and returns a function that cancels it.
type AfterFunc func(d time.Duration, f func()) (stop func() bool)

// RealAfterFunc schedules on the runtime timer.
func RealAfterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

// UndoBuffer holds at most one pending deletion. Recording a new one cancels
// the previous entry and its expiry timer. Expiry only drops the offer; the
// archived data stays where it is.
type UndoBuffer struct {
	mu       sync.Mutex
	entry    *UndoEntry
	stop     func() bool
	gen      uint64
	window   time.Duration
	after    AfterFunc
	now      func() time.Time
	onExpire func(UndoEntry)
}

func NewUndoBuffer(window time.Duration, after AfterFunc) *UndoBuffer {
	if after == nil {
		after = RealAfterFunc
	}
	return &UndoBuffer{window: window, after: after, now: time.Now}
}

// OnExpire registers fn to run, on the timer goroutine, when an entry times out.
func (b *UndoBuffer) OnExpire(fn func(UndoEntry)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onExpire = fn
}

// Record replaces the pending entry.
func (b *UndoBuffer) Record(entry UndoEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.cancelLocked()
	if entry.RecordedAt.IsZero() {
		entry.RecordedAt = b.now()
	}
	entry.Task = entry.Task.Clone()
	b.entry = &entry
	b.gen++
	gen := b.gen
	b.stop = b.after(b.window, func() { b.expire(gen) })
}

// Pending returns the entry that can still be undone.
func (b *UndoBuffer) Pending() (UndoEntry, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.entry == nil {
		return UndoEntry{}, false
	}
	return *b.entry, true
}

// Take returns the pending entry and clears the slot.
func (b *UndoBuffer) Take() (UndoEntry, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.entry == nil {
		return UndoEntry{}, false
	}
	entry := *b.entry
	b.cancelLocked()
	return entry, true
}

// Dismiss clears the slot without restoring anything.
func (b *UndoBuffer) Dismiss() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cancelLocked()
}

// forget clears the slot when the pending entry matches.
func (b *UndoBuffer) forget(match func(UndoEntry) bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.entry != nil && match(*b.entry) {
		b.cancelLocked()
	}
}

func (b *UndoBuffer) cancelLocked() {
	if b.stop != nil {
		b.stop()
		b.stop = nil
	}
	b.entry = nil
	b.gen++
}

func (b *UndoBuffer) expire(gen uint64) {
	b.mu.Lock()
	if gen != b.gen || b.entry == nil {
		b.mu.Unlock()
		return
	}
	entry := *b.entry
	b.entry = nil
	b.stop = nil
	fn := b.onExpire
	b.mu.Unlock()

	if fn != nil {
		fn(entry)
	}
}
