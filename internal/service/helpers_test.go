package service

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"spaces-planner/internal/model"
	"spaces-planner/internal/repository"
)

// memPartitions is an in-memory PartitionStore.
type memPartitions struct {
	mu      sync.Mutex
	data    map[string]model.Partition
	saves   int
	failErr error
}

func newMemPartitions() *memPartitions {
	return &memPartitions{data: map[string]model.Partition{}}
}

func (m *memPartitions) Load(_ context.Context, userID string) (model.Partition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyPartition(m.data[userID]), nil
}

func (m *memPartitions) Save(_ context.Context, userID string, p model.Partition, dirty model.Dirty) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return m.failErr
	}
	m.saves++
	cur := m.data[userID]
	if dirty.Has(model.DirtyActiveTasks) {
		cur.ActiveTasks = cloneTasks(p.ActiveTasks)
	}
	if dirty.Has(model.DirtyArchivedTasks) {
		cur.ArchivedTasks = cloneTasks(p.ArchivedTasks)
	}
	if dirty.Has(model.DirtyActiveCategories) {
		cur.ActiveCategories = slices.Clone(p.ActiveCategories)
	}
	if dirty.Has(model.DirtyArchivedCategories) {
		cur.ArchivedCategories = slices.Clone(p.ArchivedCategories)
	}
	m.data[userID] = cur
	return nil
}

func (m *memPartitions) stored(userID string) model.Partition {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyPartition(m.data[userID])
}

func copyPartition(p model.Partition) model.Partition {
	return model.Partition{
		ActiveTasks:        cloneTasks(p.ActiveTasks),
		ArchivedTasks:      cloneTasks(p.ArchivedTasks),
		ActiveCategories:   slices.Clone(p.ActiveCategories),
		ArchivedCategories: slices.Clone(p.ArchivedCategories),
	}
}

// memUsers is an in-memory UserStore.
type memUsers struct {
	mu    sync.Mutex
	users []model.User
}

func (m *memUsers) Create(_ context.Context, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.UsernameKey == user.UsernameKey {
			return repository.ErrDuplicate
		}
	}
	m.users = append(m.users, *user)
	return nil
}

func (m *memUsers) FindByUsernameKey(_ context.Context, key string) (*model.User, error) {
	return m.find(func(u model.User) bool { return u.UsernameKey == key })
}

func (m *memUsers) FindByID(_ context.Context, id string) (*model.User, error) {
	return m.find(func(u model.User) bool { return u.ID == id })
}

func (m *memUsers) ListAll(context.Context) ([]model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.users), nil
}

func (m *memUsers) find(match func(model.User) bool) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if match(u) {
			user := u
			return &user, nil
		}
	}
	return nil, repository.ErrNotFound
}

// memSettings is an in-memory SettingStore.
type memSettings struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemSettings() *memSettings {
	return &memSettings{data: map[string]string{}}
}

func (m *memSettings) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memSettings) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memSettings) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *memSettings) ListPrefix(_ context.Context, prefix string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]string{}
	for k, v := range m.data {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			out[k[len(prefix):]] = v
		}
	}
	return out, nil
}

// manualTimers is an AfterFunc whose timers only fire on demand.
type manualTimers struct {
	mu      sync.Mutex
	pending []*manualTimer
}

type manualTimer struct {
	d       time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (m *manualTimers) After(d time.Duration, f func()) func() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &manualTimer{d: d, f: f}
	m.pending = append(m.pending, t)
	return func() bool {
		m.mu.Lock()
		defer m.mu.Unlock()
		if t.stopped || t.fired {
			return false
		}
		t.stopped = true
		return true
	}
}

// FireAll runs every timer that was neither stopped nor fired yet.
func (m *manualTimers) FireAll() {
	m.mu.Lock()
	var due []*manualTimer
	for _, t := range m.pending {
		if !t.stopped && !t.fired {
			t.fired = true
			due = append(due, t)
		}
	}
	m.pending = nil
	m.mu.Unlock()

	for _, t := range due {
		t.f()
	}
}

func (m *manualTimers) Live() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.pending {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// cueRecorder collects cues synchronously.
type cueRecorder struct {
	mu   sync.Mutex
	cues []Cue
}

func (r *cueRecorder) Notify(cue Cue) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cues = append(r.cues, cue)
}

func (r *cueRecorder) All() []Cue {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.cues)
}

var fixedNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

type workspaceFixture struct {
	ws     *Workspace
	store  *memPartitions
	timers *manualTimers
	cues   *cueRecorder
}

func newWorkspace(t *testing.T, seed model.Partition) workspaceFixture {
	t.Helper()
	store := newMemPartitions()
	user := model.User{ID: "u-1", Username: "alice"}
	store.data[user.ID] = seed

	timers := &manualTimers{}
	cues := &cueRecorder{}
	ws, err := OpenWorkspace(context.Background(), user, store, NewUndoBuffer(UndoWindow, timers.After), cues, nil)
	require.NoError(t, err)
	tick := fixedNow
	ws.now = func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}
	return workspaceFixture{ws: ws, store: store, timers: timers, cues: cues}
}

// requireConsistent checks that every active task sits in an active space and
// no space is both active and archived.
func requireConsistent(t *testing.T, p model.Partition) {
	t.Helper()
	for _, task := range p.ActiveTasks {
		require.Contains(t, p.ActiveCategories, task.Category, "task %s", task.ID)
	}
	for _, name := range p.ArchivedCategories {
		require.NotContains(t, p.ActiveCategories, name)
	}
}

var errBoom = errors.New("boom")
