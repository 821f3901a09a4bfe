package service

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"spaces-planner/internal/model"
)

// PartitionStore loads and flushes the collections of one user.
type PartitionStore interface {
	Load(ctx context.Context, userID string) (model.Partition, error)
	Save(ctx context.Context, userID string, p model.Partition, dirty model.Dirty) error
}

// TaskInput represents data required to create a task.
type TaskInput struct {
	Text        string
	Description string
	// Category may be empty: the viewed space, the first space or the
	// default space is used then.
	Category string
	Priority model.Priority
	DueDate  *time.Time
}

// TaskPatch is a partial update; nil fields are left alone.
type TaskPatch struct {
	Text         *string
	Description  *string
	Category     *string
	Priority     *model.Priority
	DueDate      *time.Time
	ClearDueDate bool
}

// View is the filter the task list is currently displayed with.
// An empty Category means all spaces.
type View struct {
	Category string
	Search   string
}

// Filtered reports whether the view hides any task.
func (v View) Filtered() bool {
	return v.Category != "" || strings.TrimSpace(v.Search) != ""
}

// Workspace owns the four collections of the logged-in user. Every mutation
// validates first, flushes the changed collections and only then replaces
// the in-memory state, so a failed operation leaves nothing half-applied.
type Workspace struct {
	mu     sync.Mutex
	user   model.User
	store  PartitionStore
	undo   *UndoBuffer
	notify Notifier
	log    *zap.Logger
	now    func() time.Time

	p    model.Partition
	view View
}

// OpenWorkspace loads the partition of user. An empty store yields empty collections.
func OpenWorkspace(ctx context.Context, user model.User, store PartitionStore, undo *UndoBuffer, notify Notifier, log *zap.Logger) (*Workspace, error) {
	p, err := store.Load(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("load partition: %w", err)
	}
	if undo == nil {
		undo = NewUndoBuffer(UndoWindow, nil)
	}
	if notify == nil {
		notify = NopNotifier
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Workspace{
		user:   user,
		store:  store,
		undo:   undo,
		notify: notify,
		log:    log.With(zap.String("user", user.Username)),
		now:    time.Now,
		p:      normalize(p),
	}, nil
}

func normalize(p model.Partition) model.Partition {
	if p.ActiveTasks == nil {
		p.ActiveTasks = []model.Task{}
	}
	if p.ArchivedTasks == nil {
		p.ArchivedTasks = []model.Task{}
	}
	if p.ActiveCategories == nil {
		p.ActiveCategories = []string{}
	}
	if p.ArchivedCategories == nil {
		p.ArchivedCategories = []string{}
	}
	return p
}

// User returns the owner of the workspace.
func (w *Workspace) User() model.User { return w.user }

// UndoBuffer returns the buffer holding the pending deletion.
func (w *Workspace) UndoBuffer() *UndoBuffer { return w.undo }

// Close drops the pending undo offer; the workspace must not be used afterwards.
func (w *Workspace) Close() {
	w.undo.Dismiss()
}

func (w *Workspace) flush(ctx context.Context, next model.Partition, dirty model.Dirty) error {
	if err := w.store.Save(ctx, w.user.ID, next, dirty); err != nil {
		w.log.Error("flush partition", zap.Error(err))
		return fmt.Errorf("save partition: %w", err)
	}
	w.p = next
	return nil
}

// Tasks

func (w *Workspace) CreateTask(ctx context.Context, in TaskInput) (model.Task, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	text := strings.TrimSpace(in.Text)
	if text == "" {
		return model.Task{}, ErrEmptyText
	}
	priority, err := normalizePriority(in.Priority)
	if err != nil {
		return model.Task{}, err
	}

	next := w.p
	var dirty, revived model.Dirty
	category := strings.TrimSpace(in.Category)
	switch {
	case category == "":
		category = w.view.Category
		if category == "" {
			if len(next.ActiveCategories) > 0 {
				category = next.ActiveCategories[0]
			} else {
				category = model.DefaultCategory
				revived = ensureActive(&next, category)
				dirty |= revived
			}
		}
	case !slices.Contains(next.ActiveCategories, category):
		return model.Task{}, ErrCategoryNotFound
	}

	task := model.Task{
		ID:          uuid.NewString(),
		Text:        text,
		Description: strings.TrimSpace(in.Description),
		Category:    category,
		Priority:    priority,
		CreatedAt:   w.now().UTC(),
	}
	if in.DueDate != nil {
		due := in.DueDate.UTC()
		task.DueDate = &due
	}

	next.ActiveTasks = prepend(task, next.ActiveTasks)
	if err := w.flush(ctx, next, dirty|model.DirtyActiveTasks); err != nil {
		return model.Task{}, err
	}
	w.forgetRevived(category, revived)

	w.log.Info("task created", zap.String("task", task.ID), zap.String("space", category))
	w.notify.Notify(CueTaskCreated)
	return task.Clone(), nil
}

// UpdateTask applies patch. The id, creation time and completion flag never change.
func (w *Workspace) UpdateTask(ctx context.Context, id string, patch TaskPatch) (model.Task, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	idx := indexTask(w.p.ActiveTasks, id)
	if idx < 0 {
		return model.Task{}, ErrTaskNotFound
	}
	task := w.p.ActiveTasks[idx].Clone()

	if patch.Text != nil {
		text := strings.TrimSpace(*patch.Text)
		if text == "" {
			return model.Task{}, ErrEmptyText
		}
		task.Text = text
	}
	if patch.Description != nil {
		task.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.Category != nil {
		if !slices.Contains(w.p.ActiveCategories, *patch.Category) {
			return model.Task{}, ErrCategoryNotFound
		}
		task.Category = *patch.Category
	}
	if patch.Priority != nil {
		priority, err := normalizePriority(*patch.Priority)
		if err != nil {
			return model.Task{}, err
		}
		task.Priority = priority
	}
	switch {
	case patch.ClearDueDate:
		task.DueDate = nil
	case patch.DueDate != nil:
		due := patch.DueDate.UTC()
		task.DueDate = &due
	}

	next := w.p
	next.ActiveTasks = replaceAt(next.ActiveTasks, idx, task)
	if err := w.flush(ctx, next, model.DirtyActiveTasks); err != nil {
		return model.Task{}, err
	}
	return task.Clone(), nil
}

// ToggleComplete flips the completion flag. Completing a task sends the
// celebration cue; reopening it does not.
func (w *Workspace) ToggleComplete(ctx context.Context, id string) (model.Task, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	idx := indexTask(w.p.ActiveTasks, id)
	if idx < 0 {
		return model.Task{}, ErrTaskNotFound
	}
	task := w.p.ActiveTasks[idx].Clone()
	task.Completed = !task.Completed

	next := w.p
	next.ActiveTasks = replaceAt(next.ActiveTasks, idx, task)
	if err := w.flush(ctx, next, model.DirtyActiveTasks); err != nil {
		return model.Task{}, err
	}

	if task.Completed {
		w.notify.Notify(CueTaskCompleted)
	}
	return task.Clone(), nil
}

// DeleteTask moves the task to the archive and offers to undo it.
func (w *Workspace) DeleteTask(ctx context.Context, id string) (model.Task, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	idx := indexTask(w.p.ActiveTasks, id)
	if idx < 0 {
		return model.Task{}, ErrTaskNotFound
	}
	task := w.p.ActiveTasks[idx]

	next := w.p
	next.ActiveTasks = removeAt(next.ActiveTasks, idx)
	next.ArchivedTasks = prepend(task, next.ArchivedTasks)
	if err := w.flush(ctx, next, model.DirtyActiveTasks|model.DirtyArchivedTasks); err != nil {
		return model.Task{}, err
	}

	w.undo.Record(UndoEntry{Kind: UndoTask, Task: task, RecordedAt: w.now()})
	w.log.Info("task archived", zap.String("task", task.ID))
	w.notify.Notify(CueTaskDeleted)
	return task.Clone(), nil
}

// RestoreTask moves an archived task back to the top of the active list. A
// task whose space is gone lands in the fallback space.
func (w *Workspace) RestoreTask(ctx context.Context, id string) (model.Task, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.restoreTaskLocked(ctx, id)
}

func (w *Workspace) restoreTaskLocked(ctx context.Context, id string) (model.Task, error) {
	idx := indexTask(w.p.ArchivedTasks, id)
	if idx < 0 {
		return model.Task{}, ErrTaskNotFound
	}
	task := w.p.ArchivedTasks[idx].Clone()

	next := w.p
	dirty := model.DirtyActiveTasks | model.DirtyArchivedTasks
	var revived model.Dirty
	if !slices.Contains(next.ActiveCategories, task.Category) {
		fallback := firstOr(next.ActiveCategories, model.DefaultCategory)
		revived = ensureActive(&next, fallback)
		dirty |= revived
		task.Category = fallback
	}
	next.ArchivedTasks = removeAt(next.ArchivedTasks, idx)
	next.ActiveTasks = prepend(task, next.ActiveTasks)
	if err := w.flush(ctx, next, dirty); err != nil {
		return model.Task{}, err
	}

	w.forgetRevived(task.Category, revived)

	w.undo.forget(func(e UndoEntry) bool { return e.Kind == UndoTask && e.Task.ID == id })
	return task.Clone(), nil
}

// PurgeTask removes an archived task for good.
func (w *Workspace) PurgeTask(ctx context.Context, id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	idx := indexTask(w.p.ArchivedTasks, id)
	if idx < 0 {
		return ErrTaskNotFound
	}

	next := w.p
	next.ArchivedTasks = removeAt(next.ArchivedTasks, idx)
	if err := w.flush(ctx, next, model.DirtyArchivedTasks); err != nil {
		return err
	}

	w.undo.forget(func(e UndoEntry) bool { return e.Kind == UndoTask && e.Task.ID == id })
	return nil
}

// Reorder applies ids as the new order of the active list. It is only
// allowed while the view is unfiltered and ids must name every active task once.
func (w *Workspace) Reorder(ctx context.Context, ids []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.view.Filtered() {
		return ErrFilteredReorder
	}
	if len(ids) != len(w.p.ActiveTasks) {
		return ErrInvalidOrder
	}

	byID := make(map[string]model.Task, len(w.p.ActiveTasks))
	for _, task := range w.p.ActiveTasks {
		byID[task.ID] = task
	}
	ordered := make([]model.Task, 0, len(ids))
	for _, id := range ids {
		task, ok := byID[id]
		if !ok {
			return ErrInvalidOrder
		}
		delete(byID, id)
		ordered = append(ordered, task)
	}

	next := w.p
	next.ActiveTasks = ordered
	return w.flush(ctx, next, model.DirtyActiveTasks)
}

// Categories

// CreateCategory appends a new space. A stale archived copy of the same
// name is dropped so a name never sits in both collections.
func (w *Workspace) CreateCategory(ctx context.Context, name string) (model.Category, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	name = strings.TrimSpace(name)
	if name == "" {
		return model.Category{}, ErrEmptyName
	}
	if slices.Contains(w.p.ActiveCategories, name) {
		return model.Category{}, ErrDuplicateName
	}

	next := w.p
	dirty := model.DirtyActiveCategories
	next.ActiveCategories = append(slices.Clone(next.ActiveCategories), name)
	if slices.Contains(next.ArchivedCategories, name) {
		next.ArchivedCategories = without(next.ArchivedCategories, name)
		dirty |= model.DirtyArchivedCategories
	}
	if err := w.flush(ctx, next, dirty); err != nil {
		return model.Category{}, err
	}

	if dirty.Has(model.DirtyArchivedCategories) {
		w.undo.forget(func(e UndoEntry) bool { return e.Kind == UndoCategory && e.Category == name })
	}
	return model.Category{Name: name}, nil
}

// DeleteCategory archives a space and moves its tasks to the fallback: the
// first other active space, or the default space when none is left.
// It returns the fallback and the number of reassigned tasks.
func (w *Workspace) DeleteCategory(ctx context.Context, name string) (string, int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	idx := slices.Index(w.p.ActiveCategories, name)
	if idx < 0 {
		return "", 0, ErrCategoryNotFound
	}

	fallback := model.DefaultCategory
	for _, other := range w.p.ActiveCategories {
		if other != name {
			fallback = other
			break
		}
	}

	next := w.p
	dirty := model.DirtyActiveCategories | model.DirtyArchivedCategories
	next.ActiveCategories = removeAt(next.ActiveCategories, idx)

	moved := 0
	tasks := make([]model.Task, len(next.ActiveTasks))
	for i, task := range next.ActiveTasks {
		if task.Category == name {
			task = task.Clone()
			task.Category = fallback
			moved++
		}
		tasks[i] = task
	}
	if moved > 0 {
		if fallback == name {
			return "", 0, ErrLastSpace
		}
		next.ActiveTasks = tasks
		dirty |= model.DirtyActiveTasks | ensureActive(&next, fallback)
	}
	next.ArchivedCategories = prepend(name, next.ArchivedCategories)

	if err := w.flush(ctx, next, dirty); err != nil {
		return "", 0, err
	}

	if w.view.Category == name {
		w.view.Category = ""
	}
	w.undo.Record(UndoEntry{Kind: UndoCategory, Category: name, RecordedAt: w.now()})
	w.log.Info("space archived", zap.String("space", name), zap.String("fallback", fallback), zap.Int("moved", moved))
	return fallback, moved, nil
}

// RestoreCategory brings an archived space back to the top of the list.
// Tasks moved away on deletion stay where they are.
func (w *Workspace) RestoreCategory(ctx context.Context, name string) (model.Category, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.restoreCategoryLocked(ctx, name)
}

func (w *Workspace) restoreCategoryLocked(ctx context.Context, name string) (model.Category, error) {
	idx := slices.Index(w.p.ArchivedCategories, name)
	if idx < 0 {
		return model.Category{}, ErrCategoryNotFound
	}

	next := w.p
	next.ArchivedCategories = removeAt(next.ArchivedCategories, idx)
	next.ActiveCategories = prepend(name, without(next.ActiveCategories, name))
	if err := w.flush(ctx, next, model.DirtyActiveCategories|model.DirtyArchivedCategories); err != nil {
		return model.Category{}, err
	}

	w.undo.forget(func(e UndoEntry) bool { return e.Kind == UndoCategory && e.Category == name })
	return model.Category{Name: name}, nil
}

// PurgeCategory removes an archived space for good.
func (w *Workspace) PurgeCategory(ctx context.Context, name string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	idx := slices.Index(w.p.ArchivedCategories, name)
	if idx < 0 {
		return ErrCategoryNotFound
	}

	next := w.p
	next.ArchivedCategories = removeAt(next.ArchivedCategories, idx)
	if err := w.flush(ctx, next, model.DirtyArchivedCategories); err != nil {
		return err
	}

	w.undo.forget(func(e UndoEntry) bool { return e.Kind == UndoCategory && e.Category == name })
	return nil
}

// Undo restores the pending deletion, if any. ok is false when nothing was
// pending. The offer is only cleared once the restore is stored; a failed
// restore leaves it pending.
func (w *Workspace) Undo(ctx context.Context) (entry UndoEntry, ok bool, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	entry, ok = w.undo.Pending()
	if !ok {
		return UndoEntry{}, false, nil
	}
	switch entry.Kind {
	case UndoTask:
		_, err = w.restoreTaskLocked(ctx, entry.Task.ID)
	case UndoCategory:
		_, err = w.restoreCategoryLocked(ctx, entry.Category)
	}
	return entry, true, err
}

// View

func (w *Workspace) View() View {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.view
}

// SetView changes the filter. The category must be empty or an active space.
func (w *Workspace) SetView(v View) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if v.Category != "" && !slices.Contains(w.p.ActiveCategories, v.Category) {
		return ErrCategoryNotFound
	}
	w.view = v
	return nil
}

// Visible returns the active tasks that pass the current view.
func (w *Workspace) Visible() []model.Task {
	w.mu.Lock()
	defer w.mu.Unlock()
	return filterTasks(w.p.ActiveTasks, w.view.Category, w.view.Search)
}

// Queries

// Filter returns active tasks in the given space (or all when empty) whose
// text contains search, ignoring case, in list order.
func (w *Workspace) Filter(category, search string) []model.Task {
	w.mu.Lock()
	defer w.mu.Unlock()
	return filterTasks(w.p.ActiveTasks, category, search)
}

func filterTasks(tasks []model.Task, category, search string) []model.Task {
	needle := strings.ToLower(strings.TrimSpace(search))
	out := make([]model.Task, 0, len(tasks))
	for _, task := range tasks {
		if category != "" && task.Category != category {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(task.Text), needle) {
			continue
		}
		out = append(out, task.Clone())
	}
	return out
}

// StatsByCategory counts tasks and completion per active space, in list order.
func (w *Workspace) StatsByCategory() []model.CategoryStats {
	w.mu.Lock()
	defer w.mu.Unlock()

	stats := make([]model.CategoryStats, 0, len(w.p.ActiveCategories))
	for _, name := range w.p.ActiveCategories {
		s := model.CategoryStats{Name: name}
		for _, task := range w.p.ActiveTasks {
			if task.Category != name {
				continue
			}
			s.Count++
			if task.Completed {
				s.Completed++
			}
		}
		if s.Count > 0 {
			s.Progress = float64(s.Completed) / float64(s.Count) * 100
		}
		stats = append(stats, s)
	}
	return stats
}

// Snapshot returns a deep copy of the four collections.
func (w *Workspace) Snapshot() model.Partition {
	w.mu.Lock()
	defer w.mu.Unlock()
	return model.Partition{
		ActiveTasks:        cloneTasks(w.p.ActiveTasks),
		ActiveCategories:   slices.Clone(w.p.ActiveCategories),
		ArchivedTasks:      cloneTasks(w.p.ArchivedTasks),
		ArchivedCategories: slices.Clone(w.p.ArchivedCategories),
	}
}

// Task returns an active task by id.
func (w *Workspace) Task(id string) (model.Task, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	idx := indexTask(w.p.ActiveTasks, id)
	if idx < 0 {
		return model.Task{}, ErrTaskNotFound
	}
	return w.p.ActiveTasks[idx].Clone(), nil
}

// ResolveTaskID expands a full id or a unique id prefix within one collection.
func (w *Workspace) ResolveTaskID(ref string, coll model.Collection) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	tasks := w.p.ActiveTasks
	if coll == model.Archived {
		tasks = w.p.ArchivedTasks
	}
	ref = strings.ToLower(strings.TrimSpace(ref))
	if ref == "" {
		return "", ErrTaskNotFound
	}
	match := ""
	for _, task := range tasks {
		if task.ID == ref {
			return task.ID, nil
		}
		if strings.HasPrefix(task.ID, ref) {
			if match != "" {
				return "", ErrAmbiguousID
			}
			match = task.ID
		}
	}
	if match == "" {
		return "", ErrTaskNotFound
	}
	return match, nil
}

// Backup

// Export serializes the active tasks and spaces.
func (w *Workspace) Export() ([]byte, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return ExportBackup(w.p.ActiveTasks, w.p.ActiveCategories, w.now())
}

// Import replaces every collection the backup carries and leaves the others
// untouched. Archived entries sharing an id or name with imported ones are
// dropped. The pending undo offer is dismissed.
func (w *Workspace) Import(ctx context.Context, b Backup) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	next := w.p
	var dirty model.Dirty
	if b.HasTasks {
		imported := cloneTasks(b.Tasks)
		ids := make(map[string]struct{}, len(imported))
		for _, task := range imported {
			ids[task.ID] = struct{}{}
		}
		next.ActiveTasks = imported
		next.ArchivedTasks = slices.DeleteFunc(cloneTasks(next.ArchivedTasks), func(t model.Task) bool {
			_, dup := ids[t.ID]
			return dup
		})
		dirty |= model.DirtyActiveTasks | model.DirtyArchivedTasks
	}
	if b.HasCategories {
		next.ActiveCategories = slices.Clone(b.Categories)
		next.ArchivedCategories = slices.DeleteFunc(slices.Clone(next.ArchivedCategories), func(name string) bool {
			return slices.Contains(b.Categories, name)
		})
		dirty |= model.DirtyActiveCategories | model.DirtyArchivedCategories
		if w.view.Category != "" && !slices.Contains(next.ActiveCategories, w.view.Category) {
			w.view.Category = ""
		}
	}
	if dirty == 0 {
		return nil
	}
	if err := w.flush(ctx, normalize(next), dirty); err != nil {
		return err
	}
	w.undo.Dismiss()
	w.log.Info("backup imported", zap.Bool("tasks", b.HasTasks), zap.Bool("spaces", b.HasCategories))
	return nil
}

func normalizePriority(p model.Priority) (model.Priority, error) {
	if p == "" {
		return model.PriorityMedium, nil
	}
	parsed, ok := model.ParsePriority(string(p))
	if !ok {
		return "", ErrInvalidPriority
	}
	return parsed, nil
}

func indexTask(tasks []model.Task, id string) int {
	return slices.IndexFunc(tasks, func(t model.Task) bool { return t.ID == id })
}

func cloneTasks(tasks []model.Task) []model.Task {
	out := make([]model.Task, len(tasks))
	for i, task := range tasks {
		out[i] = task.Clone()
	}
	return out
}

// ensureActive appends name to the active spaces unless it is there already,
// taking it out of the archive. It returns the collections it touched.
func ensureActive(p *model.Partition, name string) model.Dirty {
	if slices.Contains(p.ActiveCategories, name) {
		return 0
	}
	p.ActiveCategories = append(slices.Clone(p.ActiveCategories), name)
	if !slices.Contains(p.ArchivedCategories, name) {
		return model.DirtyActiveCategories
	}
	p.ArchivedCategories = without(p.ArchivedCategories, name)
	return model.DirtyActiveCategories | model.DirtyArchivedCategories
}

// forgetRevived drops a pending undo for a space that was pulled back out of
// the archive as a fallback.
func (w *Workspace) forgetRevived(name string, revived model.Dirty) {
	if revived.Has(model.DirtyArchivedCategories) {
		w.undo.forget(func(e UndoEntry) bool { return e.Kind == UndoCategory && e.Category == name })
	}
}

func firstOr(list []string, fallback string) string {
	if len(list) > 0 {
		return list[0]
	}
	return fallback
}

// prepend returns a new slice with v in front; list is not modified.
func prepend[T any](v T, list []T) []T {
	out := make([]T, 0, len(list)+1)
	out = append(out, v)
	return append(out, list...)
}

func removeAt[T any](list []T, i int) []T {
	out := make([]T, 0, len(list)-1)
	out = append(out, list[:i]...)
	return append(out, list[i+1:]...)
}

func replaceAt[T any](list []T, i int, v T) []T {
	out := slices.Clone(list)
	out[i] = v
	return out
}

func without(list []string, name string) []string {
	return slices.DeleteFunc(slices.Clone(list), func(s string) bool { return s == name })
}
