package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"spaces-planner/internal/model"
)

// TaskRepository stores the active and archived task collections of each user.
type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// List returns one collection in stored order.
func (r *TaskRepository) List(ctx context.Context, userID string, coll model.Collection) ([]model.Task, error) {
	var rows []model.TaskRecord
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND archived = ?", userID, bool(coll)).
		Order("position ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list %s tasks: %w", coll, err)
	}

	tasks := make([]model.Task, 0, len(rows))
	for _, row := range rows {
		tasks = append(tasks, taskFromRecord(row))
	}
	return tasks, nil
}

func clearTasks(tx *gorm.DB, userID string, coll model.Collection) error {
	if err := tx.Where("user_id = ? AND archived = ?", userID, bool(coll)).
		Delete(&model.TaskRecord{}).Error; err != nil {
		return fmt.Errorf("clear %s tasks: %w", coll, err)
	}
	return nil
}

func insertTasks(tx *gorm.DB, userID string, coll model.Collection, tasks []model.Task) error {
	if len(tasks) == 0 {
		return nil
	}

	rows := make([]model.TaskRecord, 0, len(tasks))
	for i, task := range tasks {
		rows = append(rows, taskToRecord(userID, coll, i, task))
	}
	if err := tx.Create(&rows).Error; err != nil {
		return fmt.Errorf("save %s tasks: %w", coll, err)
	}
	return nil
}

func taskToRecord(userID string, coll model.Collection, position int, task model.Task) model.TaskRecord {
	return model.TaskRecord{
		UserID:      userID,
		ID:          task.ID,
		Archived:    bool(coll),
		Position:    position,
		Text:        task.Text,
		Description: task.Description,
		Completed:   task.Completed,
		Category:    task.Category,
		Priority:    string(task.Priority),
		DueDate:     task.DueDate,
		CreatedAt:   task.CreatedAt,
	}
}

func taskFromRecord(row model.TaskRecord) model.Task {
	task := model.Task{
		ID:          row.ID,
		Text:        row.Text,
		Description: row.Description,
		Completed:   row.Completed,
		Category:    row.Category,
		Priority:    model.Priority(row.Priority),
		CreatedAt:   row.CreatedAt.UTC(),
	}
	if row.DueDate != nil {
		due := row.DueDate.UTC()
		task.DueDate = &due
	}
	return task
}
