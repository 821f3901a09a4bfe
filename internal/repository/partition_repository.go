package repository

import (
	"context"

	"gorm.io/gorm"

	"spaces-planner/internal/model"
)

// PartitionRepository loads and flushes the four collections of a user.
type PartitionRepository struct {
	db         *gorm.DB
	tasks      *TaskRepository
	categories *CategoryRepository
}

func NewPartitionRepository(db *gorm.DB) *PartitionRepository {
	return &PartitionRepository{
		db:         db,
		tasks:      NewTaskRepository(db),
		categories: NewCategoryRepository(db),
	}
}

// Load returns the user's partition; a user with nothing stored gets empty collections.
func (r *PartitionRepository) Load(ctx context.Context, userID string) (model.Partition, error) {
	var (
		p   model.Partition
		err error
	)
	if p.ActiveTasks, err = r.tasks.List(ctx, userID, model.Active); err != nil {
		return model.Partition{}, err
	}
	if p.ArchivedTasks, err = r.tasks.List(ctx, userID, model.Archived); err != nil {
		return model.Partition{}, err
	}
	if p.ActiveCategories, err = r.categories.List(ctx, userID, model.Active); err != nil {
		return model.Partition{}, err
	}
	if p.ArchivedCategories, err = r.categories.List(ctx, userID, model.Archived); err != nil {
		return model.Partition{}, err
	}
	return p, nil
}

// Save flushes the collections selected by dirty in a single transaction.
// Every dirty collection is cleared before any is written, so an entry moving
// between the active and archived collections never meets its old row.
func (r *PartitionRepository) Save(ctx context.Context, userID string, p model.Partition, dirty model.Dirty) error {
	if dirty == 0 {
		return nil
	}
	type taskColl struct {
		flag  model.Dirty
		coll  model.Collection
		tasks []model.Task
	}
	type categoryColl struct {
		flag  model.Dirty
		coll  model.Collection
		names []string
	}
	tasks := []taskColl{
		{model.DirtyActiveTasks, model.Active, p.ActiveTasks},
		{model.DirtyArchivedTasks, model.Archived, p.ArchivedTasks},
	}
	categories := []categoryColl{
		{model.DirtyActiveCategories, model.Active, p.ActiveCategories},
		{model.DirtyArchivedCategories, model.Archived, p.ArchivedCategories},
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, c := range tasks {
			if dirty.Has(c.flag) {
				if err := clearTasks(tx, userID, c.coll); err != nil {
					return err
				}
			}
		}
		for _, c := range categories {
			if dirty.Has(c.flag) {
				if err := clearCategories(tx, userID, c.coll); err != nil {
					return err
				}
			}
		}
		for _, c := range tasks {
			if dirty.Has(c.flag) {
				if err := insertTasks(tx, userID, c.coll, c.tasks); err != nil {
					return err
				}
			}
		}
		for _, c := range categories {
			if dirty.Has(c.flag) {
				if err := insertCategories(tx, userID, c.coll, c.names); err != nil {
					return err
				}
			}
		}
		return nil
	})
}
