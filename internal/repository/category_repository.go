package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"spaces-planner/internal/model"
)

// CategoryRepository stores the active and archived category collections of each user.
type CategoryRepository struct {
	db *gorm.DB
}

func NewCategoryRepository(db *gorm.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

func (r *CategoryRepository) List(ctx context.Context, userID string, coll model.Collection) ([]string, error) {
	var rows []model.CategoryRecord
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND archived = ?", userID, bool(coll)).
		Order("position ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list %s categories: %w", coll, err)
	}

	names := make([]string, 0, len(rows))
	for _, row := range rows {
		names = append(names, row.Name)
	}
	return names, nil
}

func clearCategories(tx *gorm.DB, userID string, coll model.Collection) error {
	if err := tx.Where("user_id = ? AND archived = ?", userID, bool(coll)).
		Delete(&model.CategoryRecord{}).Error; err != nil {
		return fmt.Errorf("clear %s categories: %w", coll, err)
	}
	return nil
}

func insertCategories(tx *gorm.DB, userID string, coll model.Collection, names []string) error {
	if len(names) == 0 {
		return nil
	}

	rows := make([]model.CategoryRecord, 0, len(names))
	for i, name := range names {
		rows = append(rows, model.CategoryRecord{UserID: userID, Name: name, Archived: bool(coll), Position: i})
	}
	if err := tx.Create(&rows).Error; err != nil {
		return fmt.Errorf("save %s categories: %w", coll, err)
	}
	return nil
}
