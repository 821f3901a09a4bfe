package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"spaces-planner/internal/model"
)

// SettingRepository keeps global preferences and session pointers.
type SettingRepository struct {
	db *gorm.DB
}

func NewSettingRepository(db *gorm.DB) *SettingRepository {
	return &SettingRepository{db: db}
}

// Get returns the stored value and whether the key exists.
func (r *SettingRepository) Get(ctx context.Context, key string) (string, bool, error) {
	var s model.Setting
	err := r.db.WithContext(ctx).Where("name = ?", key).First(&s).Error
	switch {
	case err == nil:
		return s.Value, true, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return "", false, nil
	default:
		return "", false, fmt.Errorf("get setting %s: %w", key, err)
	}
}

func (r *SettingRepository) Set(ctx context.Context, key, value string) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&model.Setting{Name: key, Value: value}).Error
	if err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}

func (r *SettingRepository) Delete(ctx context.Context, key string) error {
	if err := r.db.WithContext(ctx).Where("name = ?", key).Delete(&model.Setting{}).Error; err != nil {
		return fmt.Errorf("delete setting %s: %w", key, err)
	}
	return nil
}

// ListPrefix returns every setting whose key starts with prefix, keyed by the remainder.
func (r *SettingRepository) ListPrefix(ctx context.Context, prefix string) (map[string]string, error) {
	var rows []model.Setting
	if err := r.db.WithContext(ctx).Where("name LIKE ?", prefix+"%").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list settings %s: %w", prefix, err)
	}
	out := make(map[string]string, len(rows))
	for _, row := range rows {
		out[strings.TrimPrefix(row.Name, prefix)] = row.Value
	}
	return out, nil
}
