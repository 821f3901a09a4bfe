package model

import (
	"strings"
	"time"
)

// Priority ranks a task.
type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

// ParsePriority accepts any casing of Low, Medium or High.
func ParsePriority(raw string) (Priority, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "low":
		return PriorityLow, true
	case "medium":
		return PriorityMedium, true
	case "high":
		return PriorityHigh, true
	default:
		return "", false
	}
}

// Task represents a single objective. The JSON shape is also the backup format.
type Task struct {
	ID          string     `json:"id"`
	Text        string     `json:"text"`
	Description string     `json:"description,omitempty"`
	Completed   bool       `json:"completed"`
	Category    string     `json:"category"`
	Priority    Priority   `json:"priority"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// Clone returns a copy that shares no pointers with t.
func (t Task) Clone() Task {
	out := t
	if t.DueDate != nil {
		due := *t.DueDate
		out.DueDate = &due
	}
	return out
}

// TaskRecord is the stored row of a task in one of the two task collections.
type TaskRecord struct {
	UserID      string `gorm:"primaryKey"`
	ID          string `gorm:"primaryKey"`
	Archived    bool   `gorm:"primaryKey"`
	Position    int
	Text        string
	Description string
	Completed   bool
	Category    string
	Priority    string
	DueDate     *time.Time
	CreatedAt   time.Time
}

func (TaskRecord) TableName() string { return "tasks" }
