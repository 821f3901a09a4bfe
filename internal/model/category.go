package model

// DefaultCategory is the sentinel space used when no other space is left.
const DefaultCategory = "General"

// Category groups tasks. Its name is its identity.
type Category struct {
	Name string `json:"name"`
}

// CategoryStats summarises one active category.
type CategoryStats struct {
	Name      string
	Count     int
	Completed int
	// Progress is 0 for an empty category, else Completed/Count*100.
	Progress float64
}

// CategoryRecord is the stored row of a category in one of the two category collections.
type CategoryRecord struct {
	UserID   string `gorm:"primaryKey"`
	Name     string `gorm:"primaryKey"`
	Archived bool   `gorm:"primaryKey"`
	Position int
}

func (CategoryRecord) TableName() string { return "categories" }
