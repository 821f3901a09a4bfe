package model

// Collection selects the active or the archived half of a partition.
type Collection bool

const (
	Active   Collection = false
	Archived Collection = true
)

func (c Collection) String() string {
	if c == Archived {
		return "archived"
	}
	return "active"
}

// Partition holds the four ordered collections of one user, newest first.
type Partition struct {
	ActiveTasks        []Task
	ActiveCategories   []string
	ArchivedTasks      []Task
	ArchivedCategories []string
}

// Dirty marks which collections of a partition must be flushed.
type Dirty uint8

const (
	DirtyActiveTasks Dirty = 1 << iota
	DirtyArchivedTasks
	DirtyActiveCategories
	DirtyArchivedCategories
)

// Has reports whether all bits of d are set.
func (d Dirty) Has(bits Dirty) bool { return d&bits == bits }

// Setting is a global key/value preference row.
type Setting struct {
	Name  string `gorm:"primaryKey"`
	Value string
}
