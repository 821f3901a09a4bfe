package service

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"

	"spaces-planner/internal/model"
)

//go:embed backup.schema.json
var backupSchemaJSON string

var backupSchema = compileBackupSchema()

func compileBackupSchema() *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true
	if err := compiler.AddResource("backup.schema.json", strings.NewReader(backupSchemaJSON)); err != nil {
		panic(fmt.Sprintf("add backup schema: %v", err))
	}
	return compiler.MustCompile("backup.schema.json")
}

// Backup is a parsed backup document. HasTasks and HasCategories tell which
// collections the document carries; absent ones must be left untouched.
type Backup struct {
	Tasks         []model.Task
	Categories    []string
	ExportedAt    time.Time
	HasTasks      bool
	HasCategories bool
}

type backupDocument struct {
	Tasks      []model.Task `json:"tasks"`
	Categories []string     `json:"categories"`
	ExportedAt string       `json:"exportedAt"`
}

// ExportBackup serializes the active collections with the export time.
func ExportBackup(tasks []model.Task, categories []string, now time.Time) ([]byte, error) {
	doc := backupDocument{
		Tasks:      make([]model.Task, 0, len(tasks)),
		Categories: make([]string, 0, len(categories)),
		ExportedAt: now.UTC().Format(time.RFC3339Nano),
	}
	doc.Tasks = append(doc.Tasks, tasks...)
	doc.Categories = append(doc.Categories, categories...)

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode backup: %w", err)
	}
	return data, nil
}

// ParseBackup validates and decodes a backup document. Any problem is
// reported as ErrMalformedBackup.
func ParseBackup(data []byte) (Backup, error) {
	var raw any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return Backup{}, malformed(err)
	}
	if err := backupSchema.Validate(raw); err != nil {
		return Backup{}, malformed(err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return Backup{}, malformed(err)
	}

	var b Backup
	if msg, ok := fields["tasks"]; ok && !isNull(msg) {
		if err := json.Unmarshal(msg, &b.Tasks); err != nil {
			return Backup{}, malformed(err)
		}
		b.HasTasks = true
	}
	if msg, ok := fields["categories"]; ok && !isNull(msg) {
		if err := json.Unmarshal(msg, &b.Categories); err != nil {
			return Backup{}, malformed(err)
		}
		b.HasCategories = true
	}
	if msg, ok := fields["exportedAt"]; ok {
		if err := json.Unmarshal(msg, &b.ExportedAt); err != nil {
			return Backup{}, malformed(err)
		}
	}

	seen := make(map[string]struct{}, len(b.Tasks))
	for i := range b.Tasks {
		task := &b.Tasks[i]
		if _, dup := seen[task.ID]; dup {
			return Backup{}, malformed(fmt.Errorf("task id %q appears twice", task.ID))
		}
		seen[task.ID] = struct{}{}
		if task.Priority == "" {
			task.Priority = model.PriorityMedium
		}
		if task.Category == "" {
			task.Category = model.DefaultCategory
		}
		if task.CreatedAt.IsZero() {
			task.CreatedAt = b.ExportedAt
		}
	}
	if b.HasTasks && b.Tasks == nil {
		b.Tasks = []model.Task{}
	}
	if b.HasCategories && b.Categories == nil {
		b.Categories = []string{}
	}
	return b, nil
}

func isNull(msg json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(msg), []byte("null"))
}

func malformed(err error) error {
	return fmt.Errorf("%w: %v", ErrMalformedBackup, err)
}
