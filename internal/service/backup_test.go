package service

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spaces-planner/internal/model"
)

func TestExportBackup_Shape(t *testing.T) {
	data, err := ExportBackup(nil, nil, time.Date(2024, 2, 3, 4, 5, 6, 0, time.FixedZone("X", 7200)))
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, []any{}, doc["tasks"])
	assert.Equal(t, []any{}, doc["categories"])
	assert.Equal(t, "2024-02-03T02:05:06Z", doc["exportedAt"])
}

func TestParseBackup_RoundTrip(t *testing.T) {
	due := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	tasks := []model.Task{
		{ID: "1", Text: "a", Category: "Work", Priority: model.PriorityHigh, DueDate: &due, CreatedAt: fixedNow, Completed: true},
		{ID: "2", Text: "b", Description: "d", Category: "Home", Priority: model.PriorityLow, CreatedAt: fixedNow},
	}
	data, err := ExportBackup(tasks, []string{"Work", "Home"}, fixedNow)
	require.NoError(t, err)

	b, err := ParseBackup(data)
	require.NoError(t, err)
	assert.True(t, b.HasTasks)
	assert.True(t, b.HasCategories)
	assert.Equal(t, tasks, b.Tasks)
	assert.Equal(t, []string{"Work", "Home"}, b.Categories)
	assert.True(t, b.ExportedAt.Equal(fixedNow))
}

func TestParseBackup_Partial(t *testing.T) {
	b, err := ParseBackup([]byte(`{"categories": ["Home"]}`))
	require.NoError(t, err)
	assert.False(t, b.HasTasks)
	assert.Nil(t, b.Tasks)
	assert.True(t, b.HasCategories)
	assert.Equal(t, []string{"Home"}, b.Categories)

	b, err = ParseBackup([]byte(`{"tasks": null, "categories": []}`))
	require.NoError(t, err)
	assert.False(t, b.HasTasks)
	assert.True(t, b.HasCategories)
	assert.Empty(t, b.Categories)

	b, err = ParseBackup([]byte(`{}`))
	require.NoError(t, err)
	assert.False(t, b.HasTasks)
	assert.False(t, b.HasCategories)
}

func TestParseBackup_Defaults(t *testing.T) {
	b, err := ParseBackup([]byte(`{"tasks": [{"id": "x", "text": "t"}], "exportedAt": "2024-03-10T12:00:00Z"}`))
	require.NoError(t, err)
	require.Len(t, b.Tasks, 1)
	task := b.Tasks[0]
	assert.Equal(t, model.PriorityMedium, task.Priority)
	assert.Equal(t, model.DefaultCategory, task.Category)
	assert.True(t, task.CreatedAt.Equal(fixedNow))
	assert.Nil(t, task.DueDate)
}

func TestParseBackup_Malformed(t *testing.T) {
	cases := map[string]string{
		"not json":           `{"tasks": [`,
		"not an object":      `["Home"]`,
		"tasks not array":    `{"tasks": "x"}`,
		"task without id":    `{"tasks": [{"text": "t"}]}`,
		"blank text":         `{"tasks": [{"id": "1", "text": "  "}]}`,
		"bad priority":       `{"tasks": [{"id": "1", "text": "t", "priority": "urgent"}]}`,
		"bad due date":       `{"tasks": [{"id": "1", "text": "t", "dueDate": "tomorrow"}]}`,
		"duplicate ids":      `{"tasks": [{"id": "1", "text": "a"}, {"id": "1", "text": "b"}]}`,
		"duplicate spaces":   `{"categories": ["Home", "Home"]}`,
		"blank space":        `{"categories": [""]}`,
		"space not a string": `{"categories": [1]}`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseBackup([]byte(doc))
			assert.ErrorIs(t, err, ErrMalformedBackup)
		})
	}
}
