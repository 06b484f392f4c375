package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_ContainsLeadQueueActivities(t *testing.T) {
	reg, err := Default()
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{
		"compute-queue-counts",
		"filter-lead-queue",
		"index-lead-queues",
		"notify-queue-backlog",
		"estimate-cohort-loss",
	}, reg.TaskTypes())

	for _, a := range reg.Activities {
		assert.NotEmpty(t, a.InputSchema, a.TaskType)
		assert.NotEmpty(t, a.OutputSchema, a.TaskType)
		assert.Contains(t, a.ErrorCodes, "INVALID_JOB_INPUT", a.TaskType)
	}
}

func TestFind(t *testing.T) {
	reg := MustDefault()

	a, ok := reg.Find("filter-lead-queue")
	require.True(t, ok)
	assert.Equal(t, []interface{}{"queueId"}, a.InputSchema["required"])

	_, ok = reg.Find("query-postgresql")
	assert.False(t, ok)
}

func TestLoadRegistry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "activities.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version":"2","activities":[{"taskType":"x"}]}`), 0o600))

	reg, err := LoadRegistry(path)
	require.NoError(t, err)
	assert.Equal(t, "2", reg.Version)
	assert.Equal(t, []string{"x"}, reg.TaskTypes())

	_, err = LoadRegistry(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	_, err = Parse([]byte("{"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	require.NoError(t, MustDefault().Validate())

	valid := Activity{ID: "a", DisplayName: "A", TaskType: "a", Category: "lead-queues"}

	tests := []struct {
		name       string
		activities []Activity
		wantErr    string
	}{
		{"empty", nil, "no activities"},
		{"missing id", []Activity{{DisplayName: "A", TaskType: "a", Category: "c"}}, "field: id"},
		{"duplicate", []Activity{valid, valid}, "duplicate activity ID: a"},
		{"missing task type", []Activity{{ID: "b", DisplayName: "B", Category: "c"}}, "taskType"},
		{"negative retries", []Activity{{ID: "b", DisplayName: "B", TaskType: "b", Category: "c", Retries: -1}}, "negative retries"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := &ActivityRegistry{Activities: tt.activities}
			assert.ErrorContains(t, reg.Validate(), tt.wantErr)
		})
	}
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "activities.json")
	reg := MustDefault()

	require.NoError(t, reg.Save(path))

	loaded, err := LoadRegistry(path)
	require.NoError(t, err)
	assert.Equal(t, reg.TaskTypes(), loaded.TaskTypes())
}

func TestInputVariables(t *testing.T) {
	reg := MustDefault()

	tests := []struct {
		taskType string
		expected []string
	}{
		{"compute-queue-counts", []string{"leads", "refresh"}},
		{"filter-lead-queue", []string{"leads", "limit", "queueId"}},
		{"notify-queue-backlog", []string{"leads", "thresholds"}},
	}

	for _, tt := range tests {
		t.Run(tt.taskType, func(t *testing.T) {
			a, ok := reg.Find(tt.taskType)
			require.True(t, ok)
			assert.Equal(t, tt.expected, a.InputVariables())
		})
	}

	assert.Empty(t, (&Activity{}).InputVariables())
}
