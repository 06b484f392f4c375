// internal/workers/leads/compute-queue-counts/handler_test.go
package computequeuecounts

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	commonerrors "intake-crm-workers/internal/common/errors"
	"intake-crm-workers/internal/common/logger"
	"intake-crm-workers/internal/common/metrics"
	"intake-crm-workers/internal/common/validation"
	"intake-crm-workers/internal/models"
	"intake-crm-workers/internal/snapshot"
	filterleadqueue "intake-crm-workers/internal/workers/leads/filter-lead-queue"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Mock Implementations
// ==========================

type mockSnapshots struct {
	leads       []models.Lead
	err         error
	getCalls    int
	invalidated int
}

func (m *mockSnapshots) Get(ctx context.Context) (*snapshot.Snapshot, error) {
	m.getCalls++
	if m.err != nil {
		return nil, m.err
	}
	return &snapshot.Snapshot{Leads: m.leads, Source: "api", FetchedAt: time.Now()}, nil
}

func (m *mockSnapshots) Invalidate(ctx context.Context) error {
	m.invalidated++
	return nil
}

// ==========================
// Test Helper Functions
// ==========================

type testLogger struct {
	t *testing.T
}

func (tl *testLogger) Debug(msg string, fields map[string]interface{}) {
	tl.t.Logf("DEBUG: %s %v", msg, fields)
}

func (tl *testLogger) Info(msg string, fields map[string]interface{}) {
	tl.t.Logf("INFO: %s %v", msg, fields)
}

func (tl *testLogger) Warn(msg string, fields map[string]interface{}) {
	tl.t.Logf("WARN: %s %v", msg, fields)
}

func (tl *testLogger) Error(msg string, fields map[string]interface{}) {
	tl.t.Logf("ERROR: %s %v", msg, fields)
}

func (tl *testLogger) WithFields(fields map[string]interface{}) logger.Logger {
	return tl
}

func (tl *testLogger) WithError(err error) logger.Logger {
	return tl
}

func (tl *testLogger) With(fields map[string]interface{}) logger.Logger {
	return tl
}

func createTestConfig() *Config {
	return &Config{Timeout: 5 * time.Second}
}

func createTestHandler(t *testing.T, snapshots snapshot.Getter) *Handler {
	validator, err := validation.NewDefaultValidator()
	require.NoError(t, err)

	h := NewHandler(createTestConfig(), snapshots, validator, &testLogger{t: t})
	h.now = func() time.Time { return time.Date(2026, 10, 1, 9, 30, 0, 0, time.UTC) }
	return h
}

func pipelineLeads() []models.Lead {
	return []models.Lead{
		{ID: "l1", Status: models.StatusNew, Priority: models.PriorityHot},
		{ID: "l2", Status: models.StatusNew, ContactOutcome: models.OutcomeNoAnswer},
		{ID: "l3", Status: models.StatusContacted, FollowUpReason: models.ReasonUnreachable, Priority: models.PriorityHot},
		{ID: "l4", Status: models.StatusScheduled, ContactOutcome: models.OutcomeNoAnswer},
		{ID: "l5", Status: "Treatment Started"},
		{ID: "l6", Status: models.StatusDisqualified, Priority: models.PriorityHot},
		{ID: "l7", Status: "archived"},
	}
}

func createJob(variables string) entities.Job {
	return entities.Job{ActivatedJob: &pb.ActivatedJob{
		Key:       1001,
		Type:      TaskType,
		Retries:   3,
		Variables: variables,
	}}
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_SharedSnapshot(t *testing.T) {
	snaps := &mockSnapshots{leads: pipelineLeads()}
	h := createTestHandler(t, snaps)

	output, err := h.execute(context.Background(), &Input{})
	require.NoError(t, err)

	assert.Equal(t, 7, output.TotalLeads)
	assert.Equal(t, "api", output.Source)
	assert.Equal(t, "2026-10-01T09:30:00Z", output.ComputedAt)
	assert.Equal(t, map[string]int{
		"all": 4, "new": 1, "contacted": 2, "follow_up": 1, "callback": 0, "scheduled": 1,
		"completed": 1, "unreachable": 1, "hot": 2, "medium": 0, "low": 0,
	}, output.QueueCounts)

	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.LeadQueueSize.WithLabelValues("hot")))
	assert.Equal(t, 0, snaps.invalidated)
}

func TestHandler_Execute_JobLeads(t *testing.T) {
	snaps := &mockSnapshots{err: errors.New("must not be called")}
	h := createTestHandler(t, snaps)

	output, err := h.execute(context.Background(), &Input{
		Leads:   []models.Lead{{ID: "x", Status: models.StatusNew}},
		Refresh: true,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, output.TotalLeads)
	assert.Equal(t, "job", output.Source)
	assert.Equal(t, 1, output.QueueCounts["new"])
	assert.Equal(t, 0, snaps.getCalls)
	assert.Equal(t, 0, snaps.invalidated)
}

func TestHandler_Execute_EmptyJobLeads(t *testing.T) {
	h := createTestHandler(t, &mockSnapshots{})

	output, err := h.execute(context.Background(), &Input{Leads: []models.Lead{}})
	require.NoError(t, err)

	assert.Equal(t, 0, output.TotalLeads)
	assert.Len(t, output.QueueCounts, 11)
	for id, n := range output.QueueCounts {
		assert.Zero(t, n, id)
	}
}

func TestHandler_Execute_Refresh(t *testing.T) {
	snaps := &mockSnapshots{leads: pipelineLeads()}
	h := createTestHandler(t, snaps)

	_, err := h.execute(context.Background(), &Input{Refresh: true})
	require.NoError(t, err)
	assert.Equal(t, 1, snaps.invalidated)
	assert.Equal(t, 1, snaps.getCalls)
}

func TestHandler_Execute_SnapshotUnavailable(t *testing.T) {
	snaps := &mockSnapshots{err: commonerrors.NewSnapshotUnavailableError("api", errors.New("502"))}
	h := createTestHandler(t, snaps)

	_, err := h.execute(context.Background(), &Input{})
	stdErr, ok := commonerrors.AsStandardError(err)
	require.True(t, ok)
	assert.Equal(t, commonerrors.ErrCodeSnapshotUnavailable, stdErr.Code)
	assert.True(t, stdErr.Retryable)
}

func TestHandler_FilterOutputInProcessScope(t *testing.T) {
	// a filter-lead-queue job earlier in the same process leaves its output in scope
	upstream, err := json.Marshal(&filterleadqueue.Output{
		QueueID:         "hot",
		ResolvedQueueID: "hot",
		QueueLeads:      []models.Lead{{ID: "l1", Status: models.StatusNew, Priority: models.PriorityHot}},
		Count:           1,
	})
	require.NoError(t, err)

	snaps := &mockSnapshots{leads: pipelineLeads()}
	h := createTestHandler(t, snaps)

	input, err := h.parseInput(createJob(string(upstream)))
	require.NoError(t, err)
	assert.Nil(t, input.Leads)

	output, err := h.execute(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, "api", output.Source)
	assert.Equal(t, 7, output.TotalLeads)
	assert.Equal(t, 4, output.QueueCounts["all"])
	assert.Equal(t, 1, snaps.getCalls)
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.LeadQueueSize.WithLabelValues("hot")))
}

// ==========================
// Input Handling Tests
// ==========================

func TestHandler_ParseInput(t *testing.T) {
	h := createTestHandler(t, &mockSnapshots{})

	tests := []struct {
		name      string
		variables string
		wantErr   bool
		wantLeads int
	}{
		{name: "empty variables", variables: "", wantLeads: 0},
		{name: "unrelated variables", variables: `{"processName":"dashboard"}`, wantLeads: 0},
		{name: "leads provided", variables: `{"leads":[{"id":"a","status":"new"}]}`, wantLeads: 1},
		{name: "leads wrong type", variables: `{"leads":"everything"}`, wantErr: true},
		{name: "refresh wrong type", variables: `{"refresh":"yes"}`, wantErr: true},
		{name: "malformed json", variables: `{"leads":[`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input, err := h.parseInput(createJob(tt.variables))
			if tt.wantErr {
				stdErr, ok := commonerrors.AsStandardError(err)
				require.True(t, ok)
				assert.Equal(t, commonerrors.ErrCodeInvalidJobInput, stdErr.Code)
				return
			}
			require.NoError(t, err)
			assert.Len(t, input.Leads, tt.wantLeads)
		})
	}
}

func TestHandler_OutputMatchesSchema(t *testing.T) {
	validator, err := validation.NewDefaultValidator()
	require.NoError(t, err)

	h := createTestHandler(t, &mockSnapshots{leads: pipelineLeads()})
	output, err := h.execute(context.Background(), &Input{})
	require.NoError(t, err)

	result := validator.ValidateOutput(TaskType, output)
	assert.True(t, result.Valid, result.Summary())
}
