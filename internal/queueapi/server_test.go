package queueapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	commonerrors "intake-crm-workers/internal/common/errors"
	"intake-crm-workers/internal/common/logger"
	"intake-crm-workers/internal/leadstore"
	"intake-crm-workers/internal/models"
	"intake-crm-workers/internal/snapshot"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helpers
// ==========================

type fakeInvalidator struct {
	calls int
	err   error
}

func (f *fakeInvalidator) Invalidate(ctx context.Context) error {
	f.calls++
	return f.err
}

type fakeDeletedLeads struct {
	leads []leadstore.DeletedLead
	err   error
}

func (f *fakeDeletedLeads) FetchDeletedLeads(ctx context.Context) ([]leadstore.DeletedLead, error) {
	return f.leads, f.err
}

type errGetter struct{ err error }

func (e errGetter) Get(ctx context.Context) (*snapshot.Snapshot, error) { return nil, e.err }

var fixedNow = time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)

func fixtureLeads() []models.Lead {
	return []models.Lead{
		{ID: "l1", Status: models.StatusNew, Priority: models.PriorityHot},
		{ID: "l2", Status: models.StatusContacted, ContactOutcome: models.OutcomeNoAnswer},
		{ID: "l3", Status: models.StatusContacted, ContactOutcome: models.OutcomeCallbackRequested, Priority: models.PriorityMedium},
		{ID: "l4", Status: models.StatusScheduled, Priority: models.PriorityLow},
		{ID: "l5", Status: models.StatusConsultationComplete},
		{ID: "l6", Status: models.StatusLost},
	}
}

func newTestServer(t *testing.T, opts Options) *httptest.Server {
	t.Helper()
	if opts.Snapshots == nil {
		opts.Snapshots = &snapshot.Static{Leads: fixtureLeads(), Source: "api"}
	}
	opts.Logger = logger.NewTestLogger(t)
	opts.Now = func() time.Time { return fixedNow }

	srv := httptest.NewServer(NewServer(opts).Routes())
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, url string, out interface{}) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	return resp.StatusCode
}

// ==========================
// Queue Endpoints
// ==========================

func TestListQueues(t *testing.T) {
	srv := newTestServer(t, Options{})

	var body queuesResponse
	status := getJSON(t, srv.URL+"/api/v1/queues", &body)
	require.Equal(t, http.StatusOK, status)

	assert.Equal(t, 6, body.TotalLeads)
	assert.Equal(t, map[string]int{
		"all": 4, "new": 1, "contacted": 2, "follow_up": 2, "callback": 1, "scheduled": 1,
		"completed": 1, "unreachable": 0, "hot": 1, "medium": 1, "low": 1,
	}, body.Counts)

	require.Len(t, body.Queues, 11)
	assert.Equal(t, queueSummary{ID: "all", Label: "All Active", Count: 4}, body.Queues[0])
	assert.Equal(t, queueSummary{ID: "follow_up", Label: "Follow-up", Count: 2}, body.Queues[3])
}

func TestQueueLeads(t *testing.T) {
	srv := newTestServer(t, Options{})

	tests := []struct {
		name        string
		path        string
		expectedIDs []string
		resolved    string
	}{
		{"follow up", "/api/v1/queues/follow_up/leads", []string{"l2", "l3"}, "follow_up"},
		{"completed", "/api/v1/queues/completed/leads", []string{"l5"}, "completed"},
		{"unknown resolves to all", "/api/v1/queues/vip/leads", []string{"l1", "l2", "l3", "l4"}, "all"},
		{"limit", "/api/v1/queues/all/leads?limit=2", []string{"l1", "l2"}, "all"},
		{"zero limit is unbounded", "/api/v1/queues/contacted/leads?limit=0", []string{"l2", "l3"}, "contacted"},
		{"empty queue", "/api/v1/queues/unreachable/leads", []string{}, "unreachable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body queueLeadsResponse
			status := getJSON(t, srv.URL+tt.path, &body)
			require.Equal(t, http.StatusOK, status)

			ids := make([]string, 0, len(body.Leads))
			for _, l := range body.Leads {
				ids = append(ids, l.ID)
			}
			assert.Equal(t, tt.expectedIDs, ids)
			assert.Equal(t, len(tt.expectedIDs), body.Count)
			assert.Equal(t, tt.resolved, string(body.ResolvedQueueID))
		})
	}
}

func TestQueueLeads_InvalidLimit(t *testing.T) {
	srv := newTestServer(t, Options{})

	for _, limit := range []string{"-1", "ten"} {
		var body map[string]string
		status := getJSON(t, srv.URL+"/api/v1/queues/all/leads?limit="+limit, &body)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "INVALID_LIMIT", body["code"])
	}
}

func TestQueues_SnapshotErrors(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedCode   string
	}{
		{"unavailable", commonerrors.NewSnapshotUnavailableError("api", errors.New("refused")), http.StatusBadGateway, "LEAD_SNAPSHOT_UNAVAILABLE"},
		{"timeout", commonerrors.NewOperationTimeoutError("snapshot fetch"), http.StatusGatewayTimeout, "OPERATION_TIMEOUT"},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, Options{Snapshots: errGetter{err: tt.err}})

			var body map[string]string
			status := getJSON(t, srv.URL+"/api/v1/queues", &body)
			assert.Equal(t, tt.expectedStatus, status)
			assert.Equal(t, tt.expectedCode, body["code"])
		})
	}
}

func TestRefresh(t *testing.T) {
	t.Run("invalidates cache", func(t *testing.T) {
		inv := &fakeInvalidator{}
		srv := newTestServer(t, Options{Invalidator: inv})

		resp, err := http.Post(srv.URL+"/api/v1/queues/refresh", "application/json", strings.NewReader("{}"))
		require.NoError(t, err)
		resp.Body.Close()

		assert.Equal(t, http.StatusAccepted, resp.StatusCode)
		assert.Equal(t, 1, inv.calls)
	})

	t.Run("cache failure", func(t *testing.T) {
		inv := &fakeInvalidator{err: commonerrors.NewCacheOperationFailedError("del", errors.New("reset"))}
		srv := newTestServer(t, Options{Invalidator: inv})

		resp, err := http.Post(srv.URL+"/api/v1/queues/refresh", "application/json", nil)
		require.NoError(t, err)
		resp.Body.Close()

		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	})

	t.Run("get not allowed", func(t *testing.T) {
		srv := newTestServer(t, Options{})

		resp, err := http.Get(srv.URL + "/api/v1/queues/refresh")
		require.NoError(t, err)
		resp.Body.Close()

		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	})
}

func TestDeletedLeads(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		srv := newTestServer(t, Options{})

		var body map[string]string
		status := getJSON(t, srv.URL+"/api/v1/leads/deleted", &body)
		assert.Equal(t, http.StatusNotImplemented, status)
	})

	t.Run("lists deleted leads", func(t *testing.T) {
		reader := &fakeDeletedLeads{leads: []leadstore.DeletedLead{
			{Lead: models.Lead{ID: "l9", Status: models.StatusLost}, DeletedAt: fixedNow},
		}}
		srv := newTestServer(t, Options{DeletedLeads: reader})

		var body struct {
			Leads []leadstore.DeletedLead `json:"leads"`
			Count int                     `json:"count"`
		}
		status := getJSON(t, srv.URL+"/api/v1/leads/deleted", &body)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, 1, body.Count)
		assert.Equal(t, "l9", body.Leads[0].ID)
		assert.Equal(t, fixedNow, body.Leads[0].DeletedAt)
	})

	t.Run("query failure", func(t *testing.T) {
		srv := newTestServer(t, Options{DeletedLeads: &fakeDeletedLeads{err: errors.New("replica down")}})

		var body map[string]string
		status := getJSON(t, srv.URL+"/api/v1/leads/deleted", &body)
		assert.Equal(t, http.StatusBadGateway, status)
		assert.Equal(t, "DATABASE_QUERY_FAILED", body["code"])
	})
}

// ==========================
// Health & Metrics
// ==========================

func TestHealthAndReady(t *testing.T) {
	var body map[string]interface{}

	srv := newTestServer(t, Options{Checks: []Check{
		{Name: "redis", Fn: func(ctx context.Context) error { return nil }},
	}})
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/health", &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "2026-10-01T09:00:00Z", body["time"])

	body = nil
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/ready", &body))
	assert.Equal(t, "ready", body["status"])

	failing := newTestServer(t, Options{Checks: []Check{
		{Name: "redis", Fn: func(ctx context.Context) error { return nil }},
		{Name: "postgres", Fn: func(ctx context.Context) error { return errors.New("connection refused") }},
	}})
	body = nil
	assert.Equal(t, http.StatusServiceUnavailable, getJSON(t, failing.URL+"/ready", &body))
	assert.Equal(t, map[string]interface{}{"postgres": "connection refused"}, body["failed"])
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, Options{})

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
