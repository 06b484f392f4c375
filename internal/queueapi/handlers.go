package queueapi

import (
	"net/http"
	"strconv"
	"time"

	commonerrors "intake-crm-workers/internal/common/errors"
	"intake-crm-workers/internal/models"
	"intake-crm-workers/internal/queue"

	"github.com/go-chi/chi/v5"
)

type queueSummary struct {
	ID    queue.ID `json:"id"`
	Label string   `json:"label"`
	Count int      `json:"count"`
}

type queuesResponse struct {
	Counts     map[string]int `json:"counts"`
	Queues     []queueSummary `json:"queues"`
	TotalLeads int            `json:"totalLeads"`
	FetchedAt  time.Time      `json:"fetchedAt"`
	Stale      bool           `json:"stale"`
}

type queueLeadsResponse struct {
	QueueID         string        `json:"queueId"`
	ResolvedQueueID queue.ID      `json:"resolvedQueueId"`
	Leads           []models.Lead `json:"leads"`
	Count           int           `json:"count"`
}

func (s *Server) handleListQueues(w http.ResponseWriter, r *http.Request) {
	snap, err := s.snapshots.Get(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	counts := queue.ComputeCounts(snap.Leads)
	resp := queuesResponse{
		Counts:     counts.AsStrings(),
		Queues:     make([]queueSummary, 0, len(counts)),
		TotalLeads: len(snap.Leads),
		FetchedAt:  snap.FetchedAt,
		Stale:      snap.Stale,
	}
	for _, id := range queue.IDs() {
		resp.Queues = append(resp.Queues, queueSummary{ID: id, Label: id.Label(), Count: counts.Get(id)})
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleQueueLeads(w http.ResponseWriter, r *http.Request) {
	requested := chi.URLParam(r, "queueId")

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "INVALID_LIMIT", "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	snap, err := s.snapshots.Get(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	id := queue.ID(requested)
	resolved := queue.Resolve(id)
	if resolved != id {
		s.logger.Warn("unknown queue requested, using all", map[string]interface{}{"queueId": requested})
	}

	leads := queue.FilterByQueue(snap.Leads, id)
	if limit > 0 && len(leads) > limit {
		leads = leads[:limit]
	}

	writeJSON(w, http.StatusOK, queueLeadsResponse{
		QueueID:         requested,
		ResolvedQueueID: resolved,
		Leads:           leads,
		Count:           len(leads),
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if s.invalidator == nil {
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "no-cache"})
		return
	}
	if err := s.invalidator.Invalidate(r.Context()); err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "invalidated"})
}

func (s *Server) handleDeletedLeads(w http.ResponseWriter, r *http.Request) {
	if s.deletedLeads == nil {
		writeError(w, http.StatusNotImplemented, "NOT_AVAILABLE", "deleted leads are only available from the postgres source")
		return
	}

	leads, err := s.deletedLeads.FetchDeletedLeads(r.Context())
	if err != nil {
		s.writeServiceError(w, commonerrors.NewDatabaseQueryFailedError("deleted leads", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"leads": leads, "count": len(leads)})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   s.now().Format(time.RFC3339),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	failed := make(map[string]string)
	for _, c := range s.checks {
		if err := c.Fn(r.Context()); err != nil {
			failed[c.Name] = err.Error()
		}
	}

	if len(failed) > 0 {
		s.logger.Warn("readiness check failed", map[string]interface{}{"checks": failed})
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status": "not ready",
			"failed": failed,
			"time":   s.now().Format(time.RFC3339),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
		"time":   s.now().Format(time.RFC3339),
	})
}
