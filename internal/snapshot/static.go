package snapshot

import (
	"context"
	"time"

	"intake-crm-workers/internal/models"
)

// Static serves a fixed list of leads. Workers use it when a job carries its
// own leads variable instead of reading the shared snapshot.
type Static struct {
	Leads  []models.Lead
	Source string
}

func (s Static) Get(_ context.Context) (*Snapshot, error) {
	leads := s.Leads
	if leads == nil {
		leads = []models.Lead{}
	}
	source := s.Source
	if source == "" {
		source = "job"
	}
	return &Snapshot{Leads: leads, FetchedAt: time.Now().UTC(), Source: source}, nil
}

// Resolve returns the job-provided leads when present, otherwise the shared snapshot.
func Resolve(ctx context.Context, shared Getter, provided []models.Lead) (*Snapshot, error) {
	if provided != nil {
		return Static{Leads: provided}.Get(ctx)
	}
	return shared.Get(ctx)
}
