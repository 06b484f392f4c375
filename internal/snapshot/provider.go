// Package snapshot serves lead snapshots to workers and the dashboard API.
//
// A snapshot is fetched from a Source (the CRM backend or the Postgres
// replica) and cached in Redis. Entries younger than the fresh TTL are served
// as is. Entries between the fresh and stale TTL are served immediately while
// one background refresh replaces them. Older entries expire in Redis and the
// next caller loads synchronously. Concurrent loads for the same source are
// collapsed into one.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"intake-crm-workers/internal/backend"
	commonerrors "intake-crm-workers/internal/common/errors"
	"intake-crm-workers/internal/common/logger"
	"intake-crm-workers/internal/common/metrics"
	"intake-crm-workers/internal/common/observability"
	"intake-crm-workers/internal/models"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"
)

const keyPrefix = "leads:snapshot:"

// Source loads the full list of leads.
type Source interface {
	Name() string
	FetchLeads(ctx context.Context) ([]models.Lead, error)
}

// Getter is what consumers of snapshots depend on.
type Getter interface {
	Get(ctx context.Context) (*Snapshot, error)
}

type Snapshot struct {
	Leads     []models.Lead `json:"leads"`
	FetchedAt time.Time     `json:"fetchedAt"`
	Source    string        `json:"source"`
	Stale     bool          `json:"-"`
}

type Options struct {
	FreshTTL       time.Duration
	StaleTTL       time.Duration
	RefreshTimeout time.Duration
	Observability  *observability.Observability
	Now            func() time.Time
}

type Provider struct {
	source  Source
	cache   redis.Cmdable
	group   singleflight.Group
	fresh   time.Duration
	stale   time.Duration
	refresh time.Duration
	obs     *observability.Observability
	now     func() time.Time
	logger  logger.Logger
}

// NewProvider builds a provider. cache may be nil, in which case every Get loads from source.
func NewProvider(source Source, cache redis.Cmdable, opts Options, log logger.Logger) *Provider {
	if opts.FreshTTL <= 0 {
		opts.FreshTTL = 30 * time.Second
	}
	if opts.StaleTTL < opts.FreshTTL {
		opts.StaleTTL = opts.FreshTTL
	}
	if opts.RefreshTimeout <= 0 {
		opts.RefreshTimeout = 30 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Provider{
		source:  source,
		cache:   cache,
		fresh:   opts.FreshTTL,
		stale:   opts.StaleTTL,
		refresh: opts.RefreshTimeout,
		obs:     opts.Observability,
		now:     opts.Now,
		logger:  log.WithFields(map[string]interface{}{"component": "snapshot", "source": source.Name()}),
	}
}

func (p *Provider) Key() string { return keyPrefix + p.source.Name() }

// Get returns the current snapshot, loading it from the source when the cache
// has nothing usable.
func (p *Provider) Get(ctx context.Context) (*Snapshot, error) {
	ctx, span := p.obs.StartSpan(ctx, "snapshot.get", attribute.String("source", p.source.Name()))
	defer span.End()

	if snap, ok := p.readCache(ctx); ok {
		age := p.now().Sub(snap.FetchedAt)
		p.obs.RecordSnapshotAge(ctx, p.source.Name(), age)

		if age < p.fresh {
			p.count("fresh")
			return snap, nil
		}
		if age < p.stale {
			p.count("stale")
			p.refreshInBackground()
			snap.Stale = true
			return snap, nil
		}
	}

	p.count("miss")
	snap, err := p.load(ctx)
	if err != nil {
		p.count("error")
		span.RecordError(err)
		return nil, err
	}
	return snap, nil
}

// Invalidate drops the cached snapshot so the next Get loads from the source.
func (p *Provider) Invalidate(ctx context.Context) error {
	if p.cache == nil {
		return nil
	}
	if err := p.cache.Del(ctx, p.Key()).Err(); err != nil {
		return commonerrors.NewCacheOperationFailedError("del", err)
	}
	p.logger.Info("snapshot invalidated", nil)
	return nil
}

func (p *Provider) readCache(ctx context.Context) (*Snapshot, bool) {
	if p.cache == nil {
		return nil, false
	}

	raw, err := p.cache.Get(ctx, p.Key()).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			p.logger.Warn("snapshot cache read failed, loading from source", map[string]interface{}{"error": err})
		}
		return nil, false
	}

	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		p.logger.Warn("discarding undecodable cached snapshot", map[string]interface{}{"error": err})
		return nil, false
	}
	if snap.Leads == nil {
		snap.Leads = []models.Lead{}
	}
	return &snap, true
}

// load fetches from the source once per key no matter how many callers are
// waiting. The fetch runs detached from any single caller; each caller stops
// waiting when its own ctx is done.
func (p *Provider) load(ctx context.Context) (*Snapshot, error) {
	ch := p.group.DoChan(p.Key(), func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.refresh)
		defer cancel()
		return p.fetchAndStore(fetchCtx)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			p.logger.Debug("shared in-flight snapshot load", nil)
		}
		return copySnapshot(res.Val.(*Snapshot)), nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, commonerrors.NewOperationTimeoutError("snapshot load from " + p.source.Name())
		}
		return nil, ctx.Err()
	}
}

func (p *Provider) refreshInBackground() {
	go func() {
		if _, err := p.load(context.Background()); err != nil {
			p.logger.Warn("background snapshot refresh failed", map[string]interface{}{"error": err})
		}
	}()
}

func (p *Provider) fetchAndStore(ctx context.Context) (*Snapshot, error) {
	ctx, span := p.obs.StartSpan(ctx, "snapshot.fetch")
	defer span.End()

	start := p.now()
	leads, err := p.source.FetchLeads(ctx)
	if err != nil {
		p.logger.Error("lead snapshot fetch failed", map[string]interface{}{"error": err})
		if errors.Is(err, backend.ErrDecode) {
			return nil, commonerrors.NewSnapshotDecodeFailedError(p.source.Name(), err)
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, commonerrors.NewOperationTimeoutError("snapshot fetch from " + p.source.Name())
		}
		return nil, commonerrors.NewSnapshotUnavailableError(p.source.Name(), err)
	}
	if leads == nil {
		leads = []models.Lead{}
	}

	snap := &Snapshot{Leads: leads, FetchedAt: p.now().UTC(), Source: p.source.Name()}
	p.logger.Info("lead snapshot loaded", map[string]interface{}{
		"leads":      len(leads),
		"durationMs": p.now().Sub(start).Milliseconds(),
	})

	p.writeCache(ctx, snap)
	return snap, nil
}

func (p *Provider) writeCache(ctx context.Context, snap *Snapshot) {
	if p.cache == nil {
		return
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		p.logger.Warn("snapshot encode failed", map[string]interface{}{"error": err})
		return
	}
	if err := p.cache.Set(ctx, p.Key(), payload, p.stale).Err(); err != nil {
		p.logger.Warn("snapshot cache write failed", map[string]interface{}{"error": err})
	}
}

func (p *Provider) count(result string) {
	metrics.LeadSnapshotFetches.WithLabelValues(p.source.Name(), result).Inc()
}

// copySnapshot gives each caller its own slice header so callers that
// truncate or reorder do not affect one another.
func copySnapshot(s *Snapshot) *Snapshot {
	leads := make([]models.Lead, len(s.Leads))
	copy(leads, s.Leads)
	return &Snapshot{Leads: leads, FetchedAt: s.FetchedAt, Source: s.Source, Stale: s.Stale}
}
