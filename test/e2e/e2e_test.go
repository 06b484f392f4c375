//go:build e2e

// test/e2e/e2e_test.go
package e2e

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intake-crm-workers/internal/common/config"
	"intake-crm-workers/internal/common/database"
	"intake-crm-workers/internal/common/logger"
	"intake-crm-workers/internal/leadstore"
	"intake-crm-workers/internal/queue"
	"intake-crm-workers/internal/snapshot"

	cqc "intake-crm-workers/internal/workers/leads/compute-queue-counts"
	flq "intake-crm-workers/internal/workers/leads/filter-lead-queue"
	ilq "intake-crm-workers/internal/workers/leads/index-lead-queues"
)

var zeebeClient zbc.Client

func TestMain(m *testing.M) {
	var err error

	zeebeClient, err = zbc.NewClient(&zbc.ClientConfig{
		GatewayAddress:         "localhost:26500",
		UsePlaintextConnection: true,
	})
	if err != nil {
		panic(fmt.Sprintf("failed to connect to Zeebe: %v", err))
	}

	code := m.Run()

	zeebeClient.Close()
	os.Exit(code)
}

// ==========================
// Full Lead Queue Flow
// ==========================

func TestLeadQueuesE2E(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	cfg, err := config.Load()
	require.NoError(t, err)

	cfg.Database.Postgres.Host = "localhost"
	cfg.Database.Redis.Address = "localhost:6379"
	cfg.Database.Elasticsearch.Addresses = []string{"http://localhost:9200"}

	_, err = zeebeClient.NewTopologyCommand().Send(ctx)
	require.NoError(t, err, "zeebe topology request failed")

	pg, err := database.NewPostgres(cfg.Database.Postgres)
	require.NoError(t, err)
	defer pg.Close()
	require.NoError(t, pg.Ping(ctx), "postgres ping failed")

	rdb, err := database.NewRedis(cfg.Database.Redis)
	require.NoError(t, err)
	defer rdb.Close()
	require.NoError(t, rdb.Ping(ctx), "redis ping failed")

	es, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
	require.NoError(t, err)
	require.NoError(t, es.Ping(ctx), "elasticsearch ping failed")

	seedLeads(t, ctx, pg)

	log := logger.NewTestLogger(t)
	provider := snapshot.NewProvider(leadstore.New(pg.DB), rdb.Client, snapshot.Options{
		FreshTTL: 30 * time.Second,
		StaleTTL: 5 * time.Minute,
	}, log)
	require.NoError(t, provider.Invalidate(ctx))

	t.Run("compute-queue-counts", func(t *testing.T) {
		h := cqc.NewHandler(&cqc.Config{Timeout: 10 * time.Second}, provider, nil, log)
		out, err := h.Execute(ctx, &cqc.Input{})
		require.NoError(t, err)

		assert.Equal(t, 3, out.QueueCounts[string(queue.All)])
		assert.Equal(t, 1, out.QueueCounts[string(queue.New)])
		assert.Equal(t, 1, out.QueueCounts[string(queue.Hot)])
		assert.Equal(t, leadstore.SourceName, out.Source)
	})

	t.Run("filter-lead-queue", func(t *testing.T) {
		h := flq.NewHandler(&flq.Config{MaxLeads: 100, Timeout: 10 * time.Second}, provider, nil, log)
		out, err := h.Execute(ctx, &flq.Input{QueueID: string(queue.Contacted)})
		require.NoError(t, err)

		ids := make([]string, 0, len(out.QueueLeads))
		for _, l := range out.QueueLeads {
			ids = append(ids, l.ID)
		}
		assert.ElementsMatch(t, []string{"e2e-2", "e2e-3"}, ids)
	})

	t.Run("index-lead-queues", func(t *testing.T) {
		h := ilq.NewHandler(&ilq.Config{Index: "lead-queues-e2e", BatchSize: 2, Timeout: 30 * time.Second}, es, provider, nil, log)
		out, err := h.Execute(ctx, &ilq.Input{})
		require.NoError(t, err)

		assert.Equal(t, 3, out.Indexed)
		assert.Zero(t, out.Failed)
	})

	t.Run("deleted-leads", func(t *testing.T) {
		deleted, err := leadstore.New(pg.DB).FetchDeletedLeads(ctx)
		require.NoError(t, err)
		require.NotEmpty(t, deleted)
		assert.Equal(t, "e2e-4", deleted[0].ID)
	})
}

// ==========================
// Database Setup + Test Data
// ==========================

func seedLeads(t *testing.T, ctx context.Context, pg *database.PostgresClient) {
	t.Helper()

	_, err := pg.DB.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS leads (
			id                 TEXT PRIMARY KEY,
			first_name         TEXT,
			last_name          TEXT,
			email              TEXT,
			phone              TEXT,
			status             TEXT NOT NULL,
			contact_outcome    TEXT,
			follow_up_reason   TEXT,
			priority           TEXT,
			source             TEXT,
			referring_provider TEXT,
			created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at         TIMESTAMPTZ,
			deleted_at         TIMESTAMPTZ
		)`)
	require.NoError(t, err)

	_, err = pg.DB.ExecContext(ctx, `DELETE FROM leads`)
	require.NoError(t, err)

	_, err = pg.DB.ExecContext(ctx, `
		INSERT INTO leads (id, first_name, status, contact_outcome, follow_up_reason, priority, deleted_at) VALUES
			('e2e-1', 'Ana',   'new',       NULL,            NULL,        'hot',  NULL),
			('e2e-2', 'Ben',   'contacted', 'NO_ANSWER',     'No Answer', 'low',  NULL),
			('e2e-3', 'Cara',  'contacted', 'CALLBACK_REQUESTED', NULL,    NULL,   NULL),
			('e2e-4', 'Dev',   'lost',      'NOT_INTERESTED', NULL,       NULL,   now())`)
	require.NoError(t, err)
}
