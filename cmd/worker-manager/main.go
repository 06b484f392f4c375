// cmd/worker-manager/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"go.uber.org/zap"

	"intake-crm-workers/internal/backend"
	commonaws "intake-crm-workers/internal/common/aws"
	"intake-crm-workers/internal/common/config"
	"intake-crm-workers/internal/common/database"
	"intake-crm-workers/internal/common/logger"
	"intake-crm-workers/internal/common/observability"
	"intake-crm-workers/internal/common/validation"
	"intake-crm-workers/internal/leadstore"
	"intake-crm-workers/internal/queueapi"
	"intake-crm-workers/internal/snapshot"

	cqc "intake-crm-workers/internal/workers/leads/compute-queue-counts"
	ecl "intake-crm-workers/internal/workers/leads/estimate-cohort-loss"
	flq "intake-crm-workers/internal/workers/leads/filter-lead-queue"
	ilq "intake-crm-workers/internal/workers/leads/index-lead-queues"
	nqb "intake-crm-workers/internal/workers/leads/notify-queue-backlog"
	"intake-crm-workers/pkg/registry"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logger.New("info", "console")
		boot.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format).With(
		zap.String("service", cfg.App.Name),
		zap.String("environment", cfg.App.Environment),
	)
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)
	zapLog.Info("Starting worker manager...", zap.String("leadSource", cfg.Leads.Source))

	obs, err := observability.New(cfg.App.Name)
	if err != nil {
		zapLog.Fatal("observability setup failed", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := obs.Shutdown(ctx); err != nil {
			zapLog.Warn("observability shutdown failed", zap.Error(err))
		}
	}()

	ctx := context.Background()

	// --- Init Zeebe Client with retry ---
	var zeebeClient zbc.Client
	err = retryWithBackoff(func() error {
		var err error
		zeebeClient, err = zbc.NewClient(&zbc.ClientConfig{
			GatewayAddress:         cfg.Camunda.BrokerAddress,
			UsePlaintextConnection: true,
		})
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully")

	// --- Init Redis with retry ---
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()
	zapLog.Info("Redis connected successfully")

	checks := []queueapi.Check{{Name: "redis", Fn: rdb.Ping}}

	// --- Lead snapshot source ---
	var (
		source       snapshot.Source
		deletedLeads queueapi.DeletedLeadsReader
	)
	switch cfg.Leads.Source {
	case config.SourcePostgres:
		var pg *database.PostgresClient
		err = retryWithBackoff(func() error {
			var err error
			pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			return pg.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
		if err != nil {
			zapLog.Fatal("postgres failed after retries", zap.Error(err))
		}
		defer pg.Close()
		zapLog.Info("PostgreSQL connected successfully")

		store := leadstore.New(pg.DB)
		source = store
		deletedLeads = store
		checks = append(checks, queueapi.Check{Name: "postgres", Fn: pg.Ping})
	default:
		source = backend.NewClient(cfg.Backend)
		zapLog.Info("Using CRM backend for lead snapshots", zap.String("baseUrl", cfg.Backend.BaseURL))
	}

	provider := snapshot.NewProvider(source, rdb.Client, snapshot.Options{
		FreshTTL:      cfg.Leads.FreshFor(),
		StaleTTL:      cfg.Leads.StaleFor(),
		Observability: obs,
	}, log)

	validator, err := validation.NewDefaultValidator()
	if err != nil {
		zapLog.Fatal("activity schemas failed to load", zap.Error(err))
	}

	// --- Register Workers ---
	if wcfg := config.GetWorkerConfig(cfg, cqc.TaskType); wcfg.Enabled {
		handler := cqc.NewHandler(&cqc.Config{
			Timeout:       config.GetDuration(wcfg.Timeout),
			Observability: obs,
		}, provider, validator, log)
		startWorker(zeebeClient, cqc.TaskType, wcfg, handler.Handle, zapLog)
	}

	if wcfg := config.GetWorkerConfig(cfg, flq.TaskType); wcfg.Enabled {
		fcfg := flq.LoadConfig()
		fcfg.Timeout = config.GetDuration(wcfg.Timeout)
		fcfg.Observability = obs
		handler := flq.NewHandler(fcfg, provider, validator, log)
		startWorker(zeebeClient, flq.TaskType, wcfg, handler.Handle, zapLog)
	}

	if wcfg := config.GetWorkerConfig(cfg, ilq.TaskType); wcfg.Enabled {
		var esClient *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		zapLog.Info("Elasticsearch connected successfully")
		checks = append(checks, queueapi.Check{Name: "elasticsearch", Fn: esClient.Ping})

		handler := ilq.NewHandler(&ilq.Config{
			Index:         cfg.Queues.SearchIndex,
			BatchSize:     cfg.Queues.IndexBatchSize,
			Timeout:       config.GetDuration(wcfg.Timeout),
			Observability: obs,
		}, esClient, provider, validator, log)
		startWorker(zeebeClient, ilq.TaskType, wcfg, handler.Handle, zapLog)
	}

	if wcfg := config.GetWorkerConfig(cfg, nqb.TaskType); wcfg.Enabled {
		n := cfg.Notifications
		var clients *commonaws.Clients
		if n.Email.Enabled || n.SMS.Enabled {
			clients, err = commonaws.NewClients(ctx, n.AWS.Region)
			if err != nil {
				zapLog.Fatal("failed to create AWS clients", zap.Error(err))
			}
		}

		handler := nqb.NewHandler(&nqb.Config{
			EmailEnabled:  n.Email.Enabled,
			SMSEnabled:    n.SMS.Enabled,
			FromEmail:     n.Email.FromEmail,
			Recipients:    n.Email.Recipients,
			PhoneNumbers:  n.SMS.PhoneNumbers,
			Thresholds:    cfg.Queues.BacklogThresholds,
			Timeout:       config.GetDuration(wcfg.Timeout),
			Observability: obs,
		}, provider, clients, validator, log)
		startWorker(zeebeClient, nqb.TaskType, wcfg, handler.Handle, zapLog)
	}

	if wcfg := config.GetWorkerConfig(cfg, ecl.TaskType); wcfg.Enabled {
		handler := ecl.NewHandler(&ecl.Config{
			Timeout:       config.GetDuration(wcfg.Timeout),
			Observability: obs,
		}, validator, log)
		startWorker(zeebeClient, ecl.TaskType, wcfg, handler.Handle, zapLog)
	}

	// --- Dashboard API, Health & Metrics ---
	api := queueapi.NewServer(queueapi.Options{
		Snapshots:    provider,
		Invalidator:  provider,
		DeletedLeads: deletedLeads,
		Checks:       checks,
		Logger:       log,
	})
	srv := &http.Server{
		Addr:              cfg.HTTP.Address,
		Handler:           api.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		zapLog.Info("HTTP server listening", zap.String("address", cfg.HTTP.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping HTTP server", zap.Error(err))
	}

	if err := zeebeClient.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}

func startWorker(client zbc.Client, taskType string, wcfg config.WorkerConfig, handlerFunc func(worker.JobClient, entities.Job), log *zap.Logger) {
	builder := client.NewJobWorker().
		JobType(taskType).
		Handler(handlerFunc).
		MaxJobsActive(wcfg.MaxJobsActive).
		Timeout(time.Duration(wcfg.Timeout) * time.Millisecond)

	// only the variables the task declares, so outputs of earlier tasks never leak into its input
	var fetch []string
	if activity, ok := registry.MustDefault().Find(taskType); ok {
		fetch = activity.InputVariables()
	}
	if len(fetch) > 0 {
		builder = builder.FetchVariables(fetch...)
	}
	builder.Open()

	log.Info("worker started",
		zap.String("taskType", taskType),
		zap.Int("maxJobsActive", wcfg.MaxJobsActive),
		zap.Int("timeout_ms", wcfg.Timeout),
		zap.Strings("fetchVariables", fetch),
	)
}
