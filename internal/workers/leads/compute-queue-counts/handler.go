// internal/workers/leads/compute-queue-counts/handler.go
package computequeuecounts

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	commonerrors "intake-crm-workers/internal/common/errors"
	"intake-crm-workers/internal/common/logger"
	"intake-crm-workers/internal/common/metrics"
	"intake-crm-workers/internal/common/validation"
	"intake-crm-workers/internal/queue"
	"intake-crm-workers/internal/snapshot"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"go.opentelemetry.io/otel/attribute"
)

const TaskType = "compute-queue-counts"

type invalidator interface {
	Invalidate(ctx context.Context) error
}

type Handler struct {
	config       *Config
	snapshots    snapshot.Getter
	validator    *validation.Validator
	errorHandler *commonerrors.ErrorHandler
	logger       logger.Logger
	now          func() time.Time
}

func NewHandler(config *Config, snapshots snapshot.Getter, validator *validation.Validator, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		snapshots:    snapshots,
		validator:    validator,
		errorHandler: commonerrors.NewErrorHandler(log),
		logger:       log,
		now:          time.Now,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	timer := metrics.StartJob(TaskType)
	start := time.Now()

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	ctx, span := h.config.Observability.StartSpan(ctx, TaskType, attribute.Int64("jobKey", job.Key))
	defer span.End()

	input, err := h.parseInput(job)
	if err == nil {
		var output *Output
		output, err = h.execute(ctx, input)
		if err == nil {
			h.completeJob(ctx, client, job, output)
			timer.Completed()
			h.record(ctx, start, "completed")
			return
		}
	}

	span.RecordError(err)
	timer.Failed(string(commonerrors.Normalize(err).Code))
	h.record(ctx, start, "failed")
	h.errorHandler.HandleJobError(ctx, client, job, err)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input.Refresh && input.Leads == nil {
		if inv, ok := h.snapshots.(invalidator); ok {
			if err := inv.Invalidate(ctx); err != nil {
				h.logger.Warn("snapshot invalidation failed, counting cached leads", map[string]interface{}{"error": err})
			}
		}
	}

	snap, err := snapshot.Resolve(ctx, h.snapshots, input.Leads)
	if err != nil {
		return nil, err
	}

	counts := queue.ComputeCounts(snap.Leads).AsStrings()

	// Job-supplied leads are a caller's subset, not the live pipeline.
	if input.Leads == nil {
		metrics.SetQueueSizes(counts)
	}

	h.logger.Debug("queue counts computed", map[string]interface{}{
		"source":     snap.Source,
		"totalLeads": len(snap.Leads),
		"stale":      snap.Stale,
	})

	return &Output{
		QueueCounts: counts,
		TotalLeads:  len(snap.Leads),
		Source:      snap.Source,
		ComputedAt:  h.now().UTC().Format(time.RFC3339),
	}, nil
}

func (h *Handler) parseInput(job entities.Job) (*Input, error) {
	variables := []byte(job.Variables)
	if h.validator != nil {
		if result := h.validator.ValidateInput(TaskType, variables); !result.Valid {
			return nil, commonerrors.NewInvalidJobInputError(result.Summary())
		}
	}

	var input Input
	if len(variables) > 0 {
		if err := json.Unmarshal(variables, &input); err != nil {
			return nil, commonerrors.NewInvalidJobInputError(fmt.Sprintf("parse input: %v", err))
		}
	}
	return &input, nil
}

func (h *Handler) record(ctx context.Context, start time.Time, status string) {
	h.config.Observability.RecordJobProcessed(ctx, TaskType, status)
	h.config.Observability.RecordJobDuration(ctx, TaskType, time.Since(start), status)
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{"error": err})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{"error": err})
		return
	}
	h.logger.Info("job completed", map[string]interface{}{
		"jobKey":     job.Key,
		"totalLeads": output.TotalLeads,
	})
}
