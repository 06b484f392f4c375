// internal/workers/leads/filter-lead-queue/handler.go
package filterleadqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
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

const TaskType = "filter-lead-queue"

type Handler struct {
	config       *Config
	snapshots    snapshot.Getter
	validator    *validation.Validator
	errorHandler *commonerrors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, snapshots snapshot.Getter, validator *validation.Validator, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		snapshots:    snapshots,
		validator:    validator,
		errorHandler: commonerrors.NewErrorHandler(log),
		logger:       log,
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
			h.config.Observability.RecordJobProcessed(ctx, TaskType, "completed")
			h.config.Observability.RecordJobDuration(ctx, TaskType, time.Since(start), "completed")
			return
		}
	}

	span.RecordError(err)
	timer.Failed(string(commonerrors.Normalize(err).Code))
	h.config.Observability.RecordJobProcessed(ctx, TaskType, "failed")
	h.config.Observability.RecordJobDuration(ctx, TaskType, time.Since(start), "failed")
	h.errorHandler.HandleJobError(ctx, client, job, err)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	requested := strings.TrimSpace(input.QueueID)
	if requested == "" {
		return nil, commonerrors.NewInvalidJobInputError("queueId is required")
	}
	if input.Limit < 0 {
		return nil, commonerrors.NewInvalidJobInputError("limit must not be negative")
	}

	snap, err := snapshot.Resolve(ctx, h.snapshots, input.Leads)
	if err != nil {
		return nil, err
	}

	id := queue.ID(requested)
	resolved := queue.Resolve(id)
	if resolved != id {
		h.logger.Warn("unknown queue id, falling back to all", map[string]interface{}{
			"queueId": requested,
		})
	}

	leads := queue.FilterByQueue(snap.Leads, id)

	limit := input.Limit
	if limit == 0 {
		limit = h.config.MaxLeads
	}
	truncated := false
	if limit > 0 && len(leads) > limit {
		leads = leads[:limit]
		truncated = true
	}

	return &Output{
		QueueID:         requested,
		ResolvedQueueID: string(resolved),
		QueueLeads:      leads,
		Count:           len(leads),
		Truncated:       truncated,
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
	if err := json.Unmarshal(variables, &input); err != nil {
		return nil, commonerrors.NewInvalidJobInputError(fmt.Sprintf("parse input: %v", err))
	}
	return &input, nil
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
	}
}
