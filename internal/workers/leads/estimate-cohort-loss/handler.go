// internal/workers/leads/estimate-cohort-loss/handler.go
package estimatecohortloss

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"intake-crm-workers/internal/analytics"
	commonerrors "intake-crm-workers/internal/common/errors"
	"intake-crm-workers/internal/common/logger"
	"intake-crm-workers/internal/common/metrics"
	"intake-crm-workers/internal/common/validation"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "estimate-cohort-loss"

type Handler struct {
	config       *Config
	validator    *validation.Validator
	errorHandler *commonerrors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, validator *validation.Validator, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		validator:    validator,
		errorHandler: commonerrors.NewErrorHandler(log),
		logger:       log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	timer := metrics.StartJob(TaskType)
	start := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

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

	timer.Failed(string(commonerrors.Normalize(err).Code))
	h.config.Observability.RecordJobProcessed(ctx, TaskType, "failed")
	h.errorHandler.HandleJobError(ctx, client, job, err)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}

func (h *Handler) execute(_ context.Context, input *Input) (*Output, error) {
	if input.CohortSize < 0 {
		return nil, commonerrors.NewInvalidJobInputError("cohortSize must not be negative")
	}
	if input.LostCount != nil && *input.LostCount < 0 {
		return nil, commonerrors.NewInvalidJobInputError("lostCount must not be negative")
	}

	loss := analytics.EstimateCohortLoss(input.CohortSize, input.Periods, input.LostCount)
	if loss.Approximate {
		h.logger.Debug("cohort loss inferred from retention periods", map[string]interface{}{
			"cohortSize": input.CohortSize,
			"periods":    len(input.Periods),
			"lostCount":  loss.Lost,
		})
	}

	return &Output{
		LostCount:     loss.Lost,
		Approximate:   loss.Approximate,
		RetentionRate: analytics.RetentionRate(input.CohortSize, input.Periods),
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
