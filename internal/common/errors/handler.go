// internal/common/errors/handler.go
package errors

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

// ErrorHandler reports a failed job back to the broker, either as a retryable
// failure or as a BPMN error for the process to catch.
type ErrorHandler struct {
	logger Logger
}

type Logger interface {
	Error(msg string, fields map[string]interface{})
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Resolution is what HandleJobError decided to do with a failed job.
type Resolution struct {
	Fail    bool // fail with Retries remaining, otherwise throw a BPMN error
	Retries int32
	BPMN    *BPMNError
	Cause   *StandardError
}

// Resolve normalizes err and decides between a retryable failure and a BPMN error.
func Resolve(job entities.Job, err error) Resolution {
	stdErr := Normalize(err)
	bpmnErr := ConvertToBPMNError(stdErr)

	remaining := job.Retries - 1
	if limit := int32(bpmnErr.Retries); remaining > limit {
		remaining = limit
	}

	if bpmnErr.Retryable && remaining > 0 {
		return Resolution{Fail: true, Retries: remaining, BPMN: bpmnErr, Cause: stdErr}
	}
	return Resolution{BPMN: bpmnErr, Cause: stdErr}
}

// Normalize ensures we always have a StandardError.
func Normalize(err error) *StandardError {
	if stdErr, ok := AsStandardError(err); ok {
		return stdErr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewOperationTimeoutError("job")
	}
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// HandleJobError handles any error in a worker job
func (h *ErrorHandler) HandleJobError(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	res := Resolve(job, err)
	h.logError(job, res)

	if res.Fail {
		h.failJob(ctx, client, job, res)
		return
	}
	h.throwBPMNError(ctx, client, job, res.BPMN)
}

func (h *ErrorHandler) failJob(ctx context.Context, client worker.JobClient, job entities.Job, res Resolution) {
	cmd := client.NewFailJobCommand().
		JobKey(job.Key).
		Retries(res.Retries).
		ErrorMessage(res.BPMN.Message)

	if varsJSON, err := json.Marshal(res.BPMN.ToErrorVariables()); err == nil {
		if withVars, err := cmd.VariablesFromString(string(varsJSON)); err == nil {
			if _, err := withVars.Send(ctx); err != nil {
				h.logSendFailure(job, "fail", err)
			}
			return
		}
	}

	if _, err := cmd.Send(ctx); err != nil {
		h.logSendFailure(job, "fail", err)
	}
}

func (h *ErrorHandler) throwBPMNError(ctx context.Context, client worker.JobClient, job entities.Job, bpmnErr *BPMNError) {
	cmd := client.NewThrowErrorCommand().
		JobKey(job.Key).
		ErrorCode(bpmnErr.Code).
		ErrorMessage(bpmnErr.Message)

	if varsJSON, err := json.Marshal(bpmnErr.ToErrorVariables()); err == nil {
		if withVars, err := cmd.VariablesFromString(string(varsJSON)); err == nil {
			if _, err := withVars.Send(ctx); err != nil {
				h.logSendFailure(job, "throw", err)
			}
			return
		}
	}

	if _, err := cmd.Send(ctx); err != nil {
		h.logSendFailure(job, "throw", err)
	}
}

func (h *ErrorHandler) logSendFailure(job entities.Job, command string, err error) {
	h.logger.Error("failed to send job command", map[string]interface{}{
		"jobKey":  job.Key,
		"command": command,
		"error":   err,
	})
}

func (h *ErrorHandler) logError(job entities.Job, res Resolution) {
	h.logger.Error("Job failed", map[string]interface{}{
		"jobKey":           job.Key,
		"jobType":          job.Type,
		"errorCode":        string(res.Cause.Code),
		"bpmnErrorCode":    res.BPMN.Code,
		"message":          res.BPMN.Message,
		"details":          res.Cause.Details,
		"retryable":        res.Cause.Retryable,
		"retriesLeft":      res.Retries,
		"thrown":           !res.Fail,
		"errorCategory":    GetErrorCategory(res.Cause.Code),
		"workflowInstance": job.ProcessInstanceKey,
	})
}
