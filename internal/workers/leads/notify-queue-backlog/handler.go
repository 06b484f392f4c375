// internal/workers/leads/notify-queue-backlog/handler.go
package notifyqueuebacklog

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"intake-crm-workers/internal/common/aws"
	commonerrors "intake-crm-workers/internal/common/errors"
	"intake-crm-workers/internal/common/logger"
	"intake-crm-workers/internal/common/metrics"
	"intake-crm-workers/internal/common/validation"
	"intake-crm-workers/internal/queue"
	"intake-crm-workers/internal/snapshot"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

const TaskType = "notify-queue-backlog"

type Handler struct {
	config       *Config
	snapshots    snapshot.Getter
	sesClient    aws.SESService
	snsClient    aws.SNSService
	validator    *validation.Validator
	errorHandler *commonerrors.ErrorHandler
	logger       logger.Logger
	now          func() time.Time
}

func NewHandler(config *Config, snapshots snapshot.Getter, clients *aws.Clients, validator *validation.Validator, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	h := &Handler{
		config:       config,
		snapshots:    snapshots,
		validator:    validator,
		errorHandler: commonerrors.NewErrorHandler(log),
		logger:       log,
		now:          time.Now,
	}
	if clients != nil {
		h.sesClient = clients.SES
		h.snsClient = clients.SNS
	}
	return h
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
	snap, err := snapshot.Resolve(ctx, h.snapshots, input.Leads)
	if err != nil {
		return nil, err
	}

	counts := queue.ComputeCounts(snap.Leads)
	breaches := h.findBreaches(counts, h.thresholds(input))

	output := &Output{
		NotificationID: uuid.New().String(),
		Status:         StatusNone,
		Breaches:       breaches,
		CheckedAt:      h.now().UTC().Format(time.RFC3339),
	}

	if len(breaches) == 0 {
		return output, nil
	}

	emailReady := h.config.EmailEnabled && h.sesClient != nil && len(h.config.Recipients) > 0
	smsReady := h.config.SMSEnabled && h.snsClient != nil && len(h.config.PhoneNumbers) > 0 && hasHotBreach(breaches)
	if !emailReady && !smsReady {
		h.logger.Warn("queue backlog detected but notifications are disabled", map[string]interface{}{
			"breaches": len(breaches),
		})
		output.Status = StatusDisabled
		return output, nil
	}

	subject, body := renderAlert(breaches, snap.Source, output.CheckedAt)

	// A failed email fails the job so it is retried. Nothing has reached the team yet.
	if emailReady {
		messageID, err := aws.SendEmail(ctx, h.sesClient, aws.Email{
			From:    h.config.FromEmail,
			To:      h.config.Recipients,
			Subject: subject,
			Body:    body,
		})
		if err != nil {
			metrics.NotificationsSent.WithLabelValues("email", StatusFailed).Inc()
			return nil, commonerrors.NewNotificationSendFailedError("email", err).
				WithMetadata("notificationId", output.NotificationID)
		}
		metrics.NotificationsSent.WithLabelValues("email", StatusSent).Inc()
		output.EmailSent = true
		h.logger.Info("backlog email sent", map[string]interface{}{"messageId": messageID, "recipients": len(h.config.Recipients)})
	}

	// Once anything has been delivered a failure only marks the output, a retry would resend it.
	if smsReady {
		text := smsText(breaches)
		for _, phone := range h.config.PhoneNumbers {
			if _, err := aws.PublishSMS(ctx, h.snsClient, phone, text); err != nil {
				metrics.NotificationsSent.WithLabelValues("sms", StatusFailed).Inc()
				h.logger.Error("backlog SMS failed", map[string]interface{}{"error": err, "phone": maskPhone(phone)})
				if !output.EmailSent && !output.SMSSent {
					return nil, commonerrors.NewNotificationSendFailedError("sms", err).
						WithMetadata("notificationId", output.NotificationID)
				}
				output.Status = StatusFailed
				continue
			}
			metrics.NotificationsSent.WithLabelValues("sms", StatusSent).Inc()
			output.SMSSent = true
		}
	}

	if output.Status != StatusFailed {
		output.Status = StatusSent
	}
	return output, nil
}

// thresholds layers the job's thresholds over the configured ones.
func (h *Handler) thresholds(input *Input) map[string]int {
	merged := make(map[string]int, len(h.config.Thresholds)+len(input.Thresholds))
	for k, v := range h.config.Thresholds {
		merged[k] = v
	}
	for k, v := range input.Thresholds {
		merged[k] = v
	}
	return merged
}

func (h *Handler) findBreaches(counts queue.Counts, thresholds map[string]int) []Breach {
	for key := range thresholds {
		if _, ok := queue.ParseID(key); !ok {
			h.logger.Warn("ignoring threshold for unknown queue", map[string]interface{}{"queueId": key})
		}
	}

	breaches := make([]Breach, 0)
	for _, id := range queue.IDs() {
		limit, ok := thresholds[string(id)]
		if !ok {
			continue
		}
		if n := counts.Get(id); n > limit {
			breaches = append(breaches, Breach{QueueID: string(id), Label: id.Label(), Count: n, Threshold: limit})
		}
	}
	return breaches
}

func hasHotBreach(breaches []Breach) bool {
	for _, b := range breaches {
		if b.QueueID == string(queue.Hot) {
			return true
		}
	}
	return false
}

func renderAlert(breaches []Breach, source, checkedAt string) (string, string) {
	subject := fmt.Sprintf("Lead queue backlog: %d queue(s) over threshold", len(breaches))

	var b strings.Builder
	fmt.Fprintf(&b, "The following lead queues are over their backlog threshold as of %s (source: %s).\n\n", checkedAt, source)
	for _, br := range breaches {
		fmt.Fprintf(&b, "  %-12s %4d leads (threshold %d)\n", br.Label, br.Count, br.Threshold)
	}
	b.WriteString("\nPlease rebalance coordinator assignments.\n")
	return subject, b.String()
}

func smsText(breaches []Breach) string {
	for _, b := range breaches {
		if b.QueueID == string(queue.Hot) {
			return fmt.Sprintf("Intake alert: %d hot leads waiting (threshold %d).", b.Count, b.Threshold)
		}
	}
	return ""
}

func maskPhone(phone string) string {
	if len(phone) <= 4 {
		return "****"
	}
	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
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
