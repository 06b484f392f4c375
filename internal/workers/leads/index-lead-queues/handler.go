// internal/workers/leads/index-lead-queues/handler.go
package indexleadqueues

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"intake-crm-workers/internal/common/database"
	commonerrors "intake-crm-workers/internal/common/errors"
	"intake-crm-workers/internal/common/logger"
	"intake-crm-workers/internal/common/metrics"
	"intake-crm-workers/internal/common/validation"
	"intake-crm-workers/internal/models"
	"intake-crm-workers/internal/queue"
	"intake-crm-workers/internal/snapshot"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

const TaskType = "index-lead-queues"

type Handler struct {
	config       *Config
	es           *database.ElasticsearchClient
	snapshots    snapshot.Getter
	validator    *validation.Validator
	errorHandler *commonerrors.ErrorHandler
	logger       logger.Logger
	now          func() time.Time

	mu         sync.Mutex
	indexReady bool
}

func NewHandler(config *Config, es *database.ElasticsearchClient, snapshots snapshot.Getter, validator *validation.Validator, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	if config.BatchSize <= 0 {
		config.BatchSize = 500
	}
	return &Handler{
		config:       config,
		es:           es,
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

	if err := h.ensureIndex(ctx); err != nil {
		return nil, commonerrors.NewSearchIndexFailedError(h.config.Index, err)
	}

	output := &Output{BatchID: uuid.New().String()}
	indexedAt := h.now().UTC()

	docs := make([]LeadDocument, 0, len(snap.Leads))
	for _, lead := range snap.Leads {
		m := queue.Classify(lead)
		if m.Empty() && !input.IncludeInactive {
			output.Skipped++
			continue
		}
		docs = append(docs, newDocument(lead, m, output.BatchID, indexedAt))
	}

	for start := 0; start < len(docs); start += h.config.BatchSize {
		end := start + h.config.BatchSize
		if end > len(docs) {
			end = len(docs)
		}

		indexed, failed, err := h.bulkIndex(ctx, docs[start:end])
		if err != nil {
			return nil, commonerrors.NewSearchIndexFailedError(h.config.Index, err).
				WithMetadata("batchId", output.BatchID).
				WithMetadata("indexedBeforeFailure", output.Indexed)
		}
		output.Indexed += indexed
		output.Failed += failed
	}

	if output.Indexed == 0 && output.Failed > 0 {
		return nil, commonerrors.NewSearchIndexFailedError(h.config.Index,
			fmt.Errorf("all %d documents were rejected", output.Failed)).
			WithMetadata("batchId", output.BatchID)
	}

	h.logger.Info("lead queues indexed", map[string]interface{}{
		"batchId": output.BatchID,
		"indexed": output.Indexed,
		"failed":  output.Failed,
		"skipped": output.Skipped,
		"source":  snap.Source,
	})

	return output, nil
}

func newDocument(lead models.Lead, m queue.Membership, batchID string, indexedAt time.Time) LeadDocument {
	queues := make([]string, 0)
	for _, id := range m.IDs() {
		queues = append(queues, string(id))
	}

	return LeadDocument{
		LeadID:            lead.ID,
		Name:              strings.TrimSpace(lead.FirstName + " " + lead.LastName),
		Status:            string(models.NormalizeStatus(lead.Status)),
		ContactOutcome:    string(lead.EffectiveOutcome()),
		FollowUpReason:    lead.FollowUpReason,
		Priority:          string(lead.Priority),
		Source:            lead.Source,
		ReferringProvider: lead.ReferringProvider,
		Queues:            queues,
		Active:            queue.IsActive(lead),
		CreatedAt:         lead.CreatedAt,
		BatchID:           batchID,
		IndexedAt:         indexedAt,
	}
}

func (h *Handler) ensureIndex(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.indexReady {
		return nil
	}
	if err := h.es.EnsureIndex(ctx, h.config.Index, indexMapping); err != nil {
		return err
	}
	h.indexReady = true
	return nil
}

// bulkIndex sends one _bulk request and reports per-document outcomes.
func (h *Handler) bulkIndex(ctx context.Context, docs []LeadDocument) (int, int, error) {
	var body bytes.Buffer
	enc := json.NewEncoder(&body)
	for _, doc := range docs {
		meta := map[string]map[string]string{"index": {"_index": h.config.Index, "_id": doc.LeadID}}
		if err := enc.Encode(meta); err != nil {
			return 0, 0, err
		}
		if err := enc.Encode(doc); err != nil {
			return 0, 0, err
		}
	}

	req := esapi.BulkRequest{
		Index: h.config.Index,
		Body:  &body,
	}
	res, err := req.Do(ctx, h.es.Client)
	if err != nil {
		return 0, 0, fmt.Errorf("bulk request: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return 0, 0, fmt.Errorf("bulk request: %s", res.Status())
	}

	var parsed bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return 0, 0, fmt.Errorf("decode bulk response: %w", err)
	}

	indexed, failed := 0, 0
	for _, item := range parsed.Items {
		for _, result := range item {
			if result.Error != nil || result.Status >= 300 {
				failed++
				if result.Error != nil {
					h.logger.Warn("lead document rejected", map[string]interface{}{
						"leadId": result.ID,
						"type":   result.Error.Type,
						"reason": result.Error.Reason,
					})
				}
				continue
			}
			indexed++
		}
	}
	return indexed, failed, nil
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
