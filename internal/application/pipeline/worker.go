package pipeline

import (
	"context"
	"time"

	"github.com/leaselens/leaselens/internal/infrastructure/kafka"
	"github.com/leaselens/leaselens/internal/infrastructure/logging"
	"github.com/leaselens/leaselens/internal/infrastructure/metrics"
	"github.com/leaselens/leaselens/pkg/errors"
)

// Task event types carried on the analysis topic.
const (
	EventTaskAnalyze         = "task.analyze"
	EventTaskExtractMetadata = "task.extract_metadata"
)

// WorkerOptions tunes the task retry policy.
type WorkerOptions struct {
	// MaxRetries is the number of additional attempts after the first
	// failure.  Zero retries is valid.
	MaxRetries int

	// RetryBackoff is the wait before the first retry; subsequent retries
	// back off linearly (backoff, 2*backoff, ...).
	RetryBackoff time.Duration
}

// Worker dispatches consumed task envelopes to the orchestrator.  Its Handle
// method satisfies kafka.Handler; each daemon runs one or more consumers
// feeding it.
type Worker struct {
	orch    *Orchestrator
	metrics *metrics.Metrics
	log     logging.Logger

	maxRetries   int
	retryBackoff time.Duration
}

// NewWorker builds a Worker around the orchestrator.  m may be nil.
func NewWorker(orch *Orchestrator, m *metrics.Metrics, log logging.Logger, opts WorkerOptions) *Worker {
	if log == nil {
		log = logging.NewNopLogger()
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 5 * time.Second
	}
	return &Worker{
		orch:         orch,
		metrics:      m,
		log:          log.Named("worker"),
		maxRetries:   opts.MaxRetries,
		retryBackoff: opts.RetryBackoff,
	}
}

// Handle processes one task envelope.  Unknown event types are logged and
// committed.  Exhausted retries also commit: by then the orchestrator has
// already parked the document in a failed state, and redelivering the same
// task would just repeat the failure.
func (w *Worker) Handle(ctx context.Context, envelope *kafka.EventEnvelope) error {
	switch envelope.EventType {
	case EventTaskAnalyze, EventTaskExtractMetadata:
	default:
		w.log.Warn("ignoring unknown task type",
			logging.String("event_type", envelope.EventType),
			logging.String("event_id", envelope.EventID))
		return nil
	}

	// Poison payloads are committed, not redelivered.
	var task kafka.AnalyzeTaskPayload
	if err := envelope.DecodePayload(&task); err != nil {
		w.log.Error("dropping undecodable task payload",
			logging.String("event_id", envelope.EventID),
			logging.Err(err))
		return nil
	}
	if task.DocumentID == "" {
		w.log.Error("dropping task without document_id",
			logging.String("event_id", envelope.EventID))
		return nil
	}

	log := w.log.With(
		logging.String("document_id", task.DocumentID),
		logging.String("event_type", envelope.EventType))

	var lastErr error
	for attempt := 0; attempt <= w.maxRetries; attempt++ {
		if attempt > 0 {
			if w.metrics != nil {
				w.metrics.AnalysisTaskRetries.WithLabelValues(envelope.EventType).Inc()
			}
			wait := time.Duration(attempt) * w.retryBackoff
			log.Warn("retrying task",
				logging.Int("attempt", attempt),
				logging.Duration("backoff", wait),
				logging.Err(lastErr))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}

		lastErr = w.run(ctx, envelope.EventType, task)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// Validation-class failures will not succeed on retry.
		if errors.IsClientError(errors.GetCode(lastErr)) {
			break
		}
	}

	log.Error("task failed permanently", logging.Err(lastErr))
	return nil
}

func (w *Worker) run(ctx context.Context, eventType string, task kafka.AnalyzeTaskPayload) error {
	switch eventType {
	case EventTaskExtractMetadata:
		return w.orch.ExtractMetadata(ctx, task.DocumentID)
	default:
		return w.orch.Analyze(ctx, task.DocumentID, task.Metadata)
	}
}
