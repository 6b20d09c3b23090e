// Package kafka carries the asynchronous task and event traffic between the
// API server and the analysis worker.
package kafka

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/leaselens/leaselens/internal/domain/document"
	"github.com/leaselens/leaselens/pkg/errors"
)

const (
	// TopicDocumentAnalyze carries analysis tasks from the API server to
	// the worker.
	TopicDocumentAnalyze = "document.analyze"

	// TopicAnalysisCompleted carries terminal analysis outcomes, success
	// or failure, for downstream consumers.
	TopicAnalysisCompleted = "analysis.completed"
)

const schemaVersion = "1.0"

// EventEnvelope is the wire shape of every message on every topic.
type EventEnvelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	SchemaVersion string          `json:"schema_version"`
	Payload       json.RawMessage `json:"payload"`
}

// AnalyzeTaskPayload asks the worker to run the pipeline for one document.
type AnalyzeTaskPayload struct {
	DocumentID string                 `json:"document_id"`
	Metadata   document.LeaseMetadata `json:"metadata,omitempty"`
}

// AnalysisCompletedPayload reports a finished (or failed) analysis.
type AnalysisCompletedPayload struct {
	DocumentID string `json:"document_id"`
	Status     string `json:"status"`
	Score      int    `json:"score,omitempty"`
	Severity   string `json:"severity,omitempty"`
	Findings   int    `json:"findings,omitempty"`
	Error      string `json:"error,omitempty"`
}

// NewEnvelope wraps payload for publication.
func NewEnvelope(eventType, source string, payload interface{}) (*EventEnvelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "encode event payload")
	}
	return &EventEnvelope{
		EventID:       uuid.New().String(),
		EventType:     eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		SchemaVersion: schemaVersion,
		Payload:       data,
	}, nil
}

// DecodePayload unmarshals the envelope's payload into out.
func (e *EventEnvelope) DecodePayload(out interface{}) error {
	if err := json.Unmarshal(e.Payload, out); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "decode event payload")
	}
	return nil
}
