package document

import (
	"time"

	"github.com/google/uuid"
)

// BaseEvent carries the fields shared by every document lifecycle event.
type BaseEvent struct {
	ID        string    `json:"event_id"`
	Timestamp time.Time `json:"occurred_at"`
	AggID     string    `json:"aggregate_id"`
}

func NewBaseEvent(aggID string) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		AggID:     aggID,
	}
}

func (e BaseEvent) EventID() string { return e.ID }

func (e BaseEvent) OccurredAt() time.Time { return e.Timestamp }

func (e BaseEvent) AggregateID() string { return e.AggID }

type UploadedEvent struct {
	BaseEvent
	Filename  string `json:"filename"`
	SizeBytes int64  `json:"size_bytes"`
	PageCount int    `json:"page_count"`
	Redacted  int    `json:"redacted_instances"`
}

func NewUploadedEvent(d *Document) *UploadedEvent {
	return &UploadedEvent{
		BaseEvent: NewBaseEvent(d.ID),
		Filename:  d.Filename,
		SizeBytes: d.SizeBytes,
		PageCount: d.PageCount,
		Redacted:  d.Redaction.Total(),
	}
}

type MetadataExtractedEvent struct {
	BaseEvent
	Status Status `json:"status"`
}

func NewMetadataExtractedEvent(d *Document) *MetadataExtractedEvent {
	return &MetadataExtractedEvent{
		BaseEvent: NewBaseEvent(d.ID),
		Status:    d.Status,
	}
}

type AnalysisCompletedEvent struct {
	BaseEvent
	Score    int    `json:"score"`
	Severity string `json:"severity"`
	Findings int    `json:"findings"`
}

func NewAnalysisCompletedEvent(id string, score int, severity string, findings int) *AnalysisCompletedEvent {
	return &AnalysisCompletedEvent{
		BaseEvent: NewBaseEvent(id),
		Score:     score,
		Severity:  severity,
		Findings:  findings,
	}
}

type AnalysisFailedEvent struct {
	BaseEvent
	Stage  string `json:"stage"`
	Reason string `json:"reason"`
}

func NewAnalysisFailedEvent(id, stage, reason string) *AnalysisFailedEvent {
	return &AnalysisFailedEvent{
		BaseEvent: NewBaseEvent(id),
		Stage:     stage,
		Reason:    reason,
	}
}
