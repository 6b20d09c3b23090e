package analysis

import "context"

// Store persists finished analysis reports keyed by document id.  Both report
// shapes are written together so readers never observe one without the other.
type Store interface {
	// Save upserts the report pair for a document.
	Save(ctx context.Context, documentID string, report *Report, enhanced *EnhancedReport) error

	// Get loads the report pair.  Returns ErrCodeAnalysisNotFound when the
	// document has no completed analysis.
	Get(ctx context.Context, documentID string) (*Report, *EnhancedReport, error)

	// Delete removes the stored reports, if any.
	Delete(ctx context.Context, documentID string) error
}
