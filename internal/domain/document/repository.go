package document

import "context"

// ListFilter narrows List results.
type ListFilter struct {
	// Status restricts results to documents currently in the given status.
	// Empty means all statuses.
	Status Status

	// Limit bounds the number of rows returned; zero means no limit.
	Limit int
	// Offset skips rows for pagination.
	Offset int
}

// Repository is the persistence contract for documents.  Implementations live
// in internal/infrastructure/postgres.
type Repository interface {
	// Create persists a new document.  Returns ErrCodeDocumentAlreadyExists
	// when the id is already taken.
	Create(ctx context.Context, doc *Document) error

	// GetByID loads one document.  Returns ErrCodeDocumentNotFound when absent.
	GetByID(ctx context.Context, id string) (*Document, error)

	// Update persists all mutable fields of doc.
	Update(ctx context.Context, doc *Document) error

	// UpdateStatus persists only the status, progress, and error fields.
	// Used on the hot path of pipeline progress reporting.
	UpdateStatus(ctx context.Context, id string, status Status, progress int, errMsg string) error

	// List returns documents newest-first.
	List(ctx context.Context, filter ListFilter) ([]*Document, error)

	// Delete removes the document row.  Object storage cleanup is the
	// caller's responsibility.
	Delete(ctx context.Context, id string) error
}
