package postgres

import (
	"context"
	"encoding/json"
	goerrors "errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/leaselens/leaselens/internal/domain/document"
	"github.com/leaselens/leaselens/internal/infrastructure/logging"
	"github.com/leaselens/leaselens/pkg/errors"
)

// pgUniqueViolation is the SQLSTATE class for duplicate-key errors.
const pgUniqueViolation = "23505"

// DocumentRepository is the pgx implementation of document.Repository.
type DocumentRepository struct {
	pool *pgxpool.Pool
	log  logging.Logger
}

// NewDocumentRepository constructs a DocumentRepository over pool.
func NewDocumentRepository(pool *pgxpool.Pool, log logging.Logger) *DocumentRepository {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &DocumentRepository{pool: pool, log: log.Named("document_repo")}
}

const documentColumns = `
	id, filename, object_key, text_object_key, size_bytes, page_count,
	status, progress, error, warnings, metadata, redaction,
	created_at, updated_at`

// Create persists a new document row.
func (r *DocumentRepository) Create(ctx context.Context, doc *document.Document) error {
	warnings, metadata, redaction, err := marshalDocumentJSON(doc)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO documents (`+documentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		doc.ID, doc.Filename, doc.ObjectKey, doc.TextObjectKey,
		doc.SizeBytes, doc.PageCount,
		doc.Status.String(), doc.Progress, doc.Error,
		warnings, metadata, redaction,
		doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if goerrors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return errors.Wrapf(err, errors.ErrCodeDocumentAlreadyExists, "document %s already exists", doc.ID)
		}
		return errors.Wrapf(err, errors.ErrCodeDatabaseError, "insert document %s", doc.ID)
	}

	r.log.Debug("document created",
		logging.String("document_id", doc.ID),
		logging.String("filename", doc.Filename))
	return nil
}

// GetByID loads one document.
func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*document.Document, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id)

	doc, err := scanDocument(row)
	if err != nil {
		if goerrors.Is(err, pgx.ErrNoRows) {
			return nil, errors.Newf(errors.ErrCodeDocumentNotFound, "document %s not found", id)
		}
		return nil, errors.Wrapf(err, errors.ErrCodeDatabaseError, "load document %s", id)
	}
	return doc, nil
}

// Update persists all mutable fields of doc.
func (r *DocumentRepository) Update(ctx context.Context, doc *document.Document) error {
	warnings, metadata, redaction, err := marshalDocumentJSON(doc)
	if err != nil {
		return err
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE documents SET
			filename = $2, object_key = $3, text_object_key = $4,
			size_bytes = $5, page_count = $6,
			status = $7, progress = $8, error = $9,
			warnings = $10, metadata = $11, redaction = $12,
			updated_at = $13
		WHERE id = $1`,
		doc.ID, doc.Filename, doc.ObjectKey, doc.TextObjectKey,
		doc.SizeBytes, doc.PageCount,
		doc.Status.String(), doc.Progress, doc.Error,
		warnings, metadata, redaction,
		doc.UpdatedAt,
	)
	if err != nil {
		return errors.Wrapf(err, errors.ErrCodeDatabaseError, "update document %s", doc.ID)
	}
	if tag.RowsAffected() == 0 {
		return errors.Newf(errors.ErrCodeDocumentNotFound, "document %s not found", doc.ID)
	}
	return nil
}

// UpdateStatus persists only the lifecycle fields.  This is the pipeline's
// progress-reporting hot path.
func (r *DocumentRepository) UpdateStatus(ctx context.Context, id string, status document.Status, progress int, errMsg string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE documents
		SET status = $2, progress = $3, error = $4, updated_at = now()
		WHERE id = $1`,
		id, status.String(), progress, errMsg,
	)
	if err != nil {
		return errors.Wrapf(err, errors.ErrCodeDatabaseError, "update status of document %s", id)
	}
	if tag.RowsAffected() == 0 {
		return errors.Newf(errors.ErrCodeDocumentNotFound, "document %s not found", id)
	}
	return nil
}

// List returns documents newest-first, optionally filtered by status.
func (r *DocumentRepository) List(ctx context.Context, filter document.ListFilter) ([]*document.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents`
	args := []interface{}{}
	if filter.Status != "" {
		query += ` WHERE status = $1`
		args = append(args, filter.Status.String())
	}
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += ` LIMIT $` + strconv.Itoa(len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "list documents")
	}
	defer rows.Close()

	var docs []*document.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "scan document row")
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "iterate document rows")
	}
	return docs, nil
}

// Delete removes the document row.  Reports cascade via the schema.
func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return errors.Wrapf(err, errors.ErrCodeDatabaseError, "delete document %s", id)
	}
	if tag.RowsAffected() == 0 {
		return errors.Newf(errors.ErrCodeDocumentNotFound, "document %s not found", id)
	}
	return nil
}

func marshalDocumentJSON(doc *document.Document) (warnings, metadata, redaction []byte, err error) {
	if len(doc.Warnings) > 0 {
		if warnings, err = json.Marshal(doc.Warnings); err != nil {
			return nil, nil, nil, errors.Wrap(err, errors.ErrCodeSerialization, "encode warnings")
		}
	}
	if doc.Metadata != nil {
		if metadata, err = json.Marshal(doc.Metadata); err != nil {
			return nil, nil, nil, errors.Wrap(err, errors.ErrCodeSerialization, "encode metadata")
		}
	}
	if len(doc.Redaction) > 0 {
		if redaction, err = json.Marshal(doc.Redaction); err != nil {
			return nil, nil, nil, errors.Wrap(err, errors.ErrCodeSerialization, "encode redaction summary")
		}
	}
	return warnings, metadata, redaction, nil
}

func scanDocument(row pgx.Row) (*document.Document, error) {
	var (
		doc       document.Document
		status    string
		warnings  []byte
		metadata  []byte
		redaction []byte
	)
	err := row.Scan(
		&doc.ID, &doc.Filename, &doc.ObjectKey, &doc.TextObjectKey,
		&doc.SizeBytes, &doc.PageCount,
		&status, &doc.Progress, &doc.Error,
		&warnings, &metadata, &redaction,
		&doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	doc.Status = document.Status(status)

	if len(warnings) > 0 {
		if err := json.Unmarshal(warnings, &doc.Warnings); err != nil {
			return nil, err
		}
	}
	if len(metadata) > 0 {
		meta := document.LeaseMetadata{}
		if err := json.Unmarshal(metadata, &meta); err != nil {
			return nil, err
		}
		doc.Metadata = &meta
	}
	if len(redaction) > 0 {
		if err := json.Unmarshal(redaction, &doc.Redaction); err != nil {
			return nil, err
		}
	}
	return &doc, nil
}
