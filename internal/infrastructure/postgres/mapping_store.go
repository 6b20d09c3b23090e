package postgres

import (
	"context"
	goerrors "errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/leaselens/leaselens/internal/infrastructure/logging"
	"github.com/leaselens/leaselens/pkg/errors"
)

// MappingStore persists sealed redaction mappings.  The ciphertext is opaque
// here; internal/intelligence/redactor owns the keys and the sealing format.
type MappingStore struct {
	pool *pgxpool.Pool
	log  logging.Logger
}

// NewMappingStore builds a MappingStore on pool.
func NewMappingStore(pool *pgxpool.Pool, log logging.Logger) *MappingStore {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &MappingStore{pool: pool, log: log.Named("mapping_store")}
}

// Save upserts the sealed mapping for a document.
func (s *MappingStore) Save(ctx context.Context, documentID string, ciphertext []byte) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO redaction_mappings (document_id, ciphertext, created_at)
		VALUES ($1, $2, now())
		ON CONFLICT (document_id) DO UPDATE
		SET ciphertext = EXCLUDED.ciphertext, created_at = now()`,
		documentID, ciphertext)
	if err != nil {
		return errors.Wrapf(err, errors.ErrCodeDatabaseError, "save redaction mapping for %s", documentID)
	}
	return nil
}

// Get loads the sealed mapping.  Returns ErrCodeDocumentNotFound when the
// document has no stored mapping.
func (s *MappingStore) Get(ctx context.Context, documentID string) ([]byte, error) {
	var ciphertext []byte
	err := s.pool.QueryRow(ctx,
		`SELECT ciphertext FROM redaction_mappings WHERE document_id = $1`,
		documentID).Scan(&ciphertext)
	if goerrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.New(errors.ErrCodeDocumentNotFound, "no redaction mapping stored").
			WithDetailf("document=%s", documentID)
	}
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrCodeDatabaseError, "load redaction mapping for %s", documentID)
	}
	return ciphertext, nil
}

// Delete removes the sealed mapping, if any.
func (s *MappingStore) Delete(ctx context.Context, documentID string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM redaction_mappings WHERE document_id = $1`, documentID)
	if err != nil {
		return errors.Wrapf(err, errors.ErrCodeDatabaseError, "delete redaction mapping for %s", documentID)
	}
	return nil
}
