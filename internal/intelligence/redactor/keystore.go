package redactor

import (
	"context"
	"crypto/rand"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/leaselens/leaselens/pkg/errors"
)

const keySize = 32 // AES-256

const keyStoreSchema = `
CREATE TABLE IF NOT EXISTS pii_keys (
	document_id TEXT PRIMARY KEY,
	key         BLOB NOT NULL,
	created_at  TIMESTAMP NOT NULL
);`

// KeyStore persists per-document encryption keys in a sqlite database.
// Keys are created on first use and survive process restarts so that
// redaction mappings stay decryptable for the life of the document.
type KeyStore struct {
	db *sql.DB
}

// OpenKeyStore opens (creating if necessary) the key database at path.
func OpenKeyStore(path string) (*KeyStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeKeyStoreUnavailable, "create key store directory")
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeKeyStoreUnavailable, "open key store")
	}
	// sqlite tolerates a single writer only.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(keyStoreSchema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, errors.ErrCodeKeyStoreUnavailable, "initialize key store schema")
	}
	return &KeyStore{db: db}, nil
}

// GetOrCreate returns the key for documentID, generating and storing a
// fresh one inside a transaction when none exists yet.
func (s *KeyStore) GetOrCreate(ctx context.Context, documentID string) ([]byte, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeKeyStoreUnavailable, "begin key transaction")
	}
	defer tx.Rollback()

	var key []byte
	err = tx.QueryRowContext(ctx, `SELECT key FROM pii_keys WHERE document_id = ?`, documentID).Scan(&key)
	switch {
	case err == nil:
		return key, tx.Commit()
	case err != sql.ErrNoRows:
		return nil, errors.Wrap(err, errors.ErrCodeKeyStoreUnavailable, "query key")
	}

	key = make([]byte, keySize)
	if _, err := rand.Read(key); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeEncryptionFailed, "generate key")
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO pii_keys (document_id, key, created_at) VALUES (?, ?, ?)`,
		documentID, key, time.Now().UTC()); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeKeyStoreUnavailable, "store key")
	}
	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeKeyStoreUnavailable, "commit key")
	}
	return key, nil
}

// Get returns the key for documentID. A missing key is a hard error:
// without it the stored mapping can never be recovered.
func (s *KeyStore) Get(ctx context.Context, documentID string) ([]byte, error) {
	var key []byte
	err := s.db.QueryRowContext(ctx, `SELECT key FROM pii_keys WHERE document_id = ?`, documentID).Scan(&key)
	if err == sql.ErrNoRows {
		return nil, errors.Newf(errors.ErrCodeKeyNotFound, "no encryption key for document %s", documentID)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeKeyStoreUnavailable, "query key")
	}
	return key, nil
}

// Delete removes the key for documentID, making its mapping unreadable.
func (s *KeyStore) Delete(ctx context.Context, documentID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM pii_keys WHERE document_id = ?`, documentID); err != nil {
		return errors.Wrap(err, errors.ErrCodeKeyStoreUnavailable, "delete key")
	}
	return nil
}

// Close releases the underlying database handle.
func (s *KeyStore) Close() error {
	return s.db.Close()
}
