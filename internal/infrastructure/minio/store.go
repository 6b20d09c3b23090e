// Package minio stores lease artifacts in S3-compatible object storage:
// original PDFs in the document bucket and redacted plain text in the text
// bucket.
package minio

import (
	"bytes"
	"context"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/leaselens/leaselens/internal/config"
	"github.com/leaselens/leaselens/internal/infrastructure/logging"
	"github.com/leaselens/leaselens/pkg/errors"
)

// objectAPI abstracts the minio client surface the store uses, for tests.
type objectAPI interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucket, object string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	GetObject(ctx context.Context, bucket, object string, opts minio.GetObjectOptions) (*minio.Object, error)
	RemoveObject(ctx context.Context, bucket, object string, opts minio.RemoveObjectOptions) error
	PresignedGetObject(ctx context.Context, bucket, object string, expiry time.Duration, params url.Values) (*url.URL, error)
}

// ObjectStore is the platform's object-storage facade.
type ObjectStore struct {
	api            objectAPI
	documentBucket string
	textBucket     string
	presignExpiry  time.Duration
	log            logging.Logger
}

// NewObjectStore connects to MinIO and ensures both buckets exist.
func NewObjectStore(ctx context.Context, cfg config.MinIOConfig, log logging.Logger) (*ObjectStore, error) {
	if log == nil {
		log = logging.NewNopLogger()
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStorageError, "create minio client")
	}

	store := &ObjectStore{
		api:            client,
		documentBucket: cfg.DocumentBucket,
		textBucket:     cfg.TextBucket,
		presignExpiry:  cfg.PresignExpiry,
		log:            log.Named("object_store"),
	}
	if store.presignExpiry <= 0 {
		store.presignExpiry = time.Hour
	}

	for _, bucket := range []string{cfg.DocumentBucket, cfg.TextBucket} {
		if err := store.ensureBucket(ctx, bucket); err != nil {
			return nil, err
		}
	}
	return store, nil
}

func (s *ObjectStore) ensureBucket(ctx context.Context, bucket string) error {
	exists, err := s.api.BucketExists(ctx, bucket)
	if err != nil {
		return errors.Wrapf(err, errors.ErrCodeStorageError, "check bucket %s", bucket)
	}
	if exists {
		return nil
	}
	if err := s.api.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
		return errors.Wrapf(err, errors.ErrCodeStorageError, "create bucket %s", bucket)
	}
	s.log.Info("bucket created", logging.String("bucket", bucket))
	return nil
}

// PutDocument stores an original PDF and returns its object key.
func (s *ObjectStore) PutDocument(ctx context.Context, documentID string, r io.Reader, size int64) (string, error) {
	key := "documents/" + documentID + ".pdf"
	_, err := s.api.PutObject(ctx, s.documentBucket, key, r, size, minio.PutObjectOptions{
		ContentType: "application/pdf",
	})
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrCodeStorageError, "store document %s", documentID)
	}
	return key, nil
}

// GetDocument streams the original PDF.  The caller closes the reader.
func (s *ObjectStore) GetDocument(ctx context.Context, objectKey string) (io.ReadCloser, error) {
	obj, err := s.api.GetObject(ctx, s.documentBucket, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrCodeStorageError, "load object %s", objectKey)
	}
	return obj, nil
}

// PutText stores the redacted plain text and returns its object key.
func (s *ObjectStore) PutText(ctx context.Context, documentID, text string) (string, error) {
	key := "text/" + documentID + ".txt"
	reader := bytes.NewReader([]byte(text))
	_, err := s.api.PutObject(ctx, s.textBucket, key, reader, int64(reader.Len()), minio.PutObjectOptions{
		ContentType: "text/plain; charset=utf-8",
	})
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrCodeStorageError, "store text for document %s", documentID)
	}
	return key, nil
}

// GetText loads the redacted plain text.
func (s *ObjectStore) GetText(ctx context.Context, objectKey string) (string, error) {
	obj, err := s.api.GetObject(ctx, s.textBucket, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrCodeStorageError, "load object %s", objectKey)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrCodeStorageError, "read object %s", objectKey)
	}
	return string(data), nil
}

// RemoveDocument deletes both stored artifacts of a document.  Empty keys
// are skipped so partially-ingested documents still clean up.
func (s *ObjectStore) RemoveDocument(ctx context.Context, objectKey, textObjectKey string) error {
	if objectKey != "" {
		if err := s.api.RemoveObject(ctx, s.documentBucket, objectKey, minio.RemoveObjectOptions{}); err != nil {
			return errors.Wrapf(err, errors.ErrCodeStorageError, "remove object %s", objectKey)
		}
	}
	if textObjectKey != "" {
		if err := s.api.RemoveObject(ctx, s.textBucket, textObjectKey, minio.RemoveObjectOptions{}); err != nil {
			return errors.Wrapf(err, errors.ErrCodeStorageError, "remove object %s", textObjectKey)
		}
	}
	return nil
}

// PresignedDocumentURL returns a time-limited download URL for the original
// PDF, used as the report's pdf_url.
func (s *ObjectStore) PresignedDocumentURL(ctx context.Context, objectKey string) (string, error) {
	u, err := s.api.PresignedGetObject(ctx, s.documentBucket, objectKey, s.presignExpiry, nil)
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrCodeStorageError, "presign object %s", objectKey)
	}
	return u.String(), nil
}
