// Package pipeline is the application layer of the lease-analysis workflow:
// document intake, two-stage analysis orchestration, and document queries.
// HTTP handlers and the worker talk to this package, never to infrastructure
// directly.
package pipeline

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/leaselens/leaselens/internal/domain/analysis"
	"github.com/leaselens/leaselens/internal/domain/document"
	"github.com/leaselens/leaselens/internal/infrastructure/kafka"
	"github.com/leaselens/leaselens/internal/infrastructure/logging"
	"github.com/leaselens/leaselens/internal/infrastructure/metrics"
	"github.com/leaselens/leaselens/internal/infrastructure/pdfio"
	"github.com/leaselens/leaselens/internal/intelligence/redactor"
	"github.com/leaselens/leaselens/pkg/errors"
)

// ObjectStore is the slice of the minio store the pipeline uses.
type ObjectStore interface {
	PutDocument(ctx context.Context, documentID string, r io.Reader, size int64) (string, error)
	GetDocument(ctx context.Context, objectKey string) (io.ReadCloser, error)
	PutText(ctx context.Context, documentID, text string) (string, error)
	GetText(ctx context.Context, objectKey string) (string, error)
	RemoveDocument(ctx context.Context, objectKey, textObjectKey string) error
	PresignedDocumentURL(ctx context.Context, objectKey string) (string, error)
}

// MappingStore persists encrypted redaction mappings per document.
type MappingStore interface {
	Save(ctx context.Context, documentID string, ciphertext []byte) error
	Get(ctx context.Context, documentID string) ([]byte, error)
	Delete(ctx context.Context, documentID string) error
}

// Dispatcher hands an analysis task to the background worker.  The kafka
// producer backs it in distributed deployments; InProcessDispatcher runs the
// orchestrator in a goroutine when kafka is disabled.
type Dispatcher interface {
	DispatchAnalyze(ctx context.Context, documentID string, metadata document.LeaseMetadata) error
	DispatchExtractMetadata(ctx context.Context, documentID string) error
}

// UploadResult is returned from intake: the created record plus the redaction
// counts the client shows immediately.
type UploadResult struct {
	Document  *document.Document        `json:"document"`
	Redaction document.RedactionSummary `json:"redaction"`
}

// DocumentDetail bundles a document with its stored reports when analysis has
// completed.
type DocumentDetail struct {
	Document *document.Document       `json:"document"`
	Report   *analysis.Report         `json:"report,omitempty"`
	Enhanced *analysis.EnhancedReport `json:"enhanced,omitempty"`
	PDFURL   string                   `json:"pdf_url,omitempty"`
}

// ServiceOptions carries the intake limits.
type ServiceOptions struct {
	// MaxUploadBytes rejects larger files before any storage write.  Zero
	// disables the check.
	MaxUploadBytes int64
}

// Service implements document intake and the request-side of analysis.
type Service struct {
	docs       document.Repository
	reports    analysis.Store
	objects    ObjectStore
	mappings   MappingStore
	redactor   *redactor.Redactor
	vault      *redactor.Vault
	dispatcher Dispatcher
	metrics    *metrics.Metrics
	log        logging.Logger

	maxUploadBytes int64

	// Seams over file-based PDF inspection, overridden in tests.
	validatePDF func(path string) error
	pageCount   func(path string) (int, error)
	extractText func(path string, log logging.Logger) (string, error)
}

// NewService wires the intake service.  metrics may be nil.
func NewService(
	docs document.Repository,
	reports analysis.Store,
	objects ObjectStore,
	mappings MappingStore,
	red *redactor.Redactor,
	vault *redactor.Vault,
	dispatcher Dispatcher,
	m *metrics.Metrics,
	log logging.Logger,
	opts ServiceOptions,
) *Service {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Service{
		docs:           docs,
		reports:        reports,
		objects:        objects,
		mappings:       mappings,
		redactor:       red,
		vault:          vault,
		dispatcher:     dispatcher,
		metrics:        m,
		log:            log.Named("pipeline"),
		maxUploadBytes: opts.MaxUploadBytes,
		validatePDF:    pdfio.Validate,
		pageCount:      pdfio.PageCount,
		extractText:    extractDocumentText,
	}
}

func extractDocumentText(path string, log logging.Logger) (string, error) {
	doc, err := pdfio.Open(path, log)
	if err != nil {
		return "", err
	}
	defer doc.Close()
	return doc.Text()
}

// Upload ingests one lease PDF: validate, store the original, redact the
// extracted text, store the redacted text, seal the PII mapping, and create
// the document record.  Metadata extraction is dispatched in the background
// so the upload response returns as soon as intake is durable.
func (s *Service) Upload(ctx context.Context, filename string, r io.Reader, size int64) (*UploadResult, error) {
	started := time.Now()
	result, err := s.upload(ctx, filename, r, size)
	if s.metrics != nil {
		status := "success"
		if err != nil {
			status = "failure"
		}
		s.metrics.DocumentsUploadedTotal.WithLabelValues(status).Inc()
		s.metrics.RecordStage("upload", time.Since(started), err)
	}
	return result, err
}

func (s *Service) upload(ctx context.Context, filename string, r io.Reader, size int64) (*UploadResult, error) {
	if !strings.HasSuffix(strings.ToLower(filename), ".pdf") {
		return nil, errors.New(errors.ErrCodeDocumentNotPDF, "only PDF uploads are supported").
			WithDetailf("filename=%s", filename)
	}
	if s.maxUploadBytes > 0 && size > s.maxUploadBytes {
		return nil, errors.Newf(errors.ErrCodeDocumentTooLarge, "upload of %d bytes exceeds the %d byte limit", size, s.maxUploadBytes)
	}

	path, cleanup, err := spool(r, s.maxUploadBytes)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	if err := s.validatePDF(path); err != nil {
		return nil, err
	}
	pages, err := s.pageCount(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "reopen spooled upload")
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "stat spooled upload")
	}

	doc := document.New(filename, "", info.Size())
	doc.PageCount = pages

	objectKey, err := s.objects.PutDocument(ctx, doc.ID, f, info.Size())
	if err != nil {
		return nil, err
	}
	doc.ObjectKey = objectKey

	text, err := s.extractText(path, s.log)
	if err != nil {
		s.removeObjects(ctx, doc)
		return nil, err
	}

	redacted := s.redactor.Redact(text)
	doc.Redaction = document.RedactionSummary(redacted.Summary)
	if s.metrics != nil {
		s.metrics.RecordRedactions(redacted.Summary)
		s.metrics.DocumentSizeBytes.Observe(float64(info.Size()))
	}

	textKey, err := s.objects.PutText(ctx, doc.ID, redacted.Text)
	if err != nil {
		s.removeObjects(ctx, doc)
		return nil, err
	}
	doc.TextObjectKey = textKey

	// Sealing the mapping is best-effort: intake proceeds with a recorded
	// warning rather than blocking the upload on the vault.
	if sealed, err := s.vault.EncryptMapping(ctx, doc.ID, redacted.Mapping); err != nil {
		s.log.Warn("redaction mapping not sealed",
			logging.String("document_id", doc.ID),
			logging.Err(err))
		doc.AddWarning("redaction mapping could not be sealed; original values are unrecoverable")
	} else if err := s.mappings.Save(ctx, doc.ID, sealed); err != nil {
		s.log.Warn("redaction mapping not persisted",
			logging.String("document_id", doc.ID),
			logging.Err(err))
		doc.AddWarning("redaction mapping could not be persisted; original values are unrecoverable")
	}

	if err := s.docs.Create(ctx, doc); err != nil {
		s.removeObjects(ctx, doc)
		return nil, err
	}

	s.log.Info("document uploaded",
		logging.String("document_id", doc.ID),
		logging.String("filename", filename),
		logging.Int("pages", pages),
		logging.Int("redactions", doc.Redaction.Total()))

	if err := s.dispatcher.DispatchExtractMetadata(ctx, doc.ID); err != nil {
		// Intake is durable; metadata extraction can be re-requested.
		s.log.Warn("metadata extraction dispatch failed",
			logging.String("document_id", doc.ID),
			logging.Err(err))
		doc.AddWarning("metadata extraction could not be scheduled")
		if uerr := s.docs.Update(ctx, doc); uerr != nil {
			s.log.Warn("warning not persisted", logging.Err(uerr))
		}
	}

	return &UploadResult{Document: doc, Redaction: redacted.Summary}, nil
}

// Analyze requests stage-2 analysis.  Documents already completed or in
// flight short-circuit and return their current state unchanged; otherwise
// the document moves to processing at 5% and the task is dispatched.
func (s *Service) Analyze(ctx context.Context, documentID string, metadata document.LeaseMetadata) (*document.Document, error) {
	doc, err := s.docs.GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}

	if doc.Status == document.StatusCompleted || doc.Status == document.StatusProcessing ||
		doc.Status == document.StatusExtractingMetadata {
		s.log.Info("analysis request short-circuited",
			logging.String("document_id", doc.ID),
			logging.String("status", doc.Status.String()))
		return doc, nil
	}

	if err := doc.Transition(document.StatusProcessing, ""); err != nil {
		return nil, err
	}
	doc.SetProgress(5)
	if err := s.docs.UpdateStatus(ctx, doc.ID, doc.Status, doc.Progress, ""); err != nil {
		return nil, err
	}

	if err := s.dispatcher.DispatchAnalyze(ctx, doc.ID, metadata); err != nil {
		// Roll the status back so the request can be retried.
		if rerr := s.docs.UpdateStatus(ctx, doc.ID, document.StatusFailed, 0, "analysis dispatch failed"); rerr != nil {
			s.log.Error("dispatch rollback failed",
				logging.String("document_id", doc.ID),
				logging.Err(rerr))
		}
		return nil, err
	}
	return doc, nil
}

// Status returns the live processing state of one document.
func (s *Service) Status(ctx context.Context, documentID string) (*document.Document, error) {
	return s.docs.GetByID(ctx, documentID)
}

// Get returns the document and, when analysis has completed, its stored
// reports and a presigned link to the original PDF.
func (s *Service) Get(ctx context.Context, documentID string) (*DocumentDetail, error) {
	doc, err := s.docs.GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	detail := &DocumentDetail{Document: doc}

	if doc.Status == document.StatusCompleted {
		report, enhanced, err := s.reports.Get(ctx, doc.ID)
		if err != nil && !errors.IsCode(err, errors.ErrCodeAnalysisNotFound) {
			return nil, err
		}
		detail.Report = report
		detail.Enhanced = enhanced
	}

	if doc.ObjectKey != "" {
		url, err := s.objects.PresignedDocumentURL(ctx, doc.ObjectKey)
		if err != nil {
			s.log.Warn("presigned URL generation failed",
				logging.String("document_id", doc.ID),
				logging.Err(err))
		} else {
			detail.PDFURL = url
		}
	}
	return detail, nil
}

// List returns documents newest-first.
func (s *Service) List(ctx context.Context, filter document.ListFilter) ([]*document.Document, error) {
	return s.docs.List(ctx, filter)
}

// Delete removes a document, its stored objects, reports, and sealed mapping.
// Object and mapping removal failures are logged, not fatal: the record is the
// source of truth and it goes last only after the objects are gone.
func (s *Service) Delete(ctx context.Context, documentID string) error {
	doc, err := s.docs.GetByID(ctx, documentID)
	if err != nil {
		return err
	}

	if err := s.objects.RemoveDocument(ctx, doc.ObjectKey, doc.TextObjectKey); err != nil {
		return err
	}
	if err := s.reports.Delete(ctx, doc.ID); err != nil {
		return err
	}
	if err := s.mappings.Delete(ctx, doc.ID); err != nil {
		return err
	}
	return s.docs.Delete(ctx, doc.ID)
}

func (s *Service) removeObjects(ctx context.Context, doc *document.Document) {
	if err := s.objects.RemoveDocument(ctx, doc.ObjectKey, doc.TextObjectKey); err != nil {
		s.log.Warn("orphaned objects not removed",
			logging.String("document_id", doc.ID),
			logging.Err(err))
	}
}

// spool copies an upload to a temp file so it can be validated, measured, and
// read twice.  maxBytes of zero means unlimited.
func spool(r io.Reader, maxBytes int64) (string, func(), error) {
	f, err := os.CreateTemp("", "leaselens-upload-*.pdf")
	if err != nil {
		return "", nil, errors.Wrap(err, errors.ErrCodeInternal, "create spool file")
	}
	cleanup := func() { os.Remove(f.Name()) }

	src := r
	if maxBytes > 0 {
		src = io.LimitReader(r, maxBytes+1)
	}
	n, err := io.Copy(f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		cleanup()
		return "", nil, errors.Wrap(err, errors.ErrCodeInternal, "spool upload")
	}
	if maxBytes > 0 && n > maxBytes {
		cleanup()
		return "", nil, errors.Newf(errors.ErrCodeDocumentTooLarge, "upload exceeds the %d byte limit", maxBytes)
	}
	return f.Name(), cleanup, nil
}

// KafkaDispatcher publishes analysis tasks for the worker fleet.
type KafkaDispatcher struct {
	events Publisher
}

// NewKafkaDispatcher wraps a producer as a Dispatcher.
func NewKafkaDispatcher(events Publisher) *KafkaDispatcher {
	return &KafkaDispatcher{events: events}
}

// DispatchAnalyze publishes a stage-2 task keyed by document id.
func (d *KafkaDispatcher) DispatchAnalyze(ctx context.Context, documentID string, metadata document.LeaseMetadata) error {
	return d.events.Publish(ctx, kafka.TopicDocumentAnalyze, documentID, EventTaskAnalyze, kafka.AnalyzeTaskPayload{
		DocumentID: documentID,
		Metadata:   metadata,
	})
}

// DispatchExtractMetadata publishes a stage-1 task keyed by document id.
func (d *KafkaDispatcher) DispatchExtractMetadata(ctx context.Context, documentID string) error {
	return d.events.Publish(ctx, kafka.TopicDocumentAnalyze, documentID, EventTaskExtractMetadata, kafka.AnalyzeTaskPayload{
		DocumentID: documentID,
	})
}

// InProcessDispatcher runs pipeline stages in goroutines for single-binary
// deployments with kafka disabled.  Runs detach from the request context.
type InProcessDispatcher struct {
	orchestrator *Orchestrator
	log          logging.Logger
}

// NewInProcessDispatcher builds the goroutine-backed dispatcher.
func NewInProcessDispatcher(orchestrator *Orchestrator, log logging.Logger) *InProcessDispatcher {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &InProcessDispatcher{orchestrator: orchestrator, log: log.Named("dispatcher")}
}

// DispatchAnalyze runs stage 2 in the background.
func (d *InProcessDispatcher) DispatchAnalyze(ctx context.Context, documentID string, metadata document.LeaseMetadata) error {
	go func() {
		if err := d.orchestrator.Analyze(context.WithoutCancel(ctx), documentID, metadata); err != nil {
			d.log.Error("background analysis failed",
				logging.String("document_id", documentID),
				logging.Err(err))
		}
	}()
	return nil
}

// DispatchExtractMetadata runs stage 1 in the background.
func (d *InProcessDispatcher) DispatchExtractMetadata(ctx context.Context, documentID string) error {
	go func() {
		if err := d.orchestrator.ExtractMetadata(context.WithoutCancel(ctx), documentID); err != nil {
			d.log.Error("background metadata extraction failed",
				logging.String("document_id", documentID),
				logging.Err(err))
		}
	}()
	return nil
}
