package pipeline

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/leaselens/leaselens/internal/domain/analysis"
	"github.com/leaselens/leaselens/internal/domain/document"
	"github.com/leaselens/leaselens/internal/domain/statute"
	"github.com/leaselens/leaselens/internal/infrastructure/kafka"
	"github.com/leaselens/leaselens/internal/infrastructure/logging"
	"github.com/leaselens/leaselens/internal/infrastructure/metrics"
	"github.com/leaselens/leaselens/internal/infrastructure/pdfio"
	"github.com/leaselens/leaselens/internal/intelligence/chunker"
	"github.com/leaselens/leaselens/internal/intelligence/locator"
	"github.com/leaselens/leaselens/pkg/errors"
)

// Progress milestones.  Stage 1 owns 10 and 20; stage 2 walks 30 through 85
// across the chunk loop and lands on 100 at completion.
const (
	progressExtracting = 10
	progressExtracted  = 20
	progressTextLoaded = 30
	progressChunked    = 40
	progressChunksDone = 85
)

// MetadataExtractor pulls lease terms out of document text.
type MetadataExtractor interface {
	ExtractMetadata(ctx context.Context, text string) (document.LeaseMetadata, error)
}

// ChunkAnalyzer produces findings for one chunk given its statute context.
type ChunkAnalyzer interface {
	AnalyzeChunk(ctx context.Context, chunk chunker.Chunk, laws []statute.Section) (analysis.ChunkAnalysis, error)
}

// Lock serializes analysis runs per document id.
type Lock interface {
	Acquire(ctx context.Context, documentID string) (token string, acquired bool, err error)
	Release(ctx context.Context, documentID, token string) error
}

// Publisher emits lifecycle events.  The kafka producer implements it; a nil
// Publisher disables eventing.
type Publisher interface {
	Publish(ctx context.Context, topic, key, eventType string, payload interface{}) error
}

// LocatorFactory opens a highlight locator over a local copy of the original
// PDF.  The returned cleanup must always be called.
type LocatorFactory func(path string, log logging.Logger) (analysis.Locator, func(), error)

func openPDFLocator(path string, log logging.Logger) (analysis.Locator, func(), error) {
	doc, err := pdfio.Open(path, log)
	if err != nil {
		return nil, nil, err
	}
	return locator.New(doc, log), func() { doc.Close() }, nil
}

// OrchestratorOptions bundles the optional knobs of an Orchestrator.
type OrchestratorOptions struct {
	// SkipMetadataExtraction replaces stage 1's model call with empty
	// placeholder metadata, for deployments where callers always confirm
	// lease terms by hand.
	SkipMetadataExtraction bool

	// TopK statute sections retrieved per chunk.
	TopK int

	// ChunkConcurrency above 1 analyzes chunks in a bounded pool instead of
	// sequentially.  Result ordering is preserved either way.
	ChunkConcurrency int

	// NewLocator overrides how highlight locators are built, for tests.
	NewLocator LocatorFactory
}

// Orchestrator drives the two-stage analysis workflow: metadata extraction,
// then chunked RAG analysis consolidated into the stored report pair.
//
// All coordination happens through the document repository; the orchestrator
// holds no per-document state, so runs for different documents proceed
// independently.
type Orchestrator struct {
	docs      document.Repository
	reports   analysis.Store
	objects   ObjectStore
	extractor MetadataExtractor
	analyzer  ChunkAnalyzer
	chunker   *chunker.Chunker
	searcher  statute.Searcher
	lock      Lock
	events    Publisher
	metrics   *metrics.Metrics
	log       logging.Logger

	skipMetadata     bool
	topK             int
	chunkConcurrency int
	newLocator       LocatorFactory
}

// NewOrchestrator wires the stage-2 pipeline.  events and metrics may be nil.
func NewOrchestrator(
	docs document.Repository,
	reports analysis.Store,
	objects ObjectStore,
	extractor MetadataExtractor,
	chunkAnalyzer ChunkAnalyzer,
	ch *chunker.Chunker,
	searcher statute.Searcher,
	lock Lock,
	events Publisher,
	m *metrics.Metrics,
	log logging.Logger,
	opts OrchestratorOptions,
) *Orchestrator {
	if log == nil {
		log = logging.NewNopLogger()
	}
	if opts.TopK <= 0 {
		opts.TopK = 5
	}
	if opts.ChunkConcurrency < 1 {
		opts.ChunkConcurrency = 1
	}
	if opts.NewLocator == nil {
		opts.NewLocator = openPDFLocator
	}
	return &Orchestrator{
		docs:             docs,
		reports:          reports,
		objects:          objects,
		extractor:        extractor,
		analyzer:         chunkAnalyzer,
		chunker:          ch,
		searcher:         searcher,
		lock:             lock,
		events:           events,
		metrics:          m,
		log:              log.Named("orchestrator"),
		skipMetadata:     opts.SkipMetadataExtraction,
		topK:             opts.TopK,
		chunkConcurrency: opts.ChunkConcurrency,
		newLocator:       opts.NewLocator,
	}
}

// ExtractMetadata runs stage 1 for a document: load the redacted text, pull
// the key lease terms from its first chunk, and persist them.  Failure moves
// the document to metadata_extraction_failed; analysis stays requestable with
// caller-supplied metadata.
func (o *Orchestrator) ExtractMetadata(ctx context.Context, documentID string) error {
	started := time.Now()
	doc, err := o.docs.GetByID(ctx, documentID)
	if err != nil {
		return err
	}

	if err := o.transition(ctx, doc, document.StatusExtractingMetadata, "", progressExtracting); err != nil {
		return err
	}

	meta, err := o.extractMetadata(ctx, doc)
	if o.metrics != nil {
		o.metrics.RecordStage("extract_metadata", time.Since(started), err)
	}
	if err != nil {
		o.log.Error("metadata extraction failed",
			logging.String("document_id", doc.ID),
			logging.Err(err))
		if terr := o.transition(ctx, doc, document.StatusMetadataExtractionFailed, errors.FullMessage(err), 0); terr != nil {
			return terr
		}
		return err
	}

	doc.SetMetadata(meta)
	if err := doc.Transition(document.StatusMetadataExtracted, ""); err != nil {
		return err
	}
	doc.SetProgress(progressExtracted)
	if err := o.docs.Update(ctx, doc); err != nil {
		return err
	}
	o.publish(ctx, kafka.TopicAnalysisCompleted, doc.ID, "document.metadata_extracted",
		document.NewMetadataExtractedEvent(doc))
	return nil
}

func (o *Orchestrator) extractMetadata(ctx context.Context, doc *document.Document) (document.LeaseMetadata, error) {
	if o.skipMetadata {
		o.log.Info("metadata extraction skipped by configuration",
			logging.String("document_id", doc.ID))
		return document.LeaseMetadata{}, nil
	}

	text, err := o.objects.GetText(ctx, doc.TextObjectKey)
	if err != nil {
		return document.LeaseMetadata{}, err
	}
	chunks := o.chunker.Split(text)
	if len(chunks) == 0 {
		return document.LeaseMetadata{}, errors.New(errors.ErrCodePDFNoText, "document has no extractable text")
	}
	// Lease terms front-load into the first pages; one chunk is enough.
	return o.extractor.ExtractMetadata(ctx, chunks[0].Text)
}

// Analyze runs stage 2: chunk the redacted text, analyze each chunk against
// retrieved statutes, consolidate, and store the report pair.  override
// fields win over stage-1 metadata field by field.
//
// A document already completed short-circuits; a run already holding the
// per-document lock makes this call a no-op.
func (o *Orchestrator) Analyze(ctx context.Context, documentID string, override document.LeaseMetadata) error {
	token, acquired, err := o.lock.Acquire(ctx, documentID)
	if err != nil {
		return err
	}
	if !acquired {
		o.log.Warn("analysis already in flight, skipping duplicate run",
			logging.String("document_id", documentID))
		return nil
	}
	defer func() {
		if rerr := o.lock.Release(context.WithoutCancel(ctx), documentID, token); rerr != nil {
			o.log.Warn("analysis lock release failed",
				logging.String("document_id", documentID),
				logging.Err(rerr))
		}
	}()

	started := time.Now()
	err = o.analyze(ctx, documentID, override)
	if o.metrics != nil {
		o.metrics.RecordStage("analyze", time.Since(started), err)
	}
	return err
}

func (o *Orchestrator) analyze(ctx context.Context, documentID string, override document.LeaseMetadata) error {
	doc, err := o.docs.GetByID(ctx, documentID)
	if err != nil {
		return err
	}
	if doc.Status == document.StatusCompleted {
		o.log.Info("document already analyzed, skipping",
			logging.String("document_id", doc.ID))
		return nil
	}
	if doc.Status != document.StatusProcessing {
		if err := o.transition(ctx, doc, document.StatusProcessing, "", doc.Progress); err != nil {
			return err
		}
	}

	report, enhanced, err := o.run(ctx, doc, override)
	if err != nil {
		// Error() hides the cause chain; persist the full exception text.
		if terr := o.transition(ctx, doc, document.StatusFailed, errors.FullMessage(err), 0); terr != nil {
			o.log.Error("failure transition not persisted",
				logging.String("document_id", doc.ID),
				logging.Err(terr))
		}
		o.publish(ctx, kafka.TopicAnalysisCompleted, doc.ID, "analysis.failed", kafka.AnalysisCompletedPayload{
			DocumentID: doc.ID,
			Status:     document.StatusFailed.String(),
			Error:      errors.FullMessage(err),
		})
		return err
	}

	if err := o.reports.Save(ctx, doc.ID, report, enhanced); err != nil {
		if terr := o.transition(ctx, doc, document.StatusFailed, errors.FullMessage(err), 0); terr != nil {
			o.log.Error("failure transition not persisted",
				logging.String("document_id", doc.ID),
				logging.Err(terr))
		}
		return err
	}
	if err := o.transition(ctx, doc, document.StatusCompleted, "", 100); err != nil {
		return err
	}

	findings := len(report.IllegalClauses) + len(report.RiskyTerms)
	if o.metrics != nil {
		o.metrics.FindingsTotal.WithLabelValues(report.SeverityLevel).Add(float64(findings))
	}
	o.publish(ctx, kafka.TopicAnalysisCompleted, doc.ID, "analysis.completed", kafka.AnalysisCompletedPayload{
		DocumentID: doc.ID,
		Status:     document.StatusCompleted.String(),
		Score:      report.PowerImbalanceScore,
		Severity:   report.SeverityLevel,
		Findings:   findings,
	})
	o.log.Info("analysis completed",
		logging.String("document_id", doc.ID),
		logging.Int("score", report.PowerImbalanceScore),
		logging.String("severity", report.SeverityLevel),
		logging.Int("findings", findings))
	return nil
}

func (o *Orchestrator) run(ctx context.Context, doc *document.Document, override document.LeaseMetadata) (*analysis.Report, *analysis.EnhancedReport, error) {
	text, err := o.objects.GetText(ctx, doc.TextObjectKey)
	if err != nil {
		return nil, nil, err
	}
	if err := o.progress(ctx, doc, progressTextLoaded); err != nil {
		return nil, nil, err
	}

	chunks := o.chunker.Split(text)
	if len(chunks) == 0 {
		return nil, nil, errors.New(errors.ErrCodePDFNoText, "document has no extractable text")
	}
	if err := o.progress(ctx, doc, progressChunked); err != nil {
		return nil, nil, err
	}

	analyses, err := o.analyzeChunks(ctx, doc, chunks)
	if err != nil {
		return nil, nil, err
	}

	meta := override
	if doc.Metadata != nil {
		meta = override.Merge(*doc.Metadata)
	}

	report, enhanced := o.consolidate(ctx, doc, analyses, text, meta)
	return &report, &enhanced, nil
}

// analyzeChunks walks the chunk list, retrieving statute context and calling
// the model per chunk.  Progress advances from the chunked milestone to the
// chunks-done milestone as chunks finish, in any completion order; results
// come back in chunk order regardless.
func (o *Orchestrator) analyzeChunks(ctx context.Context, doc *document.Document, chunks []chunker.Chunk) ([]analysis.ChunkAnalysis, error) {
	analyses := make([]analysis.ChunkAnalysis, len(chunks))

	// Guards doc progress when chunks run concurrently.
	var mu sync.Mutex
	done := 0

	analyzeOne := func(ctx context.Context, i int) error {
		chunk := chunks[i]
		laws, err := o.searcher.Search(ctx, chunk.Text, o.topK)
		if err != nil {
			// Analysis without statute context beats no analysis; the
			// model is told which laws it was given.
			o.log.Warn("statute retrieval failed, analyzing without context",
				logging.String("document_id", doc.ID),
				logging.Int("chunk", chunk.Index),
				logging.Err(err))
			laws = nil
		}

		result, err := o.analyzer.AnalyzeChunk(ctx, chunk, laws)
		if o.metrics != nil {
			status := "success"
			if err != nil {
				status = "failure"
			} else if result.ParseFailed {
				status = "parse_failed"
			}
			o.metrics.ChunkAnalysesTotal.WithLabelValues(status).Inc()
		}
		if err != nil {
			// Already wrapped with the chunk position by the analyzer.
			return err
		}
		analyses[i] = result

		mu.Lock()
		defer mu.Unlock()
		done++
		p := progressChunked + (progressChunksDone-progressChunked)*done/len(chunks)
		return o.progress(ctx, doc, p)
	}

	if o.chunkConcurrency <= 1 {
		for i := range chunks {
			if err := analyzeOne(ctx, i); err != nil {
				return nil, err
			}
		}
		return analyses, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.chunkConcurrency)
	for i := range chunks {
		i := i
		g.Go(func() error { return analyzeOne(gctx, i) })
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return analyses, nil
}

// consolidate builds both report shapes.  Highlight geometry needs the
// original PDF on local disk; when that copy or the presigned URL cannot be
// produced the report is still built, just without coordinates or link.
func (o *Orchestrator) consolidate(ctx context.Context, doc *document.Document, analyses []analysis.ChunkAnalysis, text string, meta document.LeaseMetadata) (analysis.Report, analysis.EnhancedReport) {
	var loc analysis.Locator
	path, cleanup, err := o.fetchOriginal(ctx, doc)
	if err != nil {
		o.log.Warn("original PDF unavailable, highlights get default geometry",
			logging.String("document_id", doc.ID),
			logging.Err(err))
	} else {
		defer cleanup()
		l, locCleanup, lerr := o.newLocator(path, o.log)
		if lerr != nil {
			o.log.Warn("locator open failed, highlights get default geometry",
				logging.String("document_id", doc.ID),
				logging.Err(lerr))
		} else {
			defer locCleanup()
			loc = l
		}
	}

	pdfURL, err := o.objects.PresignedDocumentURL(ctx, doc.ObjectKey)
	if err != nil {
		o.log.Warn("presigned URL generation failed",
			logging.String("document_id", doc.ID),
			logging.Err(err))
		pdfURL = ""
	}

	consolidator := analysis.NewConsolidator(loc, o.log)
	return consolidator.ConsolidateEnhanced(analyses, text, analysis.EnhancedInput{
		DocumentID:    doc.ID,
		PDFURL:        pdfURL,
		FileName:      doc.Filename,
		UploadDate:    doc.CreatedAt,
		FileSizeBytes: doc.SizeBytes,
		PageCount:     doc.PageCount,
		Metadata:      meta,
		Redaction:     doc.Redaction,
	})
}

// fetchOriginal copies the stored PDF to a temp file for coordinate work.
func (o *Orchestrator) fetchOriginal(ctx context.Context, doc *document.Document) (string, func(), error) {
	body, err := o.objects.GetDocument(ctx, doc.ObjectKey)
	if err != nil {
		return "", nil, err
	}
	defer body.Close()

	f, err := os.CreateTemp("", "leaselens-*.pdf")
	if err != nil {
		return "", nil, errors.Wrap(err, errors.ErrCodeInternal, "create temp file")
	}
	cleanup := func() { os.Remove(f.Name()) }
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		cleanup()
		return "", nil, errors.Wrap(err, errors.ErrCodeStorageError, "copy original PDF")
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, errors.Wrap(err, errors.ErrCodeInternal, "close temp file")
	}
	return f.Name(), cleanup, nil
}

func (o *Orchestrator) transition(ctx context.Context, doc *document.Document, next document.Status, reason string, progress int) error {
	if err := doc.Transition(next, reason); err != nil {
		return err
	}
	if !next.IsFailed() && next != document.StatusCompleted {
		doc.SetProgress(progress)
	}
	return o.docs.UpdateStatus(ctx, doc.ID, doc.Status, doc.Progress, doc.Error)
}

// progress persists a milestone without changing status.  Progress never
// moves backwards within a run.
func (o *Orchestrator) progress(ctx context.Context, doc *document.Document, p int) error {
	if p <= doc.Progress {
		return nil
	}
	doc.SetProgress(p)
	return o.docs.UpdateStatus(ctx, doc.ID, doc.Status, doc.Progress, doc.Error)
}

func (o *Orchestrator) publish(ctx context.Context, topic, key, eventType string, payload interface{}) {
	if o.events == nil {
		return
	}
	if err := o.events.Publish(ctx, topic, key, eventType, payload); err != nil {
		o.log.Warn("event publish failed",
			logging.String("topic", topic),
			logging.String("event_type", eventType),
			logging.String("key", key),
			logging.Err(err))
	}
}
