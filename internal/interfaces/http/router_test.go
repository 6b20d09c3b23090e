package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leaselens/leaselens/internal/application/chat"
	"github.com/leaselens/leaselens/internal/application/pipeline"
	"github.com/leaselens/leaselens/internal/domain/document"
	"github.com/leaselens/leaselens/internal/infrastructure/logging"
	"github.com/leaselens/leaselens/internal/infrastructure/metrics"
	"github.com/leaselens/leaselens/internal/interfaces/http/handlers"
	"github.com/leaselens/leaselens/internal/interfaces/http/middleware"
	"github.com/leaselens/leaselens/pkg/errors"
)

type stubDocumentService struct {
	uploadFilename string
	uploadSize     int64
	analyzeID      string
	analyzeMeta    document.LeaseMetadata
	listFilter     document.ListFilter
	deletedID      string

	doc *document.Document
	err error
}

func (s *stubDocumentService) Upload(_ context.Context, filename string, r io.Reader, size int64) (*pipeline.UploadResult, error) {
	s.uploadFilename = filename
	s.uploadSize = size
	_, _ = io.Copy(io.Discard, r)
	if s.err != nil {
		return nil, s.err
	}
	return &pipeline.UploadResult{
		Document:  s.doc,
		Redaction: document.RedactionSummary{"EMAIL": 2},
	}, nil
}

func (s *stubDocumentService) Analyze(_ context.Context, documentID string, metadata document.LeaseMetadata) (*document.Document, error) {
	s.analyzeID = documentID
	s.analyzeMeta = metadata
	return s.doc, s.err
}

func (s *stubDocumentService) Status(_ context.Context, _ string) (*document.Document, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.doc, nil
}

func (s *stubDocumentService) Get(_ context.Context, documentID string) (*pipeline.DocumentDetail, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &pipeline.DocumentDetail{
		Document: s.doc,
		PDFURL:   "https://minio.local/documents/" + documentID + ".pdf",
	}, nil
}

func (s *stubDocumentService) List(_ context.Context, filter document.ListFilter) ([]*document.Document, error) {
	s.listFilter = filter
	if s.err != nil {
		return nil, s.err
	}
	return []*document.Document{s.doc}, nil
}

func (s *stubDocumentService) Delete(_ context.Context, documentID string) error {
	s.deletedID = documentID
	return s.err
}

type stubChatService struct {
	question   string
	documentID string
	answer     *chat.Answer
	err        error
}

func (s *stubChatService) Ask(_ context.Context, question, documentID string) (*chat.Answer, error) {
	s.question = question
	s.documentID = documentID
	return s.answer, s.err
}

func testDocument() *document.Document {
	return &document.Document{
		ID:       "doc-1",
		Filename: "lease.pdf",
		Status:   document.StatusUploaded,
	}
}

func newTestRouter(docs *stubDocumentService, chats *stubChatService) http.Handler {
	cfg := RouterConfig{
		HealthHandler: handlers.NewHealthHandler("test"),
		CORS:          middleware.DefaultCORSConfig(),
		Mode:          "test",
		Logger:        logging.NewNopLogger(),
		Metrics:       metrics.NewForTesting(),
	}
	if docs != nil {
		cfg.DocumentHandler = handlers.NewDocumentHandler(docs)
	}
	if chats != nil {
		cfg.ChatHandler = handlers.NewChatHandler(chats)
	}
	return NewRouter(cfg)
}

func multipartFile(t *testing.T, field, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestHealthEndpoints(t *testing.T) {
	router := newTestRouter(nil, nil)

	for _, path := range []string{"/healthz", "/readyz"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}

func TestMetricsEndpointExposed(t *testing.T) {
	router := newTestRouter(nil, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "leaselens_")
}

func TestUploadAcceptsMultipartPDF(t *testing.T) {
	svc := &stubDocumentService{doc: testDocument()}
	router := newTestRouter(svc, nil)

	body, contentType := multipartFile(t, "file", "lease.pdf", []byte("%PDF-1.4 fake"))
	req := httptest.NewRequest("POST", "/api/v1/upload", body)
	req.Header.Set("Content-Type", contentType)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "lease.pdf", svc.uploadFilename)

	var resp pipeline.UploadResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "doc-1", resp.Document.ID)
	assert.Equal(t, 2, resp.Redaction["EMAIL"])
}

func TestUploadRejectsMissingFileField(t *testing.T) {
	router := newTestRouter(&stubDocumentService{doc: testDocument()}, nil)

	body, contentType := multipartFile(t, "attachment", "lease.pdf", []byte("x"))
	req := httptest.NewRequest("POST", "/api/v1/upload", body)
	req.Header.Set("Content-Type", contentType)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), errors.ErrCodeBadRequest.String())
}

func TestUploadServiceErrorsCarryTheirStatus(t *testing.T) {
	svc := &stubDocumentService{
		doc: testDocument(),
		err: errors.New(errors.ErrCodeDocumentTooLarge, "document exceeds size limit"),
	}
	router := newTestRouter(svc, nil)

	body, contentType := multipartFile(t, "file", "lease.pdf", []byte("x"))
	req := httptest.NewRequest("POST", "/api/v1/upload", body)
	req.Header.Set("Content-Type", contentType)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Contains(t, w.Body.String(), errors.ErrCodeDocumentTooLarge.String())
}

func TestAnalyzeAcceptsCallerMetadata(t *testing.T) {
	doc := testDocument()
	doc.Status = document.StatusProcessing
	doc.Progress = 5
	svc := &stubDocumentService{doc: doc}
	router := newTestRouter(svc, nil)

	payload := `{"metadata": {"monthly_rent": "2400", "security_deposit": "2400"}}`
	req := httptest.NewRequest("POST", "/api/v1/analyze/doc-1", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "doc-1", svc.analyzeID)
	assert.Equal(t, "2400", svc.analyzeMeta.MonthlyRent)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "processing", resp["status"])
	assert.Equal(t, float64(5), resp["progress"])
}

func TestAnalyzeAllowsEmptyBody(t *testing.T) {
	svc := &stubDocumentService{doc: testDocument()}
	router := newTestRouter(svc, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("POST", "/api/v1/analyze/doc-1", nil))

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "doc-1", svc.analyzeID)
}

func TestStatusReportsNotFound(t *testing.T) {
	svc := &stubDocumentService{err: errors.New(errors.ErrCodeDocumentNotFound, "document not found")}
	router := newTestRouter(svc, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/status/missing", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), errors.ErrCodeDocumentNotFound.String())
}

func TestListRejectsUnknownStatus(t *testing.T) {
	router := newTestRouter(&stubDocumentService{doc: testDocument()}, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/documents?status=bogus", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListPassesFilterThrough(t *testing.T) {
	svc := &stubDocumentService{doc: testDocument()}
	router := newTestRouter(svc, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/documents?status=completed&limit=10&offset=20", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, document.StatusCompleted, svc.listFilter.Status)
	assert.Equal(t, 10, svc.listFilter.Limit)
	assert.Equal(t, 20, svc.listFilter.Offset)
}

func TestGetAndDeleteDocument(t *testing.T) {
	svc := &stubDocumentService{doc: testDocument()}
	router := newTestRouter(svc, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/document/doc-1", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "pdf_url")

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("DELETE", "/api/v1/document/doc-1", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "doc-1", svc.deletedID)
}

func TestChatRoutesQuestionWithDocumentScope(t *testing.T) {
	svc := &stubChatService{answer: &chat.Answer{Answer: "A security deposit may not exceed one month's rent."}}
	router := newTestRouter(nil, svc)

	payload := `{"message": "How much can a deposit be?", "file_id": "doc-1"}`
	req := httptest.NewRequest("POST", "/api/v1/chat", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "How much can a deposit be?", svc.question)
	assert.Equal(t, "doc-1", svc.documentID)
	assert.Contains(t, w.Body.String(), "one month's rent")
}

func TestChatRejectsMalformedBody(t *testing.T) {
	router := newTestRouter(nil, &stubChatService{})

	req := httptest.NewRequest("POST", "/api/v1/chat", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	router := newTestRouter(&stubDocumentService{doc: testDocument()}, nil)

	req := httptest.NewRequest("OPTIONS", "/api/v1/upload", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
