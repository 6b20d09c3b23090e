package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/leaselens/leaselens/internal/application/pipeline"
	"github.com/leaselens/leaselens/internal/domain/document"
	"github.com/leaselens/leaselens/pkg/errors"
)

// DocumentService is the slice of the pipeline service the HTTP layer needs.
type DocumentService interface {
	Upload(ctx context.Context, filename string, r io.Reader, size int64) (*pipeline.UploadResult, error)
	Analyze(ctx context.Context, documentID string, metadata document.LeaseMetadata) (*document.Document, error)
	Status(ctx context.Context, documentID string) (*document.Document, error)
	Get(ctx context.Context, documentID string) (*pipeline.DocumentDetail, error)
	List(ctx context.Context, filter document.ListFilter) ([]*document.Document, error)
	Delete(ctx context.Context, documentID string) error
}

// DocumentHandler serves the upload, analysis, and document query endpoints.
type DocumentHandler struct {
	service DocumentService
}

// NewDocumentHandler builds the handler over the pipeline service.
func NewDocumentHandler(service DocumentService) *DocumentHandler {
	return &DocumentHandler{service: service}
}

// Upload accepts a multipart PDF under the "file" field and runs intake.
//
// POST /api/v1/upload
func (h *DocumentHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		respondError(c, errors.New(errors.ErrCodeBadRequest, "multipart field 'file' is required").WithCause(err))
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		respondError(c, errors.Wrap(err, errors.ErrCodeBadRequest, "open uploaded file"))
		return
	}
	defer f.Close()

	result, err := h.service.Upload(c.Request.Context(), fileHeader.Filename, f, fileHeader.Size)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// analyzeRequest carries the caller-confirmed lease terms.  All fields are
// optional; present fields override extracted metadata.
type analyzeRequest struct {
	Metadata document.LeaseMetadata `json:"metadata"`
}

// Analyze requests stage-2 analysis for a document.
//
// POST /api/v1/analyze/:id
func (h *DocumentHandler) Analyze(c *gin.Context) {
	var req analyzeRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, errors.Wrap(err, errors.ErrCodeBadRequest, "parse analyze request"))
			return
		}
	}

	doc, err := h.service.Analyze(c.Request.Context(), c.Param("id"), req.Metadata)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"document_id": doc.ID,
		"status":      doc.Status,
		"progress":    doc.Progress,
	})
}

// Status reports live pipeline progress.
//
// GET /api/v1/status/:id
func (h *DocumentHandler) Status(c *gin.Context) {
	doc, err := h.service.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"document_id": doc.ID,
		"status":      doc.Status,
		"progress":    doc.Progress,
		"error":       doc.Error,
		"warnings":    doc.Warnings,
		"metadata":    doc.Metadata,
	})
}

// Get returns the document and, once completed, its reports and PDF link.
//
// GET /api/v1/document/:id
func (h *DocumentHandler) Get(c *gin.Context) {
	detail, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// List returns documents newest-first, optionally filtered by status.
//
// GET /api/v1/documents?status=&limit=&offset=
func (h *DocumentHandler) List(c *gin.Context) {
	filter := document.ListFilter{
		Limit:  queryInt(c, "limit", 50),
		Offset: queryInt(c, "offset", 0),
	}
	if v := c.Query("status"); v != "" {
		status := document.Status(v)
		if !status.Valid() {
			respondError(c, errors.Newf(errors.ErrCodeBadRequest, "unknown status %q", v))
			return
		}
		filter.Status = status
	}

	docs, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"documents": docs,
		"count":     len(docs),
	})
}

// Delete removes a document, its stored objects, and its reports.
//
// DELETE /api/v1/document/:id
func (h *DocumentHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": c.Param("id")})
}
