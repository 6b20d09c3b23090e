package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/leaselens/leaselens/internal/application/chat"
	"github.com/leaselens/leaselens/pkg/errors"
)

// ChatService answers housing-law questions grounded in retrieved statutes.
type ChatService interface {
	Ask(ctx context.Context, question, documentID string) (*chat.Answer, error)
}

// ChatHandler serves the statute-grounded Q&A endpoint.
type ChatHandler struct {
	service ChatService
}

func NewChatHandler(service ChatService) *ChatHandler {
	return &ChatHandler{service: service}
}

type chatRequest struct {
	Message string `json:"message"`
	// FileID optionally scopes the answer to an analyzed document.
	FileID string `json:"file_id"`
}

// Ask answers a housing-law question grounded in retrieved statutes.
//
// POST /api/v1/chat
func (h *ChatHandler) Ask(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errors.Wrap(err, errors.ErrCodeBadRequest, "parse chat request"))
		return
	}

	answer, err := h.service.Ask(c.Request.Context(), req.Message, req.FileID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, answer)
}
