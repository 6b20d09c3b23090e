// Package genai is the HTTP client for the generative-model service.  It
// speaks the OpenAI-compatible chat-completions and embeddings API, which is
// what the configured model gateway exposes.
package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/leaselens/leaselens/internal/config"
	"github.com/leaselens/leaselens/internal/infrastructure/logging"
	"github.com/leaselens/leaselens/pkg/errors"
)

const completionTemperature = 0.3

// Client calls the model gateway.  Safe for concurrent use.
type Client struct {
	httpClient      *http.Client
	baseURL         string
	apiKey          string
	completionModel string
	embeddingModel  string
	maxRetries      int
	retryDelay      time.Duration
	log             logging.Logger
}

// NewClient builds a Client from configuration.
func NewClient(cfg config.GenAIConfig, log logging.Logger) *Client {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Client{
		httpClient:      &http.Client{Timeout: cfg.Timeout},
		baseURL:         strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:          cfg.APIKey,
		completionModel: cfg.CompletionModel,
		embeddingModel:  cfg.EmbeddingModel,
		maxRetries:      cfg.MaxRetries,
		retryDelay:      2 * time.Second,
		log:             log.Named("genai"),
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Complete sends prompt as a single user message and returns the model's
// text reply.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	body := chatRequest{
		Model:       c.completionModel,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: completionTemperature,
	}

	var parsed chatResponse
	if err := c.post(ctx, "/chat/completions", body, &parsed); err != nil {
		return "", err
	}
	if len(parsed.Choices) == 0 {
		return "", errors.New(errors.ErrCodeModelCallFailed, "completion response has no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

// Embed returns the embedding vector for text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	body := embeddingRequest{Model: c.embeddingModel, Input: []string{text}}

	var parsed embeddingResponse
	if err := c.post(ctx, "/embeddings", body, &parsed); err != nil {
		return nil, err
	}
	if len(parsed.Data) == 0 {
		return nil, errors.New(errors.ErrCodeModelCallFailed, "embedding response has no data")
	}
	return parsed.Data[0].Embedding, nil
}

// post sends a JSON request with bounded retries on transport errors, 429
// and 5xx responses.
func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "encode request")
	}

	attempts := c.maxRetries + 1
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			c.log.Warn("retrying model request",
				logging.String("path", path),
				logging.Int("attempt", attempt),
				logging.Err(lastErr))
			select {
			case <-ctx.Done():
				return errors.Wrap(ctx.Err(), errors.ErrCodeTimeout, "model request canceled")
			case <-time.After(c.retryDelay):
			}
		}

		lastErr = c.doPost(ctx, path, payload, out)
		if lastErr == nil {
			return nil
		}
		if !retryable(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

func (c *Client) doPost(ctx context.Context, path string, payload []byte, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeExternalService, "build model request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeExternalService, "model request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return errors.Newf(errors.ErrCodeTooManyRequests, "model rate limited (%s)", path)
	}
	if resp.StatusCode >= 500 {
		return errors.Newf(errors.ErrCodeExternalService, "model request failed with status %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.New(errors.ErrCodeModelCallFailed,
			fmt.Sprintf("model request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail))))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "decode model response")
	}
	return nil
}

func retryable(err error) bool {
	return errors.IsCode(err, errors.ErrCodeTooManyRequests) ||
		errors.IsCode(err, errors.ErrCodeExternalService)
}
