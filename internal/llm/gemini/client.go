package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/joseph-ayodele/receipt-extractor/internal/common"
	"github.com/joseph-ayodele/receipt-extractor/internal/llm"
)

type Config struct {
	APIKey      string
	BaseURL     string // optional override, mainly for tests
	Model       string // default "gemini-2.5-flash"
	Temperature float32
	MaxTokens   int
	HTTPClient  *http.Client
}

// Client implements llm.ModelClient on the Gemini API.
type Client struct {
	cfg    Config
	api    *genai.Client
	logger *slog.Logger
}

var _ llm.ModelClient = (*Client)(nil)

func NewClient(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-flash"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1000
	}
	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	api, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Client{cfg: cfg, api: api, logger: logger}, nil
}

func (c *Client) Complete(ctx context.Context, req llm.CompletionRequest) (string, error) {
	rid := common.RequestIDFromContext(ctx)
	start := time.Now()

	parts := []*genai.Part{{Text: req.Prompt}}
	if req.Image != nil {
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{MIMEType: req.Image.MIMEType, Data: req.Image.Data},
		})
	}
	contents := []*genai.Content{{Role: "user", Parts: parts}}

	temp := c.cfg.Temperature
	c.logger.Info("llm.gemini.request", "req_id", rid, "model", c.cfg.Model, "has_image", req.Image != nil)

	resp, err := c.api.Models.GenerateContent(ctx, c.cfg.Model, contents, &genai.GenerateContentConfig{
		Temperature:      &temp,
		MaxOutputTokens:  int32(c.cfg.MaxTokens),
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) && apiErr.Code != 0 {
			err = &llm.StatusError{Provider: "gemini", StatusCode: apiErr.Code, Message: apiErr.Message}
		} else {
			err = fmt.Errorf("gemini generate content: %w", err)
		}
		c.logger.Error("llm.gemini.error", "req_id", rid, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return "", err
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		c.logger.Error("llm.gemini.empty_content", "req_id", rid, "elapsed_ms", time.Since(start).Milliseconds())
		return "", llm.ErrEmptyResponse
	}
	c.logger.Info("llm.gemini.ok", "req_id", rid, "content_len", len(text), "elapsed_ms", time.Since(start).Milliseconds())
	return text, nil
}
