package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	goopenai "github.com/sashabaranov/go-openai"

	"github.com/joseph-ayodele/receipt-extractor/internal/common"
	"github.com/joseph-ayodele/receipt-extractor/internal/llm"
)

var _ llm.ModelClient = (*Client)(nil)

// Complete implements llm.ModelClient with a single chat/completions call.
// An attached image is sent as an image_url part carrying a data URL.
func (c *Client) Complete(ctx context.Context, req llm.CompletionRequest) (string, error) {
	rid := common.RequestIDFromContext(ctx)
	if rid == "" {
		rid = uuid.New().String()
	}
	start := time.Now()

	msg := goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleUser}
	if req.Image != nil {
		msg.MultiContent = []goopenai.ChatMessagePart{
			{Type: goopenai.ChatMessagePartTypeText, Text: req.Prompt},
			{
				Type:     goopenai.ChatMessagePartTypeImageURL,
				ImageURL: &goopenai.ChatMessageImageURL{URL: req.Image.DataURL()},
			},
		}
	} else {
		msg.Content = req.Prompt
	}

	c.logger.Info("llm.openai.request",
		"req_id", rid,
		"model", c.cfg.Model,
		"prompt_len", len(req.Prompt),
		"has_image", req.Image != nil,
	)

	resp, err := c.api.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		Messages:    []goopenai.ChatCompletionMessage{msg},
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
	})
	if err != nil {
		err = mapError(err)
		c.logger.Error("llm.openai.http_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", err
	}

	if len(resp.Choices) == 0 {
		c.logger.Error("llm.openai.no_choices", "req_id", rid, "elapsed_ms", time.Since(start).Milliseconds())
		return "", fmt.Errorf("no choices in response: %w", llm.ErrEmptyResponse)
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		c.logger.Error("llm.openai.empty_content", "req_id", rid, "elapsed_ms", time.Since(start).Milliseconds())
		return "", llm.ErrEmptyResponse
	}

	c.logger.Info("llm.openai.ok",
		"req_id", rid,
		"content_len", len(content),
		"finish_reason", resp.Choices[0].FinishReason,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return content, nil
}

func mapError(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return &llm.StatusError{Provider: "openai", StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message}
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		msg := ""
		if reqErr.Err != nil {
			msg = reqErr.Err.Error()
		}
		return &llm.StatusError{Provider: "openai", StatusCode: reqErr.HTTPStatusCode, Message: msg}
	}
	return fmt.Errorf("openai request: %w", err)
}
