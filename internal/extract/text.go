package extract

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/joseph-ayodele/receipt-extractor/constants"
	"github.com/joseph-ayodele/receipt-extractor/internal/llm"
)

// TextExtractor sends plain-text receipts to the model.
type TextExtractor struct {
	client llm.ModelClient
	read   ReadFunc
	logger *slog.Logger
}

func NewTextExtractor(client llm.ModelClient, read ReadFunc, logger *slog.Logger) *TextExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &TextExtractor{client: client, read: read, logger: logger}
}

func (e *TextExtractor) Extract(ctx context.Context, path string) (Extraction, error) {
	data, err := readOrUnsupported(e.read, path, "text")
	if err != nil {
		return Extraction{}, err
	}
	if !utf8.Valid(data) {
		return Extraction{}, newUnsupported("text is not valid UTF-8", nil)
	}
	text := strings.TrimSpace(strings.TrimPrefix(string(data), "\ufeff"))
	if text == "" {
		return Extraction{}, newUnsupported("text is blank", nil)
	}

	raw, err := complete(ctx, e.client, llm.CompletionRequest{Prompt: llm.BuildTextPrompt(text)}, "text extraction", e.logger)
	if err != nil {
		return Extraction{}, err
	}
	return Extraction{Raw: raw, Method: constants.MethodText}, nil
}
