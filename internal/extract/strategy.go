package extract

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"

	"github.com/joseph-ayodele/receipt-extractor/constants"
	"github.com/joseph-ayodele/receipt-extractor/internal/llm"
)

// Strategy turns one kind of file into raw model text.
type Strategy interface {
	Extract(ctx context.Context, path string) (Extraction, error)
}

// Extraction is the raw model output plus the provenance tag of the path that produced it.
type Extraction struct {
	Raw    string
	Method constants.ExtractionMethod
}

// ReadFunc reads a stored upload. os.ReadFile by default.
type ReadFunc func(path string) ([]byte, error)

// PageRenderer rasterises the first page of a PDF to PNG.
type PageRenderer interface {
	RenderFirstPage(ctx context.Context, path string) ([]byte, error)
}

var errNoClient = errors.New("no model client configured")

// complete makes the single model call for a strategy and classifies failures.
func complete(ctx context.Context, client llm.ModelClient, req llm.CompletionRequest, op string, logger *slog.Logger) (string, error) {
	if client == nil {
		return "", newExternal(ctx, op, errNoClient)
	}
	raw, err := client.Complete(ctx, req)
	if err != nil {
		e := newExternal(ctx, op, err)
		logger.Warn("extract.model.failed", "op", op, "reason", e.Reason, "error", err)
		return "", e
	}
	if strings.TrimSpace(raw) == "" {
		return "", newExternal(ctx, op, llm.ErrEmptyResponse)
	}
	return raw, nil
}

func readOrUnsupported(read ReadFunc, path, what string) ([]byte, error) {
	if read == nil {
		read = os.ReadFile
	}
	data, err := read(path)
	if err != nil {
		return nil, newUnsupported("read "+what, err)
	}
	if len(data) == 0 {
		return nil, newUnsupported(what+" is empty", nil)
	}
	return data, nil
}
