package extract

import (
	"bytes"
	"context"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/joseph-ayodele/receipt-extractor/constants"
	"github.com/joseph-ayodele/receipt-extractor/internal/llm"
)

// ImageExtractor sends the receipt image to a vision-capable model.
type ImageExtractor struct {
	client llm.ModelClient
	read   ReadFunc
	logger *slog.Logger
}

func NewImageExtractor(client llm.ModelClient, read ReadFunc, logger *slog.Logger) *ImageExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &ImageExtractor{client: client, read: read, logger: logger}
}

func (e *ImageExtractor) Extract(ctx context.Context, path string) (Extraction, error) {
	data, err := readOrUnsupported(e.read, path, "image")
	if err != nil {
		return Extraction{}, err
	}
	mimeType, err := sniffImage(data)
	if err != nil {
		return Extraction{}, err
	}
	if declared := constants.ImageMIMEType(filepath.Ext(path)); declared != "" && declared != mimeType {
		e.logger.Warn("extract.image.mime_mismatch", "declared", declared, "detected", mimeType)
	}
	e.logger.Debug("extract.image.prepared", "mime", mimeType, "bytes", len(data))
	return visionExtract(ctx, e.client, mimeType, data, e.logger)
}

func visionExtract(ctx context.Context, client llm.ModelClient, mimeType string, data []byte, logger *slog.Logger) (Extraction, error) {
	raw, err := complete(ctx, client, llm.CompletionRequest{
		Prompt: llm.ExtractionPrompt,
		Image:  &llm.ImageInput{MIMEType: mimeType, Data: data},
	}, "vision extraction", logger)
	if err != nil {
		return Extraction{}, err
	}
	return Extraction{Raw: raw, Method: constants.MethodVision}, nil
}

// sniffImage checks the bytes really are an image the model accepts and returns its MIME type.
// The decoders registered above verify jpeg/png/gif headers; webp is accepted on its signature.
func sniffImage(data []byte) (string, error) {
	mimeType := http.DetectContentType(data)
	switch mimeType {
	case "image/jpeg", "image/png", "image/gif":
		if _, _, err := image.DecodeConfig(bytes.NewReader(data)); err != nil {
			return "", newUnsupported("corrupt "+mimeType+" data", err)
		}
		return mimeType, nil
	case "image/webp":
		return mimeType, nil
	default:
		return "", newUnsupported("content is not a supported image (detected "+mimeType+")", nil)
	}
}
