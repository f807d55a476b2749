package extract

import (
	"context"
	"errors"
	"log/slog"

	"github.com/joseph-ayodele/receipt-extractor/constants"
	"github.com/joseph-ayodele/receipt-extractor/internal/llm"
	"github.com/joseph-ayodele/receipt-extractor/internal/ocr"
)

// PdfExtractor forwards a PDF's embedded text to the model. Image-only PDFs
// go through the vision path when a renderer is configured.
type PdfExtractor struct {
	client   llm.ModelClient
	read     ReadFunc
	renderer PageRenderer
	logger   *slog.Logger
}

func NewPdfExtractor(client llm.ModelClient, read ReadFunc, renderer PageRenderer, logger *slog.Logger) *PdfExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &PdfExtractor{client: client, read: read, renderer: renderer, logger: logger}
}

func (e *PdfExtractor) Extract(ctx context.Context, path string) (Extraction, error) {
	data, err := readOrUnsupported(e.read, path, "pdf")
	if err != nil {
		return Extraction{}, err
	}

	res, err := ocr.PDFText(data)
	switch {
	case errors.Is(err, ocr.ErrNoText):
		return e.extractRendered(ctx, path, res.Pages)
	case err != nil:
		return Extraction{}, newUnsupported("unreadable pdf", err)
	}

	e.logger.Debug("extract.pdf.text", "pages", res.Pages, "chars", len(res.Text))
	raw, err := complete(ctx, e.client, llm.CompletionRequest{Prompt: llm.BuildTextPrompt(res.Text)}, "pdf text extraction", e.logger)
	if err != nil {
		return Extraction{}, err
	}
	return Extraction{Raw: raw, Method: constants.MethodPDFText}, nil
}

func (e *PdfExtractor) extractRendered(ctx context.Context, path string, pages int) (Extraction, error) {
	if e.renderer == nil {
		return Extraction{}, newUnsupported("pdf has no embedded text and rendering is disabled", ocr.ErrNoText)
	}
	png, err := e.renderer.RenderFirstPage(ctx, path)
	if err != nil {
		return Extraction{}, newUnsupported("render pdf page", err)
	}
	e.logger.Info("extract.pdf.rendered", "pages", pages, "png_bytes", len(png))
	return visionExtract(ctx, e.client, "image/png", png, e.logger)
}
