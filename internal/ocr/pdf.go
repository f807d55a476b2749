package ocr

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

const maxTextBytes = 256 * 1024

// ErrNoText is returned for PDFs without an embedded text layer (scans).
var ErrNoText = errors.New("pdf has no embedded text")

// PDFTextResult is the embedded text of a PDF.
type PDFTextResult struct {
	Text  string
	Pages int
}

// PDFText extracts embedded text from PDF bytes. The underlying reader can
// panic on malformed input; that is reported as an error.
func PDFText(data []byte) (res PDFTextResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic reading pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return res, fmt.Errorf("open pdf reader: %w", err)
	}
	res.Pages = reader.NumPage()

	plain, err := reader.GetPlainText()
	if err != nil {
		return res, fmt.Errorf("extract pdf text: %w", err)
	}
	b, err := io.ReadAll(io.LimitReader(plain, maxTextBytes))
	if err != nil {
		return res, fmt.Errorf("read pdf text: %w", err)
	}

	res.Text = Normalize(string(b))
	if strings.TrimSpace(res.Text) == "" {
		return res, ErrNoText
	}
	return res, nil
}
