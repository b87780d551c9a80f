package ocr

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// NativeTextReader extracts the embedded text layer of a PDF without OCR.
// Stubbed in tests; the production implementation parses the PDF directly.
type NativeTextReader interface {
	// FirstPagesText returns the combined text of the first maxPages pages
	// and the document's total page count.
	FirstPagesText(ctx context.Context, data []byte, maxPages int) (string, int, error)
}

type pdfTextReader struct{}

// NewNativeTextReader returns the in-process PDF text-layer reader.
func NewNativeTextReader() NativeTextReader {
	return pdfTextReader{}
}

func (pdfTextReader) FirstPagesText(ctx context.Context, data []byte, maxPages int) (text string, pages int, err error) {
	// The pdf package panics on some malformed documents; a document we
	// cannot read counts as having no text layer.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf text layer: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", 0, fmt.Errorf("open pdf: %w", err)
	}

	pages = reader.NumPage()
	limit := pages
	if maxPages > 0 && limit > maxPages {
		limit = maxPages
	}

	var b strings.Builder
	for i := 1; i <= limit; i++ {
		if err := ctx.Err(); err != nil {
			return "", pages, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		b.WriteString(content)
		b.WriteString("\n")
	}
	return b.String(), pages, nil
}
