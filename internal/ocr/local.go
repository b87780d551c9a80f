package ocr

import (
	"context"
	"fmt"
	"strings"
)

// localOCR rasterizes up to LocalPageLimit pages and runs tesseract on each.
// A local-engine failure is never fatal: any error is returned as a reason
// string with empty text so the pipeline falls through to cloud OCR.
func (e *Extractor) localOCR(ctx context.Context, data []byte) (text, reason string) {
	paths, cleanup, err := e.rasterize(ctx, data, e.cfg.LocalPageLimit)
	defer cleanup()
	if err != nil {
		return "", fmt.Sprintf("local rasterize: %v", err)
	}

	var b strings.Builder
	var failures []string
	for _, img := range paths {
		pageText, err := e.tesseractOCR(ctx, img)
		if err != nil {
			failures = append(failures, err.Error())
			continue
		}
		if strings.TrimSpace(pageText) == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(strings.TrimSpace(pageText))
	}

	if len(failures) > 0 {
		reason = "local ocr: " + strings.Join(failures, "; ")
	}
	return b.String(), reason
}

func (e *Extractor) tesseractOCR(ctx context.Context, path string) (string, error) {
	// tesseract <file> stdout -l <langs>
	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, path, "stdout", "-l", e.cfg.TesseractLang)
	if err != nil {
		return "", fmt.Errorf("tesseract: %w: %s", err, truncate(string(errb), 512))
	}
	return string(out), nil
}
