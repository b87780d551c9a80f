package ocr

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"github.com/lukasedel/docsorter/internal/inference"
)

const cloudOCRInstruction = "Transcribe this insurance document faithfully and completely. " +
	"Preserve the original wording and layout order. Pay particular attention to the " +
	"insurer name, all dates, the document type, the insurance line, and any " +
	"contract or policy numbers. Return only the transcription, no commentary."

// cloudOCR rasterizes up to CloudPageLimit pages, base64-encodes them, and
// sends them in a single inference request asking for a faithful
// transcription. Like the local path, failures degrade to empty text.
func (e *Extractor) cloudOCR(ctx context.Context, data []byte) (text, reason string) {
	if e.chat == nil {
		return "", "cloud ocr: no inference client configured"
	}

	paths, cleanup, err := e.rasterize(ctx, data, e.cfg.CloudPageLimit)
	defer cleanup()
	if err != nil {
		return "", fmt.Sprintf("cloud rasterize: %v", err)
	}

	parts := []inference.Part{inference.TextPart(cloudOCRInstruction)}
	for _, img := range paths {
		raw, err := os.ReadFile(img)
		if err != nil {
			return "", fmt.Sprintf("cloud ocr read page: %v", err)
		}
		dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(raw)
		parts = append(parts, inference.ImagePart(dataURL))
	}

	reply, err := e.chat.Send(ctx, inference.Request{
		Model:     e.cfg.OCRModel,
		Messages:  []inference.Message{inference.PartsMessage(inference.RoleUser, parts)},
		MaxTokens: e.cfg.OCRMaxTokens,
	})
	if err != nil {
		return "", fmt.Sprintf("cloud ocr inference: %v", err)
	}
	return strings.TrimSpace(reply), ""
}
