// sortfile classifies a single local PDF and prints the name it would get,
// without touching any document store. Handy for prompt tuning and for
// checking a single scan before a batch run.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/lukasedel/docsorter/internal/classify"
	"github.com/lukasedel/docsorter/internal/common"
	"github.com/lukasedel/docsorter/internal/gate"
	"github.com/lukasedel/docsorter/internal/inference"
	"github.com/lukasedel/docsorter/internal/naming"
	"github.com/lukasedel/docsorter/internal/observability/logging"
	"github.com/lukasedel/docsorter/internal/ocr"
)

func main() {
	noLocalOCR := flag.Bool("no-local-ocr", false, "skip tesseract and go straight to cloud OCR")
	flag.Parse()

	cfg := common.LoadConfig()
	logger := logging.NewJSONLogger("sortfile", cfg.LogLevel)

	if flag.NArg() != 1 {
		logger.Error("usage", "cmd", "sortfile [flags] <document.pdf>")
		os.Exit(2)
	}
	path := flag.Arg(0)
	if cfg.Inference.ProxyURL == "" {
		logger.Error("INFERENCE_PROXY_URL required")
		os.Exit(1)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		logger.Error("read file", "path", path, "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	g := gate.New(cfg.Inference.Concurrency)
	client := inference.NewClient(inference.ClientConfig{
		ProxyURL:       cfg.Inference.ProxyURL,
		APIKey:         cfg.Inference.APIKey,
		Timeout:        cfg.Inference.Timeout,
		MaxRetries:     cfg.Inference.MaxRetries,
		BackoffFactor:  cfg.Inference.BackoffFactor,
		BreakerEnabled: cfg.Inference.BreakerEnabled,
	}, g, logger)

	extractor := ocr.NewExtractor(ocr.Config{
		Pdftoppm:            cfg.OCR.Pdftoppm,
		Tesseract:           cfg.OCR.Tesseract,
		TesseractLang:       cfg.OCR.TesseractLang,
		DPI:                 cfg.OCR.DPI,
		LocalPageLimit:      cfg.OCR.LocalPageLimit,
		CloudPageLimit:      cfg.OCR.CloudPageLimit,
		NativeTextThreshold: cfg.OCR.NativeTextThreshold,
		NativeCheckPages:    cfg.OCR.NativeCheckPages,
		OCRModel:            cfg.Inference.OCRModel,
		OCRMaxTokens:        cfg.Inference.OCRMaxTokens,
	}, client, logger)
	if *noLocalOCR {
		extractor.LocalAvailable = false
	}

	engine := classify.NewEngine(classify.Config{
		TriageModel:        cfg.Inference.TriageModel,
		DetailModel:        cfg.Inference.DetailModel,
		TriageMaxTokens:    cfg.Inference.TriageMaxTokens,
		DetailMaxTokens:    cfg.Inference.DetailMaxTokens,
		EscalationTrigger:  cfg.Pipeline.EscalationTrigger,
		TriageSystemPrompt: cfg.Inference.TriageSystemPrompt,
		DetailSystemPrompt: cfg.Inference.DetailSystemPrompt,
	}, client, logger)

	start := time.Now()
	ocrRes := extractor.Extract(ctx, data)
	logger.Info("ocr.done", "method", ocrRes.Method, "pages", ocrRes.Pages, "text_len", len(ocrRes.Text))

	outcome, err := engine.Classify(ctx, ocrRes.Text)
	if err != nil {
		logger.Error("classify failed", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		os.Exit(1)
	}

	c := outcome.Classification
	newName := naming.Build(c, filepath.Ext(path))
	logger.Info("classified",
		"stage", outcome.Kind,
		"target_box", c.TargetBox,
		"confidence", c.Confidence,
		"insurer", c.Insurer,
		"document_type", c.DocumentType,
		"date", c.DocumentDateISO,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	fmt.Println(newName)
}
