// Package ocr produces the best available plain-text rendition of a
// document, preferring free local computation over paid cloud inference.
package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/lukasedel/docsorter/internal/inference"
)

// Extraction methods, recorded for logging and the batch report.
const (
	MethodNative   = "native"
	MethodLocalOCR = "local-ocr"
	MethodCloudOCR = "cloud-ocr"
	MethodNone     = "none"
)

type Config struct {
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	TesseractLang  string // default "deu+eng"
	DPI            int    // rasterization DPI, default 150
	LocalPageLimit int    // pages rasterized for local OCR, default 2
	CloudPageLimit int    // pages sent to cloud OCR, default 5

	NativeTextThreshold int // minimum native chars to skip OCR, default 50
	NativeCheckPages    int // pages inspected for native text, default 3

	OCRModel     string // cloud OCR model id
	OCRMaxTokens int
}

// Result is the outcome of one extraction. Warnings record every fallback
// reason along the way; an empty Text with Method "none" means the whole
// chain came up dry, which is not an error.
type Result struct {
	Text     string
	Method   string
	Pages    int
	Duration time.Duration
	Warnings []string
}

// Extractor runs the needs-OCR check and the local-first, cloud-fallback
// chain. LocalAvailable can be forced off for installs without tesseract.
type Extractor struct {
	cfg    Config
	runner Runner
	native NativeTextReader
	chat   inference.ChatClient // used only by the cloud fallback
	logger *slog.Logger

	LocalAvailable bool
}

func NewExtractor(cfg Config, chat inference.ChatClient, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "deu+eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 150
	}
	if cfg.LocalPageLimit <= 0 {
		cfg.LocalPageLimit = 2
	}
	if cfg.CloudPageLimit <= 0 {
		cfg.CloudPageLimit = 5
	}
	if cfg.NativeTextThreshold <= 0 {
		cfg.NativeTextThreshold = 50
	}
	if cfg.NativeCheckPages <= 0 {
		cfg.NativeCheckPages = 3
	}
	return &Extractor{
		cfg:            cfg,
		runner:         execRunner{},
		native:         NewNativeTextReader(),
		chat:           chat,
		logger:         logger,
		LocalAvailable: true,
	}
}

// Extract runs the full chain: native check, then local OCR, then cloud OCR.
// Every sub-step failure degrades to the next step; Extract itself never
// returns an error — a document that cannot be OCR'd proceeds with empty
// text and the classification stage produces a low-confidence result.
func (e *Extractor) Extract(ctx context.Context, data []byte) Result {
	start := time.Now()

	needs, nativeText, pages, reason := e.NeedsOCR(ctx, data)
	if !needs {
		e.logger.Info("ocr.native.ok", "pages", pages, "text_len", len(nativeText))
		return Result{
			Text:     nativeText,
			Method:   MethodNative,
			Pages:    pages,
			Duration: time.Since(start),
		}
	}

	var warnings []string
	if reason != "" {
		warnings = append(warnings, reason)
	}
	e.logger.Info("ocr.needed", "pages", pages, "native_len", len(strings.TrimSpace(nativeText)))

	if e.LocalAvailable {
		text, reason := e.localOCR(ctx, data)
		if reason != "" {
			warnings = append(warnings, reason)
		}
		if strings.TrimSpace(text) != "" {
			e.logger.Info("ocr.local.ok", "text_len", len(text))
			return Result{
				Text:     text,
				Method:   MethodLocalOCR,
				Pages:    pages,
				Duration: time.Since(start),
				Warnings: warnings,
			}
		}
		e.logger.Warn("ocr.local.empty", "reason", reason)
	} else {
		warnings = append(warnings, "local ocr engine unavailable")
	}

	text, reason := e.cloudOCR(ctx, data)
	if reason != "" {
		warnings = append(warnings, reason)
	}
	if strings.TrimSpace(text) != "" {
		e.logger.Info("ocr.cloud.ok", "text_len", len(text))
		return Result{
			Text:     text,
			Method:   MethodCloudOCR,
			Pages:    pages,
			Duration: time.Since(start),
			Warnings: warnings,
		}
	}

	e.logger.Warn("ocr.exhausted", "warnings", strings.Join(warnings, "; "))
	return Result{
		Method:   MethodNone,
		Pages:    pages,
		Duration: time.Since(start),
		Warnings: warnings,
	}
}

// NeedsOCR extracts native text from the first NativeCheckPages pages and
// compares it against the sufficiency threshold. A document with enough
// embedded text skips OCR entirely. The threshold is a deliberate heuristic:
// a legible document with 49 characters of real text is still treated as
// image-only.
func (e *Extractor) NeedsOCR(ctx context.Context, data []byte) (needs bool, nativeText string, pages int, reason string) {
	text, pages, err := e.native.FirstPagesText(ctx, data, e.cfg.NativeCheckPages)
	if err != nil {
		return true, "", pages, fmt.Sprintf("native text layer unreadable: %v", err)
	}
	if len(strings.TrimSpace(text)) < e.cfg.NativeTextThreshold {
		return true, text, pages, ""
	}
	return false, text, pages, ""
}

// rasterize renders up to maxPages pages as PNGs at the configured DPI and
// returns the sorted file paths. Caller must invoke cleanup.
func (e *Extractor) rasterize(ctx context.Context, data []byte, maxPages int) (paths []string, cleanup func(), err error) {
	tmpDir, err := os.MkdirTemp("", "docsorter-pp-*")
	if err != nil {
		return nil, func() {}, err
	}
	cleanup = func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			e.logger.Warn("ocr.tmpdir_remove_failed", "dir", tmpDir, "error", err)
		}
	}

	src := filepath.Join(tmpDir, "doc.pdf")
	if err := os.WriteFile(src, data, 0o600); err != nil {
		return nil, cleanup, err
	}

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r <dpi> -png -f 1 -l <maxPages> <doc.pdf> <tmp/page>
	_, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm,
		"-r", fmt.Sprintf("%d", e.cfg.DPI),
		"-png",
		"-f", "1",
		"-l", fmt.Sprintf("%d", maxPages),
		src, prefix)
	if err != nil {
		return nil, cleanup, fmt.Errorf("pdftoppm: %w: %s", err, truncate(string(errb), 512))
	}

	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if len(matches) > maxPages {
		matches = matches[:maxPages]
	}
	if len(matches) == 0 {
		return nil, cleanup, fmt.Errorf("pdftoppm produced no images")
	}
	return matches, cleanup, nil
}
