// docsorterd runs one batch over every pending document in the store:
// fetch, OCR if needed, classify, rename. Failures stay on the document
// record; Ctrl-C stops between documents, never mid-document.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lukasedel/docsorter/internal/classify"
	"github.com/lukasedel/docsorter/internal/common"
	"github.com/lukasedel/docsorter/internal/export"
	"github.com/lukasedel/docsorter/internal/gate"
	"github.com/lukasedel/docsorter/internal/inference"
	"github.com/lukasedel/docsorter/internal/observability/logging"
	"github.com/lukasedel/docsorter/internal/observability/metrics"
	"github.com/lukasedel/docsorter/internal/ocr"
	"github.com/lukasedel/docsorter/internal/pipeline"
	"github.com/lukasedel/docsorter/internal/repository"
)

func main() {
	configPath := flag.String("config", "", "optional YAML config file overlaying env vars")
	reportPath := flag.String("report", "", "write an XLSX batch report to this path")
	noLocalOCR := flag.Bool("no-local-ocr", false, "skip tesseract and go straight to cloud OCR")
	flag.Parse()

	cfg := common.LoadConfig()
	if *configPath != "" {
		if err := cfg.ApplyFile(*configPath); err != nil {
			logging.NewJSONLogger("docsorterd", "info").Error("config.file_failed", "path", *configPath, "error", err)
			os.Exit(1)
		}
	}
	logger := logging.NewJSONLogger("docsorterd", cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		logger.Error("config.invalid", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := repository.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		logger.Error("db.open_failed", "driver", cfg.Database.Driver, "error", err)
		os.Exit(1)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			logger.Error("db.close_failed", "error", cerr)
		}
	}()
	if err := repository.EnsureSchema(ctx, db); err != nil {
		logger.Error("db.schema_failed", "error", err)
		os.Exit(1)
	}
	store := repository.NewSQLDocumentStore(db)

	g := gate.New(cfg.Inference.Concurrency)
	m := metrics.NewPipelineMetrics("docsorterd", g)

	metricsSrv := &http.Server{Addr: cfg.Server.MetricsAddr, Handler: m.Handler()}
	go func() {
		logger.Info("metrics.listening", "addr", cfg.Server.MetricsAddr)
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics.serve_failed", "error", err)
		}
	}()

	client := inference.NewClient(inference.ClientConfig{
		ProxyURL:       cfg.Inference.ProxyURL,
		APIKey:         cfg.Inference.APIKey,
		Timeout:        cfg.Inference.Timeout,
		MaxRetries:     cfg.Inference.MaxRetries,
		BackoffFactor:  cfg.Inference.BackoffFactor,
		BreakerEnabled: cfg.Inference.BreakerEnabled,
	}, g, logger)
	client.SetMetrics(m)

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

	orch := pipeline.NewOrchestrator(store, extractor, engine, logger, m)
	orch.Workers = cfg.Pipeline.Workers

	start := time.Now()
	results, runErr := orch.ProcessBatch(ctx, cfg.Pipeline.BatchLimit)
	logger.Info("run.done",
		"documents", len(results),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	if *reportPath != "" && len(results) > 0 {
		b, err := export.NewService(logger).BatchReportXLSX(results)
		if err != nil {
			logger.Error("report.build_failed", "error", err)
		} else if err := os.WriteFile(*reportPath, b, 0o644); err != nil {
			logger.Error("report.write_failed", "path", *reportPath, "error", err)
		} else {
			logger.Info("report.written", "path", *reportPath)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("metrics.shutdown_failed", "error", err)
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		logger.Error("run.failed", "error", runErr)
		os.Exit(1)
	}
	var failed int
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	if failed > 0 {
		logger.Warn("run.partial", "failed", failed)
		os.Exit(3)
	}
}
