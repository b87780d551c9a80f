// Package pipeline drives a document from stored bytes to a classified,
// renamed artifact. One document failing never aborts the batch.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/lukasedel/docsorter/constants"
	"github.com/lukasedel/docsorter/internal/classify"
	"github.com/lukasedel/docsorter/internal/naming"
	"github.com/lukasedel/docsorter/internal/ocr"
	"github.com/lukasedel/docsorter/internal/repository"
)

// TextExtractor is the OCR chain as the orchestrator sees it. It is total:
// a document that yields no text still returns a Result.
type TextExtractor interface {
	Extract(ctx context.Context, data []byte) ocr.Result
}

// DocumentMetrics is the slice of the metrics surface the orchestrator
// touches. Nil-safe via the noopMetrics default.
type DocumentMetrics interface {
	FinishDocument(service string, duration time.Duration, err error)
}

type noopMetrics struct{}

func (noopMetrics) FinishDocument(string, time.Duration, error) {}

type Orchestrator struct {
	store      repository.DocumentStore
	extractor  TextExtractor
	classifier classify.Classifier
	logger     *slog.Logger
	metrics    DocumentMetrics

	// Workers bounds batch parallelism; <= 1 means sequential.
	Workers int
}

func NewOrchestrator(store repository.DocumentStore, extractor TextExtractor, classifier classify.Classifier, logger *slog.Logger, m DocumentMetrics) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = noopMetrics{}
	}
	return &Orchestrator{
		store:      store,
		extractor:  extractor,
		classifier: classifier,
		logger:     logger,
		metrics:    m,
		Workers:    1,
	}
}

// ProcessBatch lists pending documents and processes each one. Failures are
// isolated per document; a cancelled context stops the batch between
// documents but never mid-document. Returns one Result per document taken on.
func (o *Orchestrator) ProcessBatch(ctx context.Context, limit int) ([]Result, error) {
	docs, err := o.store.ListPending(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}
	o.logger.Info("batch.start", "pending", len(docs), "workers", o.Workers)

	results := make([]Result, 0, len(docs))

	if o.Workers <= 1 {
		for _, doc := range docs {
			if err := ctx.Err(); err != nil {
				o.logger.Warn("batch.cancelled", "done", len(results), "pending", len(docs)-len(results))
				return results, err
			}
			results = append(results, o.ProcessDocument(ctx, doc.ID))
		}
		o.logBatchDone(results)
		return results, nil
	}

	results = make([]Result, len(docs))
	var g errgroup.Group
	g.SetLimit(o.Workers)
	var cancelled error
	for i, doc := range docs {
		if err := ctx.Err(); err != nil {
			cancelled = err
			break
		}
		g.Go(func() error {
			results[i] = o.ProcessDocument(ctx, doc.ID)
			return nil
		})
	}
	_ = g.Wait()

	// Drop zero-value slots left by an early cancellation.
	compact := results[:0]
	for _, r := range results {
		if r.DocumentID != uuid.Nil {
			compact = append(compact, r)
		}
	}
	results = compact

	if cancelled != nil {
		o.logger.Warn("batch.cancelled", "done", len(results), "pending", len(docs)-len(results))
		return results, cancelled
	}
	o.logBatchDone(results)
	return results, nil
}

func (o *Orchestrator) logBatchDone(results []Result) {
	var ok, failed, skipped int
	for _, r := range results {
		switch {
		case r.Skipped:
			skipped++
		case r.Err != nil:
			failed++
		default:
			ok++
		}
	}
	o.logger.Info("batch.done", "succeeded", ok, "failed", failed, "skipped", skipped)
}

// ProcessDocument runs the full per-document state machine. It never returns
// an error to the caller; failures land in Result.Err and are recorded
// against the document so the operator can retry.
func (o *Orchestrator) ProcessDocument(ctx context.Context, id uuid.UUID) Result {
	start := time.Now()
	res := Result{DocumentID: id, Stage: constants.StageDownloading}
	log := o.logger.With("document_id", id.String())

	defer func() {
		res.Duration = time.Since(start)
		if !res.Skipped {
			o.metrics.FinishDocument("pipeline", res.Duration, res.Err)
		}
	}()

	data, doc, err := o.store.Fetch(ctx, id)
	if err != nil {
		return o.fail(ctx, log, res, fmt.Errorf("fetch: %w", err))
	}
	res.SourceName = doc.Filename

	if doc.Processed {
		log.Info("document.skipped", "reason", "already processed", "filename", doc.Filename)
		res.Skipped = true
		res.Stage = constants.StageSucceeded
		return res
	}

	ext := filepath.Ext(doc.Filename)
	if !constants.IsPDFExt(ext) {
		// Not ours to classify; keep the name and retire it from the queue.
		log.Info("document.skipped", "reason", "unsupported extension", "filename", doc.Filename)
		if _, err := o.store.Rename(ctx, id, doc.Filename, true); err != nil {
			return o.fail(ctx, log, res, fmt.Errorf("retire non-pdf: %w", err))
		}
		res.Skipped = true
		res.Stage = constants.StageSucceeded
		return res
	}

	res.Stage = constants.StageOCRCheck
	ocrRes := o.extractor.Extract(ctx, data)
	res.OCRMethod = ocrRes.Method
	res.Stage = stageForMethod(ocrRes.Method)
	log.Info("document.ocr.done",
		"method", ocrRes.Method,
		"pages", ocrRes.Pages,
		"text_len", len(ocrRes.Text),
		"elapsed_ms", ocrRes.Duration.Milliseconds(),
	)
	if ocrRes.Method == ocr.MethodNone {
		// Every extraction path came up empty; classifying nothing would only
		// bury the document under a generic name.
		return o.fail(ctx, log, res, fmt.Errorf("document unreadable: %s", strings.Join(ocrRes.Warnings, "; ")))
	}

	res.Stage = constants.StageTriage
	outcome, err := o.classifier.Classify(ctx, ocrRes.Text)
	if err != nil {
		return o.fail(ctx, log, res, fmt.Errorf("classify: %w", err))
	}
	res.Outcome = outcome
	if outcome.Kind == classify.OutcomeDetail {
		res.Stage = constants.StageDetail
	}
	log.Info("document.classified",
		"stage", outcome.Kind,
		"target_box", outcome.Classification.TargetBox,
		"confidence", outcome.Classification.Confidence,
	)

	res.Stage = constants.StageNaming
	newName := naming.Build(outcome.Classification, ext)

	res.Stage = constants.StagePersisting
	found, err := o.store.Rename(ctx, id, newName, true)
	if err != nil {
		return o.fail(ctx, log, res, fmt.Errorf("rename: %w", err))
	}
	if !found {
		return o.fail(ctx, log, res, fmt.Errorf("rename: document vanished"))
	}

	res.NewName = newName
	res.Stage = constants.StageSucceeded
	log.Info("document.done",
		"old_name", doc.Filename,
		"new_name", newName,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res
}

// fail marks the result failed and best-effort records the error on the
// document. The recording itself uses a short detached context so that a
// cancelled batch can still leave a trace behind.
func (o *Orchestrator) fail(ctx context.Context, log *slog.Logger, res Result, err error) Result {
	res.Err = err
	failedAt := res.Stage
	res.Stage = constants.StageFailed
	log.Error("document.failed", "stage", failedAt, "err", err)

	recordCtx := ctx
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		recordCtx, cancel = context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
	}
	msg := fmt.Sprintf("%s: %v", failedAt, err)
	if rerr := o.store.RecordError(recordCtx, res.DocumentID, msg); rerr != nil {
		log.Warn("document.record_error_failed", "err", rerr)
	}
	return res
}

func stageForMethod(method string) constants.Stage {
	switch method {
	case ocr.MethodNative:
		return constants.StageSkipOCR
	case ocr.MethodLocalOCR:
		return constants.StageLocalOCR
	case ocr.MethodCloudOCR:
		return constants.StageCloudOCR
	default:
		return constants.StageOCRCheck
	}
}
