// Package classify runs the two-stage, cost-optimized classification
// protocol: a cheap triage pass, escalated to an expensive detail pass only
// when the triage confidence warrants it.
package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/lukasedel/docsorter/constants"
	"github.com/lukasedel/docsorter/internal/inference"
)

// Classifier is what the pipeline composes; the engine below is its one
// production implementation.
type Classifier interface {
	Classify(ctx context.Context, docText string) (StageOutcome, error)
}

type Config struct {
	TriageModel     string
	DetailModel     string
	TriageMaxTokens int
	DetailMaxTokens int

	EscalationTrigger constants.EscalationTrigger

	// Optional prompt overrides; prompts are operator-supplied configuration,
	// the built-in defaults only keep a bare install working.
	TriageSystemPrompt string
	DetailSystemPrompt string
}

type Engine struct {
	cfg    Config
	chat   inference.ChatClient
	logger *slog.Logger
	schema map[string]any
}

func NewEngine(cfg Config, chat inference.ChatClient, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TriageMaxTokens <= 0 {
		cfg.TriageMaxTokens = 500
	}
	if cfg.DetailMaxTokens <= 0 {
		cfg.DetailMaxTokens = 1500
	}
	if cfg.EscalationTrigger == "" {
		cfg.EscalationTrigger = constants.EscalateOnLow
	}
	if cfg.TriageSystemPrompt == "" {
		cfg.TriageSystemPrompt = defaultTriageSystemPrompt
	}
	if cfg.DetailSystemPrompt == "" {
		cfg.DetailSystemPrompt = defaultDetailSystemPrompt
	}
	return &Engine{
		cfg:    cfg,
		chat:   chat,
		logger: logger,
		schema: inference.BuildClassificationJSONSchema(),
	}
}

// Classify runs triage and, when the escalation rule fires, the detail pass.
// The detail result supersedes the triage result entirely; nothing is merged
// field by field. A malformed model answer never surfaces as an error — it
// degrades to a low-confidence "other" classification — because one bad
// response must not abort a batch of hundreds of documents. The returned
// error is non-nil only when the inference backend itself failed.
func (e *Engine) Classify(ctx context.Context, docText string) (StageOutcome, error) {
	rid := uuid.New().String()
	start := time.Now()

	triage, err := e.runStage(ctx, rid, e.cfg.TriageModel, e.cfg.TriageSystemPrompt, docText, triageTextLimit, e.cfg.TriageMaxTokens)
	if err != nil {
		return StageOutcome{}, fmt.Errorf("triage stage: %w", err)
	}

	if !e.shouldEscalate(triage.Classification.Confidence) {
		e.logger.Info("classify.triage.final",
			"req_id", rid,
			"box", triage.Classification.TargetBox,
			"confidence", triage.Classification.Confidence,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return triage, nil
	}

	e.logger.Info("classify.escalate",
		"req_id", rid,
		"triage_confidence", triage.Classification.Confidence,
		"trigger", e.cfg.EscalationTrigger,
	)

	detail, err := e.runStage(ctx, rid, e.cfg.DetailModel, e.cfg.DetailSystemPrompt, docText, detailTextLimit, e.cfg.DetailMaxTokens)
	if err != nil {
		return StageOutcome{}, fmt.Errorf("detail stage: %w", err)
	}
	if detail.Kind != OutcomeParseFailure {
		detail.Kind = OutcomeDetail
	}

	e.logger.Info("classify.detail.final",
		"req_id", rid,
		"box", detail.Classification.TargetBox,
		"confidence", detail.Classification.Confidence,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return detail, nil
}

func (e *Engine) shouldEscalate(conf constants.Confidence) bool {
	switch conf {
	case constants.ConfidenceLow:
		return true
	case constants.ConfidenceMedium:
		return e.cfg.EscalationTrigger == constants.EscalateOnLowOrMedium
	}
	return false
}

func (e *Engine) runStage(ctx context.Context, rid, model, systemPrompt, docText string, textLimit, maxTokens int) (StageOutcome, error) {
	req := inference.Request{
		Model: model,
		Messages: []inference.Message{
			inference.TextMessage(inference.RoleSystem, systemPrompt),
			inference.TextMessage(inference.RoleUser, buildUserPrompt(docText, textLimit)),
			inference.TextMessage(inference.RoleSystem, schemaMessage(e.schema)),
		},
		ResponseFormat: map[string]any{"type": "json_object"},
		MaxTokens:      maxTokens,
	}

	reply, err := e.chat.Send(ctx, req)
	if err != nil {
		return StageOutcome{}, err
	}
	return e.interpret(rid, model, reply), nil
}

// interpret turns a raw model reply into a stage outcome. All the ways a
// reply can be unusable end in the same place: a parse-failure outcome
// carrying a minimal other/low classification.
func (e *Engine) interpret(rid, model, reply string) StageOutcome {
	raw, ok := inference.ExtractJSONObject(reply)
	if !ok {
		e.logger.Warn("classify.parse_failure", "req_id", rid, "model", model, "reply_len", len(reply))
		return parseFailureOutcome("model reply contained no JSON object")
	}

	cleaned, dropped, err := inference.SanitizeClassificationJSON(raw)
	if err != nil {
		e.logger.Warn("classify.sanitize_failure", "req_id", rid, "model", model, "error", err)
		return parseFailureOutcome("model reply could not be sanitized: " + err.Error())
	}
	if len(dropped) > 0 {
		e.logger.Warn("classify.sanitized", "req_id", rid, "model", model, "dropped", dropped)
	}

	if err := inference.ValidateJSONAgainstSchema(e.schema, cleaned); err != nil {
		// Lenient path: canonicalization below coerces off-enum labels to
		// safe values, so a schema miss is a warning, not a failure.
		e.logger.Warn("classify.schema_mismatch", "req_id", rid, "model", model, "error", err)
	}

	var p payload
	if err := json.Unmarshal(cleaned, &p); err != nil {
		e.logger.Warn("classify.decode_failure", "req_id", rid, "model", model, "error", err)
		return parseFailureOutcome("model reply could not be decoded: " + err.Error())
	}
	if p.TargetBox == "" && p.Confidence == "" {
		return parseFailureOutcome("model reply carried no classification fields")
	}

	return StageOutcome{Kind: OutcomeTriage, Classification: p.toClassification(raw)}
}

func parseFailureOutcome(reason string) StageOutcome {
	return StageOutcome{
		Kind: OutcomeParseFailure,
		Classification: Classification{
			TargetBox:  constants.BoxOther,
			Confidence: constants.ConfidenceLow,
			Reasoning:  "classification degraded: " + reason,
		},
	}
}
