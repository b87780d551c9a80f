package classify

import (
	"encoding/json"

	"github.com/lukasedel/docsorter/constants"
)

// Classification is the structured result of the pipeline for one document.
// It is created once per run and never mutated afterwards; a re-run replaces
// it wholesale. TargetBox and Confidence are always set; everything else is
// best-effort metadata used only for naming.
type Classification struct {
	TargetBox       constants.TargetBox
	Confidence      constants.Confidence
	Reasoning       string
	Insurer         string
	DocumentType    string
	InsuranceType   string
	DocumentDateISO string
	DateGranularity constants.DateGranularity

	// RawResponse is the original structured payload, retained for
	// traceability. It is never re-parsed.
	RawResponse json.RawMessage
}

// OutcomeKind tags which stage produced a classification, so callers handle
// every case explicitly instead of probing a map for keys.
type OutcomeKind string

const (
	OutcomeTriage       OutcomeKind = "triage"
	OutcomeDetail       OutcomeKind = "detail"
	OutcomeParseFailure OutcomeKind = "parse_failure"
)

// StageOutcome pairs a classification with the stage that produced it.
type StageOutcome struct {
	Kind           OutcomeKind
	Classification Classification
}

// payload is the wire shape both stages ask the model for.
type payload struct {
	TargetBox       string `json:"target_box"`
	Confidence      string `json:"confidence"`
	Reasoning       string `json:"reasoning"`
	Insurer         string `json:"insurer,omitempty"`
	DocumentType    string `json:"document_type,omitempty"`
	InsuranceType   string `json:"insurance_type,omitempty"`
	DocumentDateISO string `json:"document_date_iso,omitempty"`
	DateGranularity string `json:"date_granularity,omitempty"`
}

// toClassification canonicalizes the model's labels. Unknown boxes land in
// "other", unknown confidences in "low", so a sloppy model answer can only
// make the result more cautious, never wrong.
func (p payload) toClassification(raw json.RawMessage) Classification {
	box, _ := constants.CanonicalizeBox(p.TargetBox)
	conf, _ := constants.CanonicalizeConfidence(p.Confidence)

	c := Classification{
		TargetBox:       box,
		Confidence:      conf,
		Reasoning:       p.Reasoning,
		Insurer:         p.Insurer,
		DocumentType:    p.DocumentType,
		InsuranceType:   p.InsuranceType,
		DocumentDateISO: p.DocumentDateISO,
		RawResponse:     raw,
	}
	if p.DocumentDateISO != "" {
		if p.DateGranularity != "" {
			c.DateGranularity, _ = constants.CanonicalizeGranularity(p.DateGranularity)
		} else {
			c.DateGranularity = granularityFromDate(p.DocumentDateISO)
		}
	}
	return c
}

// granularityFromDate infers granularity from the date string's own shape.
func granularityFromDate(iso string) constants.DateGranularity {
	switch len(iso) {
	case 4:
		return constants.GranularityYear
	case 7:
		return constants.GranularityMonth
	default:
		return constants.GranularityDay
	}
}
