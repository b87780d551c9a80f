package constants

import "strings"

// TargetBox is the single routing decision for a classified document.
type TargetBox string

const (
	BoxCourtage TargetBox = "courtage"
	BoxProperty TargetBox = "property"
	BoxLife     TargetBox = "life"
	BoxHealth   TargetBox = "health"
	BoxOther    TargetBox = "other"
)

var allBoxes = []TargetBox{
	BoxCourtage,
	BoxProperty,
	BoxLife,
	BoxHealth,
	BoxOther,
}

func BoxesAsStringSlice() []string {
	result := make([]string, len(allBoxes))
	for i, b := range allBoxes {
		result[i] = string(b)
	}
	return result
}

// CanonicalizeBox maps a model-provided label onto a known box.
// Unknown labels fall back to BoxOther with ok=false.
func CanonicalizeBox(input string) (TargetBox, bool) {
	if input == "" {
		return BoxOther, false
	}

	normalized := strings.ToLower(strings.TrimSpace(input))

	// synonyms map: German labels the models tend to emit
	synonyms := map[string]TargetBox{
		"courtagen":           BoxCourtage,
		"provision":           BoxCourtage,
		"sach":                BoxProperty,
		"sachversicherung":    BoxProperty,
		"leben":               BoxLife,
		"lebensversicherung":  BoxLife,
		"kranken":             BoxHealth,
		"krankenversicherung": BoxHealth,
		"sonstiges":           BoxOther,
	}

	if box, ok := synonyms[normalized]; ok {
		return box, true
	}

	for _, b := range allBoxes {
		if normalized == string(b) {
			return b, true
		}
	}

	return BoxOther, false
}

// Confidence is the model's self-reported certainty for a classification.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

func ConfidencesAsStringSlice() []string {
	return []string{string(ConfidenceHigh), string(ConfidenceMedium), string(ConfidenceLow)}
}

// CanonicalizeConfidence normalizes a model-provided confidence label.
// Anything unrecognized is treated as low so the detail stage can catch it.
func CanonicalizeConfidence(input string) (Confidence, bool) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "high", "hoch":
		return ConfidenceHigh, true
	case "medium", "mittel":
		return ConfidenceMedium, true
	case "low", "niedrig":
		return ConfidenceLow, true
	}
	return ConfidenceLow, false
}

// DateGranularity says how much of an ISO date string is meaningful.
type DateGranularity string

const (
	GranularityDay   DateGranularity = "day"
	GranularityMonth DateGranularity = "month"
	GranularityYear  DateGranularity = "year"
)

func CanonicalizeGranularity(input string) (DateGranularity, bool) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "day", "tag":
		return GranularityDay, true
	case "month", "monat":
		return GranularityMonth, true
	case "year", "jahr":
		return GranularityYear, true
	}
	return GranularityDay, false
}

// EscalationTrigger selects which triage confidences force the detail stage.
type EscalationTrigger string

const (
	EscalateOnLow         EscalationTrigger = "low"
	EscalateOnLowOrMedium EscalationTrigger = "low_or_medium"
)
