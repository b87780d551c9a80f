package inference

import (
	"encoding/json"
	"regexp"
	"strings"
)

var (
	reFence   = regexp.MustCompile("(?is)^```(?:json)?\\s*(.*?)\\s*```$")
	reObjSpan = regexp.MustCompile(`(?s)\{.*\}`)
)

// ExtractJSONObject pulls a JSON object out of a model's raw text answer,
// tolerating surrounding prose and Markdown code fences. Models do not always
// honor formatting instructions, so malformed input is an expected case:
// this function never returns an error, only ok=false when no object can be
// recovered. Callers treat ok=false as "unclassified", not as a failure.
func ExtractJSONObject(raw string) (json.RawMessage, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, false
	}

	if m := reFence.FindStringSubmatch(s); m != nil {
		s = m[1]
	}

	if obj, ok := tryParseObject(s); ok {
		return obj, true
	}

	// Fall back to the first {...} span, greedy across newlines.
	if span := reObjSpan.FindString(s); span != "" {
		if obj, ok := tryParseObject(span); ok {
			return obj, true
		}
	}

	return nil, false
}

func tryParseObject(s string) (json.RawMessage, bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "{") {
		return nil, false
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, false
	}
	return json.RawMessage(s), true
}
