package classify

import (
	"encoding/json"
	"strings"
)

const (
	triageTextLimit = 6000
	detailTextLimit = 20000
)

// defaultTriageSystemPrompt and defaultDetailSystemPrompt are fallbacks; the
// operator normally supplies prompt text through configuration.
const defaultTriageSystemPrompt = "You sort incoming documents for a German insurance broker. " +
	"Decide which box the document belongs to: courtage (commission statements), " +
	"property (Sachversicherung), life (Lebensversicherung), health (Krankenversicherung), " +
	"or other. Also extract, when visible, the insurer name, the document type " +
	"(e.g. Versicherungsschein, Beitragsrechnung, Mahnung), the insurance line, and the " +
	"document date. Report your confidence honestly as high, medium, or low. " +
	"Return ONLY JSON that matches the provided JSON Schema. Never output null; omit unknown fields."

const defaultDetailSystemPrompt = "You sort incoming documents for a German insurance broker. " +
	"A first pass was not confident about this document, so examine it with high scrutiny. " +
	"Read the full text carefully, weigh conflicting signals, and decide the box: " +
	"courtage, property, life, health, or other. Extract the insurer name, document type, " +
	"insurance line, and document date as precisely as the text allows. " +
	"Use ISO-8601 dates and set date_granularity to how much of the date you actually saw " +
	"(day, month, or year). " +
	"Return ONLY JSON that matches the provided JSON Schema. Never output null; omit unknown fields."

func buildUserPrompt(docText string, limit int) string {
	var b strings.Builder
	b.WriteString("Document text:\n")
	if len(docText) > limit {
		b.WriteString(docText[:limit])
		b.WriteString("\n[truncated]")
	} else {
		b.WriteString(docText)
	}
	b.WriteString("\n\nReturn ONLY JSON that matches the provided schema.")
	return b.String()
}

func schemaMessage(schema map[string]any) string {
	return "JSON Schema:\n" + mustJSON(schema)
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
