package constants

import "strings"

// docTypeSynonyms normalizes free-text document types onto the short tokens
// used in generated filenames. Keys are lowercased.
var docTypeSynonyms = map[string]string{
	"beitragserinnerung":        "Mahnung",
	"zahlungserinnerung":        "Mahnung",
	"letzte beitragserinnerung": "Mahnung",
	"letzte zahlungserinnerung": "Mahnung",
	"mahnung":                   "Mahnung",
	"versicherungsschein":       "Police",
	"police":                    "Police",
	"policen-nachtrag":          "Nachtrag",
	"nachtrag":                  "Nachtrag",
	"beitragsrechnung":          "Rechnung",
	"rechnung":                  "Rechnung",
	"kuendigung":                "Kuendigung",
	"kündigung":                 "Kuendigung",
	"kuendigungsbestaetigung":   "Kuendigung",
	"schadenmeldung":            "Schaden",
	"schadensmeldung":           "Schaden",
	"angebot":                   "Angebot",
	"antrag":                    "Antrag",
	"courtageabrechnung":        "Abrechnung",
	"courtagenote":              "Abrechnung",
	"beitragsanpassung":         "Anpassung",
}

// NormalizeDocType maps a free-text document type onto its filename token.
// Unmapped values report ok=false; callers pass those through slugified.
func NormalizeDocType(input string) (string, bool) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	if normalized == "" {
		return "", false
	}
	if token, ok := docTypeSynonyms[normalized]; ok {
		return token, true
	}
	return "", false
}

// insuranceLineSynonyms maps free-text insurance lines onto filename tokens.
var insuranceLineSynonyms = map[string]string{
	"leben":               "Leben",
	"lebensversicherung":  "Leben",
	"life":                "Leben",
	"sach":                "Sach",
	"sachversicherung":    "Sach",
	"property":            "Sach",
	"hausrat":             "Sach",
	"wohngebaeude":        "Sach",
	"wohngebäude":         "Sach",
	"haftpflicht":         "Sach",
	"kfz":                 "Sach",
	"kranken":             "Kranken",
	"krankenversicherung": "Kranken",
	"health":              "Kranken",
	"pflege":              "Kranken",
	"bu":                  "Leben",
	"berufsunfaehigkeit":  "Leben",
	"berufsunfähigkeit":   "Leben",
}

// NormalizeInsuranceLine maps a free-text insurance line onto its token.
func NormalizeInsuranceLine(input string) (string, bool) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	if normalized == "" {
		return "", false
	}
	if token, ok := insuranceLineSynonyms[normalized]; ok {
		return token, true
	}
	return "", false
}

// LineTokenForBox returns the insurance-line token implied by a target box,
// for classifications that carry no explicit insurance_type.
func LineTokenForBox(box TargetBox) (string, bool) {
	switch box {
	case BoxLife:
		return "Leben", true
	case BoxProperty:
		return "Sach", true
	case BoxHealth:
		return "Kranken", true
	}
	return "", false
}
