// Package naming maps a classification onto a deterministic, filesystem-safe
// filename. Pure functions only: no I/O, no clock, no hidden state.
package naming

import (
	"regexp"
	"strings"

	"github.com/lukasedel/docsorter/constants"
	"github.com/lukasedel/docsorter/internal/classify"
)

const (
	insurerMaxLen = 35
	docTypeMaxLen = 20

	placeholderInsurer = "Unbekannt"
	genericName        = "Dokument"
)

// Build generates the canonical filename for a classification and the
// document's original extension. Total: it always returns a non-empty name,
// whatever optional fields are missing.
func Build(c classify.Classification, ext string) string {
	tokens := []string{insurerToken(c.Insurer)}

	line := lineToken(c)
	if c.TargetBox == constants.BoxCourtage {
		tokens = append(tokens, "Courtage")
		if line != "" {
			tokens = append(tokens, line)
		}
	} else {
		if line != "" {
			tokens = append(tokens, line)
		}
		if dt := docTypeToken(c.DocumentType); dt != "" {
			tokens = append(tokens, dt)
		}
	}

	if date := dateToken(c.DocumentDateISO, c.DateGranularity); date != "" {
		tokens = append(tokens, date)
	}

	name := strings.Join(tokens, "_")
	if name == "" || name == placeholderInsurer {
		name = genericName
	}
	return name + normalizeExt(ext)
}

func insurerToken(insurer string) string {
	slug := Slugify(insurer, insurerMaxLen)
	if slug == "" {
		return placeholderInsurer
	}
	return slug
}

// lineToken prefers the explicit insurance_type and falls back to the line
// implied by the target box itself.
func lineToken(c classify.Classification) string {
	if token, ok := constants.NormalizeInsuranceLine(c.InsuranceType); ok {
		return token
	}
	if token, ok := constants.LineTokenForBox(c.TargetBox); ok {
		return token
	}
	return ""
}

func docTypeToken(docType string) string {
	if token, ok := constants.NormalizeDocType(docType); ok {
		return token
	}
	return Slugify(docType, docTypeMaxLen)
}

var isoDate = regexp.MustCompile(`^\d{4}(-\d{2}(-\d{2})?)?$`)

// dateToken truncates the ISO date to the precision the granularity vouches
// for: YYYY, YYYY-MM, or YYYY-MM-DD. Anything that is not a plain ISO date
// is dropped entirely; model output must not smuggle arbitrary characters
// into a filename.
func dateToken(iso string, granularity constants.DateGranularity) string {
	iso = strings.TrimSpace(iso)
	if !isoDate.MatchString(iso) {
		return ""
	}
	width := 10
	switch granularity {
	case constants.GranularityYear:
		width = 4
	case constants.GranularityMonth:
		width = 7
	}
	if len(iso) > width {
		iso = iso[:width]
	}
	return iso
}

var umlauts = strings.NewReplacer(
	"ä", "ae", "ö", "oe", "ü", "ue",
	"Ä", "Ae", "Ö", "Oe", "Ü", "Ue",
	"ß", "ss",
)

// Slugify normalizes free text into a filename token: German-locale safe
// transliteration, "&" becomes "und", every disallowed rune becomes "_",
// repeats collapse, and the result is trimmed and capped at maxLen.
func Slugify(s string, maxLen int) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	s = umlauts.Replace(s)
	s = strings.ReplaceAll(s, "&", "und")

	var b strings.Builder
	lastUnderscore := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}

	slug := strings.Trim(b.String(), "_")
	if maxLen > 0 && len(slug) > maxLen {
		slug = strings.Trim(slug[:maxLen], "_")
	}
	return slug
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" {
		return ".pdf"
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
