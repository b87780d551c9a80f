package constants

import "strings"

// AllowedExtensions holds the file extensions the pipeline will classify.
// Everything else short-circuits to "already done" with the existing name.
var AllowedExtensions = map[string]struct{}{
	"pdf": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// IsPDFExt reports whether the extension names a classifiable document.
func IsPDFExt(ext string) bool {
	_, ok := AllowedExtensions[NormalizeExt(ext)]
	return ok
}
