package pipeline

import (
	"time"

	"github.com/google/uuid"

	"github.com/lukasedel/docsorter/constants"
	"github.com/lukasedel/docsorter/internal/classify"
)

// Result is the terminal record for one document run. Exactly one of
// Skipped, Err, or a successful NewName applies.
type Result struct {
	DocumentID uuid.UUID
	SourceName string
	NewName    string
	Stage      constants.Stage
	OCRMethod  string
	Outcome    classify.StageOutcome
	Skipped    bool
	Err        error
	Duration   time.Duration
}

// Succeeded reports whether the document reached a terminal rename.
func (r Result) Succeeded() bool {
	return r.Err == nil && !r.Skipped
}
