package trial

import (
	"strings"

	"github.com/deixis/tally/internal/report"
)

// Classify reports whether captured output marks a valid trial. It is a
// plain substring test: output containing marker anywhere is Valid,
// everything else (including empty output) is Invalid.
func Classify(output, marker string) report.Category {
	if marker != "" && strings.Contains(output, marker) {
		return report.Valid
	}
	return report.Invalid
}
