package sync

import (
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/slicepad/slicepad/internal/engine/region"
)

// Preview renders a unified diff of the pending write-back: each region's
// pristine backup against its current scratch buffer code. Unchanged
// regions produce no output. The result is purely informational; it never
// touches the artifact.
func Preview(set *region.Set, code map[string]string) (string, error) {
	var b strings.Builder

	for _, reg := range set.Regions() {
		text, ok := code[reg.ID]
		if !ok || text == reg.Backup {
			continue
		}

		diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
			A:        splitLinesKeepNL(reg.Backup),
			B:        splitLinesKeepNL(text),
			FromFile: reg.ID + " (original)",
			ToFile:   reg.ID + " (edited)",
			Context:  3,
		})
		if err != nil {
			return "", fmt.Errorf("diffing %s: %w", reg.ID, err)
		}
		b.WriteString(diff)
	}

	return b.String(), nil
}

// splitLinesKeepNL splits into lines keeping the newline on each element,
// which produces better unified hunks.
func splitLinesKeepNL(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.SplitAfter(s, "\n")
}
