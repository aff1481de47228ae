// Package sync turns an edited scratch buffer back into artifact edits: it
// parses the delimiter grammar, applies the composite write-back through the
// document store, and runs the shift calculus that keeps every region
// addressable after its neighbors change size.
package sync

import (
	"strings"

	"github.com/slicepad/slicepad/internal/engine/region"
)

// Parse splits scratch buffer text back into per-region code. The ids
// slice, in region order, defines the expected delimiters; the parsed
// delimiter count must match exactly and every id must be known and
// unique, otherwise the buffer grammar was violated and nothing may be
// applied. Text before the first delimiter is discarded.
func Parse(buffer string, ids []string) (map[string]string, error) {
	matches := region.DelimiterPattern.FindAllStringSubmatchIndex(buffer, -1)
	if len(matches) != len(ids) {
		return nil, &DelimiterError{Expected: len(ids), Found: len(matches)}
	}

	known := make(map[string]bool, len(ids))
	for _, id := range ids {
		known[id] = true
	}

	code := make(map[string]string, len(matches))
	for i, m := range matches {
		id := buffer[m[2]:m[3]]
		if !known[id] {
			return nil, &DelimiterError{Expected: len(ids), Found: len(matches),
				Detail: "unknown region id " + id}
		}
		if _, dup := code[id]; dup {
			return nil, &DelimiterError{Expected: len(ids), Found: len(matches),
				Detail: "duplicate region id " + id}
		}

		start := m[1]
		if start < len(buffer) && buffer[start] == '\n' {
			start++
		}
		end := len(buffer)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}

		code[id] = stripTrailingBlank(buffer[start:end])
	}

	return code, nil
}

// stripTrailingBlank removes exactly the one blank line the extractor
// appended after a region's code, and never more, so intentional trailing
// blank lines in user edits survive. At the end of the buffer an editor may
// already have trimmed part of it.
func stripTrailingBlank(chunk string) string {
	if strings.HasSuffix(chunk, "\n\n") {
		return chunk[:len(chunk)-2]
	}
	if strings.HasSuffix(chunk, "\n") {
		return chunk[:len(chunk)-1]
	}
	return chunk
}
