package region

import (
	"regexp"
	"strings"
)

// The scratch buffer grammar. Each region is introduced by a delimiter
// line carrying its id, followed by the region's code and exactly one
// blank line:
//
//	<<<slicepad:region_0>>>
//	<region 0 code>
//
//	<<<slicepad:region_1>>>
//	...
//
// The delimiter token is distinctive enough not to collide with ordinary
// source text. Any buffer mutation that preserves the delimiter lines
// round-trips losslessly; deleting a delimiter line is unrecoverable and
// rejected at parse time.
const (
	delimiterOpen  = "<<<slicepad:"
	delimiterClose = ">>>"
)

// DelimiterPattern matches a delimiter line and captures the region id.
var DelimiterPattern = regexp.MustCompile(`(?m)^<<<slicepad:(region_\d+)>>>$`)

// DelimiterFor returns the delimiter line for a region id, without newline.
func DelimiterFor(id string) string {
	return delimiterOpen + id + delimiterClose
}

// Render encodes the set as scratch buffer text using each region's backup
// text, in region order. An empty set renders as an empty buffer.
func (s *Set) Render() string {
	var b strings.Builder
	for _, reg := range s.regions {
		b.WriteString(DelimiterFor(reg.ID))
		b.WriteByte('\n')
		b.WriteString(reg.Backup)
		b.WriteString("\n\n")
	}
	return b.String()
}
