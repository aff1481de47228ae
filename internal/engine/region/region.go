// Package region defines the value types for artifact slices: a Region is
// one contiguous line span carved out of an original artifact, and a Set is
// the ordered, non-overlapping collection of Regions owned by one sandbox
// session.
package region

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Errors returned by region operations.
var (
	ErrRangeInvalid  = errors.New("invalid line range")
	ErrRangesOverlap = errors.New("ranges overlap or are out of order")
	ErrCountMismatch = errors.New("range count does not match region count")
)

// LineRange is an inclusive, 0-based span of lines in an artifact.
type LineRange struct {
	Start int
	End   int
}

// Lines returns the number of lines covered by the range.
func (r LineRange) Lines() int {
	return r.End - r.Start + 1
}

// Valid reports whether the range is well formed.
func (r LineRange) Valid() bool {
	return r.Start >= 0 && r.End >= r.Start
}

// String returns the range in [start,end] form.
func (r LineRange) String() string {
	return fmt.Sprintf("[%d,%d]", r.Start, r.End)
}

// Region is one slice of an original artifact represented in a scratch
// buffer. The ID is stable for the session's lifetime; Range is the region's
// position in the current state of the artifact and is updated only by the
// shift calculus after a successful write-back. Backup holds the exact
// original text at creation time and is used only for revert.
type Region struct {
	ID     string
	Range  LineRange
	Backup string
}

// Set is the ordered collection of Regions sliced from one artifact in one
// extraction pass.
type Set struct {
	regions []Region
}

// NewSet builds a Set from regions already sorted by ascending start line.
// It rejects out-of-order or overlapping ranges; the extractor guarantees
// these invariants by merging candidates before construction.
func NewSet(regions []Region) (*Set, error) {
	for i, reg := range regions {
		if !reg.Range.Valid() {
			return nil, fmt.Errorf("region %s: %w: %s", reg.ID, ErrRangeInvalid, reg.Range)
		}
		if i > 0 && reg.Range.Start <= regions[i-1].Range.End {
			return nil, fmt.Errorf("regions %s and %s: %w",
				regions[i-1].ID, reg.ID, ErrRangesOverlap)
		}
	}

	set := &Set{regions: make([]Region, len(regions))}
	copy(set.regions, regions)
	return set, nil
}

// Len returns the number of regions.
func (s *Set) Len() int {
	return len(s.regions)
}

// Regions returns the regions in ascending order. The returned slice is a
// copy; mutating it does not affect the set.
func (s *Set) Regions() []Region {
	out := make([]Region, len(s.regions))
	copy(out, s.regions)
	return out
}

// Region returns the region at index i.
func (s *Set) Region(i int) Region {
	return s.regions[i]
}

// ByID returns the region with the given id.
func (s *Set) ByID(id string) (Region, bool) {
	for _, reg := range s.regions {
		if reg.ID == id {
			return reg, true
		}
	}
	return Region{}, false
}

// IDs returns the region ids in ascending range order.
func (s *Set) IDs() []string {
	ids := make([]string, len(s.regions))
	for i, reg := range s.regions {
		ids[i] = reg.ID
	}
	return ids
}

// SetRanges replaces every region's range in one step, preserving region
// order. It is the mutation hook used by the shift calculus after a
// successful write-back; the invariants are re-checked so a bad update can
// never leave the set inconsistent.
func (s *Set) SetRanges(ranges []LineRange) error {
	if len(ranges) != len(s.regions) {
		return ErrCountMismatch
	}
	for i, r := range ranges {
		if !r.Valid() {
			return fmt.Errorf("region %s: %w: %s", s.regions[i].ID, ErrRangeInvalid, r)
		}
		if i > 0 && r.Start <= ranges[i-1].End {
			return fmt.Errorf("regions %s and %s: %w",
				s.regions[i-1].ID, s.regions[i].ID, ErrRangesOverlap)
		}
	}
	for i := range s.regions {
		s.regions[i].Range = ranges[i]
	}
	return nil
}

// IDFor returns the canonical region id for position i.
func IDFor(i int) string {
	return fmt.Sprintf("region_%d", i)
}

// CountLines returns the number of lines in a region's code text. Empty text
// still occupies one line, matching how a region always spans at least one
// artifact line.
func CountLines(text string) int {
	return strings.Count(text, "\n") + 1
}

// MergeRanges sorts the candidate ranges by start line and repeatedly merges
// pairs that overlap or sit within gap lines of each other, so that two
// regions whose independent edits would collide during write-back can never
// both be emitted.
func MergeRanges(ranges []LineRange, gap int) []LineRange {
	if len(ranges) == 0 {
		return nil
	}

	sorted := make([]LineRange, len(ranges))
	copy(sorted, ranges)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Start != sorted[j].Start {
			return sorted[i].Start < sorted[j].Start
		}
		return sorted[i].End < sorted[j].End
	})

	merged := []LineRange{sorted[0]}
	for _, next := range sorted[1:] {
		prev := &merged[len(merged)-1]
		if next.Start <= prev.End+gap {
			if next.End > prev.End {
				prev.End = next.End
			}
			continue
		}
		merged = append(merged, next)
	}
	return merged
}
