// Package extract builds RegionSets: given candidate lines in an artifact,
// it asks the symbol provider for enclosing construct boundaries, falls back
// to a fixed window, merges overlapping candidates, snapshots the original
// text, and renders the delimited scratch buffer.
package extract

import (
	"context"

	"github.com/slicepad/slicepad/internal/engine/region"
	"github.com/slicepad/slicepad/internal/logging"
	"github.com/slicepad/slicepad/internal/provider"
)

// Document is the read-only view of an artifact the extractor needs.
type Document interface {
	// LineCount returns the number of lines in the artifact.
	LineCount() int
	// TextRange returns the text of the inclusive line span, joined with
	// newlines and without a trailing newline.
	TextRange(start, end int) string
}

// Defaults for boundary selection.
const (
	// DefaultWindowRadius is the number of lines taken on each side of a
	// candidate line when no symbol boundary exists.
	DefaultWindowRadius = 7

	// DefaultGapThreshold is the maximum gap between candidate ranges
	// that still merges them into one region.
	DefaultGapThreshold = 2
)

// Extractor carves boundary-aligned regions out of artifacts.
type Extractor struct {
	symbols      provider.SymbolProvider
	windowRadius int
	gapThreshold int
	logger       *logging.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithWindowRadius sets the fallback window radius.
func WithWindowRadius(radius int) Option {
	return func(e *Extractor) {
		e.windowRadius = radius
	}
}

// WithGapThreshold sets the merge gap threshold.
func WithGapThreshold(gap int) Option {
	return func(e *Extractor) {
		e.gapThreshold = gap
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(e *Extractor) {
		e.logger = logger
	}
}

// New creates an Extractor. The symbol provider may be nil, in which case
// every candidate uses the fallback window.
func New(symbols provider.SymbolProvider, opts ...Option) *Extractor {
	e := &Extractor{
		symbols:      symbols,
		windowRadius: DefaultWindowRadius,
		gapThreshold: DefaultGapThreshold,
		logger:       logging.Null,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract produces the RegionSet and scratch buffer text for the given
// candidate lines of one artifact. It never mutates the artifact. An empty
// candidate set yields an empty RegionSet and an empty buffer.
func (e *Extractor) Extract(ctx context.Context, doc Document, path string, candidates []int) (*region.Set, string, error) {
	if len(candidates) == 0 {
		set, err := region.NewSet(nil)
		if err != nil {
			return nil, "", err
		}
		return set, "", nil
	}

	lineCount := doc.LineCount()
	if lineCount == 0 {
		// Degenerate artifact: a single empty region spanning line 0.
		set, err := region.NewSet([]region.Region{{
			ID:    region.IDFor(0),
			Range: region.LineRange{Start: 0, End: 0},
		}})
		if err != nil {
			return nil, "", err
		}
		return set, set.Render(), nil
	}

	symbols := e.querySymbols(ctx, path)

	ranges := make([]region.LineRange, 0, len(candidates))
	for _, line := range candidates {
		ranges = append(ranges, clamp(e.boundary(symbols, line), lineCount))
	}

	merged := region.MergeRanges(ranges, e.gapThreshold)

	regions := make([]region.Region, len(merged))
	for i, r := range merged {
		regions[i] = region.Region{
			ID:     region.IDFor(i),
			Range:  r,
			Backup: doc.TextRange(r.Start, r.End),
		}
	}

	set, err := region.NewSet(regions)
	if err != nil {
		return nil, "", err
	}

	e.logger.Debug("extracted %d regions from %s (%d candidates)", set.Len(), path, len(candidates))
	return set, set.Render(), nil
}

// querySymbols fetches the artifact's symbol tree. Provider errors are not
// the engine's failure: they degrade to window fallback for every candidate.
func (e *Extractor) querySymbols(ctx context.Context, path string) []provider.DocumentSymbol {
	if e.symbols == nil {
		return nil
	}
	symbols, err := e.symbols.QuerySymbols(ctx, path)
	if err != nil {
		e.logger.Warn("symbol query for %s failed, using window fallback: %v", path, err)
		return nil
	}
	return symbols
}

// boundary picks the region range for one candidate line: the innermost
// container-like symbol enclosing it, or the fixed window when none exists.
func (e *Extractor) boundary(symbols []provider.DocumentSymbol, line int) region.LineRange {
	if rng, ok := provider.InnermostContainer(symbols, line); ok {
		return rng
	}
	return region.LineRange{Start: line - e.windowRadius, End: line + e.windowRadius}
}

// clamp constrains a range to the artifact's lines.
func clamp(r region.LineRange, lineCount int) region.LineRange {
	last := lineCount - 1
	if r.Start < 0 {
		r.Start = 0
	}
	if r.Start > last {
		r.Start = last
	}
	if r.End > last {
		r.End = last
	}
	if r.End < r.Start {
		r.End = r.Start
	}
	return r
}
