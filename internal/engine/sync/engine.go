package sync

import (
	"fmt"

	"github.com/slicepad/slicepad/internal/docstore"
	"github.com/slicepad/slicepad/internal/engine/region"
	"github.com/slicepad/slicepad/internal/logging"
)

// DocumentStore is the write side of the document store the engine needs.
type DocumentStore interface {
	// ApplyLineEdits applies a composite full-line-span replacement
	// atomically: all edits apply or none do.
	ApplyLineEdits(path string, edits []docstore.LineEdit) error

	// Save persists the artifact to stable storage.
	Save(path string) error
}

// Document is the read side: the artifact's current shape.
type Document interface {
	LineCount() int
}

// Engine applies parsed scratch buffer code back to artifacts.
type Engine struct {
	docs   DocumentStore
	logger *logging.Logger
}

// NewEngine creates a sync engine over the given document store.
func NewEngine(docs DocumentStore, logger *logging.Logger) *Engine {
	if logger == nil {
		logger = logging.Null
	}
	return &Engine{docs: docs, logger: logger.WithComponent("sync")}
}

// Apply writes every region's new code back to its current range in one
// composite edit, persists the artifact, and reshapes the set's ranges via
// the shift calculus. On a store rejection the set is left untouched and
// ErrWriteBackFailed is returned, so a retry starts from consistent state.
//
// Region end lines are clamped to the artifact's current line count before
// the replacement span is computed, exactly as at extraction time, because
// the artifact may have changed since the ranges were recorded.
func (e *Engine) Apply(path string, doc Document, set *region.Set, code map[string]string) error {
	regions := set.Regions()
	lineCount := doc.LineCount()

	edits := make([]docstore.LineEdit, len(regions))
	spans := make([]region.LineRange, len(regions))
	for i, reg := range regions {
		text, ok := code[reg.ID]
		if !ok {
			return &DelimiterError{Expected: len(regions), Found: len(code),
				Detail: "no code parsed for " + reg.ID}
		}
		span := clampEnd(reg.Range, lineCount)
		spans[i] = span
		edits[i] = docstore.LineEdit{Start: span.Start, End: span.End, Text: text}
	}

	if err := e.docs.ApplyLineEdits(path, edits); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteBackFailed, err)
	}

	// Shift calculus: walk regions in ascending order carrying one running
	// shift. Each region absorbs the growth of every region before it, then
	// contributes its own size change to every region after it. Recomputing
	// per region without the running shift would leave every later range
	// pointing at stale line numbers.
	shift := 0
	ranges := make([]region.LineRange, len(regions))
	for i, reg := range regions {
		oldLines := spans[i].Lines()
		newLines := region.CountLines(code[reg.ID])

		start := reg.Range.Start + shift
		ranges[i] = region.LineRange{Start: start, End: start + newLines - 1}
		shift += newLines - oldLines
	}
	if err := set.SetRanges(ranges); err != nil {
		// The write-back already landed; a range update failure here means
		// the calculus produced an inconsistent set and the session cannot
		// continue safely.
		return fmt.Errorf("updating region ranges after write-back: %w", err)
	}

	if err := e.docs.Save(path); err != nil {
		return fmt.Errorf("persisting %s after write-back: %w", path, err)
	}

	e.logger.Debug("applied %d regions to %s (net shift %+d lines)", len(regions), path, shift)
	return nil
}

// Revert writes every region's pristine backup text over its current range
// and persists the artifact. Ranges used are whatever the shift calculus
// last computed, not the extraction-time ranges, since the artifact may
// have been resynced many times.
func (e *Engine) Revert(path string, doc Document, set *region.Set) error {
	regions := set.Regions()
	lineCount := doc.LineCount()

	edits := make([]docstore.LineEdit, len(regions))
	for i, reg := range regions {
		span := clampEnd(reg.Range, lineCount)
		edits[i] = docstore.LineEdit{Start: span.Start, End: span.End, Text: reg.Backup}
	}

	if err := e.docs.ApplyLineEdits(path, edits); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteBackFailed, err)
	}
	if err := e.docs.Save(path); err != nil {
		return fmt.Errorf("persisting %s after revert: %w", path, err)
	}

	e.logger.Debug("reverted %d regions in %s", len(regions), path)
	return nil
}

// clampEnd constrains a region's end line to the artifact's current size.
func clampEnd(r region.LineRange, lineCount int) region.LineRange {
	if r.End > lineCount-1 {
		r.End = lineCount - 1
	}
	if r.End < r.Start {
		r.End = r.Start
	}
	return r
}
