// Package docstore provides open document management for slicepad: reading
// artifacts, line/offset resolution, atomic multi-range line replacement,
// and persistence back to disk.
//
// The store is the engine's only path to artifact bytes. A replace-range
// operation either applies completely or not at all, and reads always
// reflect the latest applied state.
package docstore

import (
	"strings"
	"sync"
	"time"
)

// Document represents an open artifact.
// It tracks content as lines, dirty state, and disk metadata.
type Document struct {
	mu sync.RWMutex

	// Path is the absolute path to the file.
	Path string

	// Version is incremented on each edit.
	Version int64

	// lines holds the document content split on newlines. An empty file
	// is one empty line; line text never includes the newline itself.
	lines []string

	// finalNewline records whether the file ended with a newline, so a
	// save reproduces the original byte layout.
	finalNewline bool

	// diskModTime is the file's modification time on disk, used to
	// detect external changes.
	diskModTime time.Time

	// dirty indicates unsaved changes.
	dirty bool
}

// NewDocument creates a Document from raw file content.
func NewDocument(path string, content []byte, diskModTime time.Time) *Document {
	text := string(content)
	finalNewline := strings.HasSuffix(text, "\n")
	if finalNewline {
		text = strings.TrimSuffix(text, "\n")
	}

	return &Document{
		Path:         path,
		Version:      1,
		lines:        strings.Split(text, "\n"),
		finalNewline: finalNewline,
		diskModTime:  diskModTime,
	}
}

// LineCount returns the number of lines. Never less than 1: an empty file
// is a single empty line.
func (d *Document) LineCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.lines)
}

// LineText returns the text of line n without its newline, or the empty
// string when n is out of range.
func (d *Document) LineText(n int) string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if n < 0 || n >= len(d.lines) {
		return ""
	}
	return d.lines[n]
}

// Text returns the full document content.
func (d *Document) Text() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.textLocked()
}

func (d *Document) textLocked() string {
	text := strings.Join(d.lines, "\n")
	if d.finalNewline {
		text += "\n"
	}
	return text
}

// TextRange returns the text of the inclusive line span [start, end],
// joined with newlines and without a trailing newline. Out-of-range spans
// are clamped to the document.
func (d *Document) TextRange(start, end int) string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if start < 0 {
		start = 0
	}
	if end > len(d.lines)-1 {
		end = len(d.lines) - 1
	}
	if start > end {
		return ""
	}
	return strings.Join(d.lines[start:end+1], "\n")
}

// OffsetOf converts a line/column position to a byte offset in the
// document text. The column is clamped to the line length.
func (d *Document) OffsetOf(line, col int) int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if line < 0 {
		return 0
	}
	if line > len(d.lines)-1 {
		line = len(d.lines) - 1
	}

	offset := 0
	for i := 0; i < line; i++ {
		offset += len(d.lines[i]) + 1
	}
	if col < 0 {
		col = 0
	}
	if col > len(d.lines[line]) {
		col = len(d.lines[line])
	}
	return offset + col
}

// IsDirty returns true if the document has unsaved changes.
func (d *Document) IsDirty() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.dirty
}

// MarkSaved records a successful save with the new disk modification time.
func (d *Document) MarkSaved(modTime time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dirty = false
	d.diskModTime = modTime
}

// HasExternalChanges reports whether the file on disk is newer than the
// last state this document loaded or saved.
func (d *Document) HasExternalChanges(diskModTime time.Time) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return diskModTime.After(d.diskModTime)
}

// ContentForSave returns the bytes to persist.
func (d *Document) ContentForSave() []byte {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return []byte(d.textLocked())
}
