package docstore

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

// Errors returned by store operations.
var (
	ErrDocumentNotOpen = errors.New("document not open")
	ErrIsDirectory     = errors.New("path is a directory")
	ErrLineOutOfRange  = errors.New("line out of range")
	ErrEditsOverlap    = errors.New("edits overlap or are out of order")
)

// PathError wraps a store error with the operation and path.
type PathError struct {
	Op   string
	Path string
	Err  error
}

// Error implements the error interface.
func (e *PathError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *PathError) Unwrap() error {
	return e.Err
}

// LineEdit replaces the full-line span [Start, End] (inclusive, 0-based)
// with Text. Text is inserted as complete lines; it must not carry a
// trailing newline.
type LineEdit struct {
	Start int
	End   int
	Text  string
}

// Store manages open documents keyed by absolute path.
type Store struct {
	mu        sync.RWMutex
	documents map[string]*Document
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{documents: make(map[string]*Document)}
}

// Open reads a file from disk and returns its Document. If the file is
// already open, the existing Document is returned.
func (s *Store) Open(path string) (*Document, error) {
	s.mu.RLock()
	if doc, ok := s.documents[path]; ok {
		s.mu.RUnlock()
		return doc, nil
	}
	s.mu.RUnlock()

	info, err := os.Stat(path)
	if err != nil {
		return nil, &PathError{Op: "open", Path: path, Err: err}
	}
	if info.IsDir() {
		return nil, &PathError{Op: "open", Path: path, Err: ErrIsDirectory}
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, &PathError{Op: "open", Path: path, Err: err}
	}

	doc := NewDocument(path, content, info.ModTime())

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.documents[path]; ok {
		return existing, nil
	}
	s.documents[path] = doc
	return doc, nil
}

// Get returns an open document by path.
func (s *Store) Get(path string) (*Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[path]
	return doc, ok
}

// Close removes a document from the store.
func (s *Store) Close(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.documents, path)
}

// CloseAll removes every document from the store.
func (s *Store) CloseAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents = make(map[string]*Document)
}

// ApplyLineEdits applies a composite full-line-span replacement to an open
// document. Edits must be in ascending, non-overlapping line order. The
// operation is atomic: every edit is validated against the current document
// before any line changes, so a rejected composite leaves the document
// untouched.
func (s *Store) ApplyLineEdits(path string, edits []LineEdit) error {
	doc, ok := s.Get(path)
	if !ok {
		return &PathError{Op: "edit", Path: path, Err: ErrDocumentNotOpen}
	}
	if len(edits) == 0 {
		return nil
	}

	doc.mu.Lock()
	defer doc.mu.Unlock()

	lineCount := len(doc.lines)
	for i, edit := range edits {
		if edit.Start < 0 || edit.End < edit.Start || edit.End >= lineCount {
			return &PathError{Op: "edit", Path: path,
				Err: fmt.Errorf("%w: [%d,%d] of %d lines", ErrLineOutOfRange, edit.Start, edit.End, lineCount)}
		}
		if i > 0 && edit.Start <= edits[i-1].End {
			return &PathError{Op: "edit", Path: path, Err: ErrEditsOverlap}
		}
	}

	// Apply highest span first so earlier edits cannot invalidate the
	// line numbers of later ones.
	for i := len(edits) - 1; i >= 0; i-- {
		edit := edits[i]
		newLines := strings.Split(edit.Text, "\n")
		replaced := make([]string, 0, len(doc.lines)-(edit.End-edit.Start+1)+len(newLines))
		replaced = append(replaced, doc.lines[:edit.Start]...)
		replaced = append(replaced, newLines...)
		replaced = append(replaced, doc.lines[edit.End+1:]...)
		doc.lines = replaced
	}

	doc.Version++
	doc.dirty = true
	return nil
}

// Save writes an open document back to disk and clears its dirty state.
func (s *Store) Save(path string) error {
	doc, ok := s.Get(path)
	if !ok {
		return &PathError{Op: "save", Path: path, Err: ErrDocumentNotOpen}
	}

	content := doc.ContentForSave()
	if err := os.WriteFile(path, content, 0644); err != nil {
		return &PathError{Op: "save", Path: path, Err: err}
	}

	modTime := time.Now()
	if info, err := os.Stat(path); err == nil {
		modTime = info.ModTime()
	}
	doc.MarkSaved(modTime)
	return nil
}

// Reload re-reads an open document from disk, discarding in-memory changes.
func (s *Store) Reload(path string) error {
	doc, ok := s.Get(path)
	if !ok {
		return &PathError{Op: "reload", Path: path, Err: ErrDocumentNotOpen}
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return &PathError{Op: "reload", Path: path, Err: err}
	}
	info, err := os.Stat(path)
	if err != nil {
		return &PathError{Op: "reload", Path: path, Err: err}
	}

	fresh := NewDocument(path, content, info.ModTime())

	doc.mu.Lock()
	defer doc.mu.Unlock()
	doc.lines = fresh.lines
	doc.finalNewline = fresh.finalNewline
	doc.diskModTime = fresh.diskModTime
	doc.dirty = false
	doc.Version++
	return nil
}

// HasExternalChanges reports whether the file on disk changed behind an
// open document's back. Unknown paths and stat failures report false.
func (s *Store) HasExternalChanges(path string) bool {
	doc, ok := s.Get(path)
	if !ok {
		return false
	}
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return doc.HasExternalChanges(info.ModTime())
}
