package session

import (
	"errors"
	"sync"
)

// Errors returned by the registry.
var (
	// ErrSessionNotFound indicates an operation against a buffer with no
	// registered session. A user-facing no-op, never a crash.
	ErrSessionNotFound = errors.New("no sandbox session for buffer")

	// ErrSessionExists indicates the buffer already owns a session.
	ErrSessionExists = errors.New("buffer already has a sandbox session")
)

// Registry is the process-wide map from scratch buffer identity to session.
// It is an explicit, injected object with its own lifecycle, created at
// bootstrap and cleared on shutdown. A session deliberately survives its
// scratch buffer being closed, so the user can reopen and resolve later;
// entries leave the registry only on accept or revert.
type Registry struct {
	mu       sync.RWMutex
	byBuffer map[string]*Session
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byBuffer: make(map[string]*Session)}
}

// Register adds a session keyed by its buffer id.
func (r *Registry) Register(sess *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byBuffer[sess.BufferID]; ok {
		return ErrSessionExists
	}
	r.byBuffer[sess.BufferID] = sess
	return nil
}

// Lookup returns the session owning a buffer.
func (r *Registry) Lookup(bufferID string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.byBuffer[bufferID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// Remove deletes a session entry.
func (r *Registry) Remove(bufferID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byBuffer, bufferID)
}

// ByArtifact returns every session holding regions in the given artifact.
func (r *Registry) ByArtifact(artifactPath string) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Session
	for _, sess := range r.byBuffer {
		if sess.ArtifactPath == artifactPath {
			out = append(out, sess)
		}
	}
	return out
}

// All returns every registered session.
func (r *Registry) All() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.byBuffer))
	for _, sess := range r.byBuffer {
		out = append(out, sess)
	}
	return out
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byBuffer)
}

// Clear removes every entry. Called on shutdown.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byBuffer = make(map[string]*Session)
}
