// Package session manages sandbox sessions: the stateful binding between
// one scratch buffer, one RegionSet, and one original artifact, plus the
// process-wide registry and the debounced live-sync scheduler.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/slicepad/slicepad/internal/backup"
	"github.com/slicepad/slicepad/internal/engine/region"
)

// Session binds one scratch buffer to one RegionSet and one artifact.
//
// The busy flag is the only mutual-exclusion primitive in the engine: it
// serializes overlapping live-sync attempts when a new change notification
// arrives while a previous cycle's write-back is still in flight. A cycle
// that finds the session busy is dropped, never queued.
type Session struct {
	mu sync.Mutex

	// ID is the session's unique identity.
	ID string

	// BufferID identifies the scratch buffer (its file path).
	BufferID string

	// ArtifactPath is the original artifact's stable path.
	ArtifactPath string

	// Regions is the session's RegionSet, owned exclusively by this
	// session and mutated only by the shift calculus.
	Regions *region.Set

	// Backup references the durable snapshot written at creation.
	Backup backup.Handle

	// CreatedAt is the session creation time.
	CreatedAt time.Time

	live  bool
	busy  bool
	stale bool
}

// New creates a session with a fresh id. Live sync starts off.
func New(bufferID, artifactPath string, regions *region.Set) *Session {
	return &Session{
		ID:           uuid.NewString(),
		BufferID:     bufferID,
		ArtifactPath: artifactPath,
		Regions:      regions,
		CreatedAt:    time.Now(),
	}
}

// IsLive reports whether live sync is enabled.
func (s *Session) IsLive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live
}

// ToggleLive flips the live flag and returns the new state.
func (s *Session) ToggleLive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.live = !s.live
	return s.live
}

// TryAcquire attempts to take the busy flag. It returns false when a sync
// cycle is already in flight; the caller must drop its cycle.
func (s *Session) TryAcquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return false
	}
	s.busy = true
	return true
}

// Release clears the busy flag.
func (s *Session) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = false
}

// IsBusy reports whether a sync cycle is in flight.
func (s *Session) IsBusy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

// MarkStale records that the artifact was modified externally while this
// session held regions in it. The conflict is surfaced, not resolved.
func (s *Session) MarkStale() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stale = true
}

// IsStale reports whether an external artifact modification was seen.
func (s *Session) IsStale() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stale
}
