// Package backup persists each session's pristine region text in durable
// storage, so a crash or an explicit discard can restore the artifact
// without relying on in-memory state.
//
// Layout: one snapshot file per session under the backups directory, named
// from the sanitized artifact path plus a creation timestamp, holding the
// raw original bytes. A manifest.json sidecar indexes the snapshots by
// session so orphaned files left by a crash can be located later; the
// engine itself never sweeps them.
package backup

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/slicepad/slicepad/internal/logging"
)

// ErrSnapshotMissing indicates the snapshot file no longer exists.
var ErrSnapshotMissing = errors.New("backup snapshot missing")

// Handle references one durable snapshot.
type Handle struct {
	SessionID string
	File      string
}

// Entry is one manifest record.
type Entry struct {
	SessionID string
	Artifact  string
	File      string
	CreatedAt time.Time
}

// Store writes and restores session snapshots.
type Store struct {
	dir    string
	logger *logging.Logger
}

// NewStore creates the backups directory if needed.
func NewStore(dir string, logger *logging.Logger) (*Store, error) {
	if logger == nil {
		logger = logging.Null
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating backup dir %s: %w", dir, err)
	}
	return &Store{dir: dir, logger: logger.WithComponent("backup")}, nil
}

// Dir returns the backups directory.
func (s *Store) Dir() string {
	return s.dir
}

// Snapshot writes the pristine text for a session to durable storage and
// records it in the manifest. The snapshot must land on disk before the
// session becomes usable, so a crash between extraction and first sync
// always leaves a recoverable copy.
func (s *Store) Snapshot(sessionID, artifactPath, text string) (Handle, error) {
	name := fmt.Sprintf("%s-%s.bak",
		sanitize(artifactPath),
		time.Now().UTC().Format("20060102T150405.000000000"))
	file := filepath.Join(s.dir, name)

	if err := os.WriteFile(file, []byte(text), 0600); err != nil {
		return Handle{}, fmt.Errorf("writing snapshot for %s: %w", artifactPath, err)
	}

	if err := s.addManifestEntry(sessionID, artifactPath, file); err != nil {
		// The snapshot itself landed; a broken manifest only degrades
		// recovery listing.
		s.logger.Warn("manifest update failed for session %s: %v", sessionID, err)
	}

	return Handle{SessionID: sessionID, File: file}, nil
}

// Restore reads the snapshot bytes back.
func (s *Store) Restore(h Handle) (string, error) {
	data, err := os.ReadFile(h.File)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrSnapshotMissing, h.File)
		}
		return "", fmt.Errorf("reading snapshot %s: %w", h.File, err)
	}
	return string(data), nil
}

// Discard removes a snapshot and its manifest entry. Best effort: storage
// errors are logged and swallowed, since the session's in-memory backup
// remains the authoritative fallback while the process is alive.
func (s *Store) Discard(h Handle) {
	if err := os.Remove(h.File); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("removing snapshot %s: %v", h.File, err)
	}
	if err := s.removeManifestEntry(h.SessionID); err != nil {
		s.logger.Warn("removing manifest entry for session %s: %v", h.SessionID, err)
	}
}

// List returns the manifest entries, oldest first.
func (s *Store) List() ([]Entry, error) {
	raw, err := s.readManifest()
	if err != nil {
		return nil, err
	}

	var entries []Entry
	gjson.Get(raw, "sessions").ForEach(func(key, value gjson.Result) bool {
		created, _ := time.Parse(time.RFC3339Nano, value.Get("created").String())
		entries = append(entries, Entry{
			SessionID: key.String(),
			Artifact:  value.Get("artifact").String(),
			File:      value.Get("file").String(),
			CreatedAt: created,
		})
		return true
	})

	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && entries[j].CreatedAt.Before(entries[j-1].CreatedAt); j-- {
			entries[j], entries[j-1] = entries[j-1], entries[j]
		}
	}
	return entries, nil
}

func (s *Store) manifestPath() string {
	return filepath.Join(s.dir, "manifest.json")
}

func (s *Store) readManifest() (string, error) {
	data, err := os.ReadFile(s.manifestPath())
	if err != nil {
		if os.IsNotExist(err) {
			return "{}", nil
		}
		return "", fmt.Errorf("reading manifest: %w", err)
	}
	return string(data), nil
}

func (s *Store) addManifestEntry(sessionID, artifactPath, file string) error {
	raw, err := s.readManifest()
	if err != nil {
		return err
	}

	base := "sessions." + sessionID
	raw, err = sjson.Set(raw, base+".artifact", artifactPath)
	if err == nil {
		raw, err = sjson.Set(raw, base+".file", file)
	}
	if err == nil {
		raw, err = sjson.Set(raw, base+".created", time.Now().UTC().Format(time.RFC3339Nano))
	}
	if err != nil {
		return fmt.Errorf("building manifest entry: %w", err)
	}

	return os.WriteFile(s.manifestPath(), []byte(raw), 0600)
}

func (s *Store) removeManifestEntry(sessionID string) error {
	raw, err := s.readManifest()
	if err != nil {
		return err
	}

	raw, err = sjson.Delete(raw, "sessions."+sessionID)
	if err != nil {
		return fmt.Errorf("deleting manifest entry: %w", err)
	}
	return os.WriteFile(s.manifestPath(), []byte(raw), 0600)
}

// sanitize flattens an artifact path into a safe file name component.
func sanitize(path string) string {
	var b strings.Builder
	for _, r := range path {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	name := strings.Trim(b.String(), "_")
	if name == "" {
		name = "artifact"
	}
	// Keep names comfortably under filesystem limits.
	if len(name) > 120 {
		name = name[len(name)-120:]
	}
	return name
}
