// Package command exposes the sandbox engine as named actions. It owns the
// orchestration of one action: slicing regions into a scratch buffer,
// syncing edits back, accepting or reverting a session, and the debounced
// live-sync cycle driven by scratch buffer change notifications.
package command

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/slicepad/slicepad/internal/backup"
	"github.com/slicepad/slicepad/internal/docstore"
	"github.com/slicepad/slicepad/internal/engine/extract"
	"github.com/slicepad/slicepad/internal/engine/sync"
	"github.com/slicepad/slicepad/internal/logging"
	"github.com/slicepad/slicepad/internal/session"
)

// Action names for sandbox operations.
const (
	ActionSlice      = "sandbox.slice"
	ActionToggleLive = "sandbox.toggleLive"
	ActionSync       = "sandbox.sync"
	ActionAccept     = "sandbox.accept"
	ActionRevert     = "sandbox.revert"
	ActionPreview    = "sandbox.preview"
	ActionStatus     = "sandbox.status"
)

// DefaultDebounce is the quiet period after the last scratch buffer change
// before a live-sync cycle fires.
const DefaultDebounce = 275 * time.Millisecond

// Request carries the inputs of one action.
type Request struct {
	// Action is the action name.
	Action string

	// BufferID identifies an existing session's scratch buffer. Unused by
	// sandbox.slice, optional for sandbox.status.
	BufferID string

	// ArtifactPath is the artifact to slice. Used by sandbox.slice only.
	ArtifactPath string

	// Candidates are the 0-based artifact lines to slice around. Used by
	// sandbox.slice only.
	Candidates []int
}

// Watcher is the filesystem notification surface the handler needs.
type Watcher interface {
	WatchBuffer(path string) error
	WatchArtifact(path string) error
	Unwatch(path string)

	// Suspend detaches a path's notifications until the returned func is
	// called, so the engine's own writes do not echo back as changes.
	Suspend(path string) func()
}

// Handler provides sandbox operations as named actions.
//
// The actions map is populated once at construction and never modified
// afterward. Individual sessions serialize their own sync cycles through
// the busy flag; the handler itself holds no additional locks.
type Handler struct {
	docs      *docstore.Store
	extractor *extract.Extractor
	engine    *sync.Engine
	registry  *session.Registry
	backups   *backup.Store
	scheduler *session.Scheduler
	watcher   Watcher
	logger    *logging.Logger

	scratchDir string
	clock      session.Clock
	debounce   time.Duration

	actions map[string]func(ctx context.Context, req Request) Result
}

// Option configures the handler.
type Option func(*Handler)

// WithWatcher sets the filesystem watcher. Without one, change
// notifications never arrive and live sync is driven manually.
func WithWatcher(w Watcher) Option {
	return func(h *Handler) {
		h.watcher = w
	}
}

// WithScratchDir sets the directory scratch buffer files are written to.
func WithScratchDir(dir string) Option {
	return func(h *Handler) {
		h.scratchDir = dir
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

// WithClock sets the scheduler clock. Tests inject a fake.
func WithClock(clock session.Clock) Option {
	return func(h *Handler) {
		h.clock = clock
	}
}

// WithDebounce sets the live-sync quiet period.
func WithDebounce(d time.Duration) Option {
	return func(h *Handler) {
		h.debounce = d
	}
}

// NewHandler creates a sandbox action handler.
func NewHandler(docs *docstore.Store, extractor *extract.Extractor, engine *sync.Engine,
	registry *session.Registry, backups *backup.Store, opts ...Option) *Handler {
	h := &Handler{
		docs:       docs,
		extractor:  extractor,
		engine:     engine,
		registry:   registry,
		backups:    backups,
		logger:     logging.Null,
		scratchDir: os.TempDir(),
		clock:      session.RealClock(),
		debounce:   DefaultDebounce,
		actions:    make(map[string]func(ctx context.Context, req Request) Result),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.WithComponent("command")
	h.scheduler = session.NewScheduler(h.clock, h.debounce, h.liveCycle)
	h.registerActions()
	return h
}

// Namespace returns the action namespace.
func (h *Handler) Namespace() string {
	return "sandbox"
}

// CanHandle returns true if this handler can process the action.
func (h *Handler) CanHandle(actionName string) bool {
	_, ok := h.actions[actionName]
	return ok
}

// Handle executes the named action.
func (h *Handler) Handle(ctx context.Context, req Request) Result {
	fn, ok := h.actions[req.Action]
	if !ok {
		return Errorf("unknown sandbox action: %s", req.Action)
	}
	return fn(ctx, req)
}

// Close stops the live-sync scheduler. Registered sessions stay intact.
func (h *Handler) Close() {
	h.scheduler.Stop()
}

func (h *Handler) registerActions() {
	h.actions[ActionSlice] = h.handleSlice
	h.actions[ActionToggleLive] = h.handleToggleLive
	h.actions[ActionSync] = h.handleSync
	h.actions[ActionAccept] = h.handleAccept
	h.actions[ActionRevert] = h.handleRevert
	h.actions[ActionPreview] = h.handlePreview
	h.actions[ActionStatus] = h.handleStatus
}

// handleSlice opens the artifact, extracts boundary-aligned regions around
// the candidate lines, snapshots the artifact to durable backup, writes the
// delimited scratch buffer file, and registers the session.
func (h *Handler) handleSlice(ctx context.Context, req Request) Result {
	if req.ArtifactPath == "" {
		return Errorf("sandbox.slice requires an artifact path")
	}
	path, err := filepath.Abs(req.ArtifactPath)
	if err != nil {
		return Error(err)
	}

	doc, err := h.docs.Open(path)
	if err != nil {
		return Error(err)
	}

	set, rendered, err := h.extractor.Extract(ctx, doc, path, req.Candidates)
	if err != nil {
		return Error(err)
	}
	if set.Len() == 0 {
		return NoOpWithMessage("no regions to slice")
	}

	scratch := filepath.Join(h.scratchDir,
		fmt.Sprintf("%s-%s.slice", filepath.Base(path), uuid.NewString()[:8]))
	sess := session.New(scratch, path, set)

	// The durable snapshot must land before the session becomes usable, so
	// a crash at any later point leaves a recoverable copy of the artifact.
	handle, err := h.backups.Snapshot(sess.ID, path, doc.Text())
	if err != nil {
		return Error(err)
	}
	sess.Backup = handle

	if err := os.WriteFile(scratch, []byte(rendered), 0600); err != nil {
		h.backups.Discard(handle)
		return Errorf("writing scratch buffer %s: %w", scratch, err)
	}

	if err := h.registry.Register(sess); err != nil {
		h.backups.Discard(handle)
		os.Remove(scratch)
		return Error(err)
	}

	if h.watcher != nil {
		if err := h.watcher.WatchBuffer(scratch); err != nil {
			h.logger.Warn("watching scratch buffer %s: %v", scratch, err)
		}
		if err := h.watcher.WatchArtifact(path); err != nil {
			h.logger.Warn("watching artifact %s: %v", path, err)
		}
	}

	h.logger.Info("sliced %d regions of %s into %s", set.Len(), path, scratch)
	return Success().
		WithMessage(fmt.Sprintf("sliced %d regions", set.Len())).
		WithData("buffer", scratch).
		WithData("session", sess.ID).
		WithData("regions", set.Len())
}

// handleToggleLive flips the session's live-sync flag.
func (h *Handler) handleToggleLive(_ context.Context, req Request) Result {
	sess, err := h.registry.Lookup(req.BufferID)
	if err != nil {
		return Error(err)
	}

	live := sess.ToggleLive()
	if !live {
		h.scheduler.Cancel(sess)
	}

	state := "off"
	if live {
		state = "on"
	}
	return Success().
		WithMessage("live sync "+state).
		WithData("live", live)
}

// handleSync runs one explicit sync cycle for the session.
func (h *Handler) handleSync(_ context.Context, req Request) Result {
	sess, err := h.registry.Lookup(req.BufferID)
	if err != nil {
		return Error(err)
	}
	if !sess.TryAcquire() {
		return Dropped("sync cycle already in flight")
	}
	defer sess.Release()

	// A manual sync supersedes any pending debounced cycle.
	h.scheduler.Cancel(sess)

	if err := h.syncSession(sess); err != nil {
		return Error(err)
	}
	return Success().
		WithMessage("synced").
		WithData("regions", sess.Regions.Len())
}

// handleAccept runs a final sync and then dissolves the session: the edits
// stay in the artifact, the durable backup and the scratch buffer go away.
func (h *Handler) handleAccept(_ context.Context, req Request) Result {
	sess, err := h.registry.Lookup(req.BufferID)
	if err != nil {
		return Error(err)
	}
	if !sess.TryAcquire() {
		return Dropped("sync cycle in flight, retry accept")
	}
	defer sess.Release()

	if err := h.syncSession(sess); err != nil {
		// The session survives a failed final sync so the user can fix
		// the buffer and accept again, or revert.
		return Error(err)
	}

	h.teardown(sess)
	h.logger.Info("accepted session %s for %s", sess.ID, sess.ArtifactPath)
	return Success().WithMessage("accepted, edits kept")
}

// handleRevert restores the pristine region text into the artifact and
// dissolves the session.
func (h *Handler) handleRevert(_ context.Context, req Request) Result {
	sess, err := h.registry.Lookup(req.BufferID)
	if err != nil {
		return Error(err)
	}
	if !sess.TryAcquire() {
		return Dropped("sync cycle in flight, retry revert")
	}
	defer sess.Release()

	doc, ok := h.docs.Get(sess.ArtifactPath)
	if !ok {
		return Errorf("artifact %s is not open", sess.ArtifactPath)
	}

	resume := h.suspendArtifact(sess.ArtifactPath)
	err = h.engine.Revert(sess.ArtifactPath, doc, sess.Regions)
	resume()
	if err != nil {
		return Error(err)
	}

	h.teardown(sess)
	h.logger.Info("reverted session %s for %s", sess.ID, sess.ArtifactPath)
	return Success().WithMessage("reverted, original text restored")
}

// handlePreview parses the scratch buffer and returns a unified diff of the
// changed regions without touching the artifact.
func (h *Handler) handlePreview(_ context.Context, req Request) Result {
	sess, err := h.registry.Lookup(req.BufferID)
	if err != nil {
		return Error(err)
	}

	code, err := h.parseBuffer(sess)
	if err != nil {
		return Error(err)
	}
	diff, err := sync.Preview(sess.Regions, code)
	if err != nil {
		return Error(err)
	}
	if diff == "" {
		return NoOpWithMessage("no changes")
	}
	return Success().WithData("diff", diff)
}

// handleStatus reports one session, or every registered session when no
// buffer is named.
func (h *Handler) handleStatus(_ context.Context, req Request) Result {
	if req.BufferID != "" {
		sess, err := h.registry.Lookup(req.BufferID)
		if err != nil {
			return Error(err)
		}
		return Success().WithData("session", sessionStatus(sess))
	}

	sessions := h.registry.All()
	statuses := make([]map[string]interface{}, len(sessions))
	for i, sess := range sessions {
		statuses[i] = sessionStatus(sess)
	}
	return Success().
		WithData("sessions", statuses).
		WithData("count", len(statuses))
}

func sessionStatus(sess *session.Session) map[string]interface{} {
	ranges := make([]string, 0, sess.Regions.Len())
	for _, reg := range sess.Regions.Regions() {
		ranges = append(ranges, fmt.Sprintf("%s %s", reg.ID, reg.Range))
	}
	return map[string]interface{}{
		"id":       sess.ID,
		"buffer":   sess.BufferID,
		"artifact": sess.ArtifactPath,
		"regions":  strings.Join(ranges, ", "),
		"live":     sess.IsLive(),
		"busy":     sess.IsBusy(),
		"stale":    sess.IsStale(),
		"backup":   sess.Backup.File,
	}
}

// NotifyBufferChanged schedules a debounced live-sync cycle for the session
// owning the changed scratch buffer. Non-live sessions ignore the change.
func (h *Handler) NotifyBufferChanged(bufferID string) {
	sess, err := h.registry.Lookup(bufferID)
	if err != nil {
		return
	}
	if !sess.IsLive() {
		return
	}
	h.scheduler.Touch(sess)
}

// NotifyArtifactChanged marks every session of the artifact stale. The
// conflict is surfaced through sandbox.status and blocks further syncs; it
// is never resolved automatically.
func (h *Handler) NotifyArtifactChanged(path string) {
	for _, sess := range h.registry.ByArtifact(path) {
		sess.MarkStale()
		h.logger.Warn("artifact %s changed externally, session %s is stale", path, sess.ID)
	}
}

// liveCycle is the scheduler's fire target. A cycle that finds the session
// busy is dropped: the still-running cycle already carries older buffer
// state, and the next change notification reschedules.
func (h *Handler) liveCycle(sess *session.Session) {
	if !sess.TryAcquire() {
		h.logger.Debug("live cycle for %s dropped, sync in flight", sess.BufferID)
		return
	}
	defer sess.Release()

	if err := h.syncSession(sess); err != nil {
		// Live sync stays enabled after a failed cycle. Parse failures
		// are the normal state mid-edit.
		h.logger.Warn("live sync for %s: %v", sess.BufferID, err)
	}
}

// syncSession runs one sync cycle. The caller must hold the busy flag.
func (h *Handler) syncSession(sess *session.Session) error {
	if sess.IsStale() {
		return fmt.Errorf("artifact %s changed externally, revert or reslice", sess.ArtifactPath)
	}

	code, err := h.parseBuffer(sess)
	if err != nil {
		return err
	}

	doc, ok := h.docs.Get(sess.ArtifactPath)
	if !ok {
		return fmt.Errorf("artifact %s is not open", sess.ArtifactPath)
	}

	resume := h.suspendArtifact(sess.ArtifactPath)
	defer resume()
	return h.engine.Apply(sess.ArtifactPath, doc, sess.Regions, code)
}

// parseBuffer reads the scratch buffer file and parses it against the
// session's region ids.
func (h *Handler) parseBuffer(sess *session.Session) (map[string]string, error) {
	raw, err := os.ReadFile(sess.BufferID)
	if err != nil {
		return nil, fmt.Errorf("reading scratch buffer %s: %w", sess.BufferID, err)
	}
	return sync.Parse(string(raw), sess.Regions.IDs())
}

// suspendArtifact detaches the artifact's change notifications for the
// duration of the engine's own write, so the write does not mark the
// session stale.
func (h *Handler) suspendArtifact(path string) func() {
	if h.watcher == nil {
		return func() {}
	}
	return h.watcher.Suspend(path)
}

// teardown dissolves a session after accept or revert. The artifact's
// document and watch are shared by every session sliced from it, so they
// are released only once the last such session is gone.
func (h *Handler) teardown(sess *session.Session) {
	h.scheduler.Cancel(sess)
	if h.watcher != nil {
		h.watcher.Unwatch(sess.BufferID)
	}
	h.backups.Discard(sess.Backup)
	if err := os.Remove(sess.BufferID); err != nil && !os.IsNotExist(err) {
		h.logger.Warn("removing scratch buffer %s: %v", sess.BufferID, err)
	}
	h.registry.Remove(sess.BufferID)

	if len(h.registry.ByArtifact(sess.ArtifactPath)) == 0 {
		if h.watcher != nil {
			h.watcher.Unwatch(sess.ArtifactPath)
		}
		h.docs.Close(sess.ArtifactPath)
	}
}
