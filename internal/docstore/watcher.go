package docstore

import (
	"context"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/slicepad/slicepad/internal/event"
	"github.com/slicepad/slicepad/internal/logging"
)

// Watcher bridges filesystem notifications onto the event bus. Scratch
// buffer writes become TopicBufferChanged events; writes to a watched
// original artifact become TopicArtifactChanged events, the incidental
// external-modification signal.
type Watcher struct {
	mu sync.Mutex

	watcher *fsnotify.Watcher
	bus     *event.Bus
	logger  *logging.Logger

	// topic per watched path
	paths map[string]event.Topic

	closeCh  chan struct{}
	closedWg sync.WaitGroup
	closed   bool
}

// NewWatcher creates a watcher publishing to the given bus.
func NewWatcher(bus *event.Bus, logger *logging.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		watcher: fsw,
		bus:     bus,
		logger:  logger.WithComponent("watcher"),
		paths:   make(map[string]event.Topic),
		closeCh: make(chan struct{}),
	}

	w.closedWg.Add(1)
	go w.processLoop()

	return w, nil
}

// WatchBuffer starts watching a scratch buffer file.
func (w *Watcher) WatchBuffer(path string) error {
	return w.watch(path, event.TopicBufferChanged)
}

// WatchArtifact starts watching an original artifact for external writes.
func (w *Watcher) WatchArtifact(path string) error {
	return w.watch(path, event.TopicArtifactChanged)
}

func (w *Watcher) watch(path string, topic event.Topic) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	if err := w.watcher.Add(path); err != nil {
		return err
	}
	w.paths[path] = topic
	return nil
}

// Unwatch stops watching a path.
func (w *Watcher) Unwatch(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.paths[path]; !ok {
		return
	}
	delete(w.paths, path)
	_ = w.watcher.Remove(path)
}

// Suspend temporarily detaches a path so the engine's own writes do not
// come back as change notifications. Resume with the returned func.
func (w *Watcher) Suspend(path string) func() {
	w.mu.Lock()
	topic, ok := w.paths[path]
	if ok {
		// Dropping the routing entry also discards events already queued
		// for delivery, not just future ones.
		delete(w.paths, path)
		_ = w.watcher.Remove(path)
	}
	w.mu.Unlock()
	if !ok {
		return func() {}
	}

	return func() {
		_ = w.watch(path, topic)
	}
}

// Close stops the watcher and its process loop.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	close(w.closeCh)
	err := w.watcher.Close()
	w.closedWg.Wait()
	return err
}

// processLoop converts fsnotify events into bus publications.
func (w *Watcher) processLoop() {
	defer w.closedWg.Done()

	for {
		select {
		case <-w.closeCh:
			return

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}

			w.mu.Lock()
			topic, watched := w.paths[ev.Name]
			w.mu.Unlock()
			if !watched {
				continue
			}

			now := time.Now()
			switch topic {
			case event.TopicBufferChanged:
				w.bus.Publish(context.Background(), topic, event.BufferChanged{BufferID: ev.Name, At: now})
			case event.TopicArtifactChanged:
				w.bus.Publish(context.Background(), topic, event.ArtifactChanged{Path: ev.Name, At: now})
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error: %v", err)
		}
	}
}
