// Package app wires the slicepad components together and manages their
// lifecycle: configuration, logging, the document store and its filesystem
// watcher, durable backups, the session registry, and the sandbox action
// handler.
package app

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/slicepad/slicepad/internal/backup"
	"github.com/slicepad/slicepad/internal/command"
	"github.com/slicepad/slicepad/internal/config"
	"github.com/slicepad/slicepad/internal/docstore"
	"github.com/slicepad/slicepad/internal/engine/extract"
	enginesync "github.com/slicepad/slicepad/internal/engine/sync"
	"github.com/slicepad/slicepad/internal/event"
	"github.com/slicepad/slicepad/internal/logging"
	"github.com/slicepad/slicepad/internal/provider"
	"github.com/slicepad/slicepad/internal/session"
)

// Options configures the application.
type Options struct {
	// ConfigPath is the path to the configuration file.
	ConfigPath string

	// LogLevel overrides the configured log level when non-empty.
	LogLevel string

	// LogOutput is where logs are written. Defaults to stderr.
	LogOutput io.Writer

	// ScratchDir is where scratch buffer files are written. Empty means
	// the system temp dir.
	ScratchDir string

	// BackupDir overrides the configured backup directory when non-empty.
	BackupDir string

	// Symbols resolves construct boundaries for region extraction. When
	// nil every candidate falls back to the fixed window.
	Symbols provider.SymbolProvider

	// Clock drives the live-sync scheduler. Nil means wall-clock timers.
	Clock session.Clock

	// NoWatch disables the filesystem watcher. Live sync then depends on
	// explicit change notifications.
	NoWatch bool
}

// InitError reports a component that failed to initialize.
type InitError struct {
	Component string
	Err       error
}

// Error implements the error interface.
func (e *InitError) Error() string {
	return fmt.Sprintf("initializing %s: %v", e.Component, e.Err)
}

// Unwrap returns the underlying error.
func (e *InitError) Unwrap() error {
	return e.Err
}

// Application is the assembled slicepad engine.
type Application struct {
	cfg     config.Config
	logger  *logging.Logger
	bus     *event.Bus
	docs    *docstore.Store
	watcher *docstore.Watcher
	backups *backup.Store
	handler *command.Handler

	registry *session.Registry
	subs     []*event.Subscription

	shutdownOnce sync.Once
}

// New creates an Application with the given options.
func New(opts Options) (*Application, error) {
	app := &Application{registry: session.NewRegistry()}
	if err := app.bootstrap(opts); err != nil {
		app.Shutdown()
		return nil, err
	}
	return app, nil
}

// bootstrap initializes all components in dependency order.
func (app *Application) bootstrap(opts Options) error {
	var err error

	app.cfg, err = config.Load(opts.ConfigPath)
	if err != nil {
		return &InitError{Component: "config", Err: err}
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = logging.ParseLevel(app.cfg.Log.Level)
	if opts.LogLevel != "" {
		logCfg.Level = logging.ParseLevel(opts.LogLevel)
	}
	if opts.LogOutput != nil {
		logCfg.Output = opts.LogOutput
	}
	app.logger = logging.New(logCfg)

	app.bus = event.NewBus()
	app.docs = docstore.NewStore()

	if !opts.NoWatch {
		app.watcher, err = docstore.NewWatcher(app.bus, app.logger)
		if err != nil {
			return &InitError{Component: "watcher", Err: err}
		}
	}

	backupDir := opts.BackupDir
	if backupDir == "" {
		backupDir, err = app.cfg.BackupDir()
		if err != nil {
			return &InitError{Component: "backup", Err: err}
		}
	}
	app.backups, err = backup.NewStore(backupDir, app.logger)
	if err != nil {
		return &InitError{Component: "backup", Err: err}
	}

	extractor := extract.New(opts.Symbols,
		extract.WithWindowRadius(app.cfg.Extract.WindowRadius),
		extract.WithGapThreshold(app.cfg.Extract.GapThreshold),
		extract.WithLogger(app.logger),
	)

	handlerOpts := []command.Option{
		command.WithLogger(app.logger),
		command.WithDebounce(time.Duration(app.cfg.Sync.DebounceMs) * time.Millisecond),
	}
	if opts.ScratchDir != "" {
		handlerOpts = append(handlerOpts, command.WithScratchDir(opts.ScratchDir))
	}
	if opts.Clock != nil {
		handlerOpts = append(handlerOpts, command.WithClock(opts.Clock))
	}
	if app.watcher != nil {
		handlerOpts = append(handlerOpts, command.WithWatcher(app.watcher))
	}

	app.handler = command.NewHandler(app.docs, extractor, enginesync.NewEngine(app.docs, app.logger),
		app.registry, app.backups, handlerOpts...)

	app.subscribe()
	return nil
}

// subscribe routes watcher notifications into the sandbox handler.
func (app *Application) subscribe() {
	app.subs = append(app.subs,
		app.bus.Subscribe(event.TopicBufferChanged, func(_ context.Context, ev any) {
			if change, ok := ev.(event.BufferChanged); ok {
				app.handler.NotifyBufferChanged(change.BufferID)
			}
		}),
		app.bus.Subscribe(event.TopicArtifactChanged, func(_ context.Context, ev any) {
			if change, ok := ev.(event.ArtifactChanged); ok {
				app.handler.NotifyArtifactChanged(change.Path)
			}
		}),
	)
}

// Handle executes a sandbox action.
func (app *Application) Handle(ctx context.Context, req command.Request) command.Result {
	return app.handler.Handle(ctx, req)
}

// Backups exposes the durable snapshot store for recovery listings.
func (app *Application) Backups() *backup.Store {
	return app.backups
}

// Sessions exposes the session registry.
func (app *Application) Sessions() *session.Registry {
	return app.registry
}

// Logger returns the application logger.
func (app *Application) Logger() *logging.Logger {
	return app.logger
}

// Config returns the loaded configuration.
func (app *Application) Config() config.Config {
	return app.cfg
}

// Shutdown releases all components. Registered sessions keep their durable
// backups on disk so an interrupted run stays recoverable. Safe to call
// multiple times.
func (app *Application) Shutdown() {
	app.shutdownOnce.Do(func() {
		if app.handler != nil {
			app.handler.Close()
		}
		if app.watcher != nil {
			if err := app.watcher.Close(); err != nil && app.logger != nil {
				app.logger.Warn("closing watcher: %v", err)
			}
		}
		for _, sub := range app.subs {
			sub.Cancel()
		}
		if app.bus != nil {
			app.bus.Close()
		}
		if app.docs != nil {
			app.docs.CloseAll()
		}
		app.registry.Clear()
	})
}
