package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/slicepad/slicepad/internal/command"
)

func writeArtifact(t *testing.T, dir string, lines int) string {
	t.Helper()
	path := filepath.Join(dir, "artifact.txt")
	var b strings.Builder
	for i := 0; i < lines; i++ {
		fmt.Fprintf(&b, "line %d\n", i)
	}
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestApp(t *testing.T, noWatch bool) *Application {
	t.Helper()
	dir := t.TempDir()
	application, err := New(Options{
		ScratchDir: dir,
		BackupDir:  filepath.Join(dir, "backups"),
		LogOutput:  io.Discard,
		NoWatch:    noWatch,
	})
	if err != nil {
		t.Fatalf("app init failed: %v", err)
	}
	t.Cleanup(application.Shutdown)
	return application
}

func TestApplicationDefaults(t *testing.T) {
	application := newTestApp(t, true)

	cfg := application.Config()
	if cfg.Extract.WindowRadius != 7 || cfg.Extract.GapThreshold != 2 {
		t.Errorf("unexpected extract defaults: %+v", cfg.Extract)
	}
	if cfg.Sync.DebounceMs != 275 {
		t.Errorf("unexpected debounce default: %d", cfg.Sync.DebounceMs)
	}
	if application.Sessions().Len() != 0 {
		t.Error("fresh app has registered sessions")
	}
}

func TestApplicationSliceSyncAccept(t *testing.T) {
	application := newTestApp(t, true)
	artifact := writeArtifact(t, t.TempDir(), 30)

	res := application.Handle(context.Background(), command.Request{
		Action:       command.ActionSlice,
		ArtifactPath: artifact,
		Candidates:   []int{5},
	})
	if !res.IsOK() {
		t.Fatalf("slice failed: %v", res.Error)
	}
	buffer := res.GetDataString("buffer")

	content := "<<<slicepad:region_0>>>\nreplacement\n\n"
	if err := os.WriteFile(buffer, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	res = application.Handle(context.Background(), command.Request{
		Action:   command.ActionSync,
		BufferID: buffer,
	})
	if !res.IsOK() {
		t.Fatalf("sync failed: %v", res.Error)
	}

	res = application.Handle(context.Background(), command.Request{
		Action:   command.ActionAccept,
		BufferID: buffer,
	})
	if !res.IsOK() {
		t.Fatalf("accept failed: %v", res.Error)
	}

	data, err := os.ReadFile(artifact)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "replacement\nline 13\n") {
		t.Errorf("artifact missing accepted edit:\n%s", string(data)[:40])
	}
	if application.Sessions().Len() != 0 {
		t.Error("session survived accept")
	}
}

func TestApplicationLiveSyncThroughWatcher(t *testing.T) {
	application := newTestApp(t, false)
	artifact := writeArtifact(t, t.TempDir(), 30)

	res := application.Handle(context.Background(), command.Request{
		Action:       command.ActionSlice,
		ArtifactPath: artifact,
		Candidates:   []int{5},
	})
	if !res.IsOK() {
		t.Fatalf("slice failed: %v", res.Error)
	}
	buffer := res.GetDataString("buffer")

	res = application.Handle(context.Background(), command.Request{
		Action:   command.ActionToggleLive,
		BufferID: buffer,
	})
	if !res.IsOK() {
		t.Fatalf("toggleLive failed: %v", res.Error)
	}

	content := "<<<slicepad:region_0>>>\nlive edit\n\n"
	if err := os.WriteFile(buffer, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		data, err := os.ReadFile(artifact)
		if err == nil && strings.HasPrefix(string(data), "live edit\n") {
			return
		}
		time.Sleep(25 * time.Millisecond)
	}
	t.Fatal("watcher-driven live sync never reached the artifact")
}

func TestApplicationShutdownIdempotent(t *testing.T) {
	application := newTestApp(t, false)
	artifact := writeArtifact(t, t.TempDir(), 30)

	res := application.Handle(context.Background(), command.Request{
		Action:       command.ActionSlice,
		ArtifactPath: artifact,
		Candidates:   []int{5},
	})
	if !res.IsOK() {
		t.Fatalf("slice failed: %v", res.Error)
	}

	application.Shutdown()
	application.Shutdown()

	if application.Sessions().Len() != 0 {
		t.Error("shutdown left sessions in the registry")
	}
}

func TestApplicationBadConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "slicepad.toml")
	if err := os.WriteFile(cfgPath, []byte("[extract]\nwindow_radius = -1\n"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := New(Options{ConfigPath: cfgPath, NoWatch: true, LogOutput: io.Discard})
	if err == nil {
		t.Fatal("expected config validation error")
	}
	var initErr *InitError
	if !errors.As(err, &initErr) || initErr.Component != "config" {
		t.Errorf("unexpected error: %v", err)
	}
}
