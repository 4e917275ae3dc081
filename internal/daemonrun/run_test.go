package daemonrun

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"hlscache/internal/logging"
	"hlscache/internal/testsupport"
)

func TestBuildWiresComponents(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	components, err := Build(cfg, logging.NewNop(), nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if components.Store.Path() != cfg.DatabasePath() {
		t.Fatalf("store path = %s", components.Store.Path())
	}
	if components.Fetcher.Name() != "filesystem" {
		t.Fatalf("fetcher = %s", components.Fetcher.Name())
	}
	if got := len(components.Controller.Namespaces()); got != 2 {
		t.Fatalf("expected two eviction namespaces, got %d", got)
	}
}

func TestBuildRejectsUnimplementedInput(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Input.Type = "ftp"
	if _, err := Build(cfg, logging.NewNop(), nil); err == nil {
		t.Fatal("expected ftp input to be rejected")
	}
}

func TestRunStopsWhenContextCancelled(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	cfg.Logging.Level = "error"
	cfg.Maintenance.Enabled = true
	if err := os.RemoveAll(cfg.Paths.OutputDir); err != nil {
		t.Fatalf("remove output dir: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- Run(ctx, cfg, Options{}) }()

	// The first maintenance cycle creates the election lock once the store
	// is initialized and the server is listening.
	deadline := time.Now().Add(10 * time.Second)
	for {
		if _, err := os.Stat(cfg.MaintenanceLockPath()); err == nil {
			break
		}
		select {
		case err := <-done:
			t.Fatalf("Run exited early: %v", err)
		default:
		}
		if time.Now().After(deadline) {
			t.Fatal("maintenance loop never started")
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not stop")
	}

	if _, err := os.Stat(cfg.Paths.OutputDir); err != nil {
		t.Fatalf("expected output root created at start: %v", err)
	}
	if _, err := os.Stat(cfg.DatabasePath()); err != nil {
		t.Fatalf("expected record store initialized: %v", err)
	}
	if _, err := os.Stat(filepath.Join(cfg.Paths.StateDir, "hlscache.pid")); !os.IsNotExist(err) {
		t.Fatalf("expected pid file removed, stat err = %v", err)
	}
}

func TestWritePIDFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.pid")
	if err := writePIDFile(path); err != nil {
		t.Fatalf("writePIDFile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil || len(data) == 0 || data[len(data)-1] != '\n' {
		t.Fatalf("unexpected pid file %q err=%v", data, err)
	}
	if err := writePIDFile(""); err != nil {
		t.Fatalf("empty path should be a no-op: %v", err)
	}
}
