package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func waitCall(t *testing.T, calls <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-calls:
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

func TestRun_RerunsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snapshot.json")
	if err := os.WriteFile(path, []byte(`{}`), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	calls := make(chan struct{}, 10)
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, path, 20*time.Millisecond, func() error {
			calls <- struct{}{}
			return nil
		})
	}()

	waitCall(t, calls, "initial run")

	if err := os.WriteFile(path, []byte(`{"project": {}}`), 0644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	waitCall(t, calls, "run after change")

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRun_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snapshot.json")
	if err := os.WriteFile(path, []byte(`{}`), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	calls := make(chan struct{}, 10)
	go Run(ctx, path, 20*time.Millisecond, func() error {
		calls <- struct{}{}
		return nil
	})

	waitCall(t, calls, "initial run")

	if err := os.WriteFile(filepath.Join(dir, "other.json"), []byte(`{}`), 0644); err != nil {
		t.Fatalf("write other: %v", err)
	}

	select {
	case <-calls:
		t.Error("expected no rerun for an unrelated file")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestRun_ErrorsDoNotStopLoop(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snapshot.json")
	if err := os.WriteFile(path, []byte(`{}`), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	calls := make(chan struct{}, 10)
	go Run(ctx, path, 20*time.Millisecond, func() error {
		calls <- struct{}{}
		return errors.New("bad snapshot")
	})

	waitCall(t, calls, "initial run")
	if err := os.WriteFile(path, []byte(`{"x": 1}`), 0644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	waitCall(t, calls, "run after failed run")
}

func TestRun_MissingDirectory(t *testing.T) {
	err := Run(context.Background(), filepath.Join(t.TempDir(), "missing", "snapshot.json"), 0, func() error { return nil })
	if err == nil {
		t.Fatal("expected error for missing directory")
	}
}
