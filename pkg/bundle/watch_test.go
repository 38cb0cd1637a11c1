package bundle

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestWatcher_RedistributesOnWrite(t *testing.T) {
	dir := writeFiles(t, map[string]string{"vision.md": "# v1"})
	m := NewManager(WithBaseDir(dir))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, err := m.DistributeContext(ctx, "agent_1", []string{"vision.md"}); err != nil {
		t.Fatal(err)
	}

	refreshed := make(chan Package, 4)
	w, err := NewWatcher(m, nil, func(p Package) { refreshed <- p })
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer func() { _ = w.Close() }()

	if err := w.Track("agent_1"); err != nil {
		t.Fatalf("Track: %v", err)
	}
	go w.Run(ctx)

	if err := os.WriteFile(filepath.Join(dir, "vision.md"), []byte("# v2"), 0o600); err != nil {
		t.Fatal(err)
	}

	select {
	case p := <-refreshed:
		if p.Version < 2 {
			t.Errorf("refreshed version = %d", p.Version)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no refresh after file write")
	}

	waitFor(t, func() bool {
		p, err := m.GetContext("agent_1")
		return err == nil && p.ContextFiles[0].Content == "# v2"
	})
}

func TestWatcher_UntrackedFilesIgnored(t *testing.T) {
	dir := writeFiles(t, map[string]string{"vision.md": "# v1", "other.md": "# o"})
	m := NewManager(WithBaseDir(dir))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, err := m.DistributeContext(ctx, "agent_1", []string{"vision.md"}); err != nil {
		t.Fatal(err)
	}
	w, err := NewWatcher(m, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = w.Close() }()
	if err := w.Track("agent_1"); err != nil {
		t.Fatal(err)
	}
	go w.Run(ctx)

	if err := os.WriteFile(filepath.Join(dir, "other.md"), []byte("# changed"), 0o600); err != nil {
		t.Fatal(err)
	}
	time.Sleep(4 * debounceDuration)
	if v := m.GetContextVersion("agent_1"); v != 1 {
		t.Errorf("untracked write bumped version to %d", v)
	}
}

func TestWatcher_TrackUntrack(t *testing.T) {
	dir := writeFiles(t, map[string]string{"a.md": "# a"})
	m := NewManager(WithBaseDir(dir))
	w, err := NewWatcher(m, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = w.Close() }()

	if err := w.Track("agent_1"); err == nil {
		t.Fatal("tracking an agent without context should fail")
	}
	if _, err := m.DistributeContext(context.Background(), "agent_1", []string{"a.md"}); err != nil {
		t.Fatal(err)
	}
	if err := w.Track("agent_1"); err != nil {
		t.Fatal(err)
	}
	if !w.Tracked("agent_1") {
		t.Error("agent not tracked")
	}
	w.Untrack("agent_1")
	if w.Tracked("agent_1") {
		t.Error("agent still tracked")
	}
	if len(w.dirs) != 0 || len(w.paths) != 0 {
		t.Errorf("untrack leaked watches: dirs=%v paths=%v", w.dirs, w.paths)
	}
}

func TestWatcher_RedistributesWhenMissingFileAppears(t *testing.T) {
	dir := writeFiles(t, map[string]string{"vision.md": "# v1"})
	m := NewManager(WithBaseDir(dir))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pkg, err := m.DistributeContext(ctx, "agent_1", []string{"vision.md", "later.md"})
	if err != nil {
		t.Fatal(err)
	}
	if len(pkg.ContextFiles) != 1 {
		t.Fatalf("distributed %d files, want 1 before later.md exists", len(pkg.ContextFiles))
	}

	refreshed := make(chan Package, 4)
	w, err := NewWatcher(m, nil, func(p Package) { refreshed <- p })
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer func() { _ = w.Close() }()
	if err := w.Track("agent_1"); err != nil {
		t.Fatalf("Track: %v", err)
	}
	go w.Run(ctx)

	if err := os.WriteFile(filepath.Join(dir, "later.md"), []byte("# later"), 0o600); err != nil {
		t.Fatal(err)
	}

	select {
	case p := <-refreshed:
		if len(p.ContextFiles) != 2 {
			t.Errorf("refreshed package has %d files, want 2", len(p.ContextFiles))
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no refresh after missing file was created")
	}
}
