package bundle

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"empacy/pkg/protocol"
)

type stepClock struct{ now time.Time }

func (c *stepClock) Now() time.Time { return c.now }

func newClock() *stepClock {
	return &stepClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

// writeFiles creates name->content files in a temp dir and returns the dir.
func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

func TestDistributeContext_VersionIncrements(t *testing.T) {
	dir := writeFiles(t, map[string]string{"vision.md": "# Vision"})
	m := NewManager(WithBaseDir(dir))
	ctx := context.Background()

	if v := m.GetContextVersion("agent_x"); v != 0 {
		t.Fatalf("never-distributed version = %d, want 0", v)
	}

	p1, err := m.DistributeContext(ctx, "agent_1", []string{"vision.md"})
	if err != nil {
		t.Fatalf("first distribute: %v", err)
	}
	p2, err := m.DistributeContext(ctx, "agent_1", []string{"vision.md"})
	if err != nil {
		t.Fatalf("second distribute: %v", err)
	}
	if p1.Version != 1 || p2.Version != 2 {
		t.Errorf("versions = %d, %d; want 1, 2", p1.Version, p2.Version)
	}
	if v := m.GetContextVersion("agent_1"); v != 2 {
		t.Errorf("GetContextVersion = %d, want 2", v)
	}
	if m.Count() != 1 {
		t.Errorf("expected a single stored package, got %d", m.Count())
	}
}

func TestDistributeContext_PackageContents(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"ubiquitous-language.yaml": "concepts: []\n",
		"vision.md":                "# Vision\n",
		"notes":                    "plain prose",
		"config.json":              "{}",
	})
	m := NewManager(WithBaseDir(dir), WithParallelism(2))

	files := []string{"vision.md", "missing.md", "ubiquitous-language.yaml", "notes", "config.json"}
	pkg, err := m.DistributeContext(context.Background(), "agent_1", files)
	if err != nil {
		t.Fatalf("DistributeContext: %v", err)
	}

	wantOrder := []string{"vision.md", "ubiquitous-language.yaml", "notes", "config.json"}
	if len(pkg.ContextFiles) != len(wantOrder) {
		t.Fatalf("got %d records, want %d", len(pkg.ContextFiles), len(wantOrder))
	}
	for i, name := range wantOrder {
		if pkg.ContextFiles[i].File != name {
			t.Errorf("record %d = %s, want %s (input order must be preserved)", i, pkg.ContextFiles[i].File, name)
		}
		if !filepath.IsAbs(pkg.ContextFiles[i].Path) {
			t.Errorf("record %d path %q is not absolute", i, pkg.ContextFiles[i].Path)
		}
	}

	wantTypes := []protocol.ContentType{protocol.ContentMarkdown, protocol.ContentYAML, protocol.ContentText, protocol.ContentJSON}
	for i, want := range wantTypes {
		if pkg.Metadata.FileTypes[i] != want {
			t.Errorf("FileTypes[%d] = %s, want %s", i, pkg.Metadata.FileTypes[i], want)
		}
	}

	var size int64
	for _, r := range pkg.ContextFiles {
		size += r.Size
	}
	if pkg.Metadata.TotalSize != size || pkg.Metadata.TotalFiles != 4 {
		t.Errorf("metadata = %+v, want size %d and 4 files", pkg.Metadata, size)
	}
	wantOverview := fmt.Sprintf("Context package contains 4 files with %d B total content", size)
	if pkg.Summary.Overview != wantOverview {
		t.Errorf("overview = %q, want %q", pkg.Summary.Overview, wantOverview)
	}
	if len(pkg.Summary.Files) != 4 || pkg.Summary.Files[0].Name != "vision.md" {
		t.Errorf("summary files = %+v", pkg.Summary.Files)
	}
}

func TestDistributeContext_AllFilesFail(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "subdir"), 0o755); err != nil {
		t.Fatal(err)
	}
	m := NewManager(WithBaseDir(dir))

	pkg, err := m.DistributeContext(context.Background(), "agent_1", []string{"nope.md", "subdir", ""})
	if err != nil {
		t.Fatalf("all-failed distribution must not error: %v", err)
	}
	if len(pkg.ContextFiles) != 0 || pkg.Metadata.TotalFiles != 0 {
		t.Errorf("expected an empty package, got %+v", pkg.ContextFiles)
	}
	if pkg.Version != 1 {
		t.Errorf("version = %d, want 1", pkg.Version)
	}
	if !strings.HasPrefix(pkg.Summary.Overview, "Context package contains 0 files with 0 B") {
		t.Errorf("overview = %q", pkg.Summary.Overview)
	}
}

func TestDistributeContext_Cancelled(t *testing.T) {
	dir := writeFiles(t, map[string]string{"a.md": "# a"})
	m := NewManager(WithBaseDir(dir))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := m.DistributeContext(ctx, "agent_1", []string{"a.md"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if m.GetContextVersion("agent_1") != 0 {
		t.Error("cancelled distribution must not store a package")
	}
}

func TestUpdateContext_ReplacesPackage(t *testing.T) {
	dir := writeFiles(t, map[string]string{"a.md": "# a", "b.yaml": "k: v"})
	m := NewManager(WithBaseDir(dir))
	ctx := context.Background()

	if _, err := m.DistributeContext(ctx, "agent_1", []string{"a.md"}); err != nil {
		t.Fatal(err)
	}
	pkg, err := m.UpdateContext(ctx, "agent_1", []string{"b.yaml"})
	if err != nil {
		t.Fatal(err)
	}
	if pkg.Version != 2 || len(pkg.ContextFiles) != 1 || pkg.ContextFiles[0].File != "b.yaml" {
		t.Errorf("update did not replace package: %+v", pkg)
	}

	got, err := m.GetContext("agent_1")
	if err != nil {
		t.Fatal(err)
	}
	if got.ContextFiles[0].Content != "k: v" {
		t.Errorf("stored content = %q", got.ContextFiles[0].Content)
	}
}

func TestGetContext_NotFound(t *testing.T) {
	m := NewManager()
	_, err := m.GetContext("agent_9")
	var nf *protocol.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if err.Error() != "no context found for agent: agent_9" {
		t.Errorf("message = %q", err.Error())
	}
}

func TestAccessLog(t *testing.T) {
	dir := writeFiles(t, map[string]string{"a.md": "# a"})
	m := NewManager(WithBaseDir(dir))
	ctx := context.Background()

	for i := range 5 {
		id := "agent_1"
		if i%2 == 1 {
			id = "agent_2"
		}
		if _, err := m.DistributeContext(ctx, id, []string{"a.md"}); err != nil {
			t.Fatal(err)
		}
	}

	all := m.GetAccessLog("", 0)
	if len(all) != 5 {
		t.Fatalf("expected 5 records, got %d", len(all))
	}
	for _, r := range all {
		if r.Action != protocol.ActionContextDistributed {
			t.Errorf("action = %q", r.Action)
		}
	}

	a2 := m.GetAccessLog("agent_2", 0)
	if len(a2) != 2 {
		t.Errorf("agent_2 records = %d, want 2", len(a2))
	}
	last := m.GetAccessLog("agent_1", 1)
	if len(last) != 1 || last[0].AgentID != "agent_1" {
		t.Errorf("limited log = %+v", last)
	}
}

func TestAccessLog_Capped(t *testing.T) {
	m := NewManager()
	ctx := context.Background()
	for i := range protocol.MaxAccessLogRecords + 5 {
		if _, err := m.DistributeContext(ctx, fmt.Sprintf("agent_%d", i), nil); err != nil {
			t.Fatal(err)
		}
	}
	log := m.GetAccessLog("", protocol.MaxAccessLogRecords*2)
	if len(log) != protocol.MaxAccessLogRecords {
		t.Fatalf("access log length = %d, want %d", len(log), protocol.MaxAccessLogRecords)
	}
	if log[0].AgentID != "agent_5" {
		t.Errorf("oldest retained = %s, want agent_5", log[0].AgentID)
	}
}

func TestCleanupOldContext(t *testing.T) {
	clock := newClock()
	m := NewManager(WithClock(clock.Now))
	ctx := context.Background()

	if _, err := m.DistributeContext(ctx, "old", nil); err != nil {
		t.Fatal(err)
	}
	clock.now = clock.now.Add(2 * time.Hour)
	if _, err := m.DistributeContext(ctx, "fresh", nil); err != nil {
		t.Fatal(err)
	}

	if n := m.CleanupOldContext(time.Hour); n != 1 {
		t.Errorf("cleaned %d, want 1", n)
	}
	if m.GetContextVersion("old") != 0 {
		t.Error("version counter of cleaned package survived")
	}
	if m.GetContextVersion("fresh") != 1 {
		t.Error("fresh package was cleaned")
	}

	if n := m.CleanupOldContext(-1); n != 0 {
		t.Errorf("default max age cleaned %d, want 0", n)
	}
}

func TestCleanupOldContext_ZeroDeletesEverything(t *testing.T) {
	clock := newClock()
	m := NewManager(WithClock(clock.Now))
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		if _, err := m.DistributeContext(ctx, id, nil); err != nil {
			t.Fatal(err)
		}
	}

	if n := m.CleanupOldContext(0); n != 3 {
		t.Fatalf("cleaned %d, want 3", n)
	}
	for _, id := range []string{"a", "b", "c"} {
		if v := m.GetContextVersion(id); v != 0 {
			t.Errorf("version for %s = %d, want 0", id, v)
		}
	}
	if _, err := m.DistributeContext(ctx, "a", nil); err != nil {
		t.Fatal(err)
	}
	if v := m.GetContextVersion("a"); v != 1 {
		t.Errorf("version restarted at %d, want 1", v)
	}
}

func TestGetContextStats(t *testing.T) {
	dir := writeFiles(t, map[string]string{"a.md": "# a", "b.md": "# bb", "c.yaml": "k: v"})
	m := NewManager(WithBaseDir(dir))
	ctx := context.Background()

	if _, err := m.DistributeContext(ctx, "agent_1", []string{"a.md", "c.yaml"}); err != nil {
		t.Fatal(err)
	}
	if _, err := m.DistributeContext(ctx, "agent_2", []string{"a.md", "b.md"}); err != nil {
		t.Fatal(err)
	}

	s := m.GetContextStats()
	if s.TotalAgents != 2 || s.TotalContextFiles != 4 {
		t.Errorf("stats = %+v", s)
	}
	if s.TotalContextSize != int64(len("# a")*2+len("# bb")+len("k: v")) {
		t.Errorf("total size = %d", s.TotalContextSize)
	}
	if s.FileTypeDistribution[protocol.ContentMarkdown] != 2 || s.FileTypeDistribution[protocol.ContentYAML] != 1 {
		t.Errorf("distribution = %v", s.FileTypeDistribution)
	}
	if len(s.RecentActivity) != 2 {
		t.Errorf("recent activity = %d", len(s.RecentActivity))
	}
}

func TestGetContextStats_RecentActivityLimit(t *testing.T) {
	m := NewManager()
	for i := range 15 {
		if _, err := m.DistributeContext(context.Background(), fmt.Sprintf("agent_%d", i), nil); err != nil {
			t.Fatal(err)
		}
	}
	s := m.GetContextStats()
	if len(s.RecentActivity) != protocol.RecentActivityLimit {
		t.Fatalf("recent activity = %d, want %d", len(s.RecentActivity), protocol.RecentActivityLimit)
	}
	if s.RecentActivity[len(s.RecentActivity)-1].AgentID != "agent_14" {
		t.Errorf("latest entry = %s", s.RecentActivity[len(s.RecentActivity)-1].AgentID)
	}
}

func TestReset(t *testing.T) {
	m := NewManager()
	if _, err := m.DistributeContext(context.Background(), "agent_1", nil); err != nil {
		t.Fatal(err)
	}
	m.Reset()
	if m.Count() != 0 || m.GetContextVersion("agent_1") != 0 || len(m.GetAccessLog("", 0)) != 0 {
		t.Error("reset left state behind")
	}
}
