package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"empacy/pkg/agent"
	"empacy/pkg/bundle"
	"empacy/pkg/coordinator"
	"empacy/pkg/language"
	"empacy/pkg/protocol"
	"empacy/pkg/scaffold"
)

// isolateEnv points EMPACY_HOME at a temp dir and clears the other overrides.
func isolateEnv(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv(protocol.EnvHome, home)
	for _, k := range []string{protocol.EnvSocketPath, protocol.EnvDBPath, protocol.EnvProjectsDir, protocol.EnvLogLevel} {
		t.Setenv(k, "")
	}
	return home
}

// runCLI executes the root command with args and returns combined output.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

// startCoordinator serves an in-process coordinator on a short temp socket
// path and returns the path.
func startCoordinator(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "empacy-cli")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	path := filepath.Join(dir, "c.sock")

	coord := coordinator.New(
		agent.NewManager(),
		bundle.NewManager(),
		language.NewManager(),
		scaffold.New(filepath.Join(dir, "projects")),
		coordinator.WithVersion("test"),
	)
	srv := coordinator.NewServer(coord)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = srv.ListenAndServe(ctx, path)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(path); err == nil {
			return path
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("coordinator socket never appeared")
	return ""
}

func writeTestFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}
