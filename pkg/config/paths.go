package config

import (
	"fmt"
	"os"
	"path/filepath"

	"empacy/pkg/protocol"
)

// Paths holds the resolved Empacy state file paths.
// Use ResolvePaths() to populate this struct with defaults + env overrides.
type Paths struct {
	Home        string // ~/.empacy or EMPACY_HOME
	SocketPath  string // empacy.sock or EMPACY_SOCKET_PATH
	DBPath      string // journal.db or EMPACY_DB_PATH
	ProjectsDir string // ./projects or EMPACY_PROJECTS_DIR
}

// ResolvePaths returns all Empacy paths, respecting env var overrides.
// Environment variables:
//   - EMPACY_HOME: base directory for all state (default: ~/.empacy)
//   - EMPACY_SOCKET_PATH: coordinator UDS socket (default: $EMPACY_HOME/empacy.sock)
//   - EMPACY_DB_PATH: operation journal (default: $EMPACY_HOME/journal.db)
//   - EMPACY_PROJECTS_DIR: scaffolding root (default: ./projects)
func ResolvePaths() (Paths, error) {
	home, err := resolveHome()
	if err != nil {
		return Paths{}, err
	}
	projects := os.Getenv(protocol.EnvProjectsDir)
	if projects == "" {
		projects = protocol.ProjectsDir
	}
	return Paths{
		Home:        home,
		SocketPath:  resolvePathWithEnv(protocol.EnvSocketPath, home, protocol.SocketFile),
		DBPath:      resolvePathWithEnv(protocol.EnvDBPath, home, protocol.JournalFile),
		ProjectsDir: projects,
	}, nil
}

func resolveHome() (string, error) {
	if v := os.Getenv(protocol.EnvHome); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, protocol.EmpacyDir), nil
}

// resolvePathWithEnv returns the path from envKey if set, otherwise joins base + suffix.
func resolvePathWithEnv(envKey, base, suffix string) string {
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	return filepath.Join(base, suffix)
}
