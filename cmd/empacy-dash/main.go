// Package main implements the empacy-dash interactive dashboard.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"empacy/pkg/config"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

type dashFlags struct {
	socket   string
	interval time.Duration
	json     bool
}

func newRootCmd() *cobra.Command {
	flags := &dashFlags{}
	cmd := &cobra.Command{
		Use:           "empacy-dash",
		Short:         "Live dashboard for a running empacy coordinator",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			socket, dbPath, err := resolveTargets(flags)
			if err != nil {
				return err
			}
			if flags.json {
				return robotMode(cmd.Context(), cmd.OutOrStdout(), socket, dbPath)
			}
			p := tea.NewProgram(newModel(socket, dbPath, flags.interval), tea.WithAltScreen(), tea.WithContext(cmd.Context()))
			if _, err := p.Run(); err != nil {
				return fmt.Errorf("run dashboard: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&flags.socket, "socket", "", "coordinator socket (default from config)")
	cmd.Flags().DurationVar(&flags.interval, "interval", 2*time.Second, "refresh interval")
	cmd.Flags().BoolVar(&flags.json, "json", false, "print one JSON snapshot and exit")
	return cmd
}

// resolveTargets returns the socket and journal path to poll. The journal
// path is empty when the journal is disabled.
func resolveTargets(flags *dashFlags) (socket, dbPath string, err error) {
	paths, err := config.ResolvePaths()
	if err != nil {
		return "", "", fmt.Errorf("resolve paths: %w", err)
	}
	cfg, err := config.Load(paths)
	if err != nil {
		return "", "", err
	}
	socket = cfg.Server.Socket
	if flags.socket != "" {
		socket = flags.socket
	}
	if cfg.Journal.On() {
		dbPath = cfg.Journal.Path
	}
	if flags.interval <= 0 {
		return "", "", fmt.Errorf("--interval must be positive, got %s", flags.interval)
	}
	return socket, dbPath, nil
}

// robotMode writes a single JSON snapshot of the coordinator to w.
func robotMode(ctx context.Context, w io.Writer, socket, dbPath string) error {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()
	snap := fetchSnapshot(ctx, socket, dbPath)
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running dashboard: %v\n", err)
		os.Exit(1)
	}
}
