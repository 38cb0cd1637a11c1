package main

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"empacy/pkg/bundle"
	"empacy/pkg/protocol"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newContextCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "context",
		Short: "Distribute and inspect agent context packages",
	}
	cmd.AddCommand(
		newContextDistributeCmd(flags, "distribute", protocol.OpDistributeContext),
		newContextDistributeCmd(flags, "update", protocol.OpUpdateContext),
		newContextShowCmd(flags),
		newContextStatsCmd(flags),
		newContextLogCmd(flags),
		newContextCleanupCmd(flags),
	)
	return cmd
}

func newContextDistributeCmd(flags *rootFlags, use string, op protocol.Op) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <agent-id> <file>...",
		Short: "Build an agent's context package from files (" + string(op) + ")",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			files := make([]string, 0, len(args)-1)
			for _, f := range args[1:] {
				abs, err := filepath.Abs(f)
				if err != nil {
					return fmt.Errorf("resolve %s: %w", f, err)
				}
				files = append(files, abs)
			}
			params := map[string]any{"agentId": args[0], "contextFiles": files}
			return call(cmd, flags, op, params, func(w io.Writer, resp protocol.Response) error {
				var r struct {
					Version int    `json:"version"`
					Files   int    `json:"files"`
					Summary string `json:"summary"`
				}
				if err := resp.Decode(&r); err != nil {
					return err
				}
				fmt.Fprintf(w, "%s: version %d, %d of %d files\n", args[0], r.Version, r.Files, len(files))
				fmt.Fprintln(w, r.Summary)
				return nil
			})
		},
	}
}

func newContextShowCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show <agent-id>",
		Short: "Show an agent's current context package",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return call(cmd, flags, protocol.OpGetContext, map[string]any{"agentId": args[0]}, func(w io.Writer, resp protocol.Response) error {
				var r struct {
					Context bundle.Package `json:"context"`
				}
				if err := resp.Decode(&r); err != nil {
					return err
				}
				p := r.Context
				fmt.Fprintf(w, "agent %s, version %d, built %s\n", p.AgentID, p.Version, p.Timestamp.Format(time.DateTime))
				fmt.Fprintf(w, "%-40s %-18s %10s\n", "FILE", "TYPE", "SIZE")
				for _, f := range p.ContextFiles {
					fmt.Fprintf(w, "%-40s %-18s %10s\n", truncate(filepath.Base(f.Path), 40), f.Type, humanize.IBytes(uint64(f.Size))) //nolint:gosec // sizes are non-negative
				}
				fmt.Fprintln(w, p.Summary.Overview)
				return nil
			})
		},
	}
}

func newContextStatsCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize every stored context package",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return call(cmd, flags, protocol.OpGetContextStats, nil, func(w io.Writer, resp protocol.Response) error {
				var r struct {
					Stats bundle.Stats `json:"stats"`
				}
				if err := resp.Decode(&r); err != nil {
					return err
				}
				s := r.Stats
				fmt.Fprintf(w, "agents: %d  files: %d  size: %s\n", s.TotalAgents, s.TotalContextFiles, humanize.IBytes(uint64(s.TotalContextSize))) //nolint:gosec // sizes are non-negative
				for t, n := range s.FileTypeDistribution {
					fmt.Fprintf(w, "  %-18s %d\n", t, n)
				}
				return nil
			})
		},
	}
}

func newContextLogCmd(flags *rootFlags) *cobra.Command {
	var (
		agentID string
		limit   int
	)
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show the context access log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			params := map[string]any{"agentId": agentID, "limit": limit}
			return call(cmd, flags, protocol.OpGetAccessLog, params, func(w io.Writer, resp protocol.Response) error {
				var r struct {
					Records []bundle.AccessRecord `json:"records"`
				}
				if err := resp.Decode(&r); err != nil {
					return err
				}
				if len(r.Records) == 0 {
					fmt.Fprintln(w, "no access records")
					return nil
				}
				for _, rec := range r.Records {
					fmt.Fprintf(w, "%s %-36s %-22s %d files\n", rec.Timestamp.Format(time.DateTime), rec.AgentID, rec.Action, len(rec.ContextFiles))
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&agentID, "agent", "", "only show records for this agent")
	cmd.Flags().IntVar(&limit, "limit", bundle.DefaultAccessLogLimit, "maximum records to show")
	return cmd
}

func newContextCleanupCmd(flags *rootFlags) *cobra.Command {
	var maxAge time.Duration
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Drop context packages older than --max-age",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			params := map[string]any{}
			if cmd.Flags().Changed("max-age") {
				params["maxAgeMillis"] = maxAge.Milliseconds()
			}
			return call(cmd, flags, protocol.OpCleanupContext, params, func(w io.Writer, resp protocol.Response) error {
				fmt.Fprintf(w, "cleaned %v packages\n", resp.Result["cleaned"])
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&maxAge, "max-age", bundle.DefaultMaxAge, "age cutoff")
	return cmd
}
