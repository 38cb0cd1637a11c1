package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"empacy/pkg/eventlog"
	"empacy/pkg/protocol"

	"github.com/spf13/cobra"
)

// logsConfig holds configuration for the logs command.
type logsConfig struct {
	opts    eventlog.QueryOpts
	summary bool
	follow  bool
}

// newLogsCmd creates the "empacy logs" subcommand.
func newLogsCmd() *cobra.Command {
	var cfg logsConfig

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Query the coordinator operation journal",
		Long:  "Displays operations recorded in the journal, newest last.\nFilter by agent, operation or failures, or follow new entries.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := loadConfig()
			if err != nil {
				return err
			}
			r, err := eventlog.NewReader(c.Journal.Path)
			if err != nil {
				return err
			}
			defer r.Close()

			w := cmd.OutOrStdout()
			if cfg.summary {
				return printSummary(cmd.Context(), r, w)
			}
			if cfg.follow {
				return followLogs(cmd.Context(), r, w, cfg.opts, time.Second)
			}
			return printLogs(cmd.Context(), r, w, cfg.opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.opts.AgentID, "agent", "", "only operations concerning this agent")
	f.StringVar(&cfg.opts.Op, "op", "", "only this operation")
	f.BoolVar(&cfg.opts.FailuresOnly, "failures", false, "only failed operations")
	f.IntVar(&cfg.opts.Limit, "tail", 20, "number of recent events to show")
	f.BoolVar(&cfg.summary, "summary", false, "count operations instead of listing them")
	f.BoolVarP(&cfg.follow, "follow", "f", false, "poll for new events")

	return cmd
}

// printLogs prints the matching events oldest first.
func printLogs(ctx context.Context, r *eventlog.Reader, w io.Writer, opts eventlog.QueryOpts) error {
	events, err := r.Query(ctx, opts)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		fmt.Fprintln(w, "no events found")
		return nil
	}
	for i := len(events) - 1; i >= 0; i-- {
		formatEvent(w, events[i])
	}
	return nil
}

// followLogs prints the tail, then polls for events with a higher id.
func followLogs(ctx context.Context, r *eventlog.Reader, w io.Writer, opts eventlog.QueryOpts, every time.Duration) error {
	events, err := r.Query(ctx, opts)
	if err != nil {
		return err
	}
	var lastID int64
	for i := len(events) - 1; i >= 0; i-- {
		formatEvent(w, events[i])
		lastID = max(lastID, events[i].ID)
	}

	ticker := time.NewTicker(every)
	defer ticker.Stop()
	poll := opts
	poll.Limit = 100
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			events, err := r.Query(ctx, poll)
			if err != nil {
				return err
			}
			for i := len(events) - 1; i >= 0; i-- {
				if events[i].ID <= lastID {
					continue
				}
				formatEvent(w, events[i])
				lastID = events[i].ID
			}
		}
	}
}

func printSummary(ctx context.Context, r *eventlog.Reader, w io.Writer) error {
	rows, err := r.Summary(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%-28s %8s %8s\n", "OPERATION", "TOTAL", "FAILED")
	for _, row := range rows {
		fmt.Fprintf(w, "%-28s %8d %8d\n", row.Op, row.Total, row.Failures)
	}
	return nil
}

func formatEvent(w io.Writer, e protocol.Event) {
	mark := "ok"
	if !e.Success {
		mark = "FAIL"
	}
	line := fmt.Sprintf("%s %-4s %-26s", e.CreatedAt, mark, e.Type)
	if e.AgentID != "" {
		line += " agent=" + e.AgentID
	}
	if e.Payload != "" {
		line += " " + e.Payload
	}
	fmt.Fprintln(w, line)
}
