package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"empacy/pkg/config"
	"empacy/pkg/coordinator"
	"empacy/pkg/protocol"

	"github.com/spf13/cobra"
)

// callTimeout bounds one CLI round trip to the coordinator.
const callTimeout = 30 * time.Second

// socketPath returns --socket, else the configured coordinator socket.
func socketPath(flags *rootFlags) (string, error) {
	if flags.socket != "" {
		return flags.socket, nil
	}
	paths, err := config.ResolvePaths()
	if err != nil {
		return "", fmt.Errorf("resolve paths: %w", err)
	}
	cfg, err := config.Load(paths)
	if err != nil {
		return "", err
	}
	return cfg.Server.Socket, nil
}

// call sends one operation to the running coordinator. A response with
// success=false is returned as an error. With --json the raw response is
// printed and render is skipped.
func call(cmd *cobra.Command, flags *rootFlags, op protocol.Op, params any, render func(w io.Writer, resp protocol.Response) error) error {
	path, err := socketPath(flags)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), callTimeout)
	defer cancel()

	cl, err := coordinator.Dial(ctx, path)
	if err != nil {
		return fmt.Errorf("%w (is `empacy serve` running?)", err)
	}
	defer cl.Close()

	resp, err := cl.Call(ctx, op, params)
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("%s: %s", op, resp.Error)
	}

	w := cmd.OutOrStdout()
	if flags.json || render == nil {
		return printJSON(w, resp)
	}
	return render(w, resp)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}

// parsePairs turns key=value flags into a map.
func parsePairs(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("expected key=value, got %q", p)
		}
		out[k] = v
	}
	return out, nil
}

// truncate shortens s to n runes for table output.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
