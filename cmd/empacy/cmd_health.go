package main

import (
	"fmt"
	"io"
	"time"

	"empacy/pkg/protocol"

	"github.com/spf13/cobra"
)

func newHealthCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the coordinator is running",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return call(cmd, flags, protocol.OpHealth, nil, func(w io.Writer, resp protocol.Response) error {
				var r struct {
					Status        string `json:"status"`
					Version       string `json:"version"`
					UptimeSeconds int64  `json:"uptimeSeconds"`
					Agents        int    `json:"agents"`
					Contexts      int    `json:"contexts"`
					Concepts      int    `json:"concepts"`
				}
				if err := resp.Decode(&r); err != nil {
					return err
				}
				fmt.Fprintf(w, "%s (empacy %s, up %s)\n", r.Status, r.Version, time.Duration(r.UptimeSeconds)*time.Second)
				fmt.Fprintf(w, "agents: %d  context packages: %d  concepts: %d\n", r.Agents, r.Contexts, r.Concepts)
				return nil
			})
		},
	}
}
