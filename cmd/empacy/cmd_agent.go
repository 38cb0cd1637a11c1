package main

import (
	"fmt"
	"io"
	"strings"

	"empacy/pkg/agent"
	"empacy/pkg/protocol"

	"github.com/spf13/cobra"
)

func newAgentCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Spawn, inspect and terminate agents",
	}
	cmd.AddCommand(
		newAgentSpawnCmd(flags),
		newAgentStatusCmd(flags),
		newAgentListCmd(flags),
		newAgentUpdateCmd(flags),
		newAgentTerminateCmd(flags),
		newAgentRolesCmd(),
	)
	return cmd
}

func newAgentSpawnCmd(flags *rootFlags) *cobra.Command {
	var pairs []string
	cmd := &cobra.Command{
		Use:   "spawn <role>",
		Short: "Spawn an agent of the given role",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			supplied, err := parsePairs(pairs)
			if err != nil {
				return err
			}
			params := map[string]any{"role": args[0], "context": supplied}
			return call(cmd, flags, protocol.OpSpawnAgent, params, func(w io.Writer, resp protocol.Response) error {
				var r struct {
					AgentID        string   `json:"agentId"`
					Status         string   `json:"status"`
					MissingContext []string `json:"missingContext"`
				}
				if err := resp.Decode(&r); err != nil {
					return err
				}
				fmt.Fprintf(w, "%s %s\n", r.AgentID, r.Status)
				if len(r.MissingContext) > 0 {
					fmt.Fprintf(w, "warning: missing context: %s\n", strings.Join(r.MissingContext, ", "))
				}
				return nil
			})
		},
	}
	cmd.Flags().StringArrayVar(&pairs, "context", nil, "context entry as key=value (repeatable)")
	return cmd
}

func newAgentStatusCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status <agent-id>",
		Short: "Show an agent's status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return call(cmd, flags, protocol.OpGetAgentStatus, map[string]any{"agentId": args[0]}, func(w io.Writer, resp protocol.Response) error {
				var r struct {
					Status agent.Status `json:"status"`
				}
				if err := resp.Decode(&r); err != nil {
					return err
				}
				s := r.Status
				fmt.Fprintf(w, "id:            %s\n", s.ID)
				fmt.Fprintf(w, "role:          %s\n", s.Role)
				fmt.Fprintf(w, "status:        %s\n", s.Status)
				fmt.Fprintf(w, "last activity: %s\n", s.LastActivity.Format("2006-01-02 15:04:05"))
				fmt.Fprintf(w, "capabilities:  %s\n", strings.Join(s.Capabilities, ", "))
				return nil
			})
		},
	}
}

func newAgentListCmd(flags *rootFlags) *cobra.Command {
	var role string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List agents, optionally by role",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return call(cmd, flags, protocol.OpListAgents, map[string]any{"role": role}, func(w io.Writer, resp protocol.Response) error {
				var r struct {
					Agents []agent.Summary `json:"agents"`
				}
				if err := resp.Decode(&r); err != nil {
					return err
				}
				if len(r.Agents) == 0 {
					fmt.Fprintln(w, "no agents")
					return nil
				}
				fmt.Fprintf(w, "%-36s %-20s %-13s %s\n", "ID", "ROLE", "STATUS", "LAST ACTIVITY")
				for _, a := range r.Agents {
					fmt.Fprintf(w, "%-36s %-20s %-13s %s\n", a.ID, a.Role, a.Status, a.LastActivity.Format("15:04:05"))
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "only list agents of this role")
	return cmd
}

func newAgentUpdateCmd(flags *rootFlags) *cobra.Command {
	var pairs []string
	cmd := &cobra.Command{
		Use:   "update <agent-id> <status>",
		Short: "Set an agent's status and merge metadata",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			meta, err := parsePairs(pairs)
			if err != nil {
				return err
			}
			params := map[string]any{"agentId": args[0], "status": args[1], "metadata": meta}
			return call(cmd, flags, protocol.OpUpdateAgentStatus, params, func(w io.Writer, _ protocol.Response) error {
				fmt.Fprintf(w, "%s %s\n", args[0], args[1])
				return nil
			})
		},
	}
	cmd.Flags().StringArrayVar(&pairs, "meta", nil, "metadata entry as key=value (repeatable)")
	return cmd
}

func newAgentTerminateCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "terminate <agent-id>",
		Short: "Terminate and remove an agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return call(cmd, flags, protocol.OpTerminateAgent, map[string]any{"agentId": args[0]}, func(w io.Writer, _ protocol.Response) error {
				fmt.Fprintf(w, "%s terminated\n", args[0])
				return nil
			})
		},
	}
}

// newAgentRolesCmd prints the built-in catalog; it needs no server.
func newAgentRolesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "roles",
		Short: "List the agent roles and their required context",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := cmd.OutOrStdout()
			for _, d := range agent.Catalog() {
				fmt.Fprintf(w, "%-20s %s\n", d.Role, d.Description)
				fmt.Fprintf(w, "%-20s requires: %s\n", "", strings.Join(d.RequiredContext, ", "))
			}
			return nil
		},
	}
}
