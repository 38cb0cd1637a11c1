package main

import (
	"fmt"
	"io"
	"strings"

	"empacy/pkg/protocol"
	"empacy/pkg/scaffold"

	"github.com/spf13/cobra"
)

func newProjectCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Scaffold projects and inspect their state",
	}
	cmd.AddCommand(newProjectCreateCmd(flags), newProjectStateCmd(flags))
	return cmd
}

func newProjectCreateCmd(flags *rootFlags) *cobra.Command {
	var (
		description string
		domains     []string
	)
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a project tree and spawn its assistant and principal engineer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params := map[string]any{"name": args[0], "description": description, "domains": domains}
			return call(cmd, flags, protocol.OpCreateProject, params, func(w io.Writer, resp protocol.Response) error {
				var r struct {
					ProjectID string   `json:"projectId"`
					Agents    []string `json:"agents"`
				}
				if err := resp.Decode(&r); err != nil {
					return err
				}
				fmt.Fprintf(w, "project %s created\n", r.ProjectID)
				fmt.Fprintf(w, "agents: %s\n", strings.Join(r.Agents, ", "))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&description, "description", "", "project description")
	cmd.Flags().StringSliceVar(&domains, "domain", nil, "domain name (repeatable)")
	return cmd
}

func newProjectStateCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "state <project-id>",
		Short: "Show a project's domain and schedule status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return call(cmd, flags, protocol.OpGetProjectState, map[string]any{"projectId": args[0]}, func(w io.Writer, resp protocol.Response) error {
				var r struct {
					State scaffold.ProjectState `json:"state"`
				}
				if err := resp.Decode(&r); err != nil {
					return err
				}
				st := r.State
				fmt.Fprintf(w, "%s (%s): %s\n", st.Config.Name, st.ProjectID, st.OverallStatus)
				for _, d := range st.Domains {
					fmt.Fprintf(w, "  %-24s %s\n", d.Name, d.Status)
				}
				fmt.Fprintf(w, "schedule: %s\n", yesNo(st.Schedule.Exists))
				return nil
			})
		},
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
