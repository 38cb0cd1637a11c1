package main

import (
	"fmt"

	"empacy/pkg/config"

	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the effective configuration",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the effective configuration as YAML",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				out, err := cfg.YAML()
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				if cfg.Source != "" {
					fmt.Fprintf(w, "# from %s\n", cfg.Source)
				}
				_, err = w.Write(out)
				return err
			},
		},
		&cobra.Command{
			Use:   "validate",
			Short: "Check the config file and environment overrides",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, err := loadConfig()
				if err != nil {
					return fmt.Errorf("invalid config: %w", err)
				}
				src := cfg.Source
				if src == "" {
					src = "defaults"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "config ok (%s)\n", src)
				return nil
			},
		},
	)
	return cmd
}

func loadConfig() (*config.Config, error) {
	paths, err := config.ResolvePaths()
	if err != nil {
		return nil, fmt.Errorf("resolve paths: %w", err)
	}
	return config.Load(paths)
}
