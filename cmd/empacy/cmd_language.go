package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"empacy/pkg/language"
	"empacy/pkg/protocol"

	"github.com/spf13/cobra"
)

func newLanguageCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "language",
		Aliases: []string{"lang"},
		Short:   "Manage the ubiquitous language",
	}
	cmd.AddCommand(
		newLanguageAddCmd(flags),
		newLanguageSearchCmd(flags),
		newLanguageShowCmd(flags),
		newLanguageExportCmd(flags),
		newLanguageImportCmd(flags),
		newLanguageStatsCmd(flags),
	)
	return cmd
}

func newLanguageAddCmd(flags *rootFlags) *cobra.Command {
	var in language.ConceptInput
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create or merge one concept",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			params := map[string]any{"concepts": []language.ConceptInput{in}}
			return call(cmd, flags, protocol.OpUpdateUbiquitousLanguage, params, func(w io.Writer, _ protocol.Response) error {
				fmt.Fprintf(w, "%s updated in %s\n", in.Name, in.Domain)
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&in.Name, "name", "", "concept name")
	f.StringVar(&in.Domain, "domain", "", "owning domain")
	f.StringVar(&in.Definition, "definition", "", "definition")
	f.StringVar(&in.ShortName, "short-name", "", "short name or acronym")
	f.StringSliceVar(&in.Synonyms, "synonym", nil, "synonym (repeatable)")
	f.StringSliceVar(&in.RelatedConcepts, "related", nil, "related concept (repeatable)")
	for _, name := range []string{"name", "domain", "definition"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func newLanguageSearchCmd(flags *rootFlags) *cobra.Command {
	var opts language.SearchOptions
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search concepts by name, short name, definition, domain and synonyms",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params := map[string]any{"query": args[0], "domain": opts.Domain, "limit": opts.Limit}
			return call(cmd, flags, protocol.OpSearchConcepts, params, func(w io.Writer, resp protocol.Response) error {
				var r struct {
					Results []language.ScoredConcept `json:"results"`
				}
				if err := resp.Decode(&r); err != nil {
					return err
				}
				if len(r.Results) == 0 {
					fmt.Fprintln(w, "no matches")
					return nil
				}
				fmt.Fprintf(w, "%-5s %-30s %-20s %s\n", "SCORE", "NAME", "DOMAIN", "DEFINITION")
				for _, sc := range r.Results {
					c := sc.Concept
					fmt.Fprintf(w, "%-5d %-30s %-20s %s\n", sc.Score, truncate(c.Name, 30), truncate(c.Domain, 20), truncate(c.Definition, 60))
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&opts.Domain, "domain", "", "only search this domain")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum results (0 = all)")
	return cmd
}

func newLanguageShowCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Show one concept",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return call(cmd, flags, protocol.OpGetConcept, map[string]any{"name": args[0]}, func(w io.Writer, resp protocol.Response) error {
				var r struct {
					Concept language.Concept `json:"concept"`
				}
				if err := resp.Decode(&r); err != nil {
					return err
				}
				c := r.Concept
				fmt.Fprintf(w, "%s (%s) v%d\n", c.Name, c.ShortName, c.Version)
				fmt.Fprintf(w, "domain:     %s\n", c.Domain)
				fmt.Fprintf(w, "definition: %s\n", c.Definition)
				if len(c.Synonyms) > 0 {
					fmt.Fprintf(w, "synonyms:   %s\n", strings.Join(c.Synonyms, ", "))
				}
				if len(c.RelatedConcepts) > 0 {
					fmt.Fprintf(w, "related:    %s\n", strings.Join(c.RelatedConcepts, ", "))
				}
				return nil
			})
		},
	}
}

func newLanguageExportCmd(flags *rootFlags) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the language as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return call(cmd, flags, protocol.OpExportLanguage, nil, func(w io.Writer, resp protocol.Response) error {
				doc, _ := resp.Result["yaml"].(string)
				if output == "" || output == "-" {
					_, err := io.WriteString(w, doc)
					return err
				}
				if err := os.WriteFile(output, []byte(doc), 0o644); err != nil { //nolint:gosec // user-chosen output file
					return fmt.Errorf("write %s: %w", output, err)
				}
				fmt.Fprintf(w, "exported to %s\n", output)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")
	return cmd
}

func newLanguageImportCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import concepts from a YAML export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			return call(cmd, flags, protocol.OpImportLanguage, map[string]any{"yaml": string(data)}, func(w io.Writer, resp protocol.Response) error {
				var r language.ImportResult
				if err := resp.Decode(&r); err != nil {
					return err
				}
				fmt.Fprintf(w, "imported %d concepts (%d total)\n", r.ConceptsImported, r.TotalConcepts)
				return nil
			})
		},
	}
}

func newLanguageStatsCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize the language registry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return call(cmd, flags, protocol.OpGetLanguageStats, nil, func(w io.Writer, resp protocol.Response) error {
				var r struct {
					Stats language.Stats `json:"stats"`
				}
				if err := resp.Decode(&r); err != nil {
					return err
				}
				s := r.Stats
				fmt.Fprintf(w, "concepts: %d  domains: %d  acronyms: %d  history: %d\n",
					s.TotalConcepts, s.TotalDomains, s.TotalAcronyms, s.TotalHistory)
				for d, n := range s.DomainBreakdown {
					fmt.Fprintf(w, "  %-20s %d\n", d, n)
				}
				return nil
			})
		},
	}
}
