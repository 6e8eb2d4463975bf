package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/FranksOps/metasearch/internal/config"
	"github.com/FranksOps/metasearch/internal/report"
	"github.com/FranksOps/metasearch/internal/storage"
)

func newReportCmd(root *rootOptions) *cobra.Command {
	var (
		format   string
		since    time.Duration
		query    string
		provider string
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarize the fetch journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if root.cfg.Journal.Backend == config.JournalNone {
				return errors.New("no journal configured; set journal.backend and journal.dsn")
			}

			backend, err := openJournal(ctx, root.cfg.Journal)
			if err != nil {
				return err
			}
			defer backend.Close()

			filter := storage.Filter{Query: query, Provider: provider}
			if since > 0 {
				from := time.Now().Add(-since)
				filter.Since = &from
			}
			records, err := backend.Query(ctx, filter)
			if err != nil {
				return err
			}

			summary := report.GenerateSummary(records)
			out := cmd.OutOrStdout()
			switch format {
			case "text":
				return report.WriteText(out, summary)
			case "json":
				return report.WriteJSON(out, summary)
			case "html":
				return report.WriteHTML(out, summary)
			default:
				return fmt.Errorf("unknown report format %q", format)
			}
		},
	}

	cmd.Flags().StringVar(&format, "format", "text", "output format: text, json or html")
	cmd.Flags().DurationVar(&since, "since", 0, "only include records newer than this (e.g. 24h)")
	cmd.Flags().StringVar(&query, "query", "", "only include records of this query")
	cmd.Flags().StringVar(&provider, "provider", "", "only include records of this provider")
	return cmd
}
