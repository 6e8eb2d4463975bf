package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/FranksOps/metasearch/internal/present"
)

func newSearchCmd(root *rootOptions) *cobra.Command {
	var (
		page   int
		pages  int
		format string
	)

	cmd := &cobra.Command{
		Use:   "search QUERY...",
		Short: "Search all providers and print an enriched page",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := buildApp(ctx, root.cfg, root.logger)
			if err != nil {
				return err
			}
			defer a.Close()

			query := strings.Join(args, " ")
			out := cmd.OutOrStdout()
			for i := page; i < page+max(pages, 1); i++ {
				result, err := a.pipeline.Search(ctx, query, i)
				if err != nil {
					return err
				}
				if err := present.Write(out, format, result); err != nil {
					return err
				}
				if !result.HasMore {
					break
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&page, "page", 0, "zero-based page index")
	cmd.Flags().IntVar(&pages, "pages", 1, "number of consecutive pages to print")
	cmd.Flags().StringVar(&format, "format", "text", "output format: text, html or json")
	return cmd
}
