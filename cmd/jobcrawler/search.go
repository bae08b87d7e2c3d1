package main

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hyperifyio/jobcrawler/internal/app"
	"github.com/hyperifyio/jobcrawler/internal/listing"
)

func newSearchCmd(opts *options) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "search <query>...",
		Short: "Run one query through the configured search provider",
		Long: `Run one query through the configured search provider and print the hits.

Lines marked [job] look like job listings and would be fetched by a crawl.
Nothing is fetched, scored or recorded.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			provider, err := app.NewSearchProvider(cfg, &http.Client{Timeout: cfg.SearchTimeout})
			if err != nil {
				return err
			}
			query := strings.Join(args, " ")
			results, err := provider.Search(cmd.Context(), query, limit)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %d results for %q\n", provider.Name(), len(results), query)
			for i, r := range results {
				marker := "     "
				if listing.LooksLikeListing(r.URL) {
					marker = "[job]"
				}
				fmt.Fprintf(out, "%2d. %s %s\n", i+1, marker, listing.Normalize(r.URL))
				if t := strings.TrimSpace(r.Title); t != "" {
					fmt.Fprintf(out, "          %s\n", t)
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Maximum number of results")
	return cmd
}
