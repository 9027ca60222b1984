package cli

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/Sternrassler/canvas-api-client/pkg/pagination"
	"github.com/spf13/cobra"
)

func getCmd(a *app) *cobra.Command {
	var (
		all         bool
		concurrency int
		maxPages    int
		timeout     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "get PATH",
		Short: "GET a Canvas API path relative to /api/v1/",
		Example: `  canvas get users/self
  canvas get "courses?per_page=50" --all`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			path := args[0]
			out := cmd.OutOrStdout()

			if !all {
				page, err := a.client.Fetch(ctx, path)
				if err != nil {
					return err
				}
				if _, err := out.Write(page.Data); err != nil {
					return err
				}
				if page.Links.HasNext() {
					fmt.Fprintf(cmd.ErrOrStderr(), "next: %s\n", page.Links.NextURL)
				}
				return nil
			}

			fetcher := pagination.NewBatchFetcher(a.client, pagination.Config{
				MaxConcurrency: concurrency,
				Timeout:        timeout,
				MaxPages:       maxPages,
			})
			pages, err := fetcher.FetchAllPages(ctx, path)
			if err != nil {
				return err
			}

			merged, err := mergePages(pages)
			if err != nil {
				return err
			}
			a.logger.Debug().Int("pages", len(pages)).Int("items", len(merged)).Msg("Fetched collection")

			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(merged)
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "follow pagination and print every item as one array")
	cmd.Flags().IntVar(&concurrency, "concurrency", pagination.DefaultConfig().MaxConcurrency, "parallel page fetches with --all")
	cmd.Flags().IntVar(&maxPages, "max-pages", pagination.MaxPages, "page limit with --all")
	cmd.Flags().DurationVar(&timeout, "page-timeout", pagination.DefaultConfig().Timeout, "timeout per page with --all")
	return cmd
}

// mergePages concatenates the JSON arrays of every page in page order.
func mergePages(pages map[int][]byte) ([]json.RawMessage, error) {
	numbers := make([]int, 0, len(pages))
	for n := range pages {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)

	merged := []json.RawMessage{}
	for _, n := range numbers {
		var items []json.RawMessage
		if err := json.Unmarshal(pages[n], &items); err != nil {
			return nil, fmt.Errorf("page %d is not a JSON array: %w", n, err)
		}
		merged = append(merged, items...)
	}
	return merged, nil
}
