// Package pagination walks paginated Canvas collections.
//
// Canvas paginates list endpoints with a Link header carrying rel="current",
// "next", "prev", "first" and "last" URLs. The next link is the only one
// guaranteed; "last" is omitted when counting the collection is too
// expensive, and page values may be opaque bookmarks instead of numbers.
//
// Sequential walk:
//
//	err := pagination.Walk(ctx, canvasClient, "courses/1/users?per_page=50", func(p *pagination.Page) error {
//		var users []model.User
//		if err := json.Unmarshal(p.Data, &users); err != nil {
//			return err
//		}
//		// ...
//		return nil
//	})
//
// Parallel fetch:
//
//	fetcher := pagination.NewBatchFetcher(canvasClient, pagination.DefaultConfig())
//	pages, err := fetcher.FetchAllPages(ctx, "courses/1/users?per_page=50")
//
// The batch fetcher:
//   - Fetches the first page
//   - Reads the page count from the rel="last" link when it is numeric
//   - Spawns a worker pool (default 4 workers) for pages 2..N
//   - Falls back to a sequential walk when the count is unknown
//   - Returns partial data with an error when a worker fails
package pagination
