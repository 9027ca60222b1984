package pagination

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Config holds batch fetcher configuration
type Config struct {
	// MaxConcurrency is the maximum number of parallel requests.
	// Canvas throttles per token, so a handful of workers is enough.
	MaxConcurrency int
	// Timeout per page fetch
	Timeout time.Duration
	// MaxPages bounds the total number of pages fetched
	MaxPages int
}

// DefaultConfig returns a safe default configuration for Canvas
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 4,
		Timeout:        30 * time.Second,
		MaxPages:       MaxPages,
	}
}

// PageResult represents the result of fetching a single page
type PageResult struct {
	PageNumber int
	Data       []byte
}

// BatchFetcher handles parallel fetching of multiple pages
type BatchFetcher struct {
	fetcher Fetcher
	config  Config
}

// NewBatchFetcher creates a new batch fetcher
func NewBatchFetcher(fetcher Fetcher, config Config) *BatchFetcher {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 4
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxPages <= 0 {
		config.MaxPages = MaxPages
	}

	return &BatchFetcher{
		fetcher: fetcher,
		config:  config,
	}
}

// FetchAllPages fetches every page of endpoint, starting at the page the
// endpoint names (page 1 when it names none).
// Returns map of pageNumber -> data. On a worker failure the pages fetched so
// far are returned together with the error.
func (bf *BatchFetcher) FetchAllPages(ctx context.Context, endpoint string) (map[int][]byte, error) {
	start := time.Now()
	defer func() {
		fetchAllDuration.Observe(time.Since(start).Seconds())
	}()

	first, err := bf.fetcher.Fetch(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch first page: %w", err)
	}
	pagesFetched.Inc()

	startPage := PageNumber(endpoint)
	if startPage == 0 {
		startPage = 1
	}
	results := map[int][]byte{startPage: first.Data}

	if !first.Links.HasNext() {
		log.Debug().
			Str("endpoint", endpoint).
			Dur("duration", time.Since(start)).
			Msg("Fetch complete (single page)")
		return results, nil
	}

	totalPages := PageNumber(first.Links.LastURL)
	if totalPages <= startPage {
		log.Debug().
			Str("endpoint", endpoint).
			Msg("Page count unknown - walking next links")
		return bf.walkRemaining(ctx, endpoint, startPage, first, results)
	}
	if totalPages > bf.config.MaxPages {
		return results, fmt.Errorf("%w: %s reports %d pages", ErrPageLimit, endpoint, totalPages)
	}

	log.Info().
		Str("endpoint", endpoint).
		Int("total_pages", totalPages).
		Msg("Starting parallel page fetch")

	// The last link carries the query Canvas settled on (per_page included)
	template := first.Links.LastURL

	remaining := totalPages - startPage
	pageQueue := make(chan int, remaining)
	for page := startPage + 1; page <= totalPages; page++ {
		pageQueue <- page
	}
	close(pageQueue)

	pageResults := make(chan PageResult, remaining)
	errs := make(chan error, bf.config.MaxConcurrency)

	var wg sync.WaitGroup
	for i := 0; i < bf.config.MaxConcurrency; i++ {
		wg.Add(1)
		go bf.worker(ctx, template, pageQueue, pageResults, errs, &wg, i)
	}

	go func() {
		wg.Wait()
		close(pageResults)
		close(errs)
	}()

	wantPages := remaining + 1
	fetchedPages := 1
	for result := range pageResults {
		results[result.PageNumber] = result.Data
		fetchedPages++

		if fetchedPages%50 == 0 {
			log.Info().
				Int("fetched", fetchedPages).
				Int("total", wantPages).
				Float64("progress_pct", float64(fetchedPages)/float64(wantPages)*100).
				Msg("Fetch progress")
		}
	}

	if err := <-errs; err != nil {
		log.Warn().
			Err(err).
			Int("fetched_pages", fetchedPages).
			Int("total_pages", wantPages).
			Msg("Worker error - returning partial results")
		return results, fmt.Errorf("worker error (partial data: %d/%d pages): %w", fetchedPages, wantPages, err)
	}
	if err := ctx.Err(); err != nil && fetchedPages < wantPages {
		return results, fmt.Errorf("fetch cancelled (partial data: %d/%d pages): %w", fetchedPages, wantPages, err)
	}

	log.Info().
		Str("endpoint", endpoint).
		Int("pages", fetchedPages).
		Int("total", wantPages).
		Dur("duration", time.Since(start)).
		Msg("Fetch complete")

	return results, nil
}

// walkRemaining follows next links from an already fetched first page,
// numbering pages on from startPage.
func (bf *BatchFetcher) walkRemaining(ctx context.Context, endpoint string, startPage int, first *Page, results map[int][]byte) (map[int][]byte, error) {
	n := startPage
	rest := FetcherFunc(func(ctx context.Context, path string) (*Page, error) {
		pageCtx, cancel := context.WithTimeout(ctx, bf.config.Timeout)
		defer cancel()
		return bf.fetcher.Fetch(pageCtx, path)
	})

	seen := map[string]bool{endpoint: true}
	if first.Links.FirstURL != "" && startPage == 1 {
		seen[first.Links.FirstURL] = true
	}

	err := walkFrom(ctx, rest, first.Links.NextURL, bf.config.MaxPages-1, seen, func(p *Page) error {
		n++
		results[n] = p.Data
		return nil
	})
	if err != nil {
		return results, fmt.Errorf("walk %s (partial data: %d pages): %w", endpoint, len(results), err)
	}
	return results, nil
}

// worker processes pages from the queue
func (bf *BatchFetcher) worker(ctx context.Context, template string, pageQueue <-chan int, results chan<- PageResult, errs chan<- error, wg *sync.WaitGroup, workerID int) {
	defer wg.Done()
	pagesProcessed := 0

	for pageNum := range pageQueue {
		select {
		case <-ctx.Done():
			log.Debug().
				Int("worker_id", workerID).
				Int("pages_processed", pagesProcessed).
				Msg("Worker stopping (context cancelled)")
			return
		default:
		}

		pageCtx, cancel := context.WithTimeout(ctx, bf.config.Timeout)
		page, err := bf.fetcher.Fetch(pageCtx, WithPage(template, pageNum))
		cancel()

		if err != nil {
			log.Warn().
				Err(err).
				Int("worker_id", workerID).
				Int("page", pageNum).
				Msg("Page fetch failed")

			select {
			case errs <- fmt.Errorf("page %d: %w", pageNum, err):
			default:
			}
			return
		}
		pagesFetched.Inc()

		results <- PageResult{
			PageNumber: pageNum,
			Data:       page.Data,
		}
		pagesProcessed++
	}

	if pagesProcessed > 0 {
		log.Debug().
			Int("worker_id", workerID).
			Int("pages_processed", pagesProcessed).
			Msg("Worker completed")
	}
}
