package pagination

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/Sternrassler/canvas-api-client/pkg/linkheader"
	"github.com/rs/zerolog/log"
)

// MaxPages bounds Walk so a server that never stops linking cannot loop forever.
const MaxPages = 1000

var (
	// ErrStop may be returned by a Walk callback to end the walk without error.
	ErrStop = errors.New("pagination: stop")

	// ErrPageLimit is returned when a walk reaches its page limit with a next link left.
	ErrPageLimit = errors.New("pagination: page limit reached")
)

// Page is one page of a Canvas collection.
type Page struct {
	// Number is the page number, from the request URL when known
	Number int

	// Data is the raw response body
	Data []byte

	// Links are the pagination links of the response, domain-relative
	Links linkheader.LinkHeaders
}

// Fetcher fetches a single page by its domain-relative API path.
type Fetcher interface {
	Fetch(ctx context.Context, path string) (*Page, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, path string) (*Page, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, path string) (*Page, error) {
	return f(ctx, path)
}

// Walk fetches path and follows rel="next" links, calling fn for every page
// in order. It stops when a page has no next link, when a next link repeats,
// or when fn returns ErrStop. Any other error from fn is returned.
func Walk(ctx context.Context, f Fetcher, path string, fn func(*Page) error) error {
	return walk(ctx, f, path, MaxPages, fn)
}

func walk(ctx context.Context, f Fetcher, path string, maxPages int, fn func(*Page) error) error {
	return walkFrom(ctx, f, path, maxPages, make(map[string]bool), fn)
}

// walkFrom is walk with paths already visited by the caller marked in seen.
func walkFrom(ctx context.Context, f Fetcher, path string, maxPages int, seen map[string]bool, fn func(*Page) error) error {
	next := path

	for n := 1; ; n++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if seen[next] {
			log.Warn().
				Str("path", path).
				Str("next", next).
				Int("page", n).
				Msg("Next link repeats an earlier page - stopping")
			return nil
		}
		if n > maxPages {
			return fmt.Errorf("%w: %d pages of %s", ErrPageLimit, maxPages, path)
		}

		seen[next] = true
		page, err := f.Fetch(ctx, next)
		if err != nil {
			return fmt.Errorf("fetch page %d: %w", n, err)
		}
		if page.Number == 0 {
			if page.Number = PageNumber(next); page.Number == 0 {
				page.Number = n
			}
		}
		pagesFetched.Inc()

		if err := fn(page); err != nil {
			if errors.Is(err, ErrStop) {
				return nil
			}
			return err
		}

		if !page.Links.HasNext() {
			return nil
		}
		next = page.Links.NextURL
	}
}

// PageNumber returns the numeric page query parameter of a domain-relative
// URL, or 0 when it is absent or not a number (Canvas bookmarks are not).
func PageNumber(rawURL string) int {
	u, err := url.Parse(rawURL)
	if err != nil {
		return 0
	}
	n, err := strconv.Atoi(u.Query().Get("page"))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// WithPage returns path with its page query parameter set to n.
// Other query parameters are kept. An unparseable path is returned unchanged.
func WithPage(path string, n int) string {
	u, err := url.Parse(path)
	if err != nil {
		return path
	}
	q := u.Query()
	q.Set("page", strconv.Itoa(n))
	u.RawQuery = q.Encode()
	return u.String()
}
