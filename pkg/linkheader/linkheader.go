// Package linkheader parses the HTTP Link header Canvas uses for pagination.
//
// Canvas returns navigation links on every paginated collection:
//
//	Link: <https://canvas.example.edu/api/v1/courses/1/students?page=2&per_page=10>; rel="next",
//	      <https://canvas.example.edu/api/v1/courses/1/students?page=1&per_page=10>; rel="first"
//
// Parse turns such a header into a LinkHeaders value whose URLs are relative to
// the API root ("courses/1/students?page=2&per_page=10") so they can be joined
// with whichever domain the session is configured for.
package linkheader

import (
	"net/http"
	"strings"
)

// APIPrefix is the version prefix stripped from every link URL.
const APIPrefix = "/api/v1/"

// headerName is compared case-insensitively.
const headerName = "link"

// Relation markers, matched by substring containment.
const (
	relNext  = `rel="next"`
	relPrev  = `rel="prev"`
	relFirst = `rel="first"`
	relLast  = `rel="last"`
)

// Header is a single response header in the order the transport delivered it.
type Header struct {
	Name  string
	Value string
}

// LinkHeaders holds the navigation URLs of one response.
// An empty string means the relation was not present.
type LinkHeaders struct {
	FirstURL string
	PrevURL  string
	NextURL  string
	LastURL  string
}

// HasNext reports whether another page follows.
func (l LinkHeaders) HasNext() bool {
	return l.NextURL != ""
}

// HasPrev reports whether a previous page exists.
func (l LinkHeaders) HasPrev() bool {
	return l.PrevURL != ""
}

// IsEmpty reports whether no relation was set.
func (l LinkHeaders) IsEmpty() bool {
	return l == LinkHeaders{}
}

// Parse extracts pagination links from an ordered header list.
//
// Only the first header named "link" (any case) is used. Entries without a
// well-formed <url> part are skipped, entries with an unknown relation are
// dropped, and when a relation appears more than once the last entry wins.
func Parse(headers []Header) LinkHeaders {
	var links LinkHeaders

	for _, h := range headers {
		if !strings.EqualFold(h.Name, headerName) {
			continue
		}

		for _, entry := range strings.Split(h.Value, ",") {
			url, ok := entryURL(entry)
			if !ok {
				continue
			}
			url = StripAPIPrefix(url)

			switch {
			case strings.Contains(entry, relNext):
				links.NextURL = url
			case strings.Contains(entry, relPrev):
				links.PrevURL = url
			case strings.Contains(entry, relFirst):
				links.FirstURL = url
			case strings.Contains(entry, relLast):
				links.LastURL = url
			}
		}

		break
	}

	return links
}

// FromHTTP converts net/http headers into the ordered form Parse expects.
// Values of a repeated header keep their relative order.
func FromHTTP(h http.Header) []Header {
	if len(h) == 0 {
		return nil
	}

	headers := make([]Header, 0, len(h))
	// Link first so Parse sees the first Link value regardless of map order.
	for _, v := range h.Values("Link") {
		headers = append(headers, Header{Name: "Link", Value: v})
	}
	for name, values := range h {
		if name == "Link" {
			continue
		}
		for _, v := range values {
			headers = append(headers, Header{Name: name, Value: v})
		}
	}
	return headers
}

// ParseHTTP is Parse over net/http headers.
func ParseHTTP(h http.Header) LinkHeaders {
	return Parse(FromHTTP(h))
}

// StripAPIPrefix returns everything after the first "/api/v1/" in url.
// The url is returned unchanged when it is empty or carries no prefix.
func StripAPIPrefix(url string) string {
	if url == "" {
		return url
	}

	if i := strings.Index(url, APIPrefix); i != -1 {
		return url[i+len(APIPrefix):]
	}
	return url
}

// entryURL returns the text between '<' and the next '>' of a link entry.
func entryURL(entry string) (string, bool) {
	start := strings.IndexByte(entry, '<')
	if start == -1 {
		return "", false
	}

	end := strings.IndexByte(entry[start+1:], '>')
	if end == -1 {
		return "", false
	}

	return entry[start+1 : start+1+end], true
}
