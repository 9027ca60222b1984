package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/Sternrassler/canvas-api-client/pkg/linkheader"
	"github.com/Sternrassler/canvas-api-client/pkg/model"
	"github.com/Sternrassler/canvas-api-client/pkg/pagination"
)

// URL resolves a domain-relative API path, as produced by linkheader,
// against the session's domain. Absolute URLs are returned unchanged when
// they point at the session's scheme and host, and rejected with
// ErrForeignURL otherwise.
func (c *Client) URL(ctx context.Context, path string) (string, error) {
	fullDomain, err := c.session.FullDomain(ctx)
	if err != nil {
		return "", fmt.Errorf("read domain: %w", err)
	}
	if fullDomain == "" {
		return "", fmt.Errorf("%w: no domain", ErrNotConfigured)
	}

	if strings.HasPrefix(path, "https://") || strings.HasPrefix(path, "http://") {
		if !sameOrigin(fullDomain, path) {
			return "", fmt.Errorf("%w: %s", ErrForeignURL, path)
		}
		return path, nil
	}

	return fullDomain + linkheader.APIPrefix + strings.TrimPrefix(path, "/"), nil
}

// sameOrigin reports whether rawURL has the scheme and host of base.
func sameOrigin(base, rawURL string) bool {
	b, err := url.Parse(base)
	if err != nil {
		return false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Scheme, b.Scheme) && strings.EqualFold(u.Host, b.Host)
}

// Get performs a GET request to a Canvas API path.
func (c *Client) Get(ctx context.Context, path string) (*http.Response, error) {
	u, err := c.URL(ctx, path)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	return c.Do(req)
}

// Fetch gets one page of a collection. Non-2xx responses become *APIError.
// Fetch implements pagination.Fetcher.
func (c *Client) Fetch(ctx context.Context, path string) (*pagination.Page, error) {
	resp, err := c.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		class := ErrorClassClient
		if resp.StatusCode >= 500 {
			class = ErrorClassServer
		}
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			ErrorClass: class,
			Message:    errorMessage(resp.Status, body),
			Body:       body,
		}
	}

	return &pagination.Page{
		Number: pagination.PageNumber(path),
		Data:   body,
		Links:  linkheader.ParseHTTP(resp.Header),
	}, nil
}

var _ pagination.Fetcher = (*Client)(nil)

// GetJSON fetches path and decodes the body into v.
func (c *Client) GetJSON(ctx context.Context, path string, v any) error {
	page, err := c.Fetch(ctx, path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(page.Data, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// Self fetches the acting user and caches it in the session for the
// configured actor. The user is returned even when caching it fails.
func (c *Client) Self(ctx context.Context) (*model.User, error) {
	var user model.User
	if err := c.GetJSON(ctx, "users/self", &user); err != nil {
		return nil, err
	}

	if err := c.session.SetCachedUser(ctx, c.config.Actor, &user); err != nil {
		return &user, fmt.Errorf("cache user: %w", err)
	}
	return &user, nil
}

// BoolParam renders a Canvas URL boolean.
func BoolParam(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// errorMessage pulls the first message out of a Canvas error body
// ({"errors":[{"message":"..."}]}), falling back to status.
func errorMessage(status string, body []byte) string {
	var payload struct {
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return status
	}
	if len(payload.Errors) > 0 && payload.Errors[0].Message != "" {
		return status + ": " + payload.Errors[0].Message
	}
	if payload.Message != "" {
		return status + ": " + payload.Message
	}
	return status
}
