// Package gitlab talks to the GitLab REST API (v4).
package gitlab

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/tomnomnom/linkheader"
)

// maxErrorBody caps how much of a failed response is kept in an APIError.
const maxErrorBody = 512

// Doer is the subset of *http.Client that GetAll needs.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// APIError is returned when GitLab answers with a non-2xx status.
type APIError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("gitlab: GET %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("gitlab: GET %s: status %d: %s", e.URL, e.StatusCode, e.Body)
}

// GetAll follows GitLab offset pagination starting at startURL and returns the
// items of every page in order. Pages are chained through the rel="next" entry
// of the Link header. Any failure aborts the whole walk and no items are returned.
//
// cf https://docs.gitlab.com/ee/api/rest/#offset-based-pagination
func GetAll[T any](ctx context.Context, client Doer, startURL string) ([]T, error) {
	u, err := url.Parse(startURL)
	if err != nil {
		return nil, fmt.Errorf("gitlab: parse url %q: %w", startURL, err)
	}
	if !u.IsAbs() {
		return nil, fmt.Errorf("gitlab: url %q is not absolute", startURL)
	}

	var result []T
	next := startURL
	for next != "" {
		items, link, err := getPage[T](ctx, client, next)
		if err != nil {
			return nil, err
		}
		result = append(result, items...)
		next = link
	}
	return result, nil
}

// getPage fetches one page and returns its items and the next page URL ("" when exhausted).
func getPage[T any](ctx context.Context, client Doer, pageURL string) ([]T, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("gitlab: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("gitlab: GET %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, "", &APIError{StatusCode: resp.StatusCode, URL: pageURL, Body: string(body)}
	}

	var items []T
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, "", fmt.Errorf("gitlab: decode %s: %w", pageURL, err)
	}

	return items, nextLink(resp.Header), nil
}

// nextLink extracts the rel="next" URL from the Link header(s), or "".
func nextLink(h http.Header) string {
	values := h.Values("Link")
	if len(values) == 0 {
		return ""
	}
	for _, link := range linkheader.ParseMultiple(values).FilterByRel("next") {
		if link.URL != "" {
			return link.URL
		}
	}
	return ""
}
