package web

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/sync/errgroup"
)

const linkCheckConcurrency = 4

var paywallKeywords = []string{
	"member-only", "access denied", "restricted content", "404", "this page is not working",
}

// CheckLinks probes each URL concurrently and reports a human-readable
// status per link, index-aligned with the input.
func (s *Searcher) CheckLinks(ctx context.Context, links []string) []string {
	statuses := make([]string, len(links))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(linkCheckConcurrency)

	for i, link := range links {
		g.Go(func() error {
			statuses[i] = s.linkStatus(ctx, link)
			return nil
		})
	}
	g.Wait()
	return statuses
}

func (s *Searcher) linkStatus(ctx context.Context, link string) string {
	if !strings.HasPrefix(link, "http") {
		return "Status: Invalid URL"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}
	req.Header.Set("User-Agent", s.UserAgent)

	resp, err := s.Client.Do(req)
	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		content := strings.ToLower(string(body))
		for _, kw := range paywallKeywords {
			if strings.Contains(content, kw) {
				return "Status: Possible Paywall"
			}
		}
		return "Status: OK"
	case http.StatusNotFound:
		return "Status: 404 Not Found"
	case http.StatusForbidden:
		return "Status: 403 Forbidden"
	default:
		return fmt.Sprintf("Status: %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}
}
