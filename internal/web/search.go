package web

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"autopilot/internal/logger"
)

const (
	defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/134.0.0.0 Safari/537.36"
	duckDuckGoHTML   = "https://html.duckduckgo.com/html/"
	maxSearchResults = 10
)

type SearchResult struct {
	Title   string
	Snippet string
	Link    string
}

// Searcher queries a SearxNG instance when one is configured and falls
// back to the DuckDuckGo HTML endpoint otherwise.
type Searcher struct {
	SearxURL    string
	FallbackURL string
	Client      *http.Client
	UserAgent   string
}

func NewSearcher(searxURL string) *Searcher {
	return &Searcher{
		SearxURL:    searxURL,
		FallbackURL: duckDuckGoHTML,
		Client:      &http.Client{Timeout: 15 * time.Second},
		UserAgent:   defaultUserAgent,
	}
}

func (s *Searcher) Search(ctx context.Context, query string) ([]SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("empty search query")
	}
	if s.SearxURL != "" {
		results, err := s.searx(ctx, query)
		if err == nil {
			return results, nil
		}
		logger.Log.Printf("[web] searx search failed, falling back: %v", err)
	}
	return s.duckduckgo(ctx, query)
}

func (s *Searcher) postForm(ctx context.Context, endpoint string, form url.Values) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", s.UserAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search endpoint returned %s", resp.Status)
	}
	return goquery.NewDocumentFromReader(resp.Body)
}

func (s *Searcher) searx(ctx context.Context, query string) ([]SearchResult, error) {
	form := url.Values{
		"q":          {query},
		"categories": {"general"},
		"language":   {"auto"},
		"safesearch": {"0"},
		"theme":      {"simple"},
	}
	doc, err := s.postForm(ctx, strings.TrimRight(s.SearxURL, "/")+"/search", form)
	if err != nil {
		return nil, fmt.Errorf("searx: %w", err)
	}

	var results []SearchResult
	doc.Find("article.result").Each(func(_ int, article *goquery.Selection) {
		header := article.Find("a.url_header").First()
		href, ok := header.Attr("href")
		if !ok {
			return
		}
		r := SearchResult{
			Title:   strings.TrimSpace(article.Find("h3").First().Text()),
			Snippet: strings.TrimSpace(article.Find("p.content").First().Text()),
			Link:    href,
		}
		if r.Title == "" {
			r.Title = "No Title"
		}
		results = append(results, r)
	})
	if len(results) == 0 {
		return nil, fmt.Errorf("searx: no results parsed")
	}
	return capResults(results), nil
}

func (s *Searcher) duckduckgo(ctx context.Context, query string) ([]SearchResult, error) {
	endpoint := s.FallbackURL
	if endpoint == "" {
		endpoint = duckDuckGoHTML
	}
	doc, err := s.postForm(ctx, endpoint, url.Values{"q": {query}, "b": {""}})
	if err != nil {
		return nil, fmt.Errorf("duckduckgo: %w", err)
	}

	var results []SearchResult
	doc.Find("div.result").Each(func(_ int, div *goquery.Selection) {
		title := div.Find("a.result__a").First()
		href, ok := title.Attr("href")
		if !ok || strings.TrimSpace(title.Text()) == "" {
			return
		}
		results = append(results, SearchResult{
			Title:   strings.TrimSpace(title.Text()),
			Snippet: strings.TrimSpace(div.Find("a.result__snippet").First().Text()),
			Link:    href,
		})
	})
	if len(results) == 0 {
		return nil, fmt.Errorf("duckduckgo: no results parsed")
	}
	return capResults(results), nil
}

func capResults(results []SearchResult) []SearchResult {
	if len(results) > maxSearchResults {
		results = results[:maxSearchResults]
	}
	return results
}

// FormatResults renders results in the Title/Snippet/Link block format
// the capability prompts expect.
func FormatResults(results []SearchResult) string {
	blocks := make([]string, 0, len(results))
	for _, r := range results {
		blocks = append(blocks, fmt.Sprintf("Title:%s\nSnippet:%s\nLink:%s", r.Title, r.Snippet, r.Link))
	}
	return strings.Join(blocks, "\n\n")
}
