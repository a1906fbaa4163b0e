package web

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
	"github.com/microcosm-cc/bluemonday"
)

const maxPageChars = 8000

type Page struct {
	URL     string
	Title   string
	Excerpt string
	Text    string
}

// Viewer fetches a page and extracts its main content as sanitized text.
type Viewer struct {
	Client    *http.Client
	UserAgent string
	policy    *bluemonday.Policy
}

func NewViewer() *Viewer {
	return &Viewer{
		Client:    &http.Client{Timeout: 30 * time.Second},
		UserAgent: defaultUserAgent,
		policy:    bluemonday.StrictPolicy(),
	}
}

func (v *Viewer) View(ctx context.Context, pageURL string) (Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return Page{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", v.UserAgent)

	resp, err := v.Client.Do(req)
	if err != nil {
		return Page{}, fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Page{}, fmt.Errorf("fetch %s: status %s", pageURL, resp.Status)
	}

	parsed, err := url.Parse(pageURL)
	if err != nil {
		return Page{}, fmt.Errorf("parse url: %w", err)
	}
	article, err := readability.FromReader(resp.Body, parsed)
	if err != nil {
		return Page{}, fmt.Errorf("extract content: %w", err)
	}

	text := v.policy.Sanitize(article.TextContent)
	if len(text) > maxPageChars {
		text = text[:maxPageChars] + "\n... (content truncated) ..."
	}
	return Page{URL: pageURL, Title: article.Title, Excerpt: article.Excerpt, Text: text}, nil
}

// VerifyHTMLFile runs structural checks on a saved HTML file: the
// skeleton tags must be present and the file must not be a stub.
func VerifyHTMLFile(path string) (bool, string) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Sprintf("file not readable: %v", err)
	}
	content := strings.ToLower(string(raw))

	var issues []string
	if !strings.Contains(content, "<html") && !strings.Contains(content, "<!doctype") {
		issues = append(issues, "missing <html> tag")
	}
	if !strings.Contains(content, "<head") {
		issues = append(issues, "missing <head> tag")
	}
	if !strings.Contains(content, "<body") {
		issues = append(issues, "missing <body> tag")
	}
	if len(raw) < 100 {
		issues = append(issues, "file too small, may be incomplete")
	}
	if len(issues) > 0 {
		return false, "issues: " + strings.Join(issues, ", ")
	}
	return true, "HTML file valid"
}
