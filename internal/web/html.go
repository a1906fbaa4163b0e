package web

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	htmldom "golang.org/x/net/html"
)

type Link struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

func parseDoc(html string) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}

func absolute(base, href string) string {
	u, err := url.Parse(href)
	if err != nil || href == "" {
		return href
	}
	if u.IsAbs() {
		return u.String()
	}
	if base == "" {
		return href
	}
	bu, err := url.Parse(base)
	if err != nil {
		return href
	}
	return bu.ResolveReference(u).String()
}

func outerHTML(sel *goquery.Selection) string {
	var buf bytes.Buffer
	for _, n := range sel.Nodes {
		_ = htmldom.Render(&buf, n)
	}
	return buf.String()
}

// ExtractLinks returns every anchor in the document, hrefs resolved
// against baseURL.
func ExtractLinks(html, baseURL string) ([]Link, error) {
	doc, err := parseDoc(html)
	if err != nil {
		return nil, err
	}
	var out []Link
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		out = append(out, Link{Text: strings.TrimSpace(s.Text()), URL: absolute(baseURL, href)})
	})
	return out, nil
}

// SelectAll returns the outer HTML of every node matching the selector.
func SelectAll(html, selector string) ([]string, error) {
	doc, err := parseDoc(html)
	if err != nil {
		return nil, err
	}
	var items []string
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		items = append(items, outerHTML(s))
	})
	return items, nil
}

// InnerText strips all markup and returns the document text.
func InnerText(html string) (string, error) {
	doc, err := parseDoc(html)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(doc.Text()), nil
}
