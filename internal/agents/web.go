package agents

import (
	"context"
	"fmt"
	"strings"

	"autopilot/internal/logger"
	"autopilot/internal/web"
)

const webMaxPages = 3

// Web answers research steps: distill a query, search, validate the result
// links, read the best pages and synthesize an answer.
type Web struct {
	llm      LLM
	searcher *web.Searcher
	viewer   *web.Viewer
	maxPages int
}

func NewWeb(llm LLM, searcher *web.Searcher, viewer *web.Viewer) *Web {
	return &Web{llm: llm, searcher: searcher, viewer: viewer, maxPages: webMaxPages}
}

func (w *Web) Name() string { return "web" }

func (w *Web) distillQuery(ctx context.Context, prompt string) string {
	q, err := w.llm.Generate(ctx,
		"Produce one short web search query (10 words max) for the task below. Reply with the query only, no quotes.\n\nTask: "+prompt)
	if err != nil || strings.TrimSpace(q) == "" {
		if len(prompt) > 100 {
			return prompt[:100]
		}
		return prompt
	}
	// Models sometimes return multiple lines anyway; keep the first.
	q = strings.TrimSpace(strings.SplitN(q, "\n", 2)[0])
	return strings.Trim(q, `"'`)
}

func (w *Web) Process(ctx context.Context, prompt string) (string, bool) {
	query := w.distillQuery(ctx, prompt)
	results, err := w.searcher.Search(ctx, query)
	if err != nil {
		return fmt.Sprintf("Web search failed: %v", err), false
	}

	links := make([]string, len(results))
	for i, r := range results {
		links[i] = r.Link
	}
	statuses := w.searcher.CheckLinks(ctx, links)

	var extracts []string
	for i, r := range results {
		if len(extracts) >= w.maxPages {
			break
		}
		if statuses[i] != "Status: OK" {
			continue
		}
		page, err := w.viewer.View(ctx, r.Link)
		if err != nil {
			logger.Log.Printf("[web] could not read %s: %v", r.Link, err)
			continue
		}
		extracts = append(extracts, fmt.Sprintf("Source: %s (%s)\n%s", page.Title, page.URL, page.Text))
	}

	synthesis := "Task: " + prompt +
		"\n\nSearch results:\n" + web.FormatResults(results)
	if len(extracts) > 0 {
		synthesis += "\n\nPage extracts:\n" + strings.Join(extracts, "\n\n---\n\n")
	}
	synthesis += "\n\nAnswer the task using the material above. Cite source links inline."

	answer, err := w.llm.Generate(ctx, synthesis)
	if err != nil {
		return fmt.Sprintf("Web search succeeded but synthesis failed: %v\n\n%s", err, web.FormatResults(results)), false
	}
	return answer, true
}
