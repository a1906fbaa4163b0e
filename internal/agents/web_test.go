package agents

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"autopilot/internal/web"
)

func TestWebAgentSearchesAndSynthesizes(t *testing.T) {
	article := `<!DOCTYPE html><html><head><title>Go Releases</title></head><body>
<article><h1>Go Releases</h1>
<p>Go releases ship roughly every six months, and each release is supported
until there are two newer major releases. This paragraph is long enough for
content extraction to keep it as the article body.</p>
<p>Minor point releases address security problems and regressions.</p>
</article></body></html>`

	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/search":
			fmt.Fprintf(w, `<html><body>
<article class="result">
  <a class="url_header" href="%s/article">link</a>
  <h3>Go Releases</h3>
  <p class="content">Release cadence explained.</p>
</article>
</body></html>`, srv.URL)
		case "/article":
			w.Write([]byte(article))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	llm := &fakeLLM{replies: []string{
		"go release cadence",
		"Go ships a major release every six months.",
	}}
	agent := NewWeb(llm, web.NewSearcher(srv.URL), web.NewViewer())

	answer, ok := agent.Process(context.Background(), "how often does Go release?")
	if !ok {
		t.Fatalf("Process failed: %s", answer)
	}
	if answer != "Go ships a major release every six months." {
		t.Errorf("answer = %q", answer)
	}

	if len(llm.prompts) != 2 {
		t.Fatalf("llm called %d times, want 2 (distill + synthesize)", len(llm.prompts))
	}
	synthesis := llm.prompts[1]
	for _, want := range []string{"Title:Go Releases", "Snippet:Release cadence explained.", "Page extracts:", "every six months"} {
		if !strings.Contains(synthesis, want) {
			t.Errorf("synthesis prompt missing %q", want)
		}
	}
}

func TestWebAgentReportsSearchFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	llm := &fakeLLM{replies: []string{"some query"}}
	s := web.NewSearcher(srv.URL)
	s.FallbackURL = srv.URL
	agent := NewWeb(llm, s, web.NewViewer())

	answer, ok := agent.Process(context.Background(), "research something")
	if ok {
		t.Fatal("search failure must not report success")
	}
	if !strings.Contains(answer, "Web search failed") {
		t.Errorf("answer = %q", answer)
	}
}

func TestCasualPassesThrough(t *testing.T) {
	llm := &fakeLLM{replies: []string{"hello there"}}
	c := NewCasual(llm)

	answer, ok := c.Process(context.Background(), "hi")
	if !ok || answer != "hello there" {
		t.Errorf("Process = (%q, %v)", answer, ok)
	}

	bad := NewCasual(&fakeLLM{err: fmt.Errorf("backend offline")})
	answer, ok = bad.Process(context.Background(), "hi")
	if ok || !strings.Contains(answer, "backend offline") {
		t.Errorf("Process = (%q, %v)", answer, ok)
	}
}
