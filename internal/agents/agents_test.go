package agents

import (
	"context"
	"fmt"
	"strings"
	"testing"
)

// fakeLLM replays canned replies and records the prompts it saw.
type fakeLLM struct {
	replies []string
	prompts []string
	err     error
}

func (f *fakeLLM) Generate(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	i := len(f.prompts) - 1
	if i >= len(f.replies) {
		i = len(f.replies) - 1
	}
	return f.replies[i], nil
}

type stubAgent struct{ name string }

func (s stubAgent) Name() string                                  { return s.name }
func (s stubAgent) Process(context.Context, string) (string, bool) { return s.name, true }

func testRegistry() *Registry {
	r := NewRegistry()
	for _, name := range []string{"coder", "file", "web", "casual"} {
		r.Register(stubAgent{name: name})
	}
	return r
}

func TestRegistryResolve(t *testing.T) {
	testCases := []struct {
		kind string
		want string
	}{
		{"coder", "coder"},
		{"  WEB ", "web"},
		{"coding", "coder"},
		{"web_search", "web"},
		{"filesystem", "file"},
		{"casual_chat", "casual"},
		{"planner", "coder"},
		{"", "coder"},
		{"xy", "coder"},
	}

	r := testRegistry()
	for _, tc := range testCases {
		t.Run(fmt.Sprintf("kind=%q", tc.kind), func(t *testing.T) {
			got := r.Resolve(tc.kind)
			if got == nil || got.Name() != tc.want {
				t.Errorf("Resolve(%q) = %v, want %s", tc.kind, got, tc.want)
			}
		})
	}
}

func TestExtractBlocks(t *testing.T) {
	answer := "Here is the site.\n" +
		"```html:index.html\n<html><body>hi</body></html>\n```\n" +
		"And a check:\n" +
		"```bash\nls -la\n```\n" +
		"Done."

	blocks := ExtractBlocks(answer)
	if len(blocks) != 2 {
		t.Fatalf("got %d blocks, want 2", len(blocks))
	}
	if blocks[0].Language != "html" || blocks[0].Filename != "index.html" {
		t.Errorf("first block header = %q:%q", blocks[0].Language, blocks[0].Filename)
	}
	if blocks[0].Code != "<html><body>hi</body></html>" {
		t.Errorf("first block code = %q", blocks[0].Code)
	}
	if blocks[1].Language != "bash" || blocks[1].Filename != "" || blocks[1].Code != "ls -la" {
		t.Errorf("second block = %+v", blocks[1])
	}

	if got := ExtractBlocks("no code here"); len(got) != 0 {
		t.Errorf("prose produced %d blocks", len(got))
	}
}

func TestRemoveBlocks(t *testing.T) {
	answer := "Intro.\n```python:app.py\nprint(1)\n```\n```bash\necho hi\n```\nOutro."
	got := RemoveBlocks(answer)

	for _, want := range []string{"Intro.", "[python saved to app.py]", "[bash block executed]", "Outro."} {
		if !contains(got, want) {
			t.Errorf("RemoveBlocks output missing %q:\n%s", want, got)
		}
	}
	if contains(got, "print(1)") {
		t.Error("code survived RemoveBlocks")
	}
}

func TestShouldExecute(t *testing.T) {
	testCases := []struct {
		block CodeBlock
		want  bool
	}{
		{CodeBlock{Language: "python", Filename: "app.py"}, true},
		{CodeBlock{Language: "bash"}, true},
		{CodeBlock{Language: "html", Filename: "index.html"}, false},
		{CodeBlock{Language: "css", Filename: "style.css"}, false},
		{CodeBlock{Language: "javascript", Filename: "app.js"}, false},
		{CodeBlock{Language: "javascript"}, true},
		{CodeBlock{Language: "go", Filename: "main.go"}, false},
		{CodeBlock{Language: "sql", Filename: "schema.sql"}, false},
	}

	for _, tc := range testCases {
		t.Run(tc.block.Language+":"+tc.block.Filename, func(t *testing.T) {
			if got := shouldExecute(tc.block); got != tc.want {
				t.Errorf("shouldExecute(%+v) = %v, want %v", tc.block, got, tc.want)
			}
		})
	}
}

func contains(s, sub string) bool {
	return strings.Contains(s, sub)
}
