package agents

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"autopilot/internal/sandbox"
	"autopilot/internal/workspace"
)

func testCoder(t *testing.T, llm LLM) (*Coder, *workspace.Manager) {
	t.Helper()
	ws, err := workspace.New(t.TempDir())
	if err != nil {
		t.Fatalf("workspace.New: %v", err)
	}
	sb, err := sandbox.New(sandbox.Config{WorkDir: ws.Root()})
	if err != nil {
		t.Fatalf("sandbox.New: %v", err)
	}
	return NewCoder(llm, sb, ws), ws
}

func TestCoderSavesAndVerifiesFiles(t *testing.T) {
	page := "<!DOCTYPE html><html><head><title>t</title></head><body>" +
		strings.Repeat("<p>content</p>", 10) + "</body></html>"
	llm := &fakeLLM{replies: []string{
		"Building the site.\n```html:index.html\n" + page + "\n```\n" +
			"```bash\necho build-done\n```\nAll set.",
	}}
	c, ws := testCoder(t, llm)

	answer, ok := c.Process(context.Background(), "create a landing page")
	if !ok {
		t.Fatalf("Process failed: %s", answer)
	}

	if _, err := os.Stat(filepath.Join(ws.Root(), "index.html")); err != nil {
		t.Errorf("index.html not saved: %v", err)
	}
	for _, want := range []string{"[html saved to index.html]", "File verification:", "OK index.html", "HTML valid", "build-done"} {
		if !strings.Contains(answer, want) {
			t.Errorf("answer missing %q:\n%s", want, answer)
		}
	}
	if strings.Contains(answer, "<!DOCTYPE html>") {
		t.Error("raw code should be stripped from the final answer")
	}
}

func TestCoderAutoDebugRetries(t *testing.T) {
	llm := &fakeLLM{replies: []string{
		"First try.\n```bash\nexit 3\n```",
		"Fixed.\n```bash\necho recovered\n```",
	}}
	c, _ := testCoder(t, llm)

	answer, ok := c.Process(context.Background(), "run the build")
	if !ok {
		t.Fatalf("Process should succeed on the second attempt: %s", answer)
	}
	if len(llm.prompts) != 2 {
		t.Fatalf("llm called %d times, want 2", len(llm.prompts))
	}
	if !strings.Contains(llm.prompts[1], "Autonomous debug mode (attempt 1/5)") {
		t.Errorf("second prompt missing debug instruction:\n%s", llm.prompts[1])
	}
	if !strings.Contains(answer, "recovered") {
		t.Errorf("answer missing recovered output: %s", answer)
	}
}

func TestCoderGivesUpAfterBudget(t *testing.T) {
	llm := &fakeLLM{replies: []string{"```bash\nexit 1\n```"}}
	c, _ := testCoder(t, llm)

	answer, ok := c.Process(context.Background(), "impossible task")
	if ok {
		t.Fatal("permanently failing execution must report failure")
	}
	if len(llm.prompts) != coderMaxAttempts {
		t.Errorf("llm called %d times, want %d", len(llm.prompts), coderMaxAttempts)
	}
	if !strings.Contains(answer, "repeated repair attempts") {
		t.Errorf("answer = %q", answer)
	}
}

func TestCoderNudgesForCodeThenAcceptsProse(t *testing.T) {
	llm := &fakeLLM{replies: []string{"I would suggest using a framework."}}
	c, _ := testCoder(t, llm)

	answer, ok := c.Process(context.Background(), "create a website")
	if !ok {
		t.Fatal("prose after exhausted nudges is still an answer")
	}
	if len(llm.prompts) != noCodeRetryLimit+1 {
		t.Errorf("llm called %d times, want %d", len(llm.prompts), noCodeRetryLimit+1)
	}
	if !strings.Contains(llm.prompts[1], "You have not written any code") {
		t.Errorf("nudge missing from second prompt:\n%s", llm.prompts[1])
	}
	if answer != "I would suggest using a framework." {
		t.Errorf("answer = %q", answer)
	}
}

func TestCoderDebugHints(t *testing.T) {
	testCases := []struct {
		name     string
		feedback string
		want     string
	}{
		{
			name:     "Server start",
			feedback: "OSError: port 5000 already in use",
			want:     "Remove app.run()",
		},
		{
			name:     "Missing module",
			feedback: "ModuleNotFoundError: No module named 'torch'",
			want:     "standard library",
		},
		{
			name:     "Headless",
			feedback: "_tkinter.TclError: no display name",
			want:     "headless",
		},
		{
			name:     "Permissions",
			feedback: "PermissionError: permission denied: /etc/app.conf",
			want:     "working directory only",
		},
		{
			name:     "Syntax",
			feedback: "SyntaxError: invalid syntax",
			want:     "indentation",
		},
		{
			name:     "Unknown class gets no hint",
			feedback: "ValueError: bad value",
			want:     "rewrite the COMPLETE corrected code",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := debugPrompt(tc.feedback, 2, 5)
			if !strings.Contains(got, tc.want) {
				t.Errorf("debugPrompt missing %q:\n%s", tc.want, got)
			}
			if !strings.Contains(got, tc.feedback) {
				t.Error("debug prompt must carry the raw feedback")
			}
		})
	}
}

func TestFileAgentExecutesShellBlocks(t *testing.T) {
	llm := &fakeLLM{replies: []string{
		"Organizing.\n```bash\nmkdir -p assets && echo body > assets/notes.txt\n```",
	}}
	ws, err := workspace.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	sb, err := sandbox.New(sandbox.Config{WorkDir: ws.Root()})
	if err != nil {
		t.Fatal(err)
	}
	f := NewFile(llm, sb, ws)

	answer, ok := f.Process(context.Background(), "put the notes under assets/")
	if !ok {
		t.Fatalf("Process failed: %s", answer)
	}
	got, err := ws.ReadFile("assets/notes.txt")
	if err != nil || strings.TrimSpace(got) != "body" {
		t.Errorf("file not created: %q, %v", got, err)
	}
	if !strings.Contains(answer, "Workspace contains") {
		t.Errorf("answer missing workspace feedback:\n%s", answer)
	}
}
