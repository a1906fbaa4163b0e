package agents

import (
	"context"
	"fmt"
	"strings"

	"autopilot/internal/sandbox"
	"autopilot/internal/workspace"
)

// File handles filesystem-oriented steps: organizing, moving and creating
// files inside the workspace through sandboxed shell commands.
type File struct {
	llm LLM
	sb  *sandbox.Sandbox
	ws  *workspace.Manager
}

func NewFile(llm LLM, sb *sandbox.Sandbox, ws *workspace.Manager) *File {
	return &File{llm: llm, sb: sb, ws: ws}
}

func (f *File) Name() string { return "file" }

func (f *File) systemPrompt() string {
	return fmt.Sprintf(
		"You are a file-operations assistant working inside %s.\n"+
			"Rules:\n"+
			"- Use relative paths only; never touch anything outside the working directory.\n"+
			"- For shell work reply with ```bash fenced blocks (mkdir, cp, mv, ls, cat...).\n"+
			"- To create a file with content use a fenced block of the form ```language:filename.\n"+
			"- Do not use sudo or system package managers.",
		f.ws.Root())
}

func (f *File) Process(ctx context.Context, prompt string) (string, bool) {
	answer, err := f.llm.Generate(ctx, f.systemPrompt()+"\n\n"+prompt)
	if err != nil {
		return fmt.Sprintf("LLM request failed: %v", err), false
	}

	blocks := ExtractBlocks(answer)
	if len(blocks) == 0 {
		return answer, true
	}

	var feedback []string
	for _, b := range blocks {
		if b.Filename != "" {
			if _, err := f.ws.SaveFile(b.Filename, b.Code+"\n"); err != nil {
				return fmt.Sprintf("could not save %s: %v", b.Filename, err), false
			}
			feedback = append(feedback, fmt.Sprintf("[saved] %s", b.Filename))
		}
		if !shouldExecute(b) {
			continue
		}
		lang, supported := sandbox.CanonicalLanguage(b.Language)
		if !supported {
			continue
		}
		r := f.sb.Run(ctx, b.Code, lang)
		feedback = append(feedback, sandbox.FormatResult(r))
		if !r.Success {
			return strings.Join(feedback, "\n"), false
		}
	}

	feedback = append(feedback, f.ws.VerificationFeedback())
	return strings.TrimSpace(RemoveBlocks(answer)) + "\n\n" + strings.Join(feedback, "\n"), true
}
