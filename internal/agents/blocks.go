package agents

import (
	"fmt"
	"regexp"
	"strings"
)

// CodeBlock is one fenced block from a model answer. The fence header is
// either a bare language or language:filename.
type CodeBlock struct {
	Language string
	Filename string
	Code     string
}

var fenceRe = regexp.MustCompile("(?ms)^```([a-zA-Z0-9_+#.-]+)(?::([^\\n`]+))?[ \\t]*\\n(.*?)^```[ \\t]*$")

// ExtractBlocks parses all fenced code blocks out of an answer.
func ExtractBlocks(answer string) []CodeBlock {
	matches := fenceRe.FindAllStringSubmatch(answer, -1)
	out := make([]CodeBlock, 0, len(matches))
	for _, m := range matches {
		out = append(out, CodeBlock{
			Language: strings.ToLower(strings.TrimSpace(m[1])),
			Filename: strings.TrimSpace(m[2]),
			Code:     strings.TrimRight(m[3], "\n"),
		})
	}
	return out
}

// RemoveBlocks replaces each fenced block with a short marker so the final
// answer stays readable without pages of code.
func RemoveBlocks(answer string) string {
	return fenceRe.ReplaceAllStringFunc(answer, func(block string) string {
		m := fenceRe.FindStringSubmatch(block)
		if m[2] != "" {
			return fmt.Sprintf("[%s saved to %s]", m[1], strings.TrimSpace(m[2]))
		}
		return fmt.Sprintf("[%s block executed]", m[1])
	})
}

// Web assets and compiled sources are saved, never executed directly.
var saveOnlyLanguages = map[string]bool{
	"html":       true,
	"css":        true,
	"typescript": true,
	"sql":        true,
	"c":          true,
	"java":       true,
	"json":       true,
	"markdown":   true,
	"md":         true,
	"txt":        true,
	"text":       true,
}

// interpreted languages run through the sandbox even when saved to a file.
var alwaysRunLanguages = map[string]bool{
	"python": true,
	"py":     true,
	"bash":   true,
	"sh":     true,
	"shell":  true,
}

// shouldExecute decides whether a block goes through the sandbox. Scripts
// always run; javascript/go snippets run only when not saved as project
// files; declared assets never run.
func shouldExecute(b CodeBlock) bool {
	if saveOnlyLanguages[b.Language] {
		return false
	}
	if alwaysRunLanguages[b.Language] {
		return true
	}
	return b.Filename == ""
}
