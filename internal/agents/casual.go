package agents

import (
	"context"
	"fmt"
)

// Casual is the plain conversational handler, used for chat-like steps and
// as a fallback when revision reroutes away from the web.
type Casual struct {
	llm LLM
}

func NewCasual(llm LLM) *Casual {
	return &Casual{llm: llm}
}

func (c *Casual) Name() string { return "casual" }

func (c *Casual) Process(ctx context.Context, prompt string) (string, bool) {
	answer, err := c.llm.Generate(ctx, prompt)
	if err != nil {
		return fmt.Sprintf("LLM request failed: %v", err), false
	}
	return answer, true
}
