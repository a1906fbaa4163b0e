package agents

import (
	"context"
	"strings"
)

// LLM is the text-generation surface capability handlers depend on.
// *llm_client.Client satisfies it; tests substitute fakes.
type LLM interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Agent turns one step prompt into an answer plus a success flag. Handlers
// report expected failures through the flag, never through panics; the
// orchestrator still guards against the latter.
type Agent interface {
	Name() string
	Process(ctx context.Context, prompt string) (string, bool)
}

const catchAllAgent = "coder"

// Registry resolves an agent kind to a handler. Lookup order: exact name,
// then a 3-character prefix match, then the coder catch-all.
type Registry struct {
	agents map[string]Agent
}

func NewRegistry() *Registry {
	return &Registry{agents: make(map[string]Agent)}
}

func (r *Registry) Register(a Agent) {
	r.agents[strings.ToLower(a.Name())] = a
}

func (r *Registry) Resolve(kind string) Agent {
	kind = strings.ToLower(strings.TrimSpace(kind))
	if a, ok := r.agents[kind]; ok {
		return a
	}
	if len(kind) >= 3 {
		prefix := kind[:3]
		for name, a := range r.agents {
			if strings.HasPrefix(name, prefix) {
				return a
			}
		}
	}
	return r.agents[catchAllAgent]
}

// Kinds lists the registered agent names.
func (r *Registry) Kinds() []string {
	out := make([]string, 0, len(r.agents))
	for name := range r.agents {
		out = append(out, name)
	}
	return out
}
