package sandbox

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Bound on the retained execution history. Older entries fall off so a
// long-running session cannot grow without limit.
const historyLimit = 256

type historyEntry struct {
	language string
	result   Result
}

// Sandbox wraps an Executor with an execution history used solely for
// aggregate statistics. Execution itself is stateless per call.
type Sandbox struct {
	executor *Executor

	mu      sync.Mutex
	history []historyEntry
}

// New builds a sandbox around a fresh executor.
func New(cfg Config) (*Sandbox, error) {
	exec, err := NewExecutor(cfg)
	if err != nil {
		return nil, err
	}
	return &Sandbox{executor: exec}, nil
}

// WorkDir exposes the confined directory for callers that save files into it.
func (s *Sandbox) WorkDir() string { return s.executor.WorkDir() }

// Run executes one snippet and records the outcome. Unsupported languages
// yield a failed result, never an error.
func (s *Sandbox) Run(ctx context.Context, code, language string) Result {
	canonical, ok := CanonicalLanguage(language)
	if !ok {
		return Result{
			Success:  false,
			Errors:   fmt.Sprintf("unsupported language: %s. Supported: %s", language, strings.Join(SupportedLanguages(), ", ")),
			Language: language,
		}
	}
	result := s.executor.Execute(ctx, code, canonical)
	s.record(canonical, result)
	return result
}

func (s *Sandbox) record(language string, result Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, historyEntry{language: language, result: result})
	if len(s.history) > historyLimit {
		s.history = s.history[len(s.history)-historyLimit:]
	}
}

// Stats aggregates the retained execution history.
type Stats struct {
	TotalExecutions    int     `json:"total_executions"`
	Successful         int     `json:"successful"`
	Failed             int     `json:"failed"`
	Blocked            int     `json:"blocked"`
	TimedOut           int     `json:"timed_out"`
	TotalExecutionTime float64 `json:"total_execution_time"`
}

// GetStats returns counts and cumulative execution seconds.
func (s *Sandbox) GetStats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Stats{TotalExecutions: len(s.history)}
	for _, h := range s.history {
		if h.result.Success {
			st.Successful++
		} else {
			st.Failed++
		}
		if h.result.Blocked {
			st.Blocked++
		}
		if h.result.TimedOut {
			st.TimedOut++
		}
		st.TotalExecutionTime += h.result.ExecutionTime.Seconds()
	}
	return st
}

// ClearHistory drops all retained entries.
func (s *Sandbox) ClearHistory() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = nil
}

// FormatResult renders one result as a block suitable for feeding straight
// back into a capability handler's retry prompt.
func FormatResult(r Result) string {
	langInfo := ""
	if r.Language != "" {
		langInfo = " (" + r.Language + ")"
	}
	if r.Blocked {
		return fmt.Sprintf("[blocked%s] %s", langInfo, r.BlockedReason)
	}
	if r.TimedOut {
		return fmt.Sprintf("[timeout%s] Execution timed out after %.2fs\nPartial output: %s", langInfo, r.ExecutionTime.Seconds(), r.Output)
	}
	truncNote := ""
	if r.Truncated {
		truncNote = " [output truncated]"
	}
	if r.Success {
		return fmt.Sprintf("[success%s] Execution completed in %.2fs%s\n%s", langInfo, r.ExecutionTime.Seconds(), truncNote, r.Output)
	}
	return fmt.Sprintf("[failure%s] Execution failed in %.2fs%s\nOutput: %s\nErrors: %s", langInfo, r.ExecutionTime.Seconds(), truncNote, r.Output, r.Errors)
}
