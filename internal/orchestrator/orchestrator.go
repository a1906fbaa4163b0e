package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"autopilot/internal/agents"
	"autopilot/internal/logger"
	"autopilot/internal/observer"
	"autopilot/internal/plan"
)

const (
	// Hard safety valve: the loop never executes more steps than this
	// multiple of the initial plan size, no matter how many recovery
	// steps revision appends.
	iterationFactor = 4

	// After this many consecutive failures no further recovery steps are
	// generated, preventing runaway compensation chains.
	maxConsecutiveFailures = 3

	executionMemoryLimit = 100

	depResultLimit      = 500
	fallbackResultLimit = 300
	richDescLimit       = 100
	richResultLimit     = 300
	richFilesCap        = 20
	richURLsCap         = 10
	errorExcerptLimit   = 500
	answerPreviewLimit  = 200
)

const deadlockError = "dependency deadlock: a required step failed"

// MemoryStore is the long-term memory surface the orchestrator consumes.
// All calls are best-effort; a nil store disables memory entirely.
type MemoryStore interface {
	ContextForPrompt(query string) string
	StoreFact(category, content, source string) error
	StoreProject(name, projectType, path, description, status string) error
}

// MemoryEntry is one bounded execution-memory record.
type MemoryEntry struct {
	StepID        int
	Agent         string
	Success       bool
	AnswerPreview string
	Timestamp     time.Time
}

// Orchestrator drives the plan→execute→observe→reflect→revise loop. One
// instance runs one plan at a time; the plan is owned by the running loop
// and discarded when it returns.
type Orchestrator struct {
	registry *agents.Registry
	obs      observer.Guard
	memory   MemoryStore

	executionMemory []MemoryEntry
}

func New(registry *agents.Registry, obs observer.Observer, memory MemoryStore) *Orchestrator {
	return &Orchestrator{
		registry: registry,
		obs:      observer.NewGuard(obs),
		memory:   memory,
	}
}

// ExecutionMemory returns a copy of the bounded execution-memory entries.
func (o *Orchestrator) ExecutionMemory() []MemoryEntry {
	return append([]MemoryEntry(nil), o.executionMemory...)
}

// RunLoop builds a plan from the task list and executes it to completion,
// returning the textual run report. Cancellation is cooperative: the
// context is consulted once per iteration and never preempts a running
// subprocess (the sandbox timeout does that).
func (o *Orchestrator) RunLoop(ctx context.Context, goal string, tasks []plan.TaskSpec) string {
	p := plan.New(goal, tasks)
	logger.Log.Printf("[orchestrator] plan created with %d steps for: %s", len(p.Steps), goal)
	o.obs.PlanCreated(goal, p.ProgressData())

	maxIterations := iterationFactor * len(p.Steps)
	iteration := 0
	consecutiveFailures := 0
	finalAnswer := ""

	for !p.IsComplete() && iteration < maxIterations {
		if ctx.Err() != nil {
			logger.Log.Printf("[orchestrator] stop requested, halting at step boundary")
			break
		}

		step := p.NextStep()
		if step == nil {
			if p.CountByStatus(plan.StatusPending) > 0 {
				logger.Log.Printf("[orchestrator] dependency deadlock detected, failing blocked steps")
				o.failBlockedSteps(p)
			}
			break
		}
		iteration++

		p.MarkStepRunning(step.ID)
		o.obs.StepStarted(*step)

		prompt := o.buildPrompt(p, step)
		answer, success := o.executeStep(ctx, step, prompt)
		o.recordExecution(step, answer, success)

		o.reflect(p, step, answer, success)

		if success {
			consecutiveFailures = 0
			finalAnswer = answer
		} else {
			consecutiveFailures++
		}

		if !success && step.Status == plan.StatusFailed {
			if consecutiveFailures < maxConsecutiveFailures {
				o.reviseStep(p, step)
			} else {
				logger.Log.Printf("[orchestrator] %d consecutive failures, suppressing recovery", consecutiveFailures)
			}
		}

		o.obs.StepFinished(*step)
		o.obs.Progress(p.ProgressText())
	}

	summary := p.Summarize()
	o.obs.RunFinished(summary)

	if o.memory != nil {
		status := "partial"
		if summary.Completed == summary.TotalSteps {
			status = "completed"
		}
		if err := o.memory.StoreProject(truncate(goal, 100), "autonomous", "",
			fmt.Sprintf("%d/%d steps completed", summary.Completed, summary.TotalSteps), status); err != nil {
			logger.Log.Printf("[orchestrator] project record failed: %v", err)
		}
	}

	return o.report(p, summary, finalAnswer)
}

// failBlockedSteps force-fails everything still pending so a blocked run
// ends early instead of hanging.
func (o *Orchestrator) failBlockedSteps(p *plan.ExecutionPlan) {
	for _, s := range p.Steps {
		if s.Status == plan.StatusPending {
			s.Status = plan.StatusFailed
			s.Error = deadlockError
		}
	}
}

// buildPrompt assembles a step prompt from dependency results, the rich
// project context, a retry warning and long-term memory.
func (o *Orchestrator) buildPrompt(p *plan.ExecutionPlan, step *plan.TaskStep) string {
	depResults := o.dependencyResults(p, step)

	prompt := step.Description
	if len(depResults) > 0 {
		prompt = "Context from previous steps:\n" + strings.Join(depResults, "\n") +
			"\n\nYour task now:\n" + step.Description +
			"\n\nINSTRUCTION: Execute directly, do not ask questions. Use the information from the previous steps."
	}

	if rich := o.gatherRichContext(p); rich != "" {
		prompt = rich + "\n\n" + prompt
	}

	if step.Error != "" && step.Attempts > 0 {
		prompt += fmt.Sprintf(
			"\n\nWARNING: the previous attempt FAILED with this error:\n%s\nUse a DIFFERENT approach this time. Do not repeat the same one.",
			truncate(step.Error, errorExcerptLimit))
	}

	if o.memory != nil {
		if mem := o.memory.ContextForPrompt(step.Description); mem != "" {
			prompt += "\n" + mem
		}
	}
	return prompt
}

// dependencyResults collects the truncated results of declared completed
// dependencies, falling back to all prior completed steps when the step
// declares none.
func (o *Orchestrator) dependencyResults(p *plan.ExecutionPlan, step *plan.TaskStep) []string {
	declared := make(map[string]bool, len(step.Dependencies))
	for _, d := range step.Dependencies {
		declared[strings.TrimSpace(d)] = true
	}

	var out []string
	for _, prev := range p.Steps {
		if declared[fmt.Sprintf("%d", prev.ID)] && prev.Status == plan.StatusCompleted {
			out = append(out, fmt.Sprintf("- Result of step %d: %s", prev.ID, truncate(prev.Result, depResultLimit)))
		}
	}
	if len(out) > 0 {
		return out
	}
	for _, prev := range p.Steps {
		if prev.ID < step.ID && prev.Status == plan.StatusCompleted {
			out = append(out, fmt.Sprintf("- Result of step %d: %s", prev.ID, truncate(prev.Result, fallbackResultLimit)))
		}
	}
	return out
}

// gatherRichContext digests completed steps into a project-context block:
// per-step result previews plus de-duplicated file paths and URLs.
func (o *Orchestrator) gatherRichContext(p *plan.ExecutionPlan) string {
	var parts, files, urls []string
	for _, s := range p.Steps {
		if s.Status != plan.StatusCompleted || s.Result == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("- Step %d [%s]: %s\n  Result: %s",
			s.ID, strings.ToUpper(s.AgentType), truncate(s.Description, richDescLimit), truncate(s.Result, richResultLimit)))
		files = append(files, plan.ExtractFilePaths(s.Result)...)
		urls = append(urls, plan.ExtractURLs(s.Result)...)
	}
	if len(parts) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("=== PROJECT CONTEXT ===\n")
	b.WriteString(strings.Join(parts, "\n"))

	if files = plan.Dedupe(files); len(files) > 0 {
		if len(files) > richFilesCap {
			files = files[:richFilesCap]
		}
		b.WriteString("\n\n--- Files created so far ---\n")
		for _, f := range files {
			b.WriteString("  * " + f + "\n")
		}
	}
	if urls = plan.Dedupe(urls); len(urls) > 0 {
		if len(urls) > richURLsCap {
			urls = urls[:richURLsCap]
		}
		b.WriteString("\n--- URLs / resources found ---\n")
		for _, u := range urls {
			b.WriteString("  * " + u + "\n")
		}
	}
	b.WriteString("=== END CONTEXT ===")
	return b.String()
}

// executeStep resolves the capability handler and delegates the prompt.
// Handler panics are downgraded to a failed-step result here; they never
// propagate out of the loop.
func (o *Orchestrator) executeStep(ctx context.Context, step *plan.TaskStep, prompt string) (answer string, success bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.Log.Printf("[orchestrator] step %d handler panicked: %v", step.ID, r)
			answer = fmt.Sprintf("Error: handler panicked: %v", r)
			success = false
		}
	}()

	handler := o.registry.Resolve(step.AgentType)
	logger.Log.Printf("[orchestrator] executing step %d with agent %s: %s", step.ID, handler.Name(), truncate(step.Description, 120))
	return handler.Process(ctx, prompt)
}

func (o *Orchestrator) recordExecution(step *plan.TaskStep, answer string, success bool) {
	o.executionMemory = append(o.executionMemory, MemoryEntry{
		StepID:        step.ID,
		Agent:         step.AgentType,
		Success:       success,
		AnswerPreview: truncate(answer, answerPreviewLimit),
		Timestamp:     time.Now(),
	})
	if n := len(o.executionMemory) - executionMemoryLimit; n > 0 {
		o.executionMemory = o.executionMemory[n:]
	}

	if success && o.memory != nil {
		if err := o.memory.StoreFact("execution_success",
			fmt.Sprintf("Step '%s' succeeded with agent %s", truncate(step.Description, 100), step.AgentType),
			"orchestrator"); err != nil {
			logger.Log.Printf("[orchestrator] fact store failed: %v", err)
		}
	}
}

// reflect applies the outcome to the plan and appends a reflection line.
func (o *Orchestrator) reflect(p *plan.ExecutionPlan, step *plan.TaskStep, answer string, success bool) {
	var line string
	if success {
		p.MarkStepDone(step.ID, answer)
		line = fmt.Sprintf("Step %d succeeded: %s", step.ID, step.Description)
	} else {
		p.MarkStepFailed(step.ID, answer)
		if step.Status == plan.StatusFailed {
			line = fmt.Sprintf("Step %d failed after %d attempts: %s", step.ID, step.MaxAttempts, step.Description)
		} else {
			line = fmt.Sprintf("Step %d failed (attempt %d/%d), will retry", step.ID, step.Attempts, step.MaxAttempts)
		}
	}
	p.Reflect(line)
	logger.Log.Printf("[orchestrator] %s", line)
}

const reportReflectionTail = 5

func (o *Orchestrator) report(p *plan.ExecutionPlan, summary plan.Summary, finalAnswer string) string {
	lines := []string{p.ProgressText(), "\n---\n"}
	lines = append(lines, fmt.Sprintf("**Result:** %d/%d steps completed in %.1fs",
		summary.Completed, summary.TotalSteps, summary.ElapsedTime))

	if len(p.ReflectionLog) > 0 {
		lines = append(lines, "\n**Reflection log:**")
		tail := p.ReflectionLog
		if len(tail) > reportReflectionTail {
			tail = tail[len(tail)-reportReflectionTail:]
		}
		for _, entry := range tail {
			lines = append(lines, "  - "+entry)
		}
	}
	if finalAnswer != "" {
		lines = append(lines, "\n\n**Final result:**\n"+finalAnswer)
	}
	return strings.Join(lines, "\n")
}

// truncate cuts s to at most n bytes, backing up so a multibyte rune is
// never split mid-sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
