package plan

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

const (
	// Retry budget for steps created from the initial task list.
	DefaultMaxAttempts = 3
	// Recovery steps get a smaller budget to bound compensation chains.
	RecoveryMaxAttempts = 2
)

// TaskSpec is one entry of the initial task list handed to the orchestrator,
// produced by the planner or loaded from a task file.
type TaskSpec struct {
	Name  string   `json:"name,omitempty"`
	Task  string   `json:"task"`
	Agent string   `json:"agent"`
	Needs []string `json:"need,omitempty"`
}

// TaskStep is one unit of delegated work inside an ExecutionPlan.
type TaskStep struct {
	ID           int
	Description  string
	AgentType    string
	Status       Status
	Result       string
	Error        string
	Attempts     int
	MaxAttempts  int
	Dependencies []string
}

// ExecutionPlan is the ordered, append-only collection of steps pursuing one
// goal. It is owned by exactly one orchestrator run and mutated only there.
type ExecutionPlan struct {
	Goal          string
	Steps         []*TaskStep
	ReflectionLog []string
	StartTime     time.Time
}

// New builds a plan with one step per task. Step IDs start at 1 and keep
// increasing as recovery steps are appended; an ID is never reused.
func New(goal string, tasks []TaskSpec) *ExecutionPlan {
	p := &ExecutionPlan{Goal: goal, StartTime: time.Now()}
	for i, t := range tasks {
		desc := t.Task
		if strings.TrimSpace(desc) == "" {
			desc = t.Name
		}
		agent := t.Agent
		if strings.TrimSpace(agent) == "" {
			agent = "coder"
		}
		p.Steps = append(p.Steps, &TaskStep{
			ID:           i + 1,
			Description:  desc,
			AgentType:    agent,
			Status:       StatusPending,
			MaxAttempts:  DefaultMaxAttempts,
			Dependencies: append([]string(nil), t.Needs...),
		})
	}
	return p
}

// AppendStep adds a new step (used by plan revision) and returns it.
func (p *ExecutionPlan) AppendStep(description, agentType string, maxAttempts int, deps []string) *TaskStep {
	step := &TaskStep{
		ID:           p.nextID(),
		Description:  description,
		AgentType:    agentType,
		Status:       StatusPending,
		MaxAttempts:  maxAttempts,
		Dependencies: append([]string(nil), deps...),
	}
	p.Steps = append(p.Steps, step)
	return step
}

func (p *ExecutionPlan) nextID() int {
	max := 0
	for _, s := range p.Steps {
		if s.ID > max {
			max = s.ID
		}
	}
	return max + 1
}

// Step returns the step with the given ID, or nil.
func (p *ExecutionPlan) Step(id int) *TaskStep {
	for _, s := range p.Steps {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// NextStep returns the first pending step whose every dependency either does
// not exist in the plan (lenient policy) or is completed. The scan is
// re-evaluated on every call because revision appends steps mid-run, which
// would invalidate a precomputed topological order.
func (p *ExecutionPlan) NextStep() *TaskStep {
	for _, s := range p.Steps {
		if s.Status != StatusPending {
			continue
		}
		if p.depsMet(s) {
			return s
		}
	}
	return nil
}

func (p *ExecutionPlan) depsMet(step *TaskStep) bool {
	for _, depID := range step.Dependencies {
		dep := p.stepByStringID(depID)
		if dep != nil && dep.Status != StatusCompleted {
			return false
		}
	}
	return true
}

func (p *ExecutionPlan) stepByStringID(id string) *TaskStep {
	for _, s := range p.Steps {
		if fmt.Sprintf("%d", s.ID) == strings.TrimSpace(id) {
			return s
		}
	}
	return nil
}

// MarkStepRunning transitions a pending step to running.
func (p *ExecutionPlan) MarkStepRunning(id int) {
	if s := p.Step(id); s != nil && s.Status == StatusPending {
		s.Status = StatusRunning
	}
}

// MarkStepDone records a successful result. Failed is terminal and is never
// overwritten.
func (p *ExecutionPlan) MarkStepDone(id int, result string) {
	s := p.Step(id)
	if s == nil || s.Status == StatusFailed {
		return
	}
	s.Status = StatusCompleted
	s.Result = result
}

// MarkStepFailed counts one failed attempt. The step returns to pending and
// stays eligible for a future scan until its budget is exhausted, at which
// point it becomes terminally failed.
func (p *ExecutionPlan) MarkStepFailed(id int, errMsg string) {
	s := p.Step(id)
	if s == nil || s.Status == StatusFailed {
		return
	}
	s.Attempts++
	s.Error = errMsg
	if s.Attempts >= s.MaxAttempts {
		s.Status = StatusFailed
	} else {
		s.Status = StatusPending
	}
}

// IsComplete reports whether every step reached a terminal outcome.
func (p *ExecutionPlan) IsComplete() bool {
	for _, s := range p.Steps {
		if s.Status != StatusCompleted && s.Status != StatusFailed {
			return false
		}
	}
	return true
}

// Reflect appends one human-readable line to the reflection log.
func (p *ExecutionPlan) Reflect(line string) {
	p.ReflectionLog = append(p.ReflectionLog, line)
}

// CountByStatus returns how many steps currently have the given status.
func (p *ExecutionPlan) CountByStatus(st Status) int {
	n := 0
	for _, s := range p.Steps {
		if s.Status == st {
			n++
		}
	}
	return n
}

// SuccessRate is completed/total, 0 for an empty plan.
func (p *ExecutionPlan) SuccessRate() float64 {
	if len(p.Steps) == 0 {
		return 0
	}
	return float64(p.CountByStatus(StatusCompleted)) / float64(len(p.Steps))
}

// StepSnapshot is the observer-facing view of one step.
type StepSnapshot struct {
	ID          int    `json:"id"`
	Description string `json:"description"`
	AgentType   string `json:"agent_type"`
	Status      Status `json:"status"`
	Attempts    int    `json:"attempts"`
}

// ProgressData returns an ordered snapshot of every step.
func (p *ExecutionPlan) ProgressData() []StepSnapshot {
	out := make([]StepSnapshot, 0, len(p.Steps))
	for _, s := range p.Steps {
		out = append(out, StepSnapshot{
			ID:          s.ID,
			Description: s.Description,
			AgentType:   s.AgentType,
			Status:      s.Status,
			Attempts:    s.Attempts,
		})
	}
	return out
}

var statusIcons = map[Status]string{
	StatusPending:   "...",
	StatusRunning:   "[~]",
	StatusCompleted: "[OK]",
	StatusFailed:    "[X]",
}

// ProgressText renders the plan as a markdown-style progress view.
func (p *ExecutionPlan) ProgressText() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("**Plan: %s**\n", p.Goal))
	for _, s := range p.Steps {
		icon, ok := statusIcons[s.Status]
		if !ok {
			icon = "..."
		}
		sb.WriteString(fmt.Sprintf("\n%s Step %d: [%s] %s (%s)", icon, s.ID, strings.ToUpper(s.AgentType), s.Description, s.Status))
	}
	if !p.StartTime.IsZero() {
		sb.WriteString(fmt.Sprintf("\n\nElapsed: %.1fs", time.Since(p.StartTime).Seconds()))
	}
	return sb.String()
}

// Summary aggregates the final outcome of one run.
type Summary struct {
	TotalSteps    int      `json:"total_steps"`
	Completed     int      `json:"completed"`
	Failed        int      `json:"failed"`
	Skipped       int      `json:"skipped"`
	ElapsedTime   float64  `json:"elapsed_time"`
	SuccessRate   float64  `json:"success_rate"`
	ReflectionLog []string `json:"reflection_log"`
	FilesCreated  []string `json:"files_created"`
}

const reflectionTail = 10

// Summarize computes the execution summary record for the finished plan.
func (p *ExecutionPlan) Summarize() Summary {
	s := Summary{
		TotalSteps: len(p.Steps),
		Completed:  p.CountByStatus(StatusCompleted),
		Failed:     p.CountByStatus(StatusFailed),
		Skipped:    p.CountByStatus(StatusPending),
	}
	if !p.StartTime.IsZero() {
		s.ElapsedTime = time.Since(p.StartTime).Seconds()
	}
	if s.TotalSteps > 0 {
		s.SuccessRate = float64(s.Completed) / float64(s.TotalSteps)
	}
	tail := p.ReflectionLog
	if len(tail) > reflectionTail {
		tail = tail[len(tail)-reflectionTail:]
	}
	s.ReflectionLog = append([]string(nil), tail...)
	for _, step := range p.Steps {
		if step.Status == StatusCompleted && step.Result != "" {
			s.FilesCreated = append(s.FilesCreated, ExtractFilePaths(step.Result)...)
		}
	}
	s.FilesCreated = Dedupe(s.FilesCreated)
	return s
}

var (
	filePathRe = regexp.MustCompile(`(?:\./[^\s'"]+|work(?:space|_dir)?/[^\s'"]+)`)
	urlRe      = regexp.MustCompile(`https?://[^\s'"<>]+`)
)

// ExtractFilePaths pulls workspace-relative file mentions out of a step result.
func ExtractFilePaths(text string) []string {
	return filePathRe.FindAllString(text, -1)
}

// ExtractURLs pulls http(s) URLs out of a step result.
func ExtractURLs(text string) []string {
	return urlRe.FindAllString(text, -1)
}

// Dedupe keeps the first occurrence of each string, preserving order.
func Dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	var out []string
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
