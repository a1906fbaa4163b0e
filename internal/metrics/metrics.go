package metrics

import (
	"sync"
	"time"

	"autopilot/internal/plan"
)

// StepMetrics records one execution attempt of one plan step.
type StepMetrics struct {
	StepID     int       `json:"step_id"`
	Agent      string    `json:"agent"`
	Attempt    int       `json:"attempt"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	DurationMs int64     `json:"duration_ms"`
	Status     string    `json:"status"`
}

// RunMetrics aggregates the timing of one mission run.
type RunMetrics struct {
	MissionID   string        `json:"mission_id"`
	Goal        string        `json:"goal"`
	Start       time.Time     `json:"start"`
	End         time.Time     `json:"end"`
	DurationMs  int64         `json:"duration_ms"`
	Succeeded   bool          `json:"succeeded"`
	TotalSteps  int           `json:"total_steps"`
	Completed   int           `json:"completed"`
	Failed      int           `json:"failed"`
	SuccessRate float64       `json:"success_rate"`
	Steps       []StepMetrics `json:"steps"`
}

// Collector builds RunMetrics from observer events. It is safe to snapshot
// from another goroutine while the run is still in flight.
type Collector struct {
	mu      sync.Mutex
	run     RunMetrics
	started map[int]time.Time
}

func NewCollector(missionID, goal string) *Collector {
	return &Collector{
		run: RunMetrics{
			MissionID: missionID,
			Goal:      goal,
			Start:     time.Now(),
		},
		started: make(map[int]time.Time),
	}
}

func (c *Collector) PlanCreated(_ string, snapshot []plan.StepSnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.run.TotalSteps = len(snapshot)
}

func (c *Collector) StepStarted(step plan.TaskStep) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.started[step.ID] = time.Now()
}

func (c *Collector) StepFinished(step plan.TaskStep) {
	c.mu.Lock()
	defer c.mu.Unlock()
	start, ok := c.started[step.ID]
	if !ok {
		start = time.Now()
	}
	delete(c.started, step.ID)
	end := time.Now()
	c.run.Steps = append(c.run.Steps, StepMetrics{
		StepID:     step.ID,
		Agent:      step.AgentType,
		Attempt:    step.Attempts,
		Start:      start,
		End:        end,
		DurationMs: end.Sub(start).Milliseconds(),
		Status:     string(step.Status),
	})
}

func (c *Collector) Progress(string) {}

func (c *Collector) RunFinished(summary plan.Summary) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.run.End = time.Now()
	c.run.DurationMs = c.run.End.Sub(c.run.Start).Milliseconds()
	c.run.TotalSteps = summary.TotalSteps
	c.run.Completed = summary.Completed
	c.run.Failed = summary.Failed
	c.run.SuccessRate = summary.SuccessRate
	c.run.Succeeded = summary.TotalSteps > 0 && summary.Completed == summary.TotalSteps
}

// Snapshot returns a copy of the metrics gathered so far.
func (c *Collector) Snapshot() *RunMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.run
	out.Steps = append([]StepMetrics(nil), c.run.Steps...)
	return &out
}
