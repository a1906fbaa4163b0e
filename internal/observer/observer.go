package observer

import (
	"autopilot/internal/logger"
	"autopilot/internal/plan"
)

// Observer receives best-effort progress events from a run. Implementations
// must tolerate being called from the orchestrator goroutine; they are never
// allowed to influence scheduling.
type Observer interface {
	PlanCreated(goal string, snapshot []plan.StepSnapshot)
	StepStarted(step plan.TaskStep)
	StepFinished(step plan.TaskStep)
	Progress(text string)
	RunFinished(summary plan.Summary)
}

// Noop is the default observer when no consumer is attached.
type Noop struct{}

func (Noop) PlanCreated(string, []plan.StepSnapshot) {}
func (Noop) StepStarted(plan.TaskStep)               {}
func (Noop) StepFinished(plan.TaskStep)              {}
func (Noop) Progress(string)                         {}
func (Noop) RunFinished(plan.Summary)                {}

// Fanout forwards every event to all listed observers. Nil entries are
// skipped, so callers can compose optional consumers without checks.
type Fanout []Observer

func (f Fanout) each(fn func(Observer)) {
	for _, o := range f {
		if o != nil {
			fn(o)
		}
	}
}

func (f Fanout) PlanCreated(goal string, snapshot []plan.StepSnapshot) {
	f.each(func(o Observer) { o.PlanCreated(goal, snapshot) })
}

func (f Fanout) StepStarted(step plan.TaskStep) {
	f.each(func(o Observer) { o.StepStarted(step) })
}

func (f Fanout) StepFinished(step plan.TaskStep) {
	f.each(func(o Observer) { o.StepFinished(step) })
}

func (f Fanout) Progress(text string) {
	f.each(func(o Observer) { o.Progress(text) })
}

func (f Fanout) RunFinished(summary plan.Summary) {
	f.each(func(o Observer) { o.RunFinished(summary) })
}

// Guard wraps an observer so panics in event handlers are swallowed and
// logged instead of crashing the run loop.
type Guard struct {
	Inner Observer
}

func NewGuard(inner Observer) Guard {
	if inner == nil {
		inner = Noop{}
	}
	return Guard{Inner: inner}
}

func (g Guard) emit(event string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Log.Printf("[observer] %s handler panicked: %v", event, r)
		}
	}()
	fn()
}

func (g Guard) PlanCreated(goal string, snapshot []plan.StepSnapshot) {
	g.emit("plan_created", func() { g.Inner.PlanCreated(goal, snapshot) })
}

func (g Guard) StepStarted(step plan.TaskStep) {
	g.emit("step_started", func() { g.Inner.StepStarted(step) })
}

func (g Guard) StepFinished(step plan.TaskStep) {
	g.emit("step_finished", func() { g.Inner.StepFinished(step) })
}

func (g Guard) Progress(text string) {
	g.emit("progress", func() { g.Inner.Progress(text) })
}

func (g Guard) RunFinished(summary plan.Summary) {
	g.emit("run_finished", func() { g.Inner.RunFinished(summary) })
}
