package display

import (
	"fmt"
	"io"
	"os"

	"autopilot/internal/plan"
)

const stepTextLimit = 80

// Printer is a run observer that writes live progress lines to a terminal.
type Printer struct {
	Out io.Writer
}

func NewPrinter(out io.Writer) *Printer {
	if out == nil {
		out = os.Stdout
	}
	return &Printer{Out: out}
}

func (p *Printer) PlanCreated(goal string, snapshot []plan.StepSnapshot) {
	fmt.Fprintf(p.Out, "\n[mission] %s (%d steps)\n", formatValueForDisplay(goal, stepTextLimit), len(snapshot))
}

func (p *Printer) StepStarted(step plan.TaskStep) {
	fmt.Fprintf(p.Out, "  -> step %d [%s] %s\n", step.ID, step.AgentType, formatValueForDisplay(step.Description, stepTextLimit))
}

func (p *Printer) StepFinished(step plan.TaskStep) {
	switch step.Status {
	case plan.StatusCompleted:
		fmt.Fprintf(p.Out, "     step %d done\n", step.ID)
	case plan.StatusFailed:
		fmt.Fprintf(p.Out, "     step %d FAILED: %s\n", step.ID, formatValueForDisplay(step.Error, stepTextLimit))
	default:
		fmt.Fprintf(p.Out, "     step %d failed (attempt %d/%d), retry queued\n", step.ID, step.Attempts, step.MaxAttempts)
	}
}

func (p *Printer) Progress(string) {}

func (p *Printer) RunFinished(summary plan.Summary) {
	fmt.Fprintf(p.Out, "  == %d/%d steps completed in %.1fs ==\n",
		summary.Completed, summary.TotalSteps, summary.ElapsedTime)
}
