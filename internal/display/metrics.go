package display

import (
	"fmt"
	"strings"

	"autopilot/internal/metrics"
)

func FormatRunMetrics(rm *metrics.RunMetrics) string {
	if rm == nil {
		return "No metrics available."
	}
	var sb strings.Builder
	sb.WriteString("Execution metrics:\n")
	sb.WriteString(fmt.Sprintf("- Total: %d ms  (success=%v, steps %d/%d)\n",
		rm.DurationMs, rm.Succeeded, rm.Completed, rm.TotalSteps))
	for _, s := range rm.Steps {
		status := "ok"
		if s.Status != "completed" {
			status = s.Status
		}
		sb.WriteString(fmt.Sprintf("    step %-3d %-8s attempt %d  %5d ms  [%s]\n",
			s.StepID, s.Agent, s.Attempt, s.DurationMs, status))
	}
	return sb.String()
}
