package display

import (
	"fmt"
	"strings"

	"autopilot/internal/plan"
)

const maxValueLength = 100

// FormatTasks renders a proposed task list for user confirmation, with long
// task text truncated for the terminal.
func FormatTasks(goal string, tasks []plan.TaskSpec) string {
	return formatTasksInternal(goal, tasks, maxValueLength)
}

// FormatTasksFull renders the task list without truncation, for logs.
func FormatTasksFull(goal string, tasks []plan.TaskSpec) string {
	return formatTasksInternal(goal, tasks, -1)
}

func formatTasksInternal(goal string, tasks []plan.TaskSpec, limit int) string {
	var sb strings.Builder
	sb.WriteString("Proposed execution plan:\n")
	sb.WriteString("--------------------------------------------------\n")
	sb.WriteString(fmt.Sprintf("Goal: %s\n", formatValueForDisplay(goal, limit)))

	for i, t := range tasks {
		sb.WriteString(fmt.Sprintf("  %2d. [%s] %s\n", i+1, strings.ToUpper(t.Agent), formatValueForDisplay(t.Task, limit)))
		if len(t.Needs) > 0 {
			sb.WriteString(fmt.Sprintf("      needs: %s\n", strings.Join(t.Needs, ", ")))
		}
	}
	sb.WriteString("--------------------------------------------------")
	return sb.String()
}

// Limit a value's stdout length (limit < 0 means no limit).
func formatValueForDisplay(value any, limit int) string {
	s := fmt.Sprintf("%v", value)
	s = strings.ReplaceAll(s, "\n", "\\n")
	if limit >= 0 && len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
