package display

import (
	"fmt"
	"strings"

	"autopilot/internal/planner"
	"autopilot/internal/supervisor"
)

func FormatTaskCatalog(file string, lists []planner.NamedTasks) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d mission(s) in %s:\n", len(lists), file))
	for i, l := range lists {
		sb.WriteString(fmt.Sprintf("  %2d. %s  (tasks=%d, risky=%v)\n",
			i+1, l.Name, len(l.Tasks), supervisor.IsPlanRisky(l.Tasks)))
	}
	return sb.String()
}
