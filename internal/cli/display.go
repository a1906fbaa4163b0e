package cli

import (
	"fmt"
	"strings"

	"autopilot/internal/listener"
	"autopilot/internal/memory"
	"autopilot/internal/sandbox"
)

const recentProjectsShown = 5

// printStats renders sandbox execution counters and the most recent
// remembered projects.
func printStats(sb *sandbox.Sandbox, mem *memory.Store) {
	var out strings.Builder
	st := sb.GetStats()
	out.WriteString("Sandbox executions:\n")
	out.WriteString(fmt.Sprintf("  total=%d ok=%d failed=%d blocked=%d timed_out=%d (%.1fs cpu-wall)\n",
		st.TotalExecutions, st.Successful, st.Failed, st.Blocked, st.TimedOut, st.TotalExecutionTime))

	projects, err := mem.RecentProjects(recentProjectsShown)
	if err != nil {
		out.WriteString(fmt.Sprintf("Recent projects: unavailable (%v)\n", err))
	} else if len(projects) == 0 {
		out.WriteString("Recent projects: none yet\n")
	} else {
		out.WriteString("Recent projects:\n")
		for _, p := range projects {
			out.WriteString(fmt.Sprintf("  - %s [%s] %s (%s)\n", p.Name, p.Type, p.Description, p.Status))
		}
	}
	listener.AsyncPrintln(strings.TrimRight(out.String(), "\n"))
}
