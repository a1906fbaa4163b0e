package orchestrator

import (
	"fmt"
	"regexp"
	"strings"

	"autopilot/internal/logger"
	"autopilot/internal/plan"
)

var missingModuleRe = regexp.MustCompile(`no module named ['"]?(\w+)`)

// Fixed swap table for failures with no recognizable error class: retry the
// task through a different capability.
var alternateAgents = map[string]string{
	"coder":  "file",
	"file":   "coder",
	"web":    "casual",
	"casual": "coder",
}

// reviseStep appends exactly one recovery step for a terminally failed
// step, picking the capability and instruction from the error class. The
// recovery step inherits the failed step's dependencies and gets a reduced
// retry budget.
func (o *Orchestrator) reviseStep(p *plan.ExecutionPlan, failed *plan.TaskStep) *plan.TaskStep {
	errLower := strings.ToLower(failed.Error)
	agentType := strings.ToLower(failed.AgentType)
	var description string

	switch {
	case strings.Contains(errLower, "no module named") || strings.Contains(errLower, "import"):
		module := "the required one"
		if m := missingModuleRe.FindStringSubmatch(errLower); m != nil {
			module = m[1]
		}
		description = fmt.Sprintf(
			"[RECOVERY - INSTALL DEPENDENCY] Install the dependency '%s' first using pip install, then redo the task: %s",
			module, failed.Description)

	case strings.Contains(errLower, "permission") || strings.Contains(errLower, "access denied"):
		agentType = "file"
		description = fmt.Sprintf(
			"[RECOVERY - FIX PERMISSIONS] Fix the file permission/access problem, then redo the task: %s",
			failed.Description)

	case strings.Contains(errLower, "syntax"):
		agentType = "coder"
		description = fmt.Sprintf(
			"[RECOVERY - FIX SYNTAX] Fix the syntax error in the code: read the failing file, identify the error and correct it. Original task: %s",
			failed.Description)

	case strings.Contains(errLower, "timeout") || strings.Contains(errLower, "connection"):
		agentType = "web"
		description = fmt.Sprintf(
			"[RECOVERY - RETRY CONNECTION] Try again with a different search query or an alternative URL. Original task: %s",
			failed.Description)

	default:
		if alt, ok := alternateAgents[agentType]; ok {
			agentType = alt
		}
		description = fmt.Sprintf("[RECOVERY] Retry with a different approach: %s", failed.Description)
	}

	errText := failed.Error
	if errText == "" {
		errText = "Unknown error"
	}
	description += fmt.Sprintf(
		"\n\nPREVIOUS ERROR:\n%s\nINSTRUCTION: Use a DIFFERENT approach. Do not repeat the same one. Do not ask for clarification, execute directly.",
		truncate(errText, errorExcerptLimit))

	recovery := p.AppendStep(description, agentType, plan.RecoveryMaxAttempts, failed.Dependencies)
	logger.Log.Printf("[orchestrator] plan revised: recovery step %d (agent %s) for failed step %d",
		recovery.ID, agentType, failed.ID)
	return recovery
}
