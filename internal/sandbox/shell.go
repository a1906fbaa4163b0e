package sandbox

import (
	"context"
	"strings"

	"autopilot/internal/logger"
)

// ExecuteShell applies the three shell policies in order: system package
// managers are refused (as a success, so retry accounting is not derailed),
// application package managers run directly past the denylist, and everything
// else is scanned and then executed.
func (e *Executor) ExecuteShell(ctx context.Context, command string) Result {
	if isSystemInstall(command) {
		logger.Log.Printf("[sandbox] refused system install: %.100s", command)
		return Result{
			Success:  true,
			Output:   "[blocked] System package install not allowed: " + strings.TrimSpace(command) + "\nUse pip/npm/yarn to install packages.",
			Language: "bash",
		}
	}

	if isAllowedInstall(command) {
		command = strings.ReplaceAll(command, " --break-system-packages", "")
		logger.Log.Printf("[sandbox] executing install: %.100s", command)
		return e.runShellRaw(ctx, command)
	}

	if ok, reason := e.ValidateCode(command, "bash"); !ok {
		logger.Log.Printf("[sandbox] blocked shell command: %s", reason)
		return Result{Success: false, Errors: reason, Language: "bash", Blocked: true, BlockedReason: reason}
	}

	return e.runShellRaw(ctx, command)
}

func (e *Executor) runShellRaw(ctx context.Context, command string) Result {
	logger.Log.Printf("[sandbox] executing bash: %.100s", command)
	return e.runGroup(ctx, command, "bash")
}
