package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"autopilot/internal/logger"
)

const (
	// Hard cap applied to captured stdout/stderr.
	MaxOutputLength = 50000

	// IsolationWorkspace confines snippets to the work dir and rejects
	// parent-traversal sequences; IsolationNone skips the traversal check.
	IsolationWorkspace = "workspace"
	IsolationNone      = "none"

	defaultTimeout     = 60 * time.Second
	defaultMaxMemoryMB = 1024
	installTimeout     = 60 * time.Second
)

// Config carries the containment knobs for one executor.
type Config struct {
	WorkDir       string
	Timeout       time.Duration
	MaxMemoryMB   int
	BlockNetwork  bool
	IsolationMode string
}

// Executor validates and runs one untrusted snippet at a time inside the
// confined work dir. It is stateless across calls.
type Executor struct {
	workDir         string
	timeout         time.Duration
	maxMemoryMB     int
	blockNetwork    bool
	isolationMode   string
	extraRestricted []string
}

// NewExecutor creates the work dir if needed and fills in defaults.
func NewExecutor(cfg Config) (*Executor, error) {
	workDir := cfg.WorkDir
	if workDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("executor work dir: %w", err)
		}
		workDir = wd
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}

	e := &Executor{
		workDir:       workDir,
		timeout:       cfg.Timeout,
		maxMemoryMB:   cfg.MaxMemoryMB,
		blockNetwork:  cfg.BlockNetwork,
		isolationMode: cfg.IsolationMode,
	}
	if e.timeout <= 0 {
		e.timeout = defaultTimeout
	}
	if e.maxMemoryMB <= 0 {
		e.maxMemoryMB = defaultMaxMemoryMB
	}
	if e.isolationMode == "" {
		e.isolationMode = IsolationWorkspace
	}
	if home, err := os.UserHomeDir(); err == nil {
		e.extraRestricted = append(e.extraRestricted, filepath.Join(home, ".config"))
	}
	return e, nil
}

// WorkDir returns the confined directory shared by all steps of one plan.
func (e *Executor) WorkDir() string { return e.workDir }

// ValidateCode runs the static pipeline: path safety, per-language denylist,
// then the optional network scan. It never executes anything.
func (e *Executor) ValidateCode(code, language string) (bool, string) {
	if ok, reason := checkPathSafety(code, e.isolationMode); !ok {
		return false, reason
	}
	for _, restricted := range e.extraRestricted {
		if strings.Contains(code, restricted) {
			return false, fmt.Sprintf("access to restricted path blocked: %s", restricted)
		}
	}

	cfg, ok := languageConfigs[language]
	if !ok {
		return true, ""
	}
	if ok, reason := scanDenylist(code, cfg.denylist); !ok {
		return false, reason
	}

	if e.blockNetwork && language == "python" {
		for _, re := range networkDenylist {
			if m := re.FindString(code); m != "" {
				return false, fmt.Sprintf("network access blocked: %s", m)
			}
		}
	}
	return true, ""
}

// Execute runs one snippet in the given canonical language. Shell commands
// take the dedicated policy path; code goes through the server-code check,
// the strip pass, validation, and the subprocess runner with a single
// install-and-retry for missing python modules.
func (e *Executor) Execute(ctx context.Context, code, language string) Result {
	if language == "bash" {
		return e.ExecuteShell(ctx, code)
	}

	if language == "python" && isServerCode(code) {
		logger.Log.Printf("[sandbox] server code detected, saving only (never binding the port)")
		return Result{
			Success:  true,
			Output:   "[server code] Backend file saved. The server was not started inside the sandbox because the port is reserved. The file is ready to use.",
			Language: language,
		}
	}

	code = stripServerStart(code, language)

	if ok, reason := e.ValidateCode(code, language); !ok {
		logger.Log.Printf("[sandbox] blocked %s code: %s", language, reason)
		return Result{Success: false, Errors: reason, Language: language, Blocked: true, BlockedReason: reason}
	}

	cfg, ok := languageConfigs[language]
	if !ok {
		return Result{Success: false, Errors: fmt.Sprintf("unsupported language: %s", language), Language: language}
	}

	result := e.runCode(ctx, code, language, cfg)
	if !result.Success && language == "python" && strings.Contains(result.Errors, "No module named") {
		if pkg, found := missingModule(result.Errors); found && e.autoInstall(ctx, pkg) {
			logger.Log.Printf("[sandbox] installed %s, retrying execution", pkg)
			result = e.runCode(ctx, code, language, cfg)
		}
	}
	return result
}

func (e *Executor) runCode(ctx context.Context, code, language string, cfg languageConfig) Result {
	tmp, err := os.CreateTemp(e.workDir, "snippet-*"+cfg.extension)
	if err != nil {
		return Result{Success: false, Errors: fmt.Sprintf("write snippet: %v", err), Language: language}
	}
	path := tmp.Name()
	defer os.Remove(path)
	if _, err := tmp.WriteString(code); err != nil {
		tmp.Close()
		return Result{Success: false, Errors: fmt.Sprintf("write snippet: %v", err), Language: language}
	}
	if err := tmp.Close(); err != nil {
		return Result{Success: false, Errors: fmt.Sprintf("write snippet: %v", err), Language: language}
	}

	argv := append(append([]string(nil), cfg.command...), path)
	var quoted []string
	for _, a := range argv {
		quoted = append(quoted, fmt.Sprintf("%q", a))
	}
	logger.Log.Printf("[sandbox] executing %s: %s", language, argv[0])
	return e.runGroup(ctx, "exec "+strings.Join(quoted, " "), language)
}

// runGroup spawns `bash -c` in its own process group so a timeout can kill
// the whole tree, applies the virtual-memory ulimit, and waits up to the
// configured timeout. Cancellation of ctx does not preempt a started process;
// only the hard timeout does.
func (e *Executor) runGroup(ctx context.Context, script, language string) Result {
	if err := ctx.Err(); err != nil {
		return Result{Success: false, Errors: fmt.Sprintf("not started: %v", err), Language: language}
	}

	// ulimit applies RLIMIT_AS to the shell and everything exec'd from it.
	script = fmt.Sprintf("ulimit -v %d 2>/dev/null; %s", e.maxMemoryMB*1024, script)

	cmd := exec.Command("bash", "-c", script)
	cmd.Dir = e.workDir
	cmd.Env = append(os.Environ(), "PYTHONDONTWRITEBYTECODE=1")
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return Result{Success: false, Errors: fmt.Sprintf("start: %v", err), Language: language}
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	timer := time.NewTimer(e.timeout)
	defer timer.Stop()

	select {
	case waitErr := <-done:
		elapsed := time.Since(start)
		out, outTrunc := truncateOutput(stdout.String())
		errText, errTrunc := truncateOutput(stderr.String())
		logger.Log.Printf("[sandbox] %s finished in %.2fs (ok=%v)", language, elapsed.Seconds(), waitErr == nil)
		return Result{
			Success:       waitErr == nil,
			Output:        out,
			Errors:        errText,
			ExecutionTime: elapsed,
			Language:      language,
			Truncated:     outTrunc || errTrunc,
		}
	case <-timer.C:
		// SIGKILL the whole group; the child is its own group leader.
		_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		<-done
		elapsed := time.Since(start)
		out, outTrunc := truncateOutput(stdout.String())
		logger.Log.Printf("[sandbox] %s timed out after %s", language, e.timeout)
		return Result{
			Success:       false,
			Output:        out,
			Errors:        fmt.Sprintf("execution timed out after %.0f seconds", e.timeout.Seconds()),
			ExecutionTime: elapsed,
			Language:      language,
			TimedOut:      true,
			Truncated:     outTrunc,
		}
	}
}

// autoInstall runs exactly one `pip install` for a missing module and reports
// whether it succeeded.
func (e *Executor) autoInstall(ctx context.Context, pkg string) bool {
	if err := ctx.Err(); err != nil {
		return false
	}
	logger.Log.Printf("[sandbox] auto-installing missing module: %s", pkg)
	installCtx, cancel := context.WithTimeout(ctx, installTimeout)
	defer cancel()
	cmd := exec.CommandContext(installCtx, "pip", "install", "--quiet", pkg)
	cmd.Dir = e.workDir
	if err := cmd.Run(); err != nil {
		logger.Log.Printf("[sandbox] failed to install %s: %v", pkg, err)
		return false
	}
	return true
}

func truncateOutput(text string) (string, bool) {
	if len(text) <= MaxOutputLength {
		return text, false
	}
	omitted := len(text) - MaxOutputLength
	return text[:MaxOutputLength] + fmt.Sprintf("\n\n... [output truncated, %d chars omitted]", omitted), true
}
