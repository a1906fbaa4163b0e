package sandbox

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func testSandbox(t *testing.T, cfg Config) *Sandbox {
	t.Helper()
	if cfg.WorkDir == "" {
		cfg.WorkDir = t.TempDir()
	}
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestRunShellEcho(t *testing.T) {
	s := testSandbox(t, Config{})
	r := s.Run(context.Background(), "echo hello", "bash")

	if !r.Success {
		t.Fatalf("echo failed: %+v", r)
	}
	if strings.TrimSpace(r.Output) != "hello" {
		t.Errorf("output = %q, want hello", r.Output)
	}
	if r.Blocked || r.TimedOut || r.Truncated {
		t.Errorf("unexpected flags: %+v", r)
	}
}

func TestRunBlockedPythonHasNoSideEffect(t *testing.T) {
	workDir := t.TempDir()
	s := testSandbox(t, Config{WorkDir: workDir})

	code := "import os\n" +
		"with open('marker.txt', 'w') as f:\n" +
		"    f.write('x')\n" +
		"os.system('ls')\n"
	r := s.Run(context.Background(), code, "python")

	if !r.Blocked || r.Success {
		t.Fatalf("os.system snippet must be blocked, got %+v", r)
	}
	if r.BlockedReason == "" {
		t.Error("blocked result must carry the matched pattern")
	}
	if _, err := os.Stat(filepath.Join(workDir, "marker.txt")); !os.IsNotExist(err) {
		t.Error("blocked snippet must never touch the filesystem")
	}
}

func TestRunShellTimeoutKillsGroup(t *testing.T) {
	s := testSandbox(t, Config{Timeout: 300 * time.Millisecond})

	start := time.Now()
	r := s.Run(context.Background(), "echo early; sleep 5; echo late", "bash")
	elapsed := time.Since(start)

	if !r.TimedOut || r.Success {
		t.Fatalf("expected timeout, got %+v", r)
	}
	if strings.Contains(r.Output, "late") {
		t.Error("output past the kill must not appear")
	}
	if !strings.Contains(r.Output, "early") {
		t.Error("partial output captured before the kill should be kept")
	}
	if elapsed > 3*time.Second {
		t.Errorf("group kill took too long: %s", elapsed)
	}
}

func TestRunShellOutputTruncation(t *testing.T) {
	s := testSandbox(t, Config{})
	r := s.Run(context.Background(), "head -c 60000 /dev/zero | tr '\\0' 'a'", "bash")

	if !r.Success {
		t.Fatalf("command failed: %+v", r)
	}
	if !r.Truncated {
		t.Fatal("oversized output should be truncated")
	}
	if !strings.Contains(r.Output, "[output truncated, 10000 chars omitted]") {
		t.Errorf("omitted count inaccurate: %q", r.Output[len(r.Output)-80:])
	}
}

func TestRunServerCodeSyntheticSuccess(t *testing.T) {
	s := testSandbox(t, Config{})
	code := "from flask import Flask\n" +
		"app = Flask(__name__)\n" +
		"@app.route('/')\n" +
		"def index():\n" +
		"    return 'hi'\n" +
		"app.run(port=5000)\n"
	r := s.Run(context.Background(), code, "python")

	if !r.Success {
		t.Fatalf("server code must return synthetic success, got %+v", r)
	}
	if !strings.Contains(r.Output, "[server code]") {
		t.Errorf("synthetic result should explain itself: %q", r.Output)
	}
	if r.ExecutionTime != 0 {
		t.Error("server code is never executed")
	}
}

func TestRunShellPolicyPaths(t *testing.T) {
	s := testSandbox(t, Config{})

	// System package manager: refused, but as a success.
	r := s.Run(context.Background(), "apt-get install nmap", "bash")
	if !r.Success {
		t.Errorf("system install refusal must not count as a failure: %+v", r)
	}
	if !strings.Contains(r.Output, "[blocked]") {
		t.Errorf("refusal should carry an explanatory message: %q", r.Output)
	}

	// Denylisted command: a real security rejection.
	r = s.Run(context.Background(), "sudo rm -rf /", "bash")
	if r.Success || !r.Blocked {
		t.Errorf("denylisted shell command must be blocked: %+v", r)
	}
}

func TestRunUnsupportedLanguage(t *testing.T) {
	s := testSandbox(t, Config{})
	r := s.Run(context.Background(), "puts 'hi'", "ruby")

	if r.Success {
		t.Fatal("unsupported language must fail")
	}
	if !strings.Contains(r.Errors, "unsupported language") {
		t.Errorf("errors = %q", r.Errors)
	}
}

func TestStatsAndHistory(t *testing.T) {
	s := testSandbox(t, Config{Timeout: 200 * time.Millisecond})
	ctx := context.Background()

	s.Run(ctx, "echo ok", "bash")
	s.Run(ctx, "false", "bash")
	s.Run(ctx, "sudo ls", "bash")
	s.Run(ctx, "sleep 5", "bash")

	st := s.GetStats()
	if st.TotalExecutions != 4 {
		t.Errorf("total = %d, want 4", st.TotalExecutions)
	}
	if st.Successful != 1 || st.Failed != 3 {
		t.Errorf("successful/failed = %d/%d, want 1/3", st.Successful, st.Failed)
	}
	if st.Blocked != 1 {
		t.Errorf("blocked = %d, want 1", st.Blocked)
	}
	if st.TimedOut != 1 {
		t.Errorf("timed out = %d, want 1", st.TimedOut)
	}

	s.ClearHistory()
	if s.GetStats().TotalExecutions != 0 {
		t.Error("history should be empty after clear")
	}
}

func TestFormatResult(t *testing.T) {
	testCases := []struct {
		name   string
		result Result
		want   string
	}{
		{
			name:   "Blocked",
			result: Result{Blocked: true, BlockedReason: "blocked dangerous pattern: sudo", Language: "bash"},
			want:   "[blocked (bash)] blocked dangerous pattern: sudo",
		},
		{
			name:   "Timeout keeps partial output",
			result: Result{TimedOut: true, Output: "partial", Language: "python", ExecutionTime: 1500 * time.Millisecond},
			want:   "[timeout (python)] Execution timed out after 1.50s\nPartial output: partial",
		},
		{
			name:   "Success",
			result: Result{Success: true, Output: "done", Language: "bash", ExecutionTime: 20 * time.Millisecond},
			want:   "[success (bash)] Execution completed in 0.02s\ndone",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := FormatResult(tc.result); got != tc.want {
				t.Errorf("FormatResult = %q, want %q", got, tc.want)
			}
		})
	}
}
