package sandbox

import "time"

// Result is the outcome of one sandboxed execution. Every outcome, including
// security rejections and timeouts, is returned as data; the sandbox never
// returns a Go error for expected failure classes.
type Result struct {
	Success       bool
	Output        string
	Errors        string
	ExecutionTime time.Duration
	Language      string
	TimedOut      bool
	Blocked       bool
	BlockedReason string
	Truncated     bool
}
