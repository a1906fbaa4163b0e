package supervisor

import (
	"strings"
	"time"

	"autopilot/internal/plan"
)

const (
	StatusPending   = "PENDING"
	StatusRunning   = "RUNNING"
	StatusSucceeded = "SUCCEEDED"
	StatusPartial   = "PARTIAL"
	StatusCancelled = "CANCELLED"
)

// Mission is one queued goal with its task list. State is written only by
// the supervisor goroutine.
type Mission struct {
	ID        string
	Goal      string
	State     string
	Tasks     []plan.TaskSpec
	Submitted time.Time
}

// Phrases that make a plan require explicit confirmation before it is
// queued: they tend to show up in destructive or system-altering tasks.
var riskyPhrases = []string{
	"delete", "remove ", "uninstall", "overwrite",
	"rm -rf", "sudo ", "format the", "wipe",
}

// IsPlanRisky reports whether any task in the list looks destructive enough
// to warrant user confirmation.
func IsPlanRisky(tasks []plan.TaskSpec) bool {
	for _, t := range tasks {
		text := strings.ToLower(t.Task + " " + t.Name)
		for _, phrase := range riskyPhrases {
			if strings.Contains(text, phrase) {
				return true
			}
		}
	}
	return false
}
