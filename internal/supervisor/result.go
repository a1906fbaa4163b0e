package supervisor

import "autopilot/internal/metrics"

// MissionResult is delivered on the results channel when a mission run
// finishes, however it ended.
type MissionResult struct {
	MissionID string              `json:"mission_id"`
	Goal      string              `json:"goal"`
	State     string              `json:"state"`
	Report    string              `json:"report"`
	Metrics   *metrics.RunMetrics `json:"metrics,omitempty"`
}
