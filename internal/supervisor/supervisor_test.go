package supervisor

import (
	"context"
	"testing"
	"time"

	"autopilot/internal/agents"
	"autopilot/internal/plan"
)

type stubAgent struct {
	name    string
	process func(ctx context.Context, prompt string) (string, bool)
}

func (s *stubAgent) Name() string { return s.name }

func (s *stubAgent) Process(ctx context.Context, prompt string) (string, bool) {
	return s.process(ctx, prompt)
}

func registryWith(a ...agents.Agent) *agents.Registry {
	reg := agents.NewRegistry()
	for _, ag := range a {
		reg.Register(ag)
	}
	return reg
}

func waitResult(t *testing.T, s *Supervisor) MissionResult {
	t.Helper()
	select {
	case r := <-s.Results():
		return r
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for mission result")
		return MissionResult{}
	}
}

func TestSupervisorRunsMissionToCompletion(t *testing.T) {
	coder := &stubAgent{name: "coder", process: func(context.Context, string) (string, bool) {
		return "done", true
	}}
	s := New(registryWith(coder), nil, nil)
	s.Start()

	id := s.Submit("build two things", []plan.TaskSpec{
		{Task: "first", Agent: "coder"},
		{Task: "second", Agent: "coder", Needs: []string{"1"}},
	})
	if len(id) != 8 {
		t.Errorf("mission ID length = %d, want 8", len(id))
	}

	r := waitResult(t, s)
	if r.MissionID != id {
		t.Errorf("result mission ID = %q, want %q", r.MissionID, id)
	}
	if r.State != StatusSucceeded {
		t.Errorf("state = %q, want %q", r.State, StatusSucceeded)
	}
	if r.Metrics == nil || r.Metrics.Completed != 2 || !r.Metrics.Succeeded {
		t.Errorf("metrics = %+v", r.Metrics)
	}
	if len(r.Metrics.Steps) != 2 {
		t.Errorf("got %d step metrics, want 2", len(r.Metrics.Steps))
	}
}

func TestSupervisorRunsMissionsSequentially(t *testing.T) {
	running := make(chan string, 4)
	coder := &stubAgent{name: "coder", process: func(_ context.Context, prompt string) (string, bool) {
		running <- prompt
		return "ok", true
	}}
	s := New(registryWith(coder), nil, nil)
	s.Start()

	s.Submit("goal one", []plan.TaskSpec{{Task: "alpha", Agent: "coder"}})
	s.Submit("goal two", []plan.TaskSpec{{Task: "beta", Agent: "coder"}})

	first := waitResult(t, s)
	second := waitResult(t, s)
	if first.Goal != "goal one" || second.Goal != "goal two" {
		t.Errorf("missions ran out of order: %q then %q", first.Goal, second.Goal)
	}
}

func TestSupervisorCancelStopsRunningMission(t *testing.T) {
	started := make(chan struct{}, 1)
	blocker := &stubAgent{name: "coder", process: func(ctx context.Context, _ string) (string, bool) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-ctx.Done()
		return "interrupted", false
	}}
	s := New(registryWith(blocker), nil, nil)
	s.Start()

	id := s.Submit("long running goal", []plan.TaskSpec{
		{Task: "block forever", Agent: "coder"},
		{Task: "never reached", Agent: "coder", Needs: []string{"1"}},
	})

	select {
	case <-started:
	case <-time.After(10 * time.Second):
		t.Fatal("mission never started")
	}

	gotID, gotGoal, ok := s.Current()
	if !ok || gotID != id || gotGoal != "long running goal" {
		t.Errorf("Current() = %q/%q/%v", gotID, gotGoal, ok)
	}

	if ok, err := s.Cancel(id); !ok || err != nil {
		t.Fatalf("Cancel(%q) = %v, %v", id, ok, err)
	}

	r := waitResult(t, s)
	if r.State != StatusCancelled {
		t.Errorf("state = %q, want %q", r.State, StatusCancelled)
	}
}

func TestSupervisorCancelWithNothingRunning(t *testing.T) {
	s := New(registryWith(), nil, nil)
	if ok, err := s.Cancel(""); ok || err == nil {
		t.Error("Cancel with empty queue must fail")
	}
	if _, err := s.CancelMostRecent(); err == nil {
		t.Error("CancelMostRecent with empty queue must fail")
	}
}

func TestIsPlanRisky(t *testing.T) {
	testCases := []struct {
		name        string
		tasks       []plan.TaskSpec
		expectRisky bool
	}{
		{
			name: "Task that deletes files",
			tasks: []plan.TaskSpec{
				{Task: "Delete the old build artifacts", Agent: "file"},
			},
			expectRisky: true,
		},
		{
			name: "Task that shells out with sudo",
			tasks: []plan.TaskSpec{
				{Task: "Write a README", Agent: "coder"},
				{Task: "Run sudo apt install nginx", Agent: "coder"},
			},
			expectRisky: true,
		},
		{
			name: "Only safe tasks",
			tasks: []plan.TaskSpec{
				{Task: "Research Go web frameworks", Agent: "web"},
				{Task: "Write a comparison summary", Agent: "casual"},
			},
			expectRisky: false,
		},
		{
			name:        "Empty plan",
			tasks:       nil,
			expectRisky: false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsPlanRisky(tc.tasks); got != tc.expectRisky {
				t.Errorf("expected risky=%v, but got risky=%v", tc.expectRisky, got)
			}
		})
	}
}
