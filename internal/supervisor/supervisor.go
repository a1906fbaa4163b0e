package supervisor

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"autopilot/internal/agents"
	"autopilot/internal/logger"
	"autopilot/internal/metrics"
	"autopilot/internal/observer"
	"autopilot/internal/orchestrator"
	"autopilot/internal/plan"
)

const queueCapacity = 100

// Supervisor owns the mission queue. Missions run strictly one at a time on
// a single goroutine; submission and cancellation are safe from any
// goroutine.
type Supervisor struct {
	registry *agents.Registry
	memory   orchestrator.MemoryStore
	obs      observer.Observer

	queue   chan *Mission
	results chan MissionResult

	mu        sync.Mutex
	current   *Mission
	curCancel context.CancelFunc
}

// New builds a supervisor. memory and obs may be nil.
func New(registry *agents.Registry, memory orchestrator.MemoryStore, obs observer.Observer) *Supervisor {
	return &Supervisor{
		registry: registry,
		memory:   memory,
		obs:      obs,
		queue:    make(chan *Mission, queueCapacity),
		results:  make(chan MissionResult, queueCapacity),
	}
}

// Start launches the worker goroutine. Call once.
func (s *Supervisor) Start() {
	go func() {
		for mission := range s.queue {
			logger.Log.Printf("[supervisor] starting mission '%s' (ID: %s)", mission.Goal, mission.ID)
			s.runMission(mission)
		}
	}()
}

// Results is the channel mission outcomes are delivered on.
func (s *Supervisor) Results() <-chan MissionResult {
	return s.results
}

// Submit queues a confirmed task list and returns the mission ID.
func (s *Supervisor) Submit(goal string, tasks []plan.TaskSpec) string {
	id := uuid.New().String()[:8]
	s.queue <- &Mission{
		ID:        id,
		Goal:      goal,
		State:     StatusPending,
		Tasks:     tasks,
		Submitted: time.Now(),
	}
	return id
}

// Cancel stops the running mission if its ID matches. An empty ID cancels
// whatever is running.
func (s *Supervisor) Cancel(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil || s.current.State != StatusRunning {
		return false, fmt.Errorf("no mission is currently running")
	}
	if id != "" && !strings.EqualFold(s.current.ID, id) {
		return false, fmt.Errorf("mission %s is not running (current running: %s)", id, s.current.ID)
	}
	if s.curCancel == nil {
		return false, fmt.Errorf("internal error: cancel function not set")
	}
	s.curCancel()
	return true, nil
}

// CancelMostRecent stops the running mission and returns its ID.
func (s *Supervisor) CancelMostRecent() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil || s.current.State != StatusRunning {
		return "", fmt.Errorf("no mission is currently running")
	}
	if s.curCancel == nil {
		return "", fmt.Errorf("internal error: cancel function not set")
	}
	id := s.current.ID
	s.curCancel()
	return id, nil
}

// Current returns the running mission's ID and goal, if any.
func (s *Supervisor) Current() (id, goal string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil || s.current.State != StatusRunning {
		return "", "", false
	}
	return s.current.ID, s.current.Goal, true
}

func (s *Supervisor) runMission(m *Mission) {
	missionCtx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	m.State = StatusRunning
	s.current = m
	s.curCancel = cancel
	s.mu.Unlock()
	defer func() {
		cancel()
		s.mu.Lock()
		if s.current != nil && s.current.ID == m.ID {
			s.current = nil
			s.curCancel = nil
		}
		s.mu.Unlock()
	}()

	collector := metrics.NewCollector(m.ID, m.Goal)
	orch := orchestrator.New(s.registry, observer.Fanout{collector, s.obs}, s.memory)
	report := orch.RunLoop(missionCtx, m.Goal, m.Tasks)

	rm := collector.Snapshot()
	switch {
	case missionCtx.Err() != nil:
		m.State = StatusCancelled
		logger.Log.Printf("[supervisor] mission '%s' CANCELLED (ID: %s)", m.Goal, m.ID)
	case rm.Succeeded:
		m.State = StatusSucceeded
		logger.Log.Printf("[supervisor] mission '%s' SUCCEEDED (ID: %s)", m.Goal, m.ID)
	default:
		m.State = StatusPartial
		logger.Log.Printf("[supervisor] mission '%s' finished PARTIAL %d/%d (ID: %s)",
			m.Goal, rm.Completed, rm.TotalSteps, m.ID)
	}

	s.results <- MissionResult{
		MissionID: m.ID,
		Goal:      m.Goal,
		State:     m.State,
		Report:    report,
		Metrics:   rm,
	}
}
