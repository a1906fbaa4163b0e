package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"autopilot/internal/agents"
	"autopilot/internal/config"
	"autopilot/internal/display"
	"autopilot/internal/listener"
	"autopilot/internal/llm_client"
	"autopilot/internal/logger"
	"autopilot/internal/memory"
	"autopilot/internal/planner"
	"autopilot/internal/sandbox"
	"autopilot/internal/supervisor"
	"autopilot/internal/web"
	"autopilot/internal/workspace"
)

const (
	maxCliHistory = 3
	planTimeout   = 60 * time.Second
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "autopilot",
	Short: "An autonomous goal-execution agent",
	Long: `Autopilot turns a natural-language goal into a step plan and executes it
in the background: code runs in a confined sandbox, research goes through
web search, and failed steps are retried or re-planned automatically.`,
	RunE: runInteractive,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to autopilot.yaml")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runtime bundles everything one interactive session needs.
type runtime struct {
	cfg     config.Config
	llm     *llm_client.Client
	sb      *sandbox.Sandbox
	mem     *memory.Store
	planner *planner.Planner
	sup     *supervisor.Supervisor
}

func buildRuntime(cfg config.Config) (*runtime, error) {
	llm, err := llm_client.New(cfg.LLMConfig())
	if err != nil {
		return nil, fmt.Errorf("llm client: %w", err)
	}
	sb, err := sandbox.New(cfg.SandboxConfig())
	if err != nil {
		return nil, fmt.Errorf("sandbox: %w", err)
	}
	ws, err := workspace.New(cfg.Sandbox.WorkDir)
	if err != nil {
		return nil, fmt.Errorf("workspace: %w", err)
	}
	mem, err := memory.Open(cfg.MemoryDB)
	if err != nil {
		return nil, fmt.Errorf("memory store: %w", err)
	}

	registry := agents.NewRegistry()
	registry.Register(agents.NewCoder(llm, sb, ws))
	registry.Register(agents.NewFile(llm, sb, ws))
	registry.Register(agents.NewWeb(llm, web.NewSearcher(cfg.Web.SearxURL), web.NewViewer()))
	registry.Register(agents.NewCasual(llm))

	return &runtime{
		cfg:     cfg,
		llm:     llm,
		sb:      sb,
		mem:     mem,
		planner: planner.New(llm),
		sup:     supervisor.New(registry, mem, display.NewPrinter(asyncWriter{})),
	}, nil
}

// asyncWriter routes observer output through the listener so progress lines
// land above the prompt instead of through it.
type asyncWriter struct{}

func (asyncWriter) Write(p []byte) (int, error) {
	listener.AsyncPrintln(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

func runInteractive(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if err := logger.Init(cfg.LogFile); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	rt, err := buildRuntime(cfg)
	if err != nil {
		return err
	}
	defer rt.mem.Close()

	if err := listener.Init(); err != nil {
		return fmt.Errorf("init terminal input: %w", err)
	}
	defer listener.Close()

	rt.sup.Start()

	var history []planner.Turn
	var historyMu sync.Mutex
	go watchResults(rt.sup, &history, &historyMu)

	// Graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		fmt.Println("\nGoodbye!")
		os.Exit(0)
	}()

	listener.AsyncPrintln(fmt.Sprintf("Autopilot ready (backend: %s). Type a goal, 'run <file.json>', 'cancel', 'stats', or 'exit'.", rt.llm.Backend()))

	for {
		inputText := listener.GetInput()
		trimmed := strings.TrimSpace(inputText)
		if trimmed == "" {
			continue
		}
		if strings.EqualFold(trimmed, "exit") || strings.EqualFold(trimmed, "quit") {
			fmt.Println("Goodbye!")
			return nil
		}

		fields := strings.Fields(trimmed)
		switch strings.ToLower(fields[0]) {
		case "cancel":
			handleCancel(rt.sup, fields[1:])
		case "stats":
			printStats(rt.sb, rt.mem)
		case "run":
			handleRunFile(rt.sup, fields[1:])
		default:
			handleGoal(rt, trimmed, &history, &historyMu)
		}
	}
}

// watchResults delivers mission outcomes above the prompt and folds them
// into the planning history.
func watchResults(sup *supervisor.Supervisor, history *[]planner.Turn, mu *sync.Mutex) {
	for result := range sup.Results() {
		mu.Lock()
		*history = append(*history, planner.Turn{
			Goal:   result.Goal,
			Report: fmt.Sprintf("%s: %s", result.State, firstLine(result.Report)),
		})
		if len(*history) > maxCliHistory {
			*history = (*history)[1:]
		}
		mu.Unlock()

		listener.AsyncPrintf("[Mission %s %s]", result.MissionID, result.State)
		listener.AsyncPrintln(result.Report)
		if result.Metrics != nil {
			listener.AsyncPrintln(display.FormatRunMetrics(result.Metrics))
		}
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func handleCancel(sup *supervisor.Supervisor, args []string) {
	if len(args) > 0 {
		if _, err := sup.Cancel(args[0]); err != nil {
			listener.AsyncPrintf("[Cancel] %v", err)
			return
		}
		listener.AsyncPrintf("[Cancel] mission %s stop requested", args[0])
		return
	}
	id, err := sup.CancelMostRecent()
	if err != nil {
		listener.AsyncPrintf("[Cancel] %v", err)
		return
	}
	listener.AsyncPrintf("[Cancel] mission %s stop requested", id)
}

// handleRunFile loads pre-written task lists: run <file.json> [name ...]
func handleRunFile(sup *supervisor.Supervisor, args []string) {
	if len(args) == 0 {
		listener.AsyncPrintln("[Manual] usage: run <file.json> [mission name ...]")
		return
	}
	path := args[0]
	lists, err := planner.LoadTaskFiles(path)
	if err != nil {
		listener.AsyncPrintf("[Manual] %v", err)
		return
	}

	lists, missing := planner.SelectByNames(lists, args[1:])
	if len(missing) > 0 {
		listener.AsyncPrintf("[Manual] Missing missions: %v", missing)
	}
	if len(lists) == 0 {
		listener.AsyncPrintln("[Manual] No missions to run.")
		return
	}

	listener.AsyncPrintln(display.FormatTaskCatalog(path, lists))
	needsConfirm := false
	for _, l := range lists {
		if supervisor.IsPlanRisky(l.Tasks) {
			needsConfirm = true
			break
		}
	}
	if needsConfirm && !listener.AskYesNo(fmt.Sprintf("About to run %d mission(s) with risky tasks. Proceed?", len(lists))) {
		listener.AsyncPrintln("[Manual] Cancelled.")
		return
	}

	for _, l := range lists {
		goal := l.Goal
		if strings.TrimSpace(goal) == "" {
			goal = l.Name
		}
		if err := planner.Validate(l.Tasks); err != nil {
			listener.AsyncPrintf("[Manual] Invalid mission %q: %v", l.Name, err)
			continue
		}
		id := sup.Submit(goal, l.Tasks)
		listener.AsyncPrintf("[Manual] Submitted mission %s (%s)", id, l.Name)
	}
}

func handleGoal(rt *runtime, goal string, history *[]planner.Turn, mu *sync.Mutex) {
	mu.Lock()
	turns := make([]planner.Turn, len(*history))
	copy(turns, *history)
	mu.Unlock()

	listener.AsyncPrintln("Generating plan ...")
	planCtx, cancel := context.WithTimeout(context.Background(), planTimeout)
	defer cancel()
	tasks, err := rt.planner.GenerateTasks(planCtx, turns, goal)
	if err != nil {
		listener.AsyncPrintf("[Plan generation FAILED] %v", err)
		return
	}

	logger.Log.Printf("plan for goal %q (FULL):\n%s", goal, display.FormatTasksFull(goal, tasks))
	listener.AsyncPrintln(display.FormatTasks(goal, tasks))

	if supervisor.IsPlanRisky(tasks) {
		if !listener.AskYesNo("This plan contains risky tasks. Execute it?") {
			listener.AsyncPrintln("[Plan REJECTED]")
			return
		}
	}

	id := rt.sup.Submit(goal, tasks)
	listener.AsyncPrintf("[Plan ACCEPTED] Mission %s started", id)
}
