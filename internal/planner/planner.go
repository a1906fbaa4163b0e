package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"autopilot/internal/logger"
	"autopilot/internal/plan"
)

// JSONGenerator is the strict-JSON LLM surface the planner consumes.
// *llm_client.Client satisfies it.
type JSONGenerator interface {
	GenerateJSON(ctx context.Context, prompt string, schema any) (string, error)
}

// Turn is one prior goal/report pair kept as planning context.
type Turn struct {
	Goal   string
	Report string
}

type Planner struct {
	llm JSONGenerator
}

func New(llm JSONGenerator) *Planner {
	return &Planner{llm: llm}
}

// taskSchema constrains the model output to a task-plan object.
var taskSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"plan": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"id":    map[string]any{"type": "integer"},
					"agent": map[string]any{"type": "string"},
					"task":  map[string]any{"type": "string"},
					"need":  map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				},
				"required": []string{"agent", "task"},
			},
		},
	},
	"required": []string{"plan"},
}

func buildPlanPrompt(history []Turn, goal string) string {
	var sb strings.Builder
	sb.WriteString("You are an expert AI task planner. Convert the user's goal into a STRICT JSON execution plan.\n")
	sb.WriteString("Respond ONLY with JSON. No extra text.\n\n")

	if len(history) > 0 {
		sb.WriteString("CONVERSATION HISTORY (context):\n")
		for _, turn := range history {
			sb.WriteString(fmt.Sprintf("User Goal: %q\n", turn.Goal))
			sb.WriteString(fmt.Sprintf("Previous Outcome: %s\n", turn.Report))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("OUTPUT JSON SCHEMA:\n")
	sb.WriteString(`{"plan": [{"id": <int>, "agent": "<coder|file|web|casual>", "task": "<instruction>", "need": ["<id of prerequisite step>"]}]}` + "\n\n")

	sb.WriteString("RULES:\n")
	sb.WriteString("1) Agents: coder (write and run code, build files), file (organize the workspace), web (research online), casual (plain reasoning or chat).\n")
	sb.WriteString("2) ids start at 1 and increase; \"need\" lists ids of steps whose results this step requires.\n")
	sb.WriteString("3) Keep the plan minimal: one step per distinct piece of work, usually 1-5 steps.\n")
	sb.WriteString("4) Each task must be a complete, self-contained instruction.\n")
	sb.WriteString("5) A step without prerequisites uses an empty \"need\" array.\n\n")

	sb.WriteString("Generate the plan now for this goal:\n")
	sb.WriteString(fmt.Sprintf("User Goal: %q\n", goal))
	sb.WriteString("Assistant: ")
	return sb.String()
}

// GenerateTasks asks the model for a task plan and parses it leniently.
func (p *Planner) GenerateTasks(ctx context.Context, history []Turn, goal string) ([]plan.TaskSpec, error) {
	raw, err := p.llm.GenerateJSON(ctx, buildPlanPrompt(history, goal), taskSchema)
	if err != nil {
		return nil, fmt.Errorf("failed to generate plan from LLM: %w", err)
	}

	tasks, err := ParseTasks(raw)
	if err != nil {
		return nil, fmt.Errorf("error parsing generated plan: %w\nRaw response: %s", err, raw)
	}
	if err := Validate(tasks); err != nil {
		return nil, fmt.Errorf("generated plan invalid: %w", err)
	}
	logger.Log.Printf("[planner] generated %d tasks for: %s", len(tasks), goal)
	return tasks, nil
}

var (
	fencedJSONRe   = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")
	trailingComma  = regexp.MustCompile(`,\s*([}\]])`)
	lineCommentRe  = regexp.MustCompile(`//[^\n]*`)
	blockCommentRe = regexp.MustCompile(`(?s)/\*.*?\*/`)
)

// extractJSON digs the JSON document out of a model reply that may wrap it
// in fences or prose.
func extractJSON(text string) string {
	text = strings.TrimSpace(text)
	if m := fencedJSONRe.FindStringSubmatch(text); m != nil {
		text = strings.TrimSpace(m[1])
	}
	if !strings.HasPrefix(text, "{") && !strings.HasPrefix(text, "[") {
		start := strings.IndexAny(text, "{[")
		if start >= 0 {
			end := strings.LastIndexAny(text, "}]")
			if end > start {
				text = text[start : end+1]
			}
		}
	}
	return text
}

// sanitizeJSON fixes the common defects of model-produced JSON: trailing
// commas and comments.
func sanitizeJSON(text string) string {
	text = lineCommentRe.ReplaceAllString(text, "")
	text = blockCommentRe.ReplaceAllString(text, "")
	return trailingComma.ReplaceAllString(text, "$1")
}

// needList accepts "need" as a string, a number, or an array of either.
type needList []string

func (n *needList) UnmarshalJSON(b []byte) error {
	var one any
	if err := json.Unmarshal(b, &one); err != nil {
		return err
	}
	*n = appendNeed(nil, one)
	return nil
}

func appendNeed(out []string, v any) []string {
	switch t := v.(type) {
	case string:
		if s := strings.TrimSpace(t); s != "" {
			out = append(out, s)
		}
	case float64:
		out = append(out, strconv.Itoa(int(t)))
	case []any:
		for _, e := range t {
			out = appendNeed(out, e)
		}
	}
	return out
}

type taskWire struct {
	Name  string   `json:"name"`
	Agent string   `json:"agent"`
	Task  string   `json:"task"`
	Need  needList `json:"need"`
}

var agentAliases = map[string]string{
	"coder": "coder", "code": "coder", "coding": "coder", "programmer": "coder", "developer": "coder",
	"file": "file", "files": "file", "filesystem": "file",
	"web": "web", "browser": "web", "browsing": "web", "search": "web", "internet": "web",
	"casual": "casual", "chat": "casual", "talk": "casual", "conversation": "casual",
}

func normalizeAgent(name string) string {
	key := strings.ToLower(strings.TrimSpace(name))
	if canonical, ok := agentAliases[key]; ok {
		return canonical
	}
	return key
}

// ParseTasks accepts the task-plan shapes models actually emit:
// {"plan":[...]}, {"tasks":[...]}, or a bare array of task objects.
func ParseTasks(raw string) ([]plan.TaskSpec, error) {
	text := sanitizeJSON(extractJSON(raw))

	var wrapped struct {
		Plan  []taskWire `json:"plan"`
		Tasks []taskWire `json:"tasks"`
	}
	if err := json.Unmarshal([]byte(text), &wrapped); err == nil {
		if len(wrapped.Plan) > 0 {
			return toSpecs(wrapped.Plan), nil
		}
		if len(wrapped.Tasks) > 0 {
			return toSpecs(wrapped.Tasks), nil
		}
	}

	var bare []taskWire
	if err := json.Unmarshal([]byte(text), &bare); err == nil && len(bare) > 0 {
		return toSpecs(bare), nil
	}

	return nil, fmt.Errorf("no task list found")
}

func toSpecs(wires []taskWire) []plan.TaskSpec {
	out := make([]plan.TaskSpec, 0, len(wires))
	for _, w := range wires {
		out = append(out, plan.TaskSpec{
			Name:  w.Name,
			Task:  strings.TrimSpace(w.Task),
			Agent: normalizeAgent(w.Agent),
			Needs: w.Need,
		})
	}
	return out
}

// Validate rejects plans no orchestrator run could make progress on.
func Validate(tasks []plan.TaskSpec) error {
	if len(tasks) == 0 {
		return fmt.Errorf("plan contains no tasks")
	}
	for i, t := range tasks {
		if strings.TrimSpace(t.Task) == "" && strings.TrimSpace(t.Name) == "" {
			return fmt.Errorf("task #%d has no description", i+1)
		}
	}
	return nil
}
