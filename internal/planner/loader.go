package planner

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"autopilot/internal/plan"
)

// NamedTasks is one task list loaded from disk.
type NamedTasks struct {
	Name  string
	Goal  string
	Tasks []plan.TaskSpec
}

/*
LoadTaskFiles loads one or many task lists from a JSON file and always
returns a slice. Supported shapes:

 1. Multi-plan:
    {"plans": [{"name": "alpha", "goal": "...", "tasks": [ ... ]}, ...]}

 2. Single plan object:
    {"name": "...", "goal": "...", "tasks": [ ... ]}
    (also accepted with "plan" instead of "tasks")

 3. Bare array of tasks:
    [{"agent": "coder", "task": "..."}, ...]

Unnamed plans are auto-named "manual:<base>#<index>".
*/
func LoadTaskFiles(path string) ([]NamedTasks, error) {
	clean := filepath.Clean(path)
	data, err := os.ReadFile(clean)
	if err != nil {
		return nil, fmt.Errorf("read task file %s: %w", clean, err)
	}
	base := filepath.Base(clean)

	var multi struct {
		Plans []json.RawMessage `json:"plans"`
	}
	if err := json.Unmarshal(data, &multi); err == nil && len(multi.Plans) > 0 {
		var out []NamedTasks
		for i, raw := range multi.Plans {
			nt, ok := parseOneTaskList(raw)
			if !ok {
				return nil, fmt.Errorf("could not parse plan #%d in %s", i+1, base)
			}
			if strings.TrimSpace(nt.Name) == "" {
				nt.Name = fmt.Sprintf("manual:%s#%d", base, i+1)
			}
			out = append(out, nt)
		}
		return out, nil
	}

	if nt, ok := parseOneTaskList(data); ok {
		if strings.TrimSpace(nt.Name) == "" {
			nt.Name = "manual:" + base
		}
		return []NamedTasks{nt}, nil
	}

	var bare []taskWire
	if err := json.Unmarshal(sanitizedBytes(data), &bare); err == nil && len(bare) > 0 {
		return []NamedTasks{{Name: "manual:" + base, Tasks: toSpecs(bare)}}, nil
	}

	return nil, fmt.Errorf("unrecognized task-file format in %s", clean)
}

func parseOneTaskList(raw []byte) (NamedTasks, bool) {
	var wrap struct {
		Name  string     `json:"name"`
		Goal  string     `json:"goal"`
		Tasks []taskWire `json:"tasks"`
		Plan  []taskWire `json:"plan"`
	}
	if err := json.Unmarshal(sanitizedBytes(raw), &wrap); err != nil {
		return NamedTasks{}, false
	}
	wires := wrap.Tasks
	if len(wires) == 0 {
		wires = wrap.Plan
	}
	if len(wires) == 0 {
		return NamedTasks{}, false
	}
	return NamedTasks{Name: strings.TrimSpace(wrap.Name), Goal: wrap.Goal, Tasks: toSpecs(wires)}, true
}

func sanitizedBytes(raw []byte) []byte {
	return []byte(sanitizeJSON(string(raw)))
}

// SelectByNames filters loaded task lists by name, case-insensitively,
// returning the names that matched nothing.
func SelectByNames(lists []NamedTasks, names []string) ([]NamedTasks, []string) {
	if len(names) == 0 {
		return lists, nil
	}
	var selected []NamedTasks
	var missing []string
	for _, want := range names {
		w := strings.TrimSpace(want)
		if w == "" {
			continue
		}
		found := false
		for i := range lists {
			if strings.EqualFold(lists[i].Name, w) {
				selected = append(selected, lists[i])
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, want)
		}
	}
	return selected, missing
}
