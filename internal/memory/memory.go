package memory

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/glebarez/go-sqlite"

	"autopilot/internal/logger"
)

// Retention caps keep the store from growing without bound.
const (
	maxFacts    = 500
	maxProjects = 100
)

// Store is the process-wide long-term memory: facts, skills, preferences and
// project history. Reads happen at prompt-construction time; writes are
// best-effort after step completion.
type Store struct {
	db *sql.DB
}

type Fact struct {
	Category  string
	Content   string
	Source    string
	Timestamp string
}

type Skill struct {
	Name        string
	Description string
	CodeExample string
	Tags        string
}

type Project struct {
	Name        string
	Type        string
	Path        string
	Description string
	Status      string
}

// Open creates (or opens) the SQLite database and its tables.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open memory db: %w", err)
	}

	queries := []string{
		`CREATE TABLE IF NOT EXISTS facts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			category TEXT,
			content TEXT,
			source TEXT,
			timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS skills (
			name TEXT PRIMARY KEY,
			description TEXT,
			code_example TEXT,
			tags TEXT,
			timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS preferences (
			key TEXT PRIMARY KEY,
			value TEXT,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS projects (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT,
			type TEXT,
			path TEXT,
			description TEXT,
			status TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
	}
	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			db.Close()
			return nil, fmt.Errorf("init memory schema: %w", err)
		}
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) StoreFact(category, content, source string) error {
	_, err := s.db.Exec(`INSERT INTO facts (category, content, source) VALUES (?, ?, ?)`, category, content, source)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`DELETE FROM facts WHERE id NOT IN (SELECT id FROM facts ORDER BY id DESC LIMIT ?)`, maxFacts)
	return err
}

func (s *Store) StoreSkill(name, description, codeExample string, tags []string) error {
	if len(codeExample) > 2000 {
		codeExample = codeExample[:2000]
	}
	_, err := s.db.Exec(
		`INSERT INTO skills (name, description, code_example, tags) VALUES (?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET description=excluded.description, code_example=excluded.code_example, tags=excluded.tags, timestamp=CURRENT_TIMESTAMP`,
		name, description, codeExample, strings.Join(tags, " "))
	return err
}

func (s *Store) StorePreference(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO preferences (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=CURRENT_TIMESTAMP`,
		key, value)
	return err
}

func (s *Store) StoreProject(name, projectType, path, description, status string) error {
	_, err := s.db.Exec(
		`INSERT INTO projects (name, type, path, description, status) VALUES (?, ?, ?, ?, ?)`,
		name, projectType, path, description, status)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`DELETE FROM projects WHERE id NOT IN (SELECT id FROM projects ORDER BY id DESC LIMIT ?)`, maxProjects)
	return err
}

// SearchFacts scores stored facts by word overlap with the query and returns
// the best matches, most relevant first.
func (s *Store) SearchFacts(query string, limit int) ([]Fact, error) {
	rows, err := s.db.Query(`SELECT category, content, source, timestamp FROM facts ORDER BY id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	words := strings.Fields(strings.ToLower(query))
	type scored struct {
		score int
		fact  Fact
	}
	var matches []scored
	for rows.Next() {
		var f Fact
		if err := rows.Scan(&f.Category, &f.Content, &f.Source, &f.Timestamp); err != nil {
			return nil, err
		}
		content := strings.ToLower(f.Content)
		score := 0
		for _, w := range words {
			if strings.Contains(content, w) {
				score++
			}
		}
		if score > 0 {
			matches = append(matches, scored{score: score, fact: f})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Stable selection sort by score; the list is small.
	for i := 0; i < len(matches); i++ {
		best := i
		for j := i + 1; j < len(matches); j++ {
			if matches[j].score > matches[best].score {
				best = j
			}
		}
		matches[i], matches[best] = matches[best], matches[i]
	}

	out := make([]Fact, 0, limit)
	for _, m := range matches {
		if len(out) >= limit {
			break
		}
		out = append(out, m.fact)
	}
	return out, nil
}

// SearchSkills returns skills whose name, description or tags share a word
// with the query.
func (s *Store) SearchSkills(query string, limit int) ([]Skill, error) {
	rows, err := s.db.Query(`SELECT name, description, code_example, tags FROM skills`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	words := strings.Fields(strings.ToLower(query))
	var out []Skill
	for rows.Next() {
		var sk Skill
		if err := rows.Scan(&sk.Name, &sk.Description, &sk.CodeExample, &sk.Tags); err != nil {
			return nil, err
		}
		haystack := strings.ToLower(sk.Name + " " + sk.Description + " " + sk.Tags)
		for _, w := range words {
			if strings.Contains(haystack, w) {
				out = append(out, sk)
				break
			}
		}
		if len(out) >= limit {
			break
		}
	}
	return out, rows.Err()
}

// Preferences returns the current key/value preferences.
func (s *Store) Preferences() (map[string]string, error) {
	rows, err := s.db.Query(`SELECT key, value FROM preferences`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}

// RecentProjects returns the latest project records, oldest first.
func (s *Store) RecentProjects(limit int) ([]Project, error) {
	rows, err := s.db.Query(
		`SELECT name, type, path, description, status FROM
			(SELECT * FROM projects ORDER BY id DESC LIMIT ?)
		 ORDER BY id ASC`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Project
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.Name, &p.Type, &p.Path, &p.Description, &p.Status); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ContextForPrompt assembles a long-term-memory block for one step prompt.
// Read failures are logged and swallowed: memory must never abort a step.
func (s *Store) ContextForPrompt(query string) string {
	var parts []string

	if prefs, err := s.Preferences(); err == nil && len(prefs) > 0 {
		var lines []string
		for k, v := range prefs {
			lines = append(lines, fmt.Sprintf("  - %s: %s", k, v))
		}
		parts = append(parts, "User preferences:\n"+strings.Join(lines, "\n"))
	} else if err != nil {
		logger.Log.Printf("[memory] preferences read failed: %v", err)
	}

	if facts, err := s.SearchFacts(query, 3); err == nil && len(facts) > 0 {
		var lines []string
		for _, f := range facts {
			lines = append(lines, fmt.Sprintf("  - [%s] %s", f.Category, f.Content))
		}
		parts = append(parts, "Relevant facts:\n"+strings.Join(lines, "\n"))
	} else if err != nil {
		logger.Log.Printf("[memory] fact search failed: %v", err)
	}

	if skills, err := s.SearchSkills(query, 2); err == nil && len(skills) > 0 {
		var lines []string
		for _, sk := range skills {
			lines = append(lines, fmt.Sprintf("  - %s: %s", sk.Name, sk.Description))
		}
		parts = append(parts, "Learned skills:\n"+strings.Join(lines, "\n"))
	} else if err != nil {
		logger.Log.Printf("[memory] skill search failed: %v", err)
	}

	if projects, err := s.RecentProjects(3); err == nil && len(projects) > 0 {
		var lines []string
		for _, p := range projects {
			lines = append(lines, fmt.Sprintf("  - %s (%s) at %s", p.Name, p.Type, p.Path))
		}
		parts = append(parts, "Recent projects:\n"+strings.Join(lines, "\n"))
	} else if err != nil {
		logger.Log.Printf("[memory] project read failed: %v", err)
	}

	if len(parts) == 0 {
		return ""
	}
	return "\n\n[LONG-TERM MEMORY]\n" + strings.Join(parts, "\n\n") + "\n[/LONG-TERM MEMORY]\n"
}
