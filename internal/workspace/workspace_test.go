package workspace

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testManager(t *testing.T) *Manager {
	t.Helper()
	m, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return m
}

func TestSaveAndReadFile(t *testing.T) {
	m := testManager(t)

	full, err := m.SaveFile("app/main.py", "print('hi')")
	if err != nil {
		t.Fatalf("SaveFile: %v", err)
	}
	if !strings.HasPrefix(full, m.Root()) {
		t.Errorf("saved outside root: %s", full)
	}

	got, err := m.ReadFile("app/main.py")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if got != "print('hi')" {
		t.Errorf("content = %q", got)
	}
}

func TestResolveRejectsEscapes(t *testing.T) {
	m := testManager(t)

	for _, rel := range []string{"../outside.txt", "a/../../../etc/passwd", ""} {
		if _, err := m.Resolve(rel); err == nil {
			t.Errorf("Resolve(%q) should fail", rel)
		}
	}
	if _, err := m.Resolve("./inside.txt"); err != nil {
		t.Errorf("Resolve inside root: %v", err)
	}
}

func TestListFilesSkipsDependencyDirs(t *testing.T) {
	m := testManager(t)
	m.SaveFile("index.html", "<html></html>")
	m.SaveFile("node_modules/pkg/index.js", "x")
	m.SaveFile(".git/config", "x")
	m.SaveFile("src/app.js", "console.log(1)")

	files, err := m.ListFiles()
	if err != nil {
		t.Fatalf("ListFiles: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("got %d files, want 2: %+v", len(files), files)
	}
	for _, f := range files {
		if strings.Contains(f.Path, "node_modules") || strings.Contains(f.Path, ".git") {
			t.Errorf("skip dir leaked: %s", f.Path)
		}
	}
}

func TestDetectProjectType(t *testing.T) {
	testCases := []struct {
		name  string
		setup func(m *Manager)
		want  string
	}{
		{
			name:  "Empty workspace",
			setup: func(m *Manager) {},
			want:  "general",
		},
		{
			name: "React package.json",
			setup: func(m *Manager) {
				m.SaveFile("package.json", `{"dependencies":{"react":"^18.0.0"}}`)
			},
			want: "react",
		},
		{
			name: "Plain node project",
			setup: func(m *Manager) {
				m.SaveFile("package.json", `{"dependencies":{"lodash":"^4.0.0"}}`)
			},
			want: "nodejs",
		},
		{
			name: "Python requirements",
			setup: func(m *Manager) {
				m.SaveFile("requirements.txt", "flask\n")
			},
			want: "python",
		},
		{
			name: "Static site",
			setup: func(m *Manager) {
				m.SaveFile("index.html", "<html></html>")
			},
			want: "static_html",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m := testManager(t)
			tc.setup(m)
			if got := m.DetectProjectType(); got != tc.want {
				t.Errorf("DetectProjectType = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestVerificationFeedback(t *testing.T) {
	m := testManager(t)
	if got := m.VerificationFeedback(); got != "Workspace is empty." {
		t.Errorf("empty feedback = %q", got)
	}

	m.SaveFile("index.html", strings.Repeat("x", 2048))
	if err := os.WriteFile(filepath.Join(m.Root(), "empty.css"), nil, 0644); err != nil {
		t.Fatal(err)
	}

	got := m.VerificationFeedback()
	if !strings.Contains(got, "2 files") {
		t.Errorf("file count missing: %q", got)
	}
	if !strings.Contains(got, "index.html (2KB)") {
		t.Errorf("size formatting wrong: %q", got)
	}
	if !strings.Contains(got, "Issue: empty file empty.css") {
		t.Errorf("empty file not flagged: %q", got)
	}
}
