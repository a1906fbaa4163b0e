package workspace

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

var skipDirs = map[string]bool{
	"__pycache__":  true,
	"node_modules": true,
	".git":         true,
	".cache":       true,
	".venv":        true,
	"venv":         true,
}

type FileInfo struct {
	Path string
	Size int64
	Ext  string
}

// Manager confines all file operations to one root directory. Paths are
// always given relative to the root; anything resolving outside it is
// rejected.
type Manager struct {
	root string
}

func New(root string) (*Manager, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace root: %w", err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("create workspace root: %w", err)
	}
	return &Manager{root: abs}, nil
}

func (m *Manager) Root() string { return m.root }

// Resolve maps a workspace-relative path to an absolute one, refusing
// escapes from the root.
func (m *Manager) Resolve(rel string) (string, error) {
	rel = strings.TrimPrefix(strings.TrimSpace(rel), "./")
	if rel == "" {
		return "", fmt.Errorf("empty path")
	}
	full := filepath.Join(m.root, rel)
	if full != m.root && !strings.HasPrefix(full, m.root+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes the workspace", rel)
	}
	return full, nil
}

// SaveFile writes content to a workspace-relative path, creating parent
// directories as needed, and returns the absolute path.
func (m *Manager) SaveFile(rel, content string) (string, error) {
	full, err := m.Resolve(rel)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return "", fmt.Errorf("could not create parent folder: %w", err)
	}
	if err := os.WriteFile(full, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("could not write file: %w", err)
	}
	return full, nil
}

func (m *Manager) ReadFile(rel string) (string, error) {
	full, err := m.Resolve(rel)
	if err != nil {
		return "", err
	}
	b, err := os.ReadFile(full)
	if err != nil {
		return "", fmt.Errorf("could not read file: %w", err)
	}
	return string(b), nil
}

func (m *Manager) CreateDir(rel string) error {
	full, err := m.Resolve(rel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(full, 0755); err != nil {
		return fmt.Errorf("could not create folder: %w", err)
	}
	return nil
}

func (m *Manager) Delete(rel string) error {
	full, err := m.Resolve(rel)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(full); err != nil {
		return fmt.Errorf("could not delete: %w", err)
	}
	return nil
}

// ListFiles walks the workspace, skipping dependency and VCS directories.
func (m *Manager) ListFiles() ([]FileInfo, error) {
	var out []FileInfo
	err := filepath.WalkDir(m.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(m.root, path)
		if err != nil {
			return err
		}
		out = append(out, FileInfo{Path: rel, Size: info.Size(), Ext: filepath.Ext(rel)})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan workspace: %w", err)
	}
	return out, nil
}

// DetectProjectType inspects marker files the way project templates are
// usually laid out.
func (m *Manager) DetectProjectType() string {
	if raw, err := os.ReadFile(filepath.Join(m.root, "package.json")); err == nil {
		var pkg struct {
			Dependencies    map[string]string `json:"dependencies"`
			DevDependencies map[string]string `json:"devDependencies"`
		}
		deps := map[string]string{}
		if json.Unmarshal(raw, &pkg) == nil {
			for k, v := range pkg.Dependencies {
				deps[k] = v
			}
			for k, v := range pkg.DevDependencies {
				deps[k] = v
			}
		}
		for _, fw := range []string{"next", "react", "vue", "express"} {
			if _, ok := deps[fw]; ok {
				if fw == "next" {
					return "nextjs"
				}
				return fw
			}
		}
		return "nodejs"
	}
	if _, err := os.Stat(filepath.Join(m.root, "requirements.txt")); err == nil {
		return "python"
	}
	if _, err := os.Stat(filepath.Join(m.root, "go.mod")); err == nil {
		return "golang"
	}
	if files, err := m.ListFiles(); err == nil {
		for _, f := range files {
			if f.Ext == ".html" {
				return "static_html"
			}
		}
	}
	return "general"
}

// VerificationFeedback summarizes the workspace contents after a run:
// file listing plus empty-file issues.
func (m *Manager) VerificationFeedback() string {
	files, err := m.ListFiles()
	if err != nil {
		return fmt.Sprintf("Workspace scan failed: %v", err)
	}
	if len(files) == 0 {
		return "Workspace is empty."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Workspace contains %d files:\n", len(files))
	for i, f := range files {
		if i >= 20 {
			fmt.Fprintf(&b, "  ... and %d more\n", len(files)-20)
			break
		}
		size := fmt.Sprintf("%dB", f.Size)
		if f.Size >= 1024 {
			size = fmt.Sprintf("%dKB", f.Size/1024)
		}
		fmt.Fprintf(&b, "  %s (%s)\n", f.Path, size)
	}
	for _, f := range files {
		if f.Size == 0 {
			fmt.Fprintf(&b, "Issue: empty file %s\n", f.Path)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
