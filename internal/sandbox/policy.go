package sandbox

import (
	"fmt"
	"regexp"
	"strings"
)

// The containment policy lives here as data so the tables stay independently
// testable and extensible without touching the execution control flow.

var pythonDenylist = compilePatterns([]string{
	`\bos\.system\b`,
	`\bos\.popen\b`,
	`\bos\.exec\w*\b`,
	`\bos\.spawn\w*\b`,
	`\bos\.kill\b`,
	`\bos\.remove\b`,
	`\bos\.unlink\b`,
	`\bos\.rmdir\b`,
	`\bsubprocess\.\w+`,
	`\bshutil\.rmtree\b`,
	`\bshutil\.move\b`,
	`\b__import__\b`,
	`\bimportlib\b`,
	`\beval\s*\(`,
	`\bexec\s*\(`,
	`\bcompile\s*\(`,
	`\bopen\s*\(.*/etc/`,
	`\bsocket\.\w+`,
	`\bctypes\b`,
	`\bsignal\.SIG`,
	`\bsys\.exit\b`,
	`\bos\._exit\b`,
	`\bpickle\.loads\b`,
})

var shellDenylist = compilePatterns([]string{
	`\brm\s+-rf\b`,
	`\brm\s+-fr\b`,
	`\brm\s+--no-preserve-root\b`,
	`\bdd\s+`,
	`\bmkfs\b`,
	`\bfdisk\b`,
	`\bparted\b`,
	`\bchmod\s+777\b`,
	`\bchmod\s+-R\b`,
	`\bchown\s+-R\b`,
	`:\(\)\s*\{\s*:\|:\s*&\s*\}\s*;`,
	`\bshutdown\b`,
	`\breboot\b`,
	`\bhalt\b`,
	`\binit\s+0\b`,
	`\bsystemctl\s+(stop|disable|mask)\b`,
	`\bmv\s+/\b`,
	`>\s*/dev/sd`,
	`\bcurl\b.*\|\s*bash`,
	`\bwget\b.*\|\s*bash`,
	`\bnc\s+-l`,
	`\bnetcat\b`,
	`\bnmap\b`,
	`\biptables\b`,
	`\bpasswd\b`,
	`\buseradd\b`,
	`\buserdel\b`,
	`\bvisudo\b`,
	`\bsudo\b`,
	`\bsu\s+`,
	`\bchroot\b`,
})

var javascriptDenylist = compilePatterns([]string{
	`\bchild_process\b`,
	`\bexec\s*\(`,
	`\bexecSync\b`,
	`\bspawn\b`,
	`\bspawnSync\b`,
	`\beval\s*\(`,
	`\bFunction\s*\(`,
	`\bfs\.rmSync\b`,
	`\bfs\.unlinkSync\b`,
	`\bprocess\.exit\b`,
	`\brequire\s*\(\s*["']child_process["']\s*\)`,
})

// Rejected when the executor is configured with network access off (python only).
var networkDenylist = compilePatterns([]string{
	`\bsocket\b`,
	`\burllib\b`,
	`\brequests\b`,
	`\bhttplib\b`,
	`\bhttp\b`,
})

// Snippets mentioning any of these absolute paths are rejected outright.
var restrictedPaths = []string{
	"/etc/passwd",
	"/etc/shadow",
	"/etc/sudoers",
	"/proc/",
	"/sys/",
	"/root/.ssh",
}

var traversalRe = regexp.MustCompile(`\.\./\.\./\.\./`)

// Two or more of these firing marks a snippet as server code that must not
// be executed (the reserved port is never bound).
var serverIndicators = compilePatterns([]string{
	`from\s+flask\s+import`,
	`from\s+fastapi\s+import`,
	`import\s+flask`,
	`import\s+fastapi`,
	`app\s*=\s*Flask\s*\(`,
	`app\s*=\s*FastAPI\s*\(`,
	`app\.run\s*\(`,
	`uvicorn\.run\s*\(`,
	`@app\.route\s*\(`,
	`@app\.(get|post|put|delete|patch)\s*\(`,
})

// Lines matching any of these are commented out before normal execution.
var serverStartPatterns = compilePatterns([]string{
	`\.run\s*\(`,
	`app\.run\s*\(`,
	`uvicorn\.run\s*\(`,
	`serve\s*\(\s*app`,
	`httpd\.serve_forever\s*\(`,
	`socketserver\.`,
	`http\.server`,
	`waitress\.serve\s*\(`,
	`gunicorn`,
	`flask\s+run`,
})

// Import-name to package-name aliases for the one-shot auto install.
var pipAliases = map[string]string{
	"bs4":     "beautifulsoup4",
	"cv2":     "opencv-python",
	"PIL":     "Pillow",
	"sklearn": "scikit-learn",
	"yaml":    "pyyaml",
	"dotenv":  "python-dotenv",
	"gi":      "PyGObject",
}

type languageConfig struct {
	extension string
	command   []string
	denylist  []*regexp.Regexp
}

var languageConfigs = map[string]languageConfig{
	"python":     {extension: ".py", command: []string{"python3"}, denylist: pythonDenylist},
	"javascript": {extension: ".js", command: []string{"node"}, denylist: javascriptDenylist},
	"bash":       {extension: ".sh", command: []string{"bash"}, denylist: shellDenylist},
	"go":         {extension: ".go", command: []string{"go", "run"}, denylist: nil},
}

// Aliases accepted by Run.
var languageAliases = map[string]string{
	"python":     "python",
	"py":         "python",
	"javascript": "javascript",
	"js":         "javascript",
	"nodejs":     "javascript",
	"node":       "javascript",
	"bash":       "bash",
	"shell":      "bash",
	"sh":         "bash",
	"go":         "go",
	"golang":     "go",
}

func compilePatterns(patterns []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, regexp.MustCompile(p))
	}
	return out
}

// CanonicalLanguage resolves user-facing language names to the supported set.
func CanonicalLanguage(language string) (string, bool) {
	l, ok := languageAliases[strings.ToLower(strings.TrimSpace(language))]
	return l, ok
}

// SupportedLanguages lists the canonical language names.
func SupportedLanguages() []string {
	return []string{"python", "javascript", "bash", "go"}
}

func checkPathSafety(code, isolationMode string) (bool, string) {
	for _, restricted := range restrictedPaths {
		if strings.Contains(code, restricted) {
			return false, fmt.Sprintf("access to restricted path blocked: %s", restricted)
		}
	}
	if isolationMode == IsolationWorkspace && traversalRe.MatchString(code) {
		return false, "path traversal beyond workspace detected"
	}
	return true, ""
}

func scanDenylist(code string, denylist []*regexp.Regexp) (bool, string) {
	for _, re := range denylist {
		if m := re.FindString(code); m != "" {
			return false, fmt.Sprintf("blocked dangerous pattern: %s", m)
		}
	}
	return true, ""
}

// isServerCode applies the 2-of-N heuristic for python web-server snippets.
func isServerCode(code string) bool {
	if code == "" {
		return false
	}
	matches := 0
	for _, re := range serverIndicators {
		if re.MatchString(code) {
			matches++
		}
	}
	return matches >= 2
}

// stripServerStart comments out server-start lines and the
// `if __name__ == "__main__":` block, including its indented body. This is a
// second line of defense for python snippets the 2-of-N heuristic misses.
func stripServerStart(code, language string) string {
	if language != "python" {
		return code
	}
	lines := strings.Split(code, "\n")
	cleaned := make([]string, 0, len(lines))
	skipBlock := false
	for _, line := range lines {
		stripped := strings.TrimSpace(line)

		serverLine := false
		for _, re := range serverStartPatterns {
			if re.MatchString(stripped) {
				serverLine = true
				break
			}
		}
		if serverLine {
			cleaned = append(cleaned, "# [sandbox] server start removed: "+stripped)
			continue
		}
		if strings.HasPrefix(stripped, "if __name__") && strings.Contains(stripped, "__main__") {
			skipBlock = true
			cleaned = append(cleaned, "# [sandbox] main block removed: "+stripped)
			continue
		}
		if skipBlock {
			if stripped == "" || strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t") {
				cleaned = append(cleaned, "# [sandbox] "+stripped)
				continue
			}
			skipBlock = false
		}
		cleaned = append(cleaned, line)
	}
	return strings.Join(cleaned, "\n")
}

var missingModuleRe = regexp.MustCompile(`No module named ['"]([^'"]+)['"]`)

// missingModule extracts the import name from a python module-not-found error
// and maps it to the pip package to install.
func missingModule(errorText string) (string, bool) {
	m := missingModuleRe.FindStringSubmatch(errorText)
	if m == nil {
		return "", false
	}
	name := strings.SplitN(m[1], ".", 2)[0]
	if pkg, ok := pipAliases[name]; ok {
		return pkg, true
	}
	return name, true
}

var systemInstallPatterns = []string{
	"apt install", "apt-get install", "apt update", "apt-get update",
	"brew install", "conda install",
}

var allowedInstallPatterns = []string{
	"pip install", "pip3 install",
	"npm install", "npm i ", "yarn add", "yarn install",
	"npx ", "npm init", "npm create",
}

// isSystemInstall reports whether a shell command drives a system package
// manager. These are refused by policy but reported as successful results so
// they do not derail retry accounting.
func isSystemInstall(command string) bool {
	c := strings.ToLower(strings.TrimSpace(command))
	for _, p := range systemInstallPatterns {
		if strings.Contains(c, p) {
			return true
		}
	}
	return false
}

// isAllowedInstall reports whether a shell command drives an application-level
// package manager. Installing third-party code through these is the accepted
// trust boundary of this sandbox, so the denylist is bypassed.
func isAllowedInstall(command string) bool {
	c := strings.ToLower(strings.TrimSpace(command))
	for _, p := range allowedInstallPatterns {
		if strings.Contains(c, p) {
			return true
		}
	}
	return false
}
