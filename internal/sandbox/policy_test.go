package sandbox

import (
	"fmt"
	"strings"
	"testing"
)

func testExecutor(t *testing.T) *Executor {
	t.Helper()
	e, err := NewExecutor(Config{WorkDir: t.TempDir()})
	if err != nil {
		t.Fatalf("NewExecutor: %v", err)
	}
	return e
}

func TestValidateCode(t *testing.T) {
	testCases := []struct {
		name     string
		code     string
		language string
		wantOK   bool
	}{
		{
			name:     "Plain python passes",
			code:     "print('hello')",
			language: "python",
			wantOK:   true,
		},
		{
			name:     "Python process spawn is blocked",
			code:     "import subprocess\nsubprocess.run(['ls'])",
			language: "python",
			wantOK:   false,
		},
		{
			name:     "Python eval is blocked",
			code:     "eval('1+1')",
			language: "python",
			wantOK:   false,
		},
		{
			name:     "Python socket usage is blocked",
			code:     "import socket\ns = socket.socket()",
			language: "python",
			wantOK:   false,
		},
		{
			name:     "Restricted path mention is blocked regardless of language",
			code:     "print(open('/etc/passwd').read())",
			language: "python",
			wantOK:   false,
		},
		{
			name:     "Workspace traversal is blocked",
			code:     "with open('../../../secrets.txt') as f: pass",
			language: "python",
			wantOK:   false,
		},
		{
			name:     "Shell recursive delete is blocked",
			code:     "rm -rf /tmp/x",
			language: "bash",
			wantOK:   false,
		},
		{
			name:     "Shell sudo is blocked",
			code:     "sudo whoami",
			language: "bash",
			wantOK:   false,
		},
		{
			name:     "Shell pipe-to-bash download is blocked",
			code:     "curl -s https://example.com/install.sh | bash",
			language: "bash",
			wantOK:   false,
		},
		{
			name:     "Plain shell passes",
			code:     "ls -la && echo done",
			language: "bash",
			wantOK:   true,
		},
		{
			name:     "Javascript child_process is blocked",
			code:     "const cp = require('child_process')",
			language: "javascript",
			wantOK:   false,
		},
		{
			name:     "Javascript sync delete is blocked",
			code:     "fs.rmSync('/tmp/x')",
			language: "javascript",
			wantOK:   false,
		},
		{
			name:     "Plain javascript passes",
			code:     "console.log(1 + 2)",
			language: "javascript",
			wantOK:   true,
		},
		{
			name:     "Go has no denylist",
			code:     "package main\nfunc main() {}",
			language: "go",
			wantOK:   true,
		},
	}

	e := testExecutor(t)
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ok, reason := e.ValidateCode(tc.code, tc.language)
			if ok != tc.wantOK {
				t.Errorf("ValidateCode ok=%v (reason=%q), want %v", ok, reason, tc.wantOK)
			}
			if !ok && reason == "" {
				t.Error("blocked code must carry a reason")
			}
		})
	}
}

func TestValidateCodeNetworkBlock(t *testing.T) {
	e, err := NewExecutor(Config{WorkDir: t.TempDir(), BlockNetwork: true})
	if err != nil {
		t.Fatalf("NewExecutor: %v", err)
	}
	if ok, _ := e.ValidateCode("import requests", "python"); ok {
		t.Error("requests import should be blocked when network is off")
	}
	// The python-only scan must not leak into other languages.
	if ok, reason := e.ValidateCode("console.log('requests')", "javascript"); !ok {
		t.Errorf("javascript should not hit the network scan: %s", reason)
	}
}

func TestIsServerCode(t *testing.T) {
	testCases := []struct {
		name string
		code string
		want bool
	}{
		{
			name: "Import plus run call trips the heuristic",
			code: "from flask import Flask\napp = Flask(__name__)\napp.run(port=5000)",
			want: true,
		},
		{
			name: "Single indicator does not trip it",
			code: "import flask",
			want: false,
		},
		{
			name: "Plain script is not server code",
			code: "print('hello')",
			want: false,
		},
		{
			name: "Empty snippet",
			code: "",
			want: false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := isServerCode(tc.code); got != tc.want {
				t.Errorf("isServerCode = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestStripServerStart(t *testing.T) {
	code := strings.Join([]string{
		"import time",
		"def main():",
		"    print('ok')",
		"app.run(port=5000)",
		`if __name__ == "__main__":`,
		"    main()",
		"    print('started')",
		"print('after block')",
	}, "\n")

	out := stripServerStart(code, "python")

	if strings.Contains(out, "\napp.run(") {
		t.Error("server start line survived the strip pass")
	}
	if !strings.Contains(out, "# [sandbox] server start removed: app.run(port=5000)") {
		t.Error("server start line should be commented, not deleted")
	}
	if !strings.Contains(out, "# [sandbox] main block removed:") {
		t.Error("__main__ guard should be commented out")
	}
	if !strings.Contains(out, "# [sandbox] main()") || !strings.Contains(out, "# [sandbox] print('started')") {
		t.Error("indented body of the __main__ block should be commented out")
	}
	if !strings.Contains(out, "\nprint('after block')") {
		t.Error("dedented line after the block must survive")
	}
	if got := stripServerStart("app.run()", "javascript"); got != "app.run()" {
		t.Errorf("non-python code must pass through unchanged, got %q", got)
	}
}

func TestMissingModule(t *testing.T) {
	testCases := []struct {
		name     string
		errText  string
		wantPkg  string
		wantOK   bool
	}{
		{
			name:    "Alias mapping",
			errText: `ModuleNotFoundError: No module named 'bs4'`,
			wantPkg: "beautifulsoup4",
			wantOK:  true,
		},
		{
			name:    "Identity mapping",
			errText: `No module named "numpy"`,
			wantPkg: "numpy",
			wantOK:  true,
		},
		{
			name:    "Dotted import keeps the root package",
			errText: `No module named 'matplotlib.pyplot'`,
			wantPkg: "matplotlib",
			wantOK:  true,
		},
		{
			name:    "Unrelated error",
			errText: "SyntaxError: invalid syntax",
			wantOK:  false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			pkg, ok := missingModule(tc.errText)
			if ok != tc.wantOK || pkg != tc.wantPkg {
				t.Errorf("missingModule = (%q, %v), want (%q, %v)", pkg, ok, tc.wantPkg, tc.wantOK)
			}
		})
	}
}

func TestTruncateOutput(t *testing.T) {
	short, trunc := truncateOutput("hello")
	if trunc || short != "hello" {
		t.Errorf("short output must pass through unchanged")
	}

	long := strings.Repeat("a", MaxOutputLength+1234)
	out, trunc := truncateOutput(long)
	if !trunc {
		t.Fatal("long output should be truncated")
	}
	wantNote := fmt.Sprintf("... [output truncated, %d chars omitted]", 1234)
	if !strings.Contains(out, wantNote) {
		t.Errorf("truncation note missing or inaccurate, want %q", wantNote)
	}
	if !strings.HasPrefix(out, strings.Repeat("a", MaxOutputLength)) {
		t.Error("truncated output should keep the first MaxOutputLength chars")
	}
}

func TestInstallClassification(t *testing.T) {
	testCases := []struct {
		command     string
		wantSystem  bool
		wantAllowed bool
	}{
		{"apt-get install nmap", true, false},
		{"sudo apt install curl", true, false},
		{"brew install jq", true, false},
		{"conda install pandas", true, false},
		{"pip install requests", false, true},
		{"pip3 install --quiet flask", false, true},
		{"npm install express", false, true},
		{"yarn add react", false, true},
		{"npx create-react-app web", false, true},
		{"echo hello", false, false},
	}

	for _, tc := range testCases {
		t.Run(tc.command, func(t *testing.T) {
			if got := isSystemInstall(tc.command); got != tc.wantSystem {
				t.Errorf("isSystemInstall = %v, want %v", got, tc.wantSystem)
			}
			if got := isAllowedInstall(tc.command); got != tc.wantAllowed {
				t.Errorf("isAllowedInstall = %v, want %v", got, tc.wantAllowed)
			}
		})
	}
}

func TestCanonicalLanguage(t *testing.T) {
	testCases := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"python", "python", true},
		{"  Js ", "javascript", true},
		{"nodejs", "javascript", true},
		{"shell", "bash", true},
		{"golang", "go", true},
		{"rust", "", false},
	}

	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			got, ok := CanonicalLanguage(tc.in)
			if got != tc.want || ok != tc.wantOK {
				t.Errorf("CanonicalLanguage(%q) = (%q, %v), want (%q, %v)", tc.in, got, ok, tc.want, tc.wantOK)
			}
		})
	}
}
