// Package listener owns the terminal line editor. Async mission output is
// printed above the prompt so in-flight typing survives background results.
package listener

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/chzyer/readline"
)

const defaultPrompt = "autopilot> "

var rl *readline.Instance
var mu sync.Mutex
var holdAsync bool
var heldLines []string

func historyPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".autopilot_history")
}

func Init() error {
	var err error
	rl, err = readline.NewEx(&readline.Config{
		Prompt:          defaultPrompt,
		HistoryFile:     historyPath(),
		InterruptPrompt: "",
		EOFPrompt:       "",
	})
	return err
}

func Close() {
	if rl != nil {
		_ = rl.Close()
	}
}

func SetPrompt(p string) {
	mu.Lock()
	defer mu.Unlock()
	if rl != nil {
		rl.SetPrompt(p)
	}
}

// BeginInteractive holds async output back until EndInteractive, so a
// confirmation dialog is not interleaved with mission progress.
func BeginInteractive() {
	mu.Lock()
	holdAsync = true
	mu.Unlock()
}

func EndInteractive() {
	mu.Lock()
	defer mu.Unlock()
	holdAsync = false
	for _, s := range heldLines {
		printAboveUnlocked(s)
	}
	heldLines = nil
}

func printAboveUnlocked(s string) {
	if rl == nil {
		fmt.Println(s)
		return
	}
	_, _ = rl.Write([]byte("\r\n" + s + "\r\n"))
	rl.Refresh()
}

func PrintAbove(s string) {
	mu.Lock()
	defer mu.Unlock()
	printAboveUnlocked(s)
}

// GetInput reads one line. EOF and interrupts come back as "".
func GetInput() string {
	line, err := rl.Readline()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(line)
}

func GetConfirmation(prompt string) string {
	mu.Lock()
	old := rl.Config.Prompt
	rl.SetPrompt(prompt)
	mu.Unlock()

	line, err := rl.Readline()
	if err != nil {
		line = ""
	}
	ans := strings.TrimSpace(strings.ToLower(line))

	mu.Lock()
	rl.SetPrompt(old)
	mu.Unlock()
	return ans
}

// AsyncPrintln prints a line from a background goroutine without clobbering
// whatever the user is typing.
func AsyncPrintln(s string) {
	mu.Lock()
	defer mu.Unlock()
	if holdAsync {
		heldLines = append(heldLines, s)
		return
	}
	printAboveUnlocked(s)
}

func AsyncPrintf(format string, args ...any) {
	AsyncPrintln(fmt.Sprintf(format, args...))
}

func AskYesNo(question string) bool {
	BeginInteractive()
	defer EndInteractive()

	PrintAbove(question + " [y/n]")

	for {
		switch GetConfirmation("> ") {
		case "y", "yes":
			return true
		case "n", "no":
			return false
		}
		PrintAbove("Please answer y/n.")
	}
}
