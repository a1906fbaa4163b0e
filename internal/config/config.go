package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"autopilot/internal/llm_client"
	"autopilot/internal/sandbox"
)

const defaultFile = "autopilot.yaml"

// Sandbox holds the subprocess confinement settings.
type Sandbox struct {
	WorkDir        string `yaml:"work_dir"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MaxMemoryMB    int    `yaml:"max_memory_mb"`
	BlockNetwork   bool   `yaml:"block_network"`
	IsolationMode  string `yaml:"isolation_mode"`
}

type LLM struct {
	Backend    string `yaml:"backend"`
	Model      string `yaml:"model"`
	APIKey     string `yaml:"api_key"`
	OllamaHost string `yaml:"ollama_host"`
}

type Web struct {
	SearxURL string `yaml:"searx_url"`
}

// Config is the full runtime configuration. Precedence, lowest to highest:
// built-in defaults, autopilot.yaml, environment variables.
type Config struct {
	Sandbox  Sandbox `yaml:"sandbox"`
	LLM      LLM     `yaml:"llm"`
	Web      Web     `yaml:"web"`
	MemoryDB string  `yaml:"memory_db"`
	LogFile  string  `yaml:"log_file"`
}

func Default() Config {
	return Config{
		Sandbox: Sandbox{
			WorkDir:        "workspace",
			TimeoutSeconds: 60,
			MaxMemoryMB:    512,
			BlockNetwork:   false,
			IsolationMode:  sandbox.IsolationWorkspace,
		},
		LLM:      LLM{Backend: "gemini"},
		MemoryDB: "autopilot_memory.db",
		LogFile:  "autopilot.log",
	}
}

// Load reads .env, the YAML file (path or ./autopilot.yaml when present) and
// environment overrides. A missing YAML file is not an error; a broken one is.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	file := path
	if file == "" {
		file = defaultFile
	}
	data, err := os.ReadFile(file)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", file, err)
		}
	case !os.IsNotExist(err):
		return cfg, fmt.Errorf("read %s: %w", file, err)
	case path != "":
		// An explicitly named file must exist.
		return cfg, fmt.Errorf("read %s: %w", file, err)
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.Sandbox.WorkDir, "AUTOPILOT_WORKDIR")
	setInt(&c.Sandbox.TimeoutSeconds, "AUTOPILOT_SANDBOX_TIMEOUT")
	setInt(&c.Sandbox.MaxMemoryMB, "AUTOPILOT_SANDBOX_MEMORY_MB")
	setBool(&c.Sandbox.BlockNetwork, "AUTOPILOT_BLOCK_NETWORK")
	setString(&c.Sandbox.IsolationMode, "AUTOPILOT_ISOLATION")
	setString(&c.LLM.Backend, "LLM_BACKEND")
	setString(&c.LLM.Model, "LLM_MODEL")
	setString(&c.LLM.APIKey, "GEMINI_API_KEY")
	setString(&c.LLM.OllamaHost, "OLLAMA_HOST")
	setString(&c.Web.SearxURL, "SEARX_URL")
	setString(&c.MemoryDB, "AUTOPILOT_MEMORY_DB")
	setString(&c.LogFile, "AUTOPILOT_LOG")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

// SandboxConfig maps the loaded settings onto the executor's config type.
func (c Config) SandboxConfig() sandbox.Config {
	return sandbox.Config{
		WorkDir:       c.Sandbox.WorkDir,
		Timeout:       time.Duration(c.Sandbox.TimeoutSeconds) * time.Second,
		MaxMemoryMB:   c.Sandbox.MaxMemoryMB,
		BlockNetwork:  c.Sandbox.BlockNetwork,
		IsolationMode: c.Sandbox.IsolationMode,
	}
}

// LLMConfig maps the loaded settings onto the client's config type.
func (c Config) LLMConfig() llm_client.Config {
	return llm_client.Config{
		Backend:    c.LLM.Backend,
		Model:      c.LLM.Model,
		APIKey:     c.LLM.APIKey,
		OllamaHost: c.LLM.OllamaHost,
	}
}
