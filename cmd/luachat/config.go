package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

const envConfigPath = "LUACHAT_CONFIG"

// Config represents the luachat configuration file
// (~/.config/luachat/config.yaml). Pointer fields distinguish "not set"
// from zero values.
type Config struct {
	Prompt    string `yaml:"prompt"`
	ModelType string `yaml:"model_type"`
	FullChat  *bool  `yaml:"full_chat"`

	Backend    string `yaml:"backend"`
	Replay     string `yaml:"replay"`
	MaxContext *int64 `yaml:"max_context"`
	BatchSize  *int64 `yaml:"batch_size"`
	Seed       *int64 `yaml:"seed"`

	// Sampling defaults
	Temperature *float64 `yaml:"temperature"`
	TopP        *float64 `yaml:"top_p"`
	MinKeep     *int64   `yaml:"min_keep"`

	// Loop
	NoopMarker     string         `yaml:"noop_marker"`
	ToolRole       string         `yaml:"tool_role"`
	StripReasoning *bool          `yaml:"strip_reasoning"`
	ScriptTimeout  *time.Duration `yaml:"script_timeout"`

	// Output
	StreamMode string `yaml:"stream_mode"`
	Highlight  *bool  `yaml:"highlight"`
	LogLevel   string `yaml:"log_level"`
	LogFormat  string `yaml:"log_format"`

	// Server
	ServerAddress string `yaml:"server_address"`
}

func configPath() string {
	if p := strings.TrimSpace(os.Getenv(envConfigPath)); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "luachat", "config.yaml")
}

// LoadConfig reads the config file. A missing file yields a zero Config.
func LoadConfig() (Config, error) {
	path := configPath()
	if path == "" {
		return Config{}, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Config{}, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// loadDotEnv exports the variables of a .env file that are not already set.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// applyModelConfig applies config file defaults to the shared model, loop
// and sampling flags when the corresponding flag was not set.
func applyModelConfig(c *cli.Command, cfg Config) {
	if cfg.Prompt != "" && !c.IsSet("prompt") {
		promptPath = cfg.Prompt
	}
	if cfg.ModelType != "" && !c.IsSet("model-type") {
		modelType = cfg.ModelType
	}
	if cfg.FullChat != nil && !c.IsSet("full-chat") {
		fullChat = *cfg.FullChat
	}
	if cfg.Backend != "" && !c.IsSet("backend") {
		backend = cfg.Backend
	}
	if cfg.Replay != "" && !c.IsSet("replay") {
		replayPath = cfg.Replay
	}
	if cfg.MaxContext != nil && !c.IsSet("max-context") {
		maxContext = *cfg.MaxContext
	}
	if cfg.BatchSize != nil && !c.IsSet("batch-size") {
		batchSize = *cfg.BatchSize
	}
	if cfg.Seed != nil && !c.IsSet("seed") {
		seed = *cfg.Seed
	}
	if cfg.Temperature != nil && !c.IsSet("temp") {
		temp = *cfg.Temperature
	}
	if cfg.TopP != nil && !c.IsSet("top-p") {
		topP = *cfg.TopP
	}
	if cfg.MinKeep != nil && !c.IsSet("min-keep") {
		minKeep = *cfg.MinKeep
	}
	if cfg.NoopMarker != "" && !c.IsSet("noop-marker") {
		noopMarker = cfg.NoopMarker
	}
	if cfg.ToolRole != "" && !c.IsSet("tool-role") {
		toolRole = cfg.ToolRole
	}
	if cfg.StripReasoning != nil && !c.IsSet("strip-reasoning") {
		stripReasoning = *cfg.StripReasoning
	}
	if cfg.ScriptTimeout != nil && !c.IsSet("script-timeout") {
		scriptTimeout = *cfg.ScriptTimeout
	}
}

// applyChatConfig applies config file defaults to chat command variables.
func applyChatConfig(c *cli.Command, cfg Config, streamMode *string, highlight *bool) {
	applyModelConfig(c, cfg)
	if cfg.StreamMode != "" && !c.IsSet("stream-mode") {
		*streamMode = cfg.StreamMode
	}
	if cfg.Highlight != nil && !c.IsSet("highlight") {
		*highlight = *cfg.Highlight
	}
}

// applyServeConfig applies config file defaults to serve command variables.
func applyServeConfig(c *cli.Command, cfg Config, addr *string) {
	applyModelConfig(c, cfg)
	if cfg.ServerAddress != "" && !c.IsSet("addr") {
		*addr = cfg.ServerAddress
	}
}

// applyLoggingConfig applies config file defaults to the logging flags.
func applyLoggingConfig(c *cli.Command, cfg Config) {
	if cfg.LogLevel != "" && !c.IsSet("log-level") {
		logLevel = cfg.LogLevel
	}
	if cfg.LogFormat != "" && !c.IsSet("log-format") {
		logFormat = cfg.LogFormat
	}
}
