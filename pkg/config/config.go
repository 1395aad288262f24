package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Config defines the application configuration stored in config.json.
type Config struct {
	// Channels maps a channel identifier ("web", "telegram") to its raw
	// configuration payload.
	Channels map[string]jsoniter.RawMessage `json:"channels"`
	// LLM holds the provider groups in raw JSON; see llm.ProviderGroupConfig.
	LLM jsoniter.RawMessage `json:"llm"`
	// Agents overrides the built-in agent instructions.
	Agents AgentsConfig `json:"agents"`
	// StateFile is the JSON file the host writes its system state snapshot to.
	StateFile string `json:"state_file"`
	// Host describes how to reach the host application's command endpoint.
	Host HostConfig `json:"host"`
}

// AgentsConfig holds optional per-agent instruction overrides.
type AgentsConfig struct {
	ProtocolInstructions    string `json:"protocol_instructions"`
	MeasurementInstructions string `json:"measurement_instructions"`
}

// HostConfig configures the optional run_protocol entry point of the host.
// An empty RunURL means the host exposes no such entry point.
type HostConfig struct {
	RunURL    string `json:"run_url"`
	TimeoutMs int    `json:"timeout_ms"`
}

// Validate ensures the configuration structure contains all mandatory fields.
func (c *Config) Validate() error {
	if len(c.LLM) == 0 {
		return errors.New("mandatory 'llm' configuration is missing or empty")
	}
	return nil
}

// SystemConfig defines engine-level technical parameters stored in system.json.
type SystemConfig struct {
	// MaxRetries is the number of attempts per provider on transient errors.
	MaxRetries int `json:"max_retries"`
	// RetryDelayMs is the base delay between retry attempts.
	RetryDelayMs int `json:"retry_delay_ms"`
	// LLMTimeoutMs is the hard cutoff for a single model call.
	LLMTimeoutMs int `json:"llm_timeout_ms"`
	// OllamaDefaultURL is used when an ollama group has no base_url.
	OllamaDefaultURL string `json:"ollama_default_url"`
	// InternalChannelBuffer sizes the gateway's internal Go channels.
	InternalChannelBuffer int `json:"internal_channel_buffer"`
	// TelegramMessageLimit splits longer replies into several messages.
	TelegramMessageLimit int `json:"telegram_message_limit"`
	// DownloadTimeoutMs bounds HTTP calls to the host application.
	DownloadTimeoutMs int `json:"download_timeout_ms"`
	// DebugChunks dumps every raw LLM chunk under ./debug.
	DebugChunks bool `json:"debug_chunks"`
	// LogLevel: "debug", "info", "warn", "error". Default: "info".
	LogLevel string `json:"log_level"`
	// ConditionPollMs is the cadence of conditional monitor loops.
	ConditionPollMs int `json:"condition_poll_ms"`
	// DeviceIntervalMs is the device monitor interval when none is requested.
	DeviceIntervalMs int `json:"device_interval_ms"`
	// HistoryLimit caps the conversation history kept per session.
	HistoryLimit int `json:"history_limit"`
}

// DefaultSystemConfig returns the values used when system.json is missing
// or corrupt, so the service can always start.
func DefaultSystemConfig() *SystemConfig {
	return &SystemConfig{
		MaxRetries:            3,
		RetryDelayMs:          500,
		LLMTimeoutMs:          120000,
		OllamaDefaultURL:      "http://localhost:11434",
		InternalChannelBuffer: 100,
		TelegramMessageLimit:  4000,
		DownloadTimeoutMs:     10000,
		LogLevel:              "info",
		ConditionPollMs:       1000,
		DeviceIntervalMs:      1000,
		HistoryLimit:          50,
	}
}

// Load reads config.json (mandatory) and system.json (optional, defaults).
func Load(appPath, systemPath string) (*Config, *SystemConfig, error) {
	appFile, err := os.ReadFile(appPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil, fmt.Errorf("config file '%s' not found. please create one", appPath)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(appFile, &cfg); err != nil {
		return nil, nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	return &cfg, LoadSystemConfig(systemPath), nil
}

// LoadSystemConfig attempts to load system settings, returns defaults if it fails.
// Fields absent from the file keep their default values.
func LoadSystemConfig(path string) *SystemConfig {
	cfg := DefaultSystemConfig()

	file, err := os.ReadFile(path)
	if err != nil {
		return cfg
	}

	if err := json.Unmarshal(file, cfg); err != nil {
		return DefaultSystemConfig()
	}

	return cfg
}

// LoadEnv loads KEY=VALUE pairs from the given .env files into the process
// environment. Missing files are ignored; existing variables win.
func LoadEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// ResolveSecret expands "env:NAME" to the value of the environment variable
// NAME. Other values are returned unchanged.
func ResolveSecret(v string) string {
	if name, ok := strings.CutPrefix(v, "env:"); ok {
		return os.Getenv(name)
	}
	return v
}
