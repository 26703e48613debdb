// Package config loads switchboard configuration from TOML with env
// overrides. Precedence is defaults, then file, then env (env wins).
package config

import (
	"os"

	"github.com/BurntSushi/toml"

	"github.com/switchboardhq/switchboard"
)

type Config struct {
	Router     RouterConfig     `toml:"router"`
	LLM        LLMConfig        `toml:"llm"`
	Classifier ClassifierConfig `toml:"classifier"`
	Storage    StorageConfig    `toml:"storage"`
	Observer   ObserverConfig   `toml:"observer"`
}

type RouterConfig struct {
	MaxRetries              int    `toml:"max_retries"`
	UseDefaultAgent         bool   `toml:"use_default_agent"`
	MaxMessagePairsPerAgent int    `toml:"max_message_pairs_per_agent"`
	ClassificationErrorMsg  string `toml:"classification_error_message"`
	NoSelectedAgentMsg      string `toml:"no_selected_agent_message"`
	GeneralRoutingErrorMsg  string `toml:"general_routing_error_message"`
	LogAgentChat            bool   `toml:"log_agent_chat"`
	LogClassifierChat       bool   `toml:"log_classifier_chat"`
	LogClassifierRawOutput  bool   `toml:"log_classifier_raw_output"`
	LogClassifierOutput     bool   `toml:"log_classifier_output"`
	LogExecutionTimes       bool   `toml:"log_execution_times"`
}

type LLMConfig struct {
	Provider string `toml:"provider"`
	Model    string `toml:"model"`
	BaseURL  string `toml:"base_url"`
	APIKey   string `toml:"api_key"`
}

type ClassifierConfig struct {
	Provider   string `toml:"provider"`
	Model      string `toml:"model"`
	BaseURL    string `toml:"base_url"`
	APIKey     string `toml:"api_key"`
	MaxHistory int    `toml:"max_history"`
}

type StorageConfig struct {
	Backend     string `toml:"backend"` // "memory", "sqlite", "postgres", "redis"
	SQLitePath  string `toml:"sqlite_path"`
	PostgresURL string `toml:"postgres_url"`
	RedisAddr   string `toml:"redis_addr"`
	RedisDB     int    `toml:"redis_db"`
}

type ObserverConfig struct {
	Enabled bool                       `toml:"enabled"`
	Pricing map[string]ObserverPricing `toml:"pricing"`
}

type ObserverPricing struct {
	Input  float64 `toml:"input"`
	Output float64 `toml:"output"`
}

// Default returns a Config with all defaults applied.
func Default() Config {
	return Config{
		Router: RouterConfig{
			MaxRetries:              3,
			UseDefaultAgent:         true,
			MaxMessagePairsPerAgent: 100,
		},
		LLM: LLMConfig{
			Provider: "openai",
			Model:    "gpt-4o-mini",
			BaseURL:  "https://api.openai.com/v1",
		},
		Classifier: ClassifierConfig{MaxHistory: 20},
		Storage:    StorageConfig{Backend: "memory", SQLitePath: "switchboard.db"},
	}
}

// Load reads config: defaults -> TOML file -> env vars (env wins).
func Load(path string) Config {
	cfg := Default()

	if path == "" {
		path = "switchboard.toml"
	}

	if data, err := os.ReadFile(path); err == nil {
		_ = toml.Unmarshal(data, &cfg)
	}

	// Env overrides
	if v := os.Getenv("SWITCHBOARD_LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("SWITCHBOARD_CLASSIFIER_API_KEY"); v != "" {
		cfg.Classifier.APIKey = v
	}
	if v := os.Getenv("SWITCHBOARD_POSTGRES_URL"); v != "" {
		cfg.Storage.PostgresURL = v
	}
	if v := os.Getenv("SWITCHBOARD_REDIS_ADDR"); v != "" {
		cfg.Storage.RedisAddr = v
	}
	if os.Getenv("SWITCHBOARD_OBSERVER_ENABLED") == "true" || os.Getenv("SWITCHBOARD_OBSERVER_ENABLED") == "1" {
		cfg.Observer.Enabled = true
	}

	// Fallbacks: the classifier rides the main LLM settings unless it has
	// its own.
	if cfg.Classifier.Provider == "" {
		cfg.Classifier.Provider = cfg.LLM.Provider
		cfg.Classifier.Model = cfg.LLM.Model
		cfg.Classifier.BaseURL = cfg.LLM.BaseURL
	}
	if cfg.Classifier.APIKey == "" {
		cfg.Classifier.APIKey = cfg.LLM.APIKey
	}

	return cfg
}

// RouterConfig converts the router section into a switchboard.Config.
func (c Config) RouterConfig() switchboard.Config {
	return switchboard.Config{
		MaxRetries:                      c.Router.MaxRetries,
		UseDefaultAgentIfNoneIdentified: c.Router.UseDefaultAgent,
		MaxMessagePairsPerAgent:         c.Router.MaxMessagePairsPerAgent,
		ClassificationErrorMessage:      c.Router.ClassificationErrorMsg,
		NoSelectedAgentMessage:          c.Router.NoSelectedAgentMsg,
		GeneralRoutingErrorMessage:      c.Router.GeneralRoutingErrorMsg,
		LogAgentChat:                    c.Router.LogAgentChat,
		LogClassifierChat:               c.Router.LogClassifierChat,
		LogClassifierRawOutput:          c.Router.LogClassifierRawOutput,
		LogClassifierOutput:             c.Router.LogClassifierOutput,
		LogExecutionTimes:               c.Router.LogExecutionTimes,
	}
}
