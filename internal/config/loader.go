package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	appDir      = ".tinies"
	configFile  = "tinies.json"
	envPrefix   = "TINIES"
	counterFile = "counter.db"
	logFile     = "tinies.log"
)

// Loader handles configuration loading
type Loader struct {
	configPath string
}

// NewLoader creates a new config loader
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
	}
}

// Load reads the config file (when present), overlays TINIES_* environment
// variables, validates the result and fills in derived paths.
func (l *Loader) Load() (*Config, error) {
	configPath := l.GetConfigPath()
	if configPath == "" {
		return nil, fmt.Errorf("failed to resolve config path")
	}

	v := viper.New()
	v.SetConfigType("json")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnv(v)

	if _, err := os.Stat(configPath); err == nil {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := ValidateSchema(data); err != nil {
			return nil, err
		}
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := applyDerivedPaths(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// bindEnv registers the keys viper should look up in the environment even
// when the config file doesn't mention them.
func bindEnv(v *viper.Viper) {
	for _, key := range []string{
		"data_dir",
		"server.host",
		"server.port",
		"logging.level",
		"logging.file",
		"counter.driver",
		"counter.path",
		"scratch.dir",
		"content.dir",
		"translator.provider",
		"translator.llm.provider",
		"translator.llm.model",
		"translator.llm.api_key",
		"generation.backend",
		"generation.gradio.space",
		"generation.gradio.base_url",
		"generation.gradio.token",
		"generation.openai.api_key",
		"generation.gemini.api_key",
		"telegram.enabled",
		"telegram.bot_token",
		"telegram.chat_id",
		"telegram.fail_on_error",
		"tracing.enabled",
	} {
		_ = v.BindEnv(key)
	}
}

func applyDerivedPaths(cfg *Config) error {
	if cfg.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		cfg.DataDir = filepath.Join(home, appDir)
	}

	if cfg.Logging.File == "" {
		cfg.Logging.File = filepath.Join(cfg.DataDir, logFile)
	}
	if cfg.Counter.Path == "" {
		cfg.Counter.Path = filepath.Join(cfg.DataDir, counterFile)
	}
	if cfg.Scratch.Dir == "" {
		cfg.Scratch.Dir = filepath.Join(cfg.DataDir, "temp_uploads")
	}
	if cfg.Content.Dir == "" {
		cfg.Content.Dir = filepath.Join(cfg.DataDir, "content")
	}
	return nil
}

// Save writes the configuration to file
func (l *Loader) Save(cfg *Config) error {
	configPath := l.GetConfigPath()
	if configPath == "" {
		return fmt.Errorf("failed to resolve config path")
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("json")

	v.Set("server", cfg.Server)
	v.Set("logging", cfg.Logging)
	v.Set("data_dir", cfg.DataDir)
	v.Set("counter", cfg.Counter)
	v.Set("scratch", cfg.Scratch)
	v.Set("content", cfg.Content)
	v.Set("session", cfg.Session)
	v.Set("translator", cfg.Translator)
	v.Set("generation", cfg.Generation)
	v.Set("materializer", cfg.Materializer)
	v.Set("telegram", cfg.Telegram)
	v.Set("rate_limit", cfg.RateLimit)
	v.Set("tracing", cfg.Tracing)
	v.Set("ui", cfg.UI)

	if err := v.WriteConfigAs(configPath); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GetConfigPath returns the config file path
func (l *Loader) GetConfigPath() string {
	if l.configPath != "" {
		return l.configPath
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, appDir, configFile)
}

// Load is a convenience function that creates a loader and loads the config
func Load(configPath string) (*Config, error) {
	return NewLoader(configPath).Load()
}
