package config

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Config represents the main tinies configuration
type Config struct {
	// HTTP surface
	Server ServerConfig `json:"server" mapstructure:"server"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Data directory (counter database, pid file, logs)
	DataDir string `json:"data_dir" mapstructure:"data_dir"`

	Counter      CounterConfig      `json:"counter" mapstructure:"counter"`
	Scratch      ScratchConfig      `json:"scratch" mapstructure:"scratch"`
	Content      ContentConfig      `json:"content" mapstructure:"content"`
	Session      SessionConfig      `json:"session" mapstructure:"session"`
	Translator   TranslatorConfig   `json:"translator" mapstructure:"translator"`
	Generation   GenerationConfig   `json:"generation" mapstructure:"generation"`
	Materializer MaterializerConfig `json:"materializer" mapstructure:"materializer"`
	Telegram     TelegramConfig     `json:"telegram" mapstructure:"telegram"`
	RateLimit    RateLimitConfig    `json:"rate_limit" mapstructure:"rate_limit"`
	Tracing      TracingConfig      `json:"tracing" mapstructure:"tracing"`
	UI           UIConfig           `json:"ui" mapstructure:"ui"`
}

// ServerConfig holds the web server configuration
type ServerConfig struct {
	Host            string `json:"host" mapstructure:"host"`
	Port            int    `json:"port" mapstructure:"port"`
	ShutdownTimeout int    `json:"shutdown_timeout" mapstructure:"shutdown_timeout"` // seconds
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	Console   bool   `json:"console" mapstructure:"console"`
	Pretty    bool   `json:"pretty" mapstructure:"pretty"`
	MaxSize   int    `json:"max_size" mapstructure:"max_size"` // MB
	MaxAge    int    `json:"max_age" mapstructure:"max_age"`   // days
	Compress  bool   `json:"compress" mapstructure:"compress"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
	// Audit appends one JSON line per generation to <data_dir>/audit.log
	Audit bool `json:"audit" mapstructure:"audit"`
}

// CounterConfig selects the visit counter backend
type CounterConfig struct {
	Driver string `json:"driver" mapstructure:"driver"` // sqlite, memory
	Path   string `json:"path" mapstructure:"path"`
	Name   string `json:"name" mapstructure:"name"`
}

// ScratchConfig holds the temporary upload area settings
type ScratchConfig struct {
	Dir           string `json:"dir" mapstructure:"dir"`
	MaxAge        int    `json:"max_age" mapstructure:"max_age"` // minutes
	SweepSchedule string `json:"sweep_schedule" mapstructure:"sweep_schedule"`
}

// ContentConfig points at the header/footer/about/styles files
type ContentConfig struct {
	Dir   string `json:"dir" mapstructure:"dir"`
	Watch bool   `json:"watch" mapstructure:"watch"`
}

// SessionConfig holds browser session settings
type SessionConfig struct {
	CookieName     string `json:"cookie_name" mapstructure:"cookie_name"`
	IdleTimeout    int    `json:"idle_timeout" mapstructure:"idle_timeout"` // minutes
	ExpirySchedule string `json:"expiry_schedule" mapstructure:"expiry_schedule"`
}

// TranslatorConfig holds prompt translation settings
type TranslatorConfig struct {
	Provider string    `json:"provider" mapstructure:"provider"` // google, llm, none
	Endpoint string    `json:"endpoint" mapstructure:"endpoint"`
	Target   string    `json:"target" mapstructure:"target"`
	Timeout  int       `json:"timeout" mapstructure:"timeout"` // seconds
	LLM      LLMConfig `json:"llm" mapstructure:"llm"`
}

// LLMConfig configures the text model used by the llm translator
type LLMConfig struct {
	Provider  string `json:"provider" mapstructure:"provider"` // openai, anthropic, gemini
	Model     string `json:"model" mapstructure:"model"`
	APIKey    string `json:"api_key" mapstructure:"api_key"`
	BaseURL   string `json:"base_url" mapstructure:"base_url"`
	MaxTokens int    `json:"max_tokens" mapstructure:"max_tokens"`
}

// GenerationConfig selects and configures the remote image backend
type GenerationConfig struct {
	Backend string            `json:"backend" mapstructure:"backend"` // gradio, openai, gemini
	Timeout int               `json:"timeout" mapstructure:"timeout"` // seconds
	Gradio  GradioConfig      `json:"gradio" mapstructure:"gradio"`
	OpenAI  OpenAIImageConfig `json:"openai" mapstructure:"openai"`
	Gemini  GeminiImageConfig `json:"gemini" mapstructure:"gemini"`
}

// GradioConfig addresses a hosted Gradio app
type GradioConfig struct {
	Space     string `json:"space" mapstructure:"space"`
	BaseURL   string `json:"base_url" mapstructure:"base_url"`
	APIName   string `json:"api_name" mapstructure:"api_name"`
	APIPrefix string `json:"api_prefix" mapstructure:"api_prefix"`
	Token     string `json:"token" mapstructure:"token"`
}

// OpenAIImageConfig configures the OpenAI Images backend
type OpenAIImageConfig struct {
	APIKey  string `json:"api_key" mapstructure:"api_key"`
	BaseURL string `json:"base_url" mapstructure:"base_url"`
	Model   string `json:"model" mapstructure:"model"`
	Size    string `json:"size" mapstructure:"size"`
}

// GeminiImageConfig configures the Gemini image backend
type GeminiImageConfig struct {
	APIKey  string `json:"api_key" mapstructure:"api_key"`
	BaseURL string `json:"base_url" mapstructure:"base_url"`
	Model   string `json:"model" mapstructure:"model"`
}

// MaterializerConfig controls how generation results are written to disk
type MaterializerConfig struct {
	JPEGQuality          int   `json:"jpeg_quality" mapstructure:"jpeg_quality"`
	MaxDownloadBytes     int64 `json:"max_download_bytes" mapstructure:"max_download_bytes"`
	BlockPrivateNetworks bool  `json:"block_private_networks" mapstructure:"block_private_networks"`
	Timeout              int   `json:"timeout" mapstructure:"timeout"` // seconds
}

// TelegramConfig holds the notification relay configuration
type TelegramConfig struct {
	Enabled       bool   `json:"enabled" mapstructure:"enabled"`
	BotToken      string `json:"bot_token" mapstructure:"bot_token"`
	ChatID        int64  `json:"chat_id" mapstructure:"chat_id"`
	CaptionPrefix string `json:"caption_prefix" mapstructure:"caption_prefix"`
	APIEndpoint   string `json:"api_endpoint" mapstructure:"api_endpoint"`
	FailOnError   bool   `json:"fail_on_error" mapstructure:"fail_on_error"`
	Timeout       int    `json:"timeout" mapstructure:"timeout"` // seconds
}

// RateLimitConfig holds the per-IP limit on generation requests
type RateLimitConfig struct {
	Enabled           bool `json:"enabled" mapstructure:"enabled"`
	RequestsPerMinute int  `json:"requests_per_minute" mapstructure:"requests_per_minute"`
}

// TracingConfig holds OpenTelemetry settings
type TracingConfig struct {
	Enabled     bool    `json:"enabled" mapstructure:"enabled"`
	ServiceName string  `json:"service_name" mapstructure:"service_name"`
	SampleRatio float64 `json:"sample_ratio" mapstructure:"sample_ratio"` // share of generations traced
}

// UIConfig holds the page strings that are not loaded from content files
type UIConfig struct {
	Examples []string `json:"examples" mapstructure:"examples"`
}

// DefaultExamples are the example prompts offered on the form
var DefaultExamples = []string{
	"שקיעה יפהפייה על חוף הים",
	"חתול חמוד משחק עם כדור צמר",
	"נוף הררי מושלג בסתיו",
	"עיר עתיקה עם סמטאות צרות",
	"פרפר צבעוני על פרח סגול",
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8501,
			ShutdownTimeout: 10,
		},
		Logging: LoggingConfig{
			Level:     "info",
			Console:   true,
			Pretty:    true,
			MaxSize:   50,
			MaxAge:    7,
			Compress:  true,
			Redaction: true,
			Audit:     true,
		},
		Counter: CounterConfig{
			Driver: "sqlite",
			Name:   "visits",
		},
		Scratch: ScratchConfig{
			MaxAge:        60,
			SweepSchedule: "@every 10m",
		},
		Content: ContentConfig{
			Watch: true,
		},
		Session: SessionConfig{
			CookieName:     "tinies_session",
			IdleTimeout:    120,
			ExpirySchedule: "@every 5m",
		},
		Translator: TranslatorConfig{
			Provider: "google",
			Endpoint: "https://translate.googleapis.com/translate_a/single",
			Target:   "en",
			Timeout:  15,
			LLM: LLMConfig{
				Provider:  "openai",
				Model:     "gpt-4o-mini",
				MaxTokens: 512,
			},
		},
		Generation: GenerationConfig{
			Backend: "gradio",
			Timeout: 180,
			Gradio: GradioConfig{
				Space:     "fujohnwang/alvdansen-littletinies",
				APIName:   "/predict",
				APIPrefix: "/gradio_api",
			},
			OpenAI: OpenAIImageConfig{
				Model: "dall-e-3",
				Size:  "1024x1024",
			},
			Gemini: GeminiImageConfig{
				Model: "gemini-2.0-flash-preview-image-generation",
			},
		},
		Materializer: MaterializerConfig{
			JPEGQuality:          90,
			MaxDownloadBytes:     20 << 20,
			BlockPrivateNetworks: false,
			Timeout:              60,
		},
		Telegram: TelegramConfig{
			Enabled:       false,
			CaptionPrefix: "hand-drawn-cartoon-style-images: ",
			Timeout:       60,
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerMinute: 10,
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "tinies",
			SampleRatio: 1,
		},
		UI: UIConfig{
			Examples: append([]string(nil), DefaultExamples...),
		},
	}
}

// String returns a JSON representation of the config with secrets masked
func (c *Config) String() string {
	masked := *c
	masked.Telegram.BotToken = mask(c.Telegram.BotToken)
	masked.Translator.LLM.APIKey = mask(c.Translator.LLM.APIKey)
	masked.Generation.Gradio.Token = mask(c.Generation.Gradio.Token)
	masked.Generation.OpenAI.APIKey = mask(c.Generation.OpenAI.APIKey)
	masked.Generation.Gemini.APIKey = mask(c.Generation.Gemini.APIKey)

	data, _ := json.MarshalIndent(&masked, "", "  ")
	return string(data)
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return "***"
}

// Validate checks cross-field rules the JSON schema can't express
func (c *Config) Validate() error {
	switch c.Translator.Provider {
	case "google", "none":
	case "llm":
		if err := oneOf("translator.llm.provider", c.Translator.LLM.Provider, "openai", "anthropic", "gemini"); err != nil {
			return err
		}
		if c.Translator.LLM.APIKey == "" {
			return fmt.Errorf("translator.llm.api_key is required when translator.provider is llm")
		}
	default:
		return fmt.Errorf("invalid translator.provider %q (must be: google, llm, none)", c.Translator.Provider)
	}

	switch c.Generation.Backend {
	case "gradio":
		if c.Generation.Gradio.Space == "" && c.Generation.Gradio.BaseURL == "" {
			return fmt.Errorf("generation.gradio requires space or base_url")
		}
	case "openai":
		if c.Generation.OpenAI.APIKey == "" {
			return fmt.Errorf("generation.openai.api_key is required when generation.backend is openai")
		}
	case "gemini":
		if c.Generation.Gemini.APIKey == "" {
			return fmt.Errorf("generation.gemini.api_key is required when generation.backend is gemini")
		}
	default:
		return fmt.Errorf("invalid generation.backend %q (must be: gradio, openai, gemini)", c.Generation.Backend)
	}

	if err := oneOf("counter.driver", c.Counter.Driver, "sqlite", "memory"); err != nil {
		return err
	}

	if c.Scratch.MaxAge < 1 {
		return fmt.Errorf("scratch.max_age must be at least 1 minute, got %d", c.Scratch.MaxAge)
	}
	if c.Session.IdleTimeout < 1 {
		return fmt.Errorf("session.idle_timeout must be at least 1 minute, got %d", c.Session.IdleTimeout)
	}

	if c.Materializer.JPEGQuality < 1 || c.Materializer.JPEGQuality > 100 {
		return fmt.Errorf("materializer.jpeg_quality must be between 1 and 100, got %d", c.Materializer.JPEGQuality)
	}

	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("tracing.sample_ratio must be between 0 and 1, got %g", c.Tracing.SampleRatio)
	}

	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram bot token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == 0 {
			return fmt.Errorf("telegram chat_id is required when telegram is enabled")
		}
	}

	return nil
}

func oneOf(field, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("invalid %s %q (must be: %s)", field, value, strings.Join(allowed, ", "))
}
