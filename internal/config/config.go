package config

import (
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v9"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

type Provider string

const (
	ProviderGemini Provider = "gemini"
	ProviderOpenAI Provider = "openai"
)

type Config struct {
	Port      int    `env:"PORT" envDefault:"3001"`
	APIPrefix string `env:"API_PREFIX" envDefault:"/api"`
	WidgetDir string `env:"WIDGET_DIR"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"console"`

	// Completion service. A missing credential selects fallback mode.
	Provider          Provider      `env:"COMPLETION_PROVIDER" envDefault:"gemini"`
	GeminiAPIKey      string        `env:"GEMINI_API_KEY"`
	GeminiModel       string        `env:"GEMINI_MODEL" envDefault:"gemini-1.5-flash"`
	OpenAIAPIKey      string        `env:"OPENAI_API_KEY"`
	OpenAIBaseURL     string        `env:"OPENAI_BASE_URL"`
	OpenAIModel       string        `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	APIKeyParam       string        `env:"API_KEY_PARAM"`
	CompletionTimeout time.Duration `env:"COMPLETION_TIMEOUT" envDefault:"10s"`

	// Conversations
	MaxHistory          int    `env:"MAX_HISTORY" envDefault:"20"`
	DefaultSystemPrompt string `env:"DEFAULT_SYSTEM_PROMPT" envDefault:"You are a helpful customer service assistant."`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Load reads the optional dotenv files, then the environment. Variables
// already set in the environment win over the files.
func Load(files ...string) (*Config, error) {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !isNotExist(err) {
			return nil, errors.Wrapf(err, "config: load %s", f)
		}
	}
	return Parse()
}

// Parse reads the configuration from the environment only.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, errors.Wrap(err, "config: parse environment")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	c.Provider = Provider(strings.ToLower(strings.TrimSpace(string(c.Provider))))
	switch c.Provider {
	case ProviderGemini, ProviderOpenAI:
	default:
		return errors.Errorf("config: unknown COMPLETION_PROVIDER %q", c.Provider)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return errors.Errorf("config: invalid PORT %d", c.Port)
	}
	if c.MaxHistory <= 0 {
		return errors.Errorf("config: MAX_HISTORY must be positive, got %d", c.MaxHistory)
	}
	return nil
}

// APIKey returns the credential configured in the environment for the selected provider.
func (c *Config) APIKey() string {
	if c.Provider == ProviderOpenAI {
		return strings.TrimSpace(c.OpenAIAPIKey)
	}
	return strings.TrimSpace(c.GeminiAPIKey)
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
