package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/alkime/podbook/internal/keyring"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	// EnvProduction represents the production environment.
	EnvProduction = "production"
	// EnvDevelopment is the default environment.
	EnvDevelopment = "development"
)

// Config holds all application configuration.
type Config struct {
	// Server settings
	Env  string `envconfig:"ENV" default:"development"`
	Port string `envconfig:"PORT" default:"8080"`

	// Security settings
	HSTSMaxAge int    `envconfig:"HSTS_MAX_AGE" default:"31536000"`
	CSPMode    string `envconfig:"CSP_MODE" default:"relaxed"`

	// Logging settings
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Backends
	APIURL string `envconfig:"PODBOOK_API_URL"`
	APIKey string `envconfig:"PODBOOK_API_KEY"`
	QAURL  string `envconfig:"PODBOOK_QA_URL"`

	// DataDir overrides the default data directory.
	DataDir string `envconfig:"PODBOOK_DATA_DIR"`
	// WebDir is served at / by the remote control server when set.
	WebDir string `envconfig:"PODBOOK_WEB_DIR"`

	OpenAIAPIKey    string `envconfig:"OPENAI_API_KEY"`
	AnthropicAPIKey string `envconfig:"ANTHROPIC_API_KEY"`

	// Engine tuning
	SpringBackDelay     time.Duration `envconfig:"SPRING_BACK_DELAY" default:"1500ms"`
	InterjectionTimeout time.Duration `envconfig:"INTERJECTION_TIMEOUT" default:"10s"`
	TickInterval        time.Duration `envconfig:"TICK_INTERVAL" default:"100ms"`
	SkipInterval        time.Duration `envconfig:"SKIP_INTERVAL" default:"15s"`
	WordsPerSegment     int           `envconfig:"WORDS_PER_SEGMENT" default:"10"`

	// Question answering
	PollInterval     time.Duration `envconfig:"POLL_INTERVAL" default:"1s"`
	PollAttempts     int           `envconfig:"POLL_ATTEMPTS" default:"180"`
	SilenceThreshold time.Duration `envconfig:"SILENCE_THRESHOLD" default:"2s"`
}

// LoadConfig loads configuration from .env file and environment variables.
func LoadConfig() (*Config, error) {
	// .env is optional; a missing file is fine
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: ignoring .env: %v", err)
	}

	var config Config
	if err := envconfig.Process("", &config); err != nil {
		return nil, fmt.Errorf("failed to read configuration from environment: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	config.fillKeysFromKeyring()

	return &config, nil
}

// Validate rejects tuning values the engine cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.TickInterval <= 0:
		return fmt.Errorf("TICK_INTERVAL must be positive, got %s", c.TickInterval)
	case c.SkipInterval <= 0:
		return fmt.Errorf("SKIP_INTERVAL must be positive, got %s", c.SkipInterval)
	case c.SpringBackDelay < 0:
		return fmt.Errorf("SPRING_BACK_DELAY must not be negative, got %s", c.SpringBackDelay)
	case c.InterjectionTimeout <= 0:
		return fmt.Errorf("INTERJECTION_TIMEOUT must be positive, got %s", c.InterjectionTimeout)
	case c.WordsPerSegment <= 0:
		return fmt.Errorf("WORDS_PER_SEGMENT must be positive, got %d", c.WordsPerSegment)
	case c.PollInterval <= 0 || c.PollAttempts <= 0:
		return fmt.Errorf("POLL_INTERVAL and POLL_ATTEMPTS must be positive")
	}

	return nil
}

// IsProduction reports whether ENV is production.
func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// fillKeysFromKeyring falls back to the system keychain for unset API keys.
func (c *Config) fillKeysFromKeyring() {
	for dst, key := range map[*string]keyring.Key{
		&c.OpenAIAPIKey:    keyring.OpenAI,
		&c.AnthropicAPIKey: keyring.Anthropic,
		&c.APIKey:          keyring.Podbook,
	} {
		if *dst != "" {
			continue
		}
		if v, err := key.Get(); err == nil {
			*dst = v
		}
	}
}

// BuildCSP returns the Content-Security-Policy for mode. "strict" limits
// everything to the server's own origin; any other mode also lets the web
// remote open websockets and use inline scripts and styles.
func BuildCSP(mode string) string {
	directives := []string{"default-src 'self'"}
	if mode == "strict" {
		directives = append(directives,
			"connect-src 'self'",
			"object-src 'none'",
			"base-uri 'self'",
			"form-action 'self'",
		)
	} else {
		directives = append(directives,
			"connect-src 'self' ws: wss:",
			"style-src 'self' 'unsafe-inline'",
			"script-src 'self' 'unsafe-inline'",
		)
	}

	return strings.Join(directives, "; ")
}
