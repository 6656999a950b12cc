package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/menta2k/tidyormessy/pkg/predict"
	"github.com/menta2k/tidyormessy/pkg/processing"
)

// EnvPrefix prefixes every environment override, e.g. TIDY_CLIENT_ENDPOINT
const EnvPrefix = "TIDY"

// Config holds the application configuration
type Config struct {
	Client ClientConfig `mapstructure:"client"`
	Image  ImageConfig  `mapstructure:"image"`
	Retry  RetryConfig  `mapstructure:"retry"`
	Server ServerConfig `mapstructure:"server"`
	Vision VisionConfig `mapstructure:"vision"`
	Log    LogConfig    `mapstructure:"log"`
}

// ClientConfig configures the prediction client
type ClientConfig struct {
	Endpoint         string        `mapstructure:"endpoint"`
	Timeout          time.Duration `mapstructure:"timeout"`
	MaxResponseBytes int64         `mapstructure:"max_response_bytes"`
	Concurrency      int           `mapstructure:"concurrency"`
}

// ImageConfig controls how source images become JPEG payloads
type ImageConfig struct {
	MaxDim  int `mapstructure:"max_dim"`
	Quality int `mapstructure:"quality"`
	MinSide int `mapstructure:"min_side"`
}

// RetryConfig is the caller-side retry policy
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
}

// ServerConfig configures the reference prediction server
type ServerConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Mode           string `mapstructure:"mode"`
	MaxUploadBytes int64  `mapstructure:"max_upload_bytes"`
}

// VisionConfig selects the model behind the reference server
type VisionConfig struct {
	Backend string `mapstructure:"backend"` // static, ollama or llamacpp
	URL     string `mapstructure:"url"`
	Model   string `mapstructure:"model"`
	Label   string `mapstructure:"label"` // fixed label for the static backend
}

// LogConfig configures the zap logger
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Addr returns host:port for the server listener
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("client.endpoint", predict.DefaultEndpoint)
	v.SetDefault("client.timeout", predict.DefaultTimeout)
	v.SetDefault("client.max_response_bytes", predict.DefaultMaxResponseBytes)
	v.SetDefault("client.concurrency", 4)

	v.SetDefault("image.max_dim", processing.DefaultMaxDim)
	v.SetDefault("image.quality", processing.DefaultQuality)
	v.SetDefault("image.min_side", processing.DefaultMinSide)

	v.SetDefault("retry.max_attempts", 1)
	v.SetDefault("retry.base_delay", 500*time.Millisecond)

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.max_upload_bytes", 10<<20)

	v.SetDefault("vision.backend", "static")
	v.SetDefault("vision.url", "")
	v.SetDefault("vision.model", "llava")
	v.SetDefault("vision.label", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// Default returns a configuration with default values
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		// Defaults alone cannot fail to decode
		panic(err)
	}
	return cfg
}

// Load reads defaults, then the optional file at path, then TIDY_* environment variables
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

// SaveToFile writes the configuration as YAML or JSON depending on the extension
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	v.Set("client", map[string]any{
		"endpoint":           c.Client.Endpoint,
		"timeout":            c.Client.Timeout.String(),
		"max_response_bytes": c.Client.MaxResponseBytes,
		"concurrency":        c.Client.Concurrency,
	})
	v.Set("image", map[string]any{
		"max_dim":  c.Image.MaxDim,
		"quality":  c.Image.Quality,
		"min_side": c.Image.MinSide,
	})
	v.Set("retry", map[string]any{
		"max_attempts": c.Retry.MaxAttempts,
		"base_delay":   c.Retry.BaseDelay.String(),
	})
	v.Set("server", map[string]any{
		"host":             c.Server.Host,
		"port":             c.Server.Port,
		"mode":             c.Server.Mode,
		"max_upload_bytes": c.Server.MaxUploadBytes,
	})
	v.Set("vision", map[string]any{
		"backend": c.Vision.Backend,
		"url":     c.Vision.URL,
		"model":   c.Vision.Model,
		"label":   c.Vision.Label,
	})
	v.Set("log", map[string]any{
		"level":  c.Log.Level,
		"format": c.Log.Format,
	})

	if err := v.WriteConfigAs(filename); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if _, err := predict.ValidateEndpoint(c.Client.Endpoint); err != nil {
		errs = append(errs, fmt.Errorf("client.endpoint: %w", err))
	}
	if c.Client.Timeout <= 0 {
		errs = append(errs, errors.New("client.timeout must be positive"))
	}
	if c.Client.Concurrency < 1 {
		errs = append(errs, errors.New("client.concurrency must be at least 1"))
	}
	if c.Image.Quality < 1 || c.Image.Quality > 100 {
		errs = append(errs, errors.New("image.quality must be between 1 and 100"))
	}
	if c.Image.MaxDim < 0 {
		errs = append(errs, errors.New("image.max_dim cannot be negative"))
	}
	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, errors.New("retry.max_attempts must be at least 1"))
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, errors.New("server.port must be between 1 and 65535"))
	}
	switch c.Vision.Backend {
	case "static", "ollama", "llamacpp":
	default:
		errs = append(errs, fmt.Errorf("vision.backend %q must be one of static, ollama, llamacpp", c.Vision.Backend))
	}

	return errors.Join(errs...)
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.yaml"
	}
	return filepath.Join(home, ".config", "tidyormessy", "config.yaml")
}
