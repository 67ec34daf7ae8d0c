package shared

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

//go:embed config.example.toml
var exampleConf []byte

// APIURLEnv names the environment variable that overrides [APIConfig.BaseURL].
const APIURLEnv = "LICENTRY_API_URL"

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	API      APIConfig      `toml:"api"`
	Cache    CacheConfig    `toml:"cache"`
	Database DatabaseConfig `toml:"database"`
	Batch    BatchConfig    `toml:"batch"`
	Log      LogConfig      `toml:"log"`
}

// APIConfig points at the license-entry backend.
type APIConfig struct {
	BaseURL        string `toml:"base_url" validate:"required,url"`
	TimeoutSeconds int    `toml:"timeout_seconds" validate:"gte=0"`
}

// CacheConfig selects where the token slot is persisted.
type CacheConfig struct {
	Driver string `toml:"driver" validate:"oneof=sqlite file memory"`
	Path   string `toml:"path" validate:"required_unless=Driver memory"`
	Key    string `toml:"key" validate:"required"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	MaxOpenConns int `toml:"max_open_conns" validate:"gte=0"`
	MaxIdleConns int `toml:"max_idle_conns" validate:"gte=0"`
}

// BatchConfig holds defaults for `entry batch`.
type BatchConfig struct {
	Workers   int     `toml:"workers" validate:"gte=1,lte=10"`
	RateLimit float64 `toml:"rate_limit" validate:"gt=0"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level string `toml:"level" validate:"omitempty,oneof=debug info warn error fatal"`
	File  string `toml:"file"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep the embedded defaults, the API URL environment override is applied, and the result is validated.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read config file: %v", ErrMissingConfig, err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
	}

	config.ApplyEnv()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// ApplyEnv overrides config values from the environment. Called once at startup.
func (c *Config) ApplyEnv() {
	if v := strings.TrimSpace(os.Getenv(APIURLEnv)); v != "" {
		c.API.BaseURL = strings.TrimRight(v, "/")
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
