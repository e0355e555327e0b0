package shared

import (
	_ "embed"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Commons  CommonsConfig  `toml:"commons"`
	Database DatabaseConfig `toml:"database"`
	Server   ServerConfig   `toml:"server"`
	Jobs     JobsConfig     `toml:"jobs"`
}

// CommonsConfig contains settings for the Wikimedia Commons and Wikidata APIs.
type CommonsConfig struct {
	APIURL         string `toml:"api_url"`
	WikidataAPIURL string `toml:"wikidata_api_url"`
	UserAgent      string `toml:"user_agent"`
	MinIntervalMS  int    `toml:"min_interval_ms"`
	MaxRetries     int    `toml:"max_retries"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	Language       string `toml:"language"`
}

// MinInterval returns the minimum inter-request interval for outbound API calls.
func (c CommonsConfig) MinInterval() time.Duration {
	return time.Duration(c.MinIntervalMS) * time.Millisecond
}

// Timeout returns the per-request timeout for outbound API calls.
func (c CommonsConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Addr returns the host:port listen address.
func (c ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// JobsConfig contains job registry settings.
type JobsConfig struct {
	RetentionMinutes int `toml:"retention_minutes"`
}

// Retention returns how long terminal jobs stay visible to progress polls.
func (c JobsConfig) Retention() time.Duration {
	return time.Duration(c.RetentionMinutes) * time.Minute
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
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
