package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ssargent/sysconf/pkg/logging"
	"github.com/ssargent/sysconf/pkg/storage"
	"gopkg.in/yaml.v3"
)

// Config represents the sysconf tool configuration
type Config struct {
	SysconfPath string      `yaml:"sysconf_path"`
	Snapshots   Snapshots   `yaml:"snapshots"`
	TimeService TimeService `yaml:"time_service"`
	Server      Server      `yaml:"server"`
	Logging     Logging     `yaml:"logging"`
}

// Snapshots configures the pre-save snapshot history
type Snapshots struct {
	Enabled     bool   `yaml:"enabled"`
	Dir         string `yaml:"dir"`
	Compression string `yaml:"compression"`
	Keep        int    `yaml:"keep"`
}

// TimeService configures the reference time client
type TimeService struct {
	BaseURL    string        `yaml:"base_url"`
	Timeout    time.Duration `yaml:"timeout"`
	Retries    int           `yaml:"retries"`
	RetryDelay time.Duration `yaml:"retry_delay"`
}

// Server contains REST API configuration
type Server struct {
	Port   int    `yaml:"port"`
	Bind   string `yaml:"bind"`
	APIKey string `yaml:"api_key"`
}

// Logging contains logging configuration
type Logging struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		SysconfPath: "./shared2/sys/SYSCONF",
		Snapshots: Snapshots{
			Enabled:     true,
			Dir:         "./data/snapshots",
			Compression: "zstd",
			Keep:        16,
		},
		TimeService: TimeService{
			BaseURL:    "http://worldtimeapi.org",
			Timeout:    10 * time.Second,
			Retries:    8,
			RetryDelay: time.Second,
		},
		Server: Server{
			Port:   8080,
			Bind:   "127.0.0.1",
			APIKey: "auto",
		},
		Logging: Logging{
			Level: "info",
		},
	}
}

// Validate checks values that would otherwise fail late
func (c *Config) Validate() error {
	if c.SysconfPath == "" {
		return fmt.Errorf("sysconf_path is required")
	}
	if _, err := storage.ParseCompression(c.Snapshots.Compression); err != nil {
		return fmt.Errorf("snapshots.compression: %w", err)
	}
	if c.Snapshots.Enabled && c.Snapshots.Dir == "" {
		return fmt.Errorf("snapshots.dir is required when snapshots are enabled")
	}
	if c.Snapshots.Keep < 0 {
		return fmt.Errorf("snapshots.keep must not be negative")
	}
	if c.TimeService.Retries < 1 {
		return fmt.Errorf("time_service.retries must be at least 1")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}

	return nil
}

// LoadConfig loads configuration from the specified path. Fields absent from
// the file keep their defaults.
func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configPath)
	}

	if !filepath.IsAbs(configPath) {
		absPath, err := filepath.Abs(configPath)
		if err != nil {
			return nil, fmt.Errorf("invalid config path: %w", err)
		}
		configPath = absPath
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveConfig saves the configuration to the specified path with secure permissions
func SaveConfig(config *Config, configPath string) error {
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// The file holds the API key
	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GenerateSecureKey generates a cryptographically secure random key
func GenerateSecureKey(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate secure key: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}

// BootstrapConfig creates and saves a default configuration with a generated
// API key. sysconfPath overrides the default image location when set.
func BootstrapConfig(configPath string, sysconfPath string) (*Config, error) {
	config := DefaultConfig()
	if sysconfPath != "" {
		config.SysconfPath = sysconfPath
	}

	apiKey, err := GenerateSecureKey(32)
	if err != nil {
		return nil, fmt.Errorf("failed to generate API key: %w", err)
	}
	config.Server.APIKey = apiKey

	if err := SaveConfig(config, configPath); err != nil {
		return nil, fmt.Errorf("failed to save bootstrap config: %w", err)
	}

	return config, nil
}

// GetDefaultConfigPath returns the default configuration path for the current platform
func GetDefaultConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./sysconf.yaml"
	}

	return filepath.Join(homeDir, ".config", "sysconf", "config.yaml")
}

// ConfigExists checks if a configuration file exists
func ConfigExists(configPath string) bool {
	_, err := os.Stat(configPath)
	return !os.IsNotExist(err)
}
