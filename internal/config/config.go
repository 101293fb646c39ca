package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds application configuration
type Config struct {
	ListenAddr     string `json:"listen_addr" yaml:"listen_addr"`
	LogMode        string `json:"log_mode" yaml:"log_mode"`
	DatabaseDriver string `json:"database_driver" yaml:"database_driver"` // "sqlite" or "postgres"
	DatabaseDSN    string `json:"database_dsn" yaml:"database_dsn"`
	UploadsDir     string `json:"uploads_dir" yaml:"uploads_dir"`
	AttachmentRoot string `json:"attachment_root" yaml:"attachment_root"`
	RedisAddr      string `json:"redis_addr" yaml:"redis_addr"` // empty disables the shared submit lock
	ExportDir      string `json:"export_dir" yaml:"export_dir"`
	SeedFile       string `json:"seed_file" yaml:"seed_file"` // optional YAML metadata loaded at startup
}

// DefaultConfig returns a new config with default values
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:     ":8080",
		LogMode:        "dev",
		DatabaseDriver: "sqlite",
		DatabaseDSN:    "recruitment.db",
		UploadsDir:     "uploads",
		AttachmentRoot: "recruitment",
		ExportDir:      "exports",
	}
}

// GetConfigPath returns the path to the configuration file
// On Windows: %APPDATA%/RecruitmentScoring/config.json
// On Unix: ~/.config/RecruitmentScoring/config.json
func GetConfigPath() (string, error) {
	var configDir string

	if os.Getenv("APPDATA") != "" {
		configDir = filepath.Join(os.Getenv("APPDATA"), "RecruitmentScoring")
	} else {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get user home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".config", "RecruitmentScoring")
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return filepath.Join(configDir, "config.json"), nil
}

// Load loads configuration from RS_CONFIG or the default config path
func Load() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	configPath := os.Getenv("RS_CONFIG")
	if configPath == "" {
		var err error
		configPath, err = GetConfigPath()
		if err != nil {
			return nil, err
		}
	}

	cfg, err := LoadFrom(configPath)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv()
	return cfg, nil
}

// LoadFrom loads configuration from a specific path. YAML is used for
// .yaml/.yml files, JSON otherwise.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if isYAML(path) {
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		return config, nil
	}
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveTo saves the configuration to a specific path
func (c *Config) SaveTo(path string) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr is required")
	}

	switch c.DatabaseDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("database_driver must be 'sqlite' or 'postgres', got %q", c.DatabaseDriver)
	}

	if c.DatabaseDSN == "" {
		return fmt.Errorf("database_dsn is required")
	}

	if c.UploadsDir == "" {
		return fmt.Errorf("uploads_dir is required")
	}

	if strings.Trim(c.AttachmentRoot, "/") == "" {
		return fmt.Errorf("attachment_root is required")
	}

	return nil
}

// ApplyEnv overrides values from RS_* environment variables
func (c *Config) ApplyEnv() {
	overrides := map[string]*string{
		"RS_LISTEN_ADDR":     &c.ListenAddr,
		"RS_LOG_MODE":        &c.LogMode,
		"RS_DATABASE_DRIVER": &c.DatabaseDriver,
		"RS_DATABASE_DSN":    &c.DatabaseDSN,
		"RS_UPLOADS_DIR":     &c.UploadsDir,
		"RS_ATTACHMENT_ROOT": &c.AttachmentRoot,
		"RS_REDIS_ADDR":      &c.RedisAddr,
		"RS_EXPORT_DIR":      &c.ExportDir,
		"RS_SEED_FILE":       &c.SeedFile,
	}
	for name, field := range overrides {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			*field = v
		}
	}
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
