package model

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// MailConfig holds the IMAP server settings and the ingestion tuning knobs.
type MailConfig struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Port     string `mapstructure:"port" yaml:"port"`
	TLS      bool   `mapstructure:"tls" yaml:"tls"`
	Username string `mapstructure:"username" yaml:"username"`
	Mailbox  string `mapstructure:"mailbox" yaml:"mailbox"`

	// CheckIntervalSec is the per-tick notification poll timeout.
	CheckIntervalSec int `mapstructure:"check_interval_sec" yaml:"check_interval_sec"`

	// MaxSessionLifetimeSec is how long one notification session may run
	// before being renewed.
	MaxSessionLifetimeSec int `mapstructure:"max_session_lifetime_sec" yaml:"max_session_lifetime_sec"`
}

// AIConfig holds settings for the classification backend.
type AIConfig struct {
	Model     string `mapstructure:"model" yaml:"model"`
	MaxTokens int    `mapstructure:"max_tokens" yaml:"max_tokens"`
}

// StoreConfig holds settings for the processed-message archive.
type StoreConfig struct {
	// Path is the SQLite database file. Empty disables archiving.
	Path string `mapstructure:"path" yaml:"path"`
}

// ActionConfig declares one recognizable message category in the config
// file. The daemon turns these into registered actions in file order.
type ActionConfig struct {
	Title       string   `mapstructure:"title" yaml:"title"`
	Description string   `mapstructure:"description" yaml:"description"`
	Task        string   `mapstructure:"task" yaml:"task"`
	Params      []string `mapstructure:"params" yaml:"params"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Mail    MailConfig     `mapstructure:"mail" yaml:"mail"`
	AI      AIConfig       `mapstructure:"ai" yaml:"ai"`
	Store   StoreConfig    `mapstructure:"store" yaml:"store"`
	Actions []ActionConfig `mapstructure:"actions" yaml:"actions"`
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/mailtrigger/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "mailtrigger", "config.yaml")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		Mail: MailConfig{
			Port:                  "993",
			TLS:                   true,
			Mailbox:               "INBOX",
			CheckIntervalSec:      2,
			MaxSessionLifetimeSec: 900,
		},
		AI: AIConfig{
			Model:     "claude-sonnet-4-5-20250929",
			MaxTokens: 1024,
		},
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, it returns a default configuration.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Set defaults so missing keys resolve to sensible values.
	v.SetDefault("mail.port", "993")
	v.SetDefault("mail.tls", true)
	v.SetDefault("mail.mailbox", "INBOX")
	v.SetDefault("mail.check_interval_sec", 2)
	v.SetDefault("mail.max_session_lifetime_sec", 900)
	v.SetDefault("ai.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("ai.max_tokens", 1024)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return defaultAppConfig(), nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return defaultAppConfig(), nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("mail", cfg.Mail)
	v.Set("ai", cfg.AI)
	v.Set("store", cfg.Store)
	v.Set("actions", cfg.Actions)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
