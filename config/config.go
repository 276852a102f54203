// Package config loads application configuration.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kubex/rubix-directory/directory"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

const envPrefix = "RUBIX"

// Config holds application configuration.
type Config struct {
	Logging   LoggingConfig   `mapstructure:"logging"`
	Directory DirectoryConfig `mapstructure:"directory"`
	Storage   StorageConfig   `mapstructure:"storage"`
}

// LoggingConfig contains logger preferences.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// DirectoryConfig contains query defaults.
type DirectoryConfig struct {
	PageSize int `mapstructure:"page_size"`
}

// StorageConfig selects a storage provider and carries its provider specific settings.
type StorageConfig struct {
	Provider      string         `mapstructure:"provider"`
	Configuration map[string]any `mapstructure:"configuration"`
}

// Load reads path (yaml, json or toml) when given, then applies RUBIX_ prefixed environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	bindEnvs(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")

	v.SetDefault("directory.page_size", directory.DefaultPageSize)

	v.SetDefault("storage.provider", "sql")
	v.SetDefault("storage.configuration", map[string]any{
		"sqlLite":    true,
		"primaryDsn": "file:rubix-directory.db",
	})
}

func bindEnvs(v *viper.Viper) {
	for _, k := range []string{
		"logging.level",
		"directory.page_size",
		"storage.provider",
	} {
		_ = v.BindEnv(k)
	}
}

// Validate ensures required fields are present and in range.
func (c Config) Validate() error {
	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	if c.Directory.PageSize < 1 || c.Directory.PageSize > directory.MaxPageSize {
		return fmt.Errorf("directory.page_size must be between 1 and %d", directory.MaxPageSize)
	}
	if c.Storage.Provider == "" {
		return errors.New("storage.provider is required")
	}
	return nil
}

// StorageJSON renders the storage section as the envelope storage.Load expects.
func (c Config) StorageJSON() ([]byte, error) {
	configuration := c.Storage.Configuration
	if configuration == nil {
		configuration = map[string]any{}
	}
	return json.Marshal(struct {
		Provider      string         `json:"provider"`
		Configuration map[string]any `json:"configuration"`
	}{c.Storage.Provider, configuration})
}
