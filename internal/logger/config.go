package logger

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config holds logging configuration. Every field can be overridden from the
// environment with the LOG_ prefix, for example LOG_LEVEL=DEBUG.
type Config struct {
	Level          string `yaml:"level" env:"LEVEL"`
	ConsoleEnabled bool   `yaml:"console_enabled" env:"CONSOLE_ENABLED"`
	ConsoleFormat  string `yaml:"console_format" env:"CONSOLE_FORMAT"`
	FileEnabled    bool   `yaml:"file_enabled" env:"FILE_ENABLED"`
	FilePath       string `yaml:"file_path" env:"FILE_PATH"`
	FileFormat     string `yaml:"file_format" env:"FILE_FORMAT"`
	FileMaxSizeMB  int    `yaml:"file_max_size_mb" env:"FILE_MAX_SIZE_MB"`
	FileMaxBackups int    `yaml:"file_max_backups" env:"FILE_MAX_BACKUPS"`
	FileMaxAgeDays int    `yaml:"file_max_age_days" env:"FILE_MAX_AGE_DAYS"`
}

// DefaultConfig logs INFO and above as text to stdout.
func DefaultConfig() Config {
	return Config{
		Level:          "INFO",
		ConsoleEnabled: true,
		ConsoleFormat:  "text",
		FilePath:       "logs/battlecalc.log",
		FileFormat:     "text",
		FileMaxSizeMB:  10,
		FileMaxBackups: 5,
		FileMaxAgeDays: 30,
	}
}

// LoadConfig reads the "logging" section of a YAML file on top of the
// defaults and then applies LOG_* environment overrides. A missing file is
// not an error; a malformed one is.
func LoadConfig(configPath string) (Config, error) {
	config := DefaultConfig()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return config, fmt.Errorf("read logging config: %w", err)
		default:
			// Keys absent from the file keep their defaults.
			wrapper := struct {
				Logging *Config `yaml:"logging"`
			}{Logging: &config}
			if err := yaml.Unmarshal(data, &wrapper); err != nil {
				return config, fmt.Errorf("parse logging config %s: %w", configPath, err)
			}
		}
	}

	if err := env.ParseWithOptions(&config, env.Options{Prefix: "LOG_"}); err != nil {
		return config, fmt.Errorf("logging environment: %w", err)
	}
	return config, nil
}
