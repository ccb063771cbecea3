package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes environment overrides of the front-end settings.
const EnvPrefix = "CLOUDFS_CLI_"

// Output formats
const (
	OutputText = "text"
	OutputYAML = "yaml"
)

// Config holds front-end settings. Backend credentials are not part of it;
// they come from cloudfs.Config.
type Config struct {
	Log     LogConfig `koanf:"log"`
	Output  string    `koanf:"output"`
	Metrics bool      `koanf:"metrics"`
	Cwd     string    `koanf:"cwd"`
}

// LogConfig selects the zap logger built for a run.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// DefaultConfig returns the settings used when nothing overrides them.
func DefaultConfig() Config {
	return Config{
		Log: LogConfig{
			Level:  "warn",
			Format: "console",
		},
		Output: OutputText,
		Cwd:    "/",
	}
}

// LoadConfig loads settings with strict priority:
// 1. Environment variables (highest priority)
// 2. Config file (the given path, or cloudfs.yaml/cloudfs.yml if present)
// 3. Defaults (lowest priority)
func LoadConfig(configFilePath string) (Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(DefaultConfig(), "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("failed to load default config: %w", err)
	}

	if configFilePath != "" {
		if _, err := os.Stat(configFilePath); err != nil {
			return Config{}, fmt.Errorf("specified config file %s not found: %w", configFilePath, err)
		}
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("failed to load config file %s: %w", configFilePath, err)
		}
	} else {
		for _, configFile := range []string{"cloudfs.yaml", "cloudfs.yml"} {
			if _, err := os.Stat(configFile); err == nil {
				if err := k.Load(file.Provider(configFile), yaml.Parser()); err != nil {
					return Config{}, fmt.Errorf("failed to load config file %s: %w", configFile, err)
				}
				break
			}
		}
	}

	// CLOUDFS_CLI_LOG_LEVEL -> log.level
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_", ".")
	}), nil); err != nil {
		return Config{}, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks enumerated settings.
func (c *Config) Validate() error {
	switch c.Output {
	case OutputText, OutputYAML:
	default:
		return fmt.Errorf("output must be %q or %q, got %q", OutputText, OutputYAML, c.Output)
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("log.format must be \"console\" or \"json\", got %q", c.Log.Format)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error, got %q", c.Log.Level)
	}
	return nil
}
