// Package config loads the mavftp configuration from file, environment
// and defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/patrickelectric/mavftp-cli/internal/bytesize"
	"github.com/patrickelectric/mavftp-cli/internal/logger"
)

// Config captures everything the client needs to talk to one vehicle.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (MAVFTP_*)
//  2. Configuration file
//  3. Default values
type Config struct {
	// Target is the link to the vehicle, e.g. "udpout:127.0.0.1:14550".
	Target string `mapstructure:"target" validate:"required" yaml:"target"`

	// SystemID and ComponentID identify this client on the MAVLink
	// network.
	SystemID    uint8 `mapstructure:"system_id" validate:"gt=0" yaml:"system_id"`
	ComponentID uint8 `mapstructure:"component_id" validate:"gt=0" yaml:"component_id"`

	// TargetNetwork, TargetSystem and TargetComponent address the
	// vehicle whose filesystem is operated on.
	TargetNetwork   uint8 `mapstructure:"target_network" yaml:"target_network"`
	TargetSystem    uint8 `mapstructure:"target_system" validate:"gt=0" yaml:"target_system"`
	TargetComponent uint8 `mapstructure:"target_component" validate:"gt=0" yaml:"target_component"`

	// Timeout is the per-attempt wait for a response before a request is
	// resent.
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0" yaml:"timeout"`

	// BurstTimeout is the wait for the next streamed burst packet before
	// the burst is resumed.
	BurstTimeout time.Duration `mapstructure:"burst_timeout" validate:"gt=0" yaml:"burst_timeout"`

	// MaxRetries bounds resends of a single request.
	MaxRetries int `mapstructure:"max_retries" validate:"gte=1,lte=100" yaml:"max_retries"`

	// ChunkSize bounds the bytes per read/write chunk. The protocol caps
	// it at 239; some remote implementations want less. Accepts plain
	// numbers or strings like "128B".
	ChunkSize bytesize.ByteSize `mapstructure:"chunk_size" validate:"gte=1,lte=239" yaml:"chunk_size"`

	// BurstGapTolerance is how many out-of-order burst packets are
	// buffered before the burst is resumed.
	BurstGapTolerance int `mapstructure:"burst_gap_tolerance" validate:"gte=1" yaml:"burst_gap_tolerance"`

	// Logging controls log output behavior.
	Logging logger.Config `mapstructure:"logging" yaml:"logging"`
}

// Load loads configuration from file, environment, and defaults.
// configPath may be empty, in which case the default location
// ($XDG_CONFIG_HOME/mavftp/config.yaml) is searched and a missing file
// simply yields defaults.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if found {
		if err := v.Unmarshal(cfg, viper.DecodeHook(decodeHooks())); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
		ApplyDefaults(cfg)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Save writes the configuration as YAML, creating parent directories.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks struct tags and cross-field constraints.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return err
	}

	scheme, _, _ := strings.Cut(cfg.Target, ":")
	switch scheme {
	case "udpout", "udpin", "tcpout":
	default:
		return fmt.Errorf("target scheme %q is not supported (want udpout, udpin or tcpout)", scheme)
	}
	return nil
}

// DefaultConfigPath returns the default config file location.
func DefaultConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

func configDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "mavftp")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "mavftp")
}

// setupViper configures environment variables and config file search.
// Example override: MAVFTP_LOGGING_LEVEL=DEBUG.
func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("MAVFTP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(configDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the config file if it exists.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

// decodeHooks parses durations written as strings like "500ms" and byte
// sizes written as strings like "128B".
func decodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		byteSizeDecodeHook(),
	)
}

// byteSizeDecodeHook converts strings and numbers to bytesize.ByteSize.
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return bytesize.Parse(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			// YAML often deserializes numbers as float64.
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}
