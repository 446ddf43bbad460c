package config

import (
	"time"
)

// Default returns a configuration with all default values applied.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// This function is called after loading configuration from file and environment
// variables to fill in any missing values with sensible defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Target == "" {
		cfg.Target = "udpout:127.0.0.1:14550"
	}
	if cfg.SystemID == 0 {
		cfg.SystemID = 255
	}
	if cfg.ComponentID == 0 {
		cfg.ComponentID = 190
	}
	if cfg.TargetSystem == 0 {
		cfg.TargetSystem = 1
	}
	if cfg.TargetComponent == 0 {
		cfg.TargetComponent = 1
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 500 * time.Millisecond
	}
	if cfg.BurstTimeout == 0 {
		cfg.BurstTimeout = time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 5
	}
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = 239
	}
	if cfg.BurstGapTolerance == 0 {
		cfg.BurstGapTolerance = 8
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "INFO"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stderr"
	}
}
