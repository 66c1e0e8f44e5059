package model

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Config holds the persistent mxstar settings. Flags override every field.
type Config struct {
	// WorkDir is the parent directory where run directories are allocated.
	WorkDir string `yaml:"work_dir"`
	// Workers is the pool width, 0 means the host logical CPU count.
	Workers int `yaml:"workers"`
	// LogFile is the run log location. A relative path is resolved against
	// the model directory of the run.
	LogFile string `yaml:"log_file"`
	// KeepLog retains the log file after a fully successful run.
	KeepLog bool `yaml:"keep_log"`
	// Shell executes job command lines, empty means $SHELL then /bin/sh.
	Shell   string `yaml:"shell,omitempty"`
	Verbose bool   `yaml:"verbose"`
}

func DefaultConfig() Config {
	return Config{
		WorkDir: ".",
		LogFile: "mxstar.log",
	}
}

func LoadConfig(r io.Reader) (Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.Workers < 0 {
		return Config{}, fmt.Errorf("workers must not be negative: %d", cfg.Workers)
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = "."
	}
	if cfg.LogFile == "" {
		cfg.LogFile = "mxstar.log"
	}
	return cfg, nil
}
