// Package config holds the engine's own operational configuration: where
// its store lives, which writer id this process uses, the split
// thresholds, the maintenance sweep schedule, and log level/sink. The
// split thresholds are loaded here only; pkg/split uses the fixed
// pkg/document constants and does not read them. Grounded on the teacher's pkg/config/config.go
// (YAML-backed struct, flag/env override pattern), trimmed to these
// engine-only concerns: no HTTP/TLS/API-key/CORS sections, since the
// content-facing API surface those configure is out of scope.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the engine's full operational configuration.
type Config struct {
	Store struct {
		Path     string `yaml:"path"`
		WriterID uint32 `yaml:"writer_id"`
	} `yaml:"store"`

	Split struct {
		RevisionCountThreshold int   `yaml:"revision_count_threshold"`
		ForceSizeBytes         int64 `yaml:"force_size_bytes"`
		CandidateBytes         int64 `yaml:"candidate_bytes"`
		IntermediateFanOut     int   `yaml:"intermediate_fan_out"`
	} `yaml:"split"`

	Maintenance struct {
		SweepCron string `yaml:"sweep_cron"`
	} `yaml:"maintenance"`

	Logging struct {
		Level string `yaml:"level"`
		Sink  string `yaml:"sink"`
	} `yaml:"logging"`

	Admin struct {
		Address string `yaml:"address"`
	} `yaml:"admin"`
}

// Default returns a Config with the same numeric defaults as the fixed
// package constants in pkg/document, so a caller that never writes a
// split section still gets the standard behavior.
func Default() *Config {
	var c Config
	c.Store.Path = "./data"
	c.Store.WriterID = 1
	c.Split.RevisionCountThreshold = 100
	c.Split.ForceSizeBytes = 1048576
	c.Split.CandidateBytes = 8192
	c.Split.IntermediateFanOut = 10
	c.Maintenance.SweepCron = "*/5 * * * *"
	c.Logging.Level = "info"
	c.Logging.Sink = "stdout"
	c.Admin.Address = "127.0.0.1:9090"
	return &c
}

// Load reads and parses the YAML config file at path, applying Default
// as a base so any field the file omits keeps its standard value.
func Load(path string) (*Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnvOverrides applies a small set of environment overrides onto cfg,
// grounded on the teacher's PROGRESSDB_* override pattern but scoped to
// this engine's own knobs.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DOCSTORE_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("DOCSTORE_WRITER_ID"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			cfg.Store.WriterID = uint32(n)
		}
	}
	if v := os.Getenv("DOCSTORE_SWEEP_CRON"); v != "" {
		cfg.Maintenance.SweepCron = v
	}
	if v := os.Getenv("DOCSTORE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("DOCSTORE_ADMIN_ADDR"); v != "" {
		cfg.Admin.Address = v
	}
}
