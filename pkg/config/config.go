// Package config loads dredge.toml and derives per-stage settings from
// it. A missing file yields the defaults, so the tool runs unconfigured;
// only the oracle credentials are mandatory, and those come from the
// environment rather than the file.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/ferrovax/dredge/pkg/artifact"
	"github.com/ferrovax/dredge/pkg/oracle"
)

// DefaultFileName is where Load looks when no path is given.
const DefaultFileName = "dredge.toml"

// Config is the full tool configuration.
type Config struct {
	Oracle   Oracle   `toml:"oracle"`
	Analysis Analysis `toml:"analysis"`
	Grouping Grouping `toml:"grouping"`
	Stable   Mode     `toml:"stable"`
	Fast     Mode     `toml:"fast"`
	Output   Output   `toml:"output"`
}

// Oracle configures the classification service endpoint.
type Oracle struct {
	BaseURL        string  `toml:"base_url"`
	Model          string  `toml:"model"`
	APIKeyEnv      string  `toml:"api_key_env"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
	Temperature    float64 `toml:"temperature"`
	RPMLimit       int     `toml:"rpm_limit"`
}

// Analysis configures the classification stage and the per-operation
// preview truncation.
type Analysis struct {
	MaxWorkers       int `toml:"max_workers"`
	ClassifyPreview  int `toml:"classify_preview"`
	PartitionPreview int `toml:"partition_preview"`
	ComparePreview   int `toml:"compare_preview"`
}

// Grouping configures the grouping stage.
type Grouping struct {
	MergeThreshold float64 `toml:"merge_threshold"`
}

// Mode is one retry/comparison parameter set; the tool carries two, a
// stable one and a fast one.
type Mode struct {
	Policy         string  `toml:"policy"`
	MaxAttempts    int     `toml:"max_attempts"`
	BackoffSeconds float64 `toml:"backoff_seconds"`
	MaxPairwise    int     `toml:"max_pairwise"`
}

// Output names the working area for stage artifacts.
type Output struct {
	Root string `toml:"root"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Oracle: Oracle{
			BaseURL:        "https://api.openai.com/v1",
			Model:          "gpt-4o-mini",
			APIKeyEnv:      "DREDGE_API_KEY",
			TimeoutSeconds: 120,
			Temperature:    0.2,
			RPMLimit:       200,
		},
		Analysis: Analysis{
			MaxWorkers:       50,
			ClassifyPreview:  8000,
			PartitionPreview: 2000,
			ComparePreview:   15000,
		},
		Grouping: Grouping{MergeThreshold: 0.6},
		Stable: Mode{
			Policy:         "iterative",
			MaxAttempts:    3,
			BackoffSeconds: 1.0,
			MaxPairwise:    5,
		},
		Fast: Mode{
			Policy:         "batch",
			MaxAttempts:    1,
			BackoffSeconds: 0.5,
			MaxPairwise:    8,
		},
		Output: Output{Root: "recovered"},
	}
}

// Load reads the configuration at path. A missing file returns the
// defaults; keys absent from the file keep their default values.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return cfg, nil
}

// Write persists cfg as TOML atomically.
func Write(path string, cfg *Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("write config %s: encode: %w", path, err)
	}
	return artifact.WriteFileAtomic(path, buf.Bytes())
}

// Mode returns the fast or stable parameter set.
func (c *Config) Mode(fast bool) Mode {
	if fast {
		return c.Fast
	}
	return c.Stable
}

// OracleOptions assembles the live client options for the given mode,
// resolving the API key through the configured environment variable.
func (c *Config) OracleOptions(fast bool) oracle.Options {
	mode := c.Mode(fast)
	return oracle.Options{
		BaseURL:           c.Oracle.BaseURL,
		Model:             c.Oracle.Model,
		APIKey:            os.Getenv(c.Oracle.APIKeyEnv),
		Timeout:           time.Duration(c.Oracle.TimeoutSeconds) * time.Second,
		MaxAttempts:       mode.MaxAttempts,
		BackoffBase:       time.Duration(mode.BackoffSeconds * float64(time.Second)),
		RequestsPerMinute: c.Oracle.RPMLimit,
		Temperature:       c.Oracle.Temperature,
		ClassifyPreview:   c.Analysis.ClassifyPreview,
		PartitionPreview:  c.Analysis.PartitionPreview,
		ComparePreview:    c.Analysis.ComparePreview,
	}
}

// Stage artifact locations under the output root.

func (c *Config) ExtractDir() string  { return filepath.Join(c.Output.Root, "extracted") }
func (c *Config) AnalyzeDir() string  { return filepath.Join(c.Output.Root, "analyzed") }
func (c *Config) OrganizeDir() string { return filepath.Join(c.Output.Root, "organized") }
func (c *Config) GroupsPath() string  { return filepath.Join(c.Output.Root, "groups.json") }
