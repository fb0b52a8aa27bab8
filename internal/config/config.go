// Package config handles loading and saving shapenorm settings.
package config

import "time"

// Config holds all shapenorm settings.
type Config struct {
	Pipeline PipelineConfig `yaml:"pipeline"`
	Batch    BatchConfig    `yaml:"batch"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// BandConfig is the accepted vertex/face count range.
type BandConfig struct {
	Low  int `yaml:"low"`
	High int `yaml:"high"`
}

// PipelineConfig holds settings for the normalize-and-repair core.
type PipelineConfig struct {
	Band          BandConfig `yaml:"band"`
	IterationCap  int        `yaml:"iteration_cap"`
	Passes        int        `yaml:"passes"`         // remesh + repair repetitions
	Anchor        string     `yaml:"anchor"`         // "bbox" or "centroid"
	AcceptPartial bool       `yaml:"accept_partial"` // keep meshes that miss the band
}

// BatchConfig holds settings for directory processing.
type BatchConfig struct {
	Workers      int           `yaml:"workers"` // 0 = one per CPU
	OutputFormat string        `yaml:"output_format"`
	SkipExisting bool          `yaml:"skip_existing"`
	MeshTimeout  time.Duration `yaml:"mesh_timeout"` // 0 = no limit
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with the dataset defaults.
func Default() *Config {
	return &Config{
		Pipeline: PipelineConfig{
			Band:          BandConfig{Low: 1000, High: 2000},
			IterationCap:  8,
			Passes:        1,
			Anchor:        "bbox",
			AcceptPartial: false,
		},
		Batch: BatchConfig{
			Workers:      0,
			OutputFormat: "off",
			SkipExisting: true,
			MeshTimeout:  0,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}
