package config

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid config")

// Validate checks values that the pipeline cannot work with.
func (c *Config) Validate() error {
	p := c.Pipeline
	if p.Band.Low < 0 || p.Band.High < p.Band.Low {
		return fmt.Errorf("%w: band [%d, %d]", ErrInvalidConfig, p.Band.Low, p.Band.High)
	}
	if p.IterationCap <= 0 {
		return fmt.Errorf("%w: iteration_cap %d must be positive", ErrInvalidConfig, p.IterationCap)
	}
	if p.Passes <= 0 {
		return fmt.Errorf("%w: passes %d must be positive", ErrInvalidConfig, p.Passes)
	}
	switch p.Anchor {
	case "bbox", "centroid":
	default:
		return fmt.Errorf("%w: anchor %q (want bbox or centroid)", ErrInvalidConfig, p.Anchor)
	}
	switch c.Batch.OutputFormat {
	case "off", "obj", "stl":
	default:
		return fmt.Errorf("%w: output_format %q", ErrInvalidConfig, c.Batch.OutputFormat)
	}
	if c.Batch.Workers < 0 {
		return fmt.Errorf("%w: workers %d", ErrInvalidConfig, c.Batch.Workers)
	}
	return nil
}
