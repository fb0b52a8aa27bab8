package config

import "flag"

var (
	flagConfig  = flag.String("config", "", "Path to config file")
	flagDebug   = flag.Bool("debug", false, "Enable debug logging")
	flagLow     = flag.Int("low", 0, "Lower bound of the vertex/face band")
	flagHigh    = flag.Int("high", 0, "Upper bound of the vertex/face band")
	flagCap     = flag.Int("cap", 0, "Remesh iteration cap")
	flagWorkers = flag.Int("workers", 0, "Batch worker count")
	flagFormat  = flag.String("format", "", "Batch output format (off, obj, stl)")
	flagLogFile = flag.String("log-file", "", "Write logs to this file as well")
	flagPartial = flag.Bool("accept-partial", false, "Keep meshes whose density stays outside the band")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// Args returns the non-flag arguments.
func Args() []string {
	return flag.Args()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagLow > 0 {
		cfg.Pipeline.Band.Low = *flagLow
	}
	if *flagHigh > 0 {
		cfg.Pipeline.Band.High = *flagHigh
	}
	if *flagCap > 0 {
		cfg.Pipeline.IterationCap = *flagCap
	}
	if *flagWorkers > 0 {
		cfg.Batch.Workers = *flagWorkers
	}
	if *flagFormat != "" {
		cfg.Batch.OutputFormat = *flagFormat
	}
	if *flagLogFile != "" {
		cfg.Logging.LogFile = *flagLogFile
	}
	if *flagPartial {
		cfg.Pipeline.AcceptPartial = true
	}
}
