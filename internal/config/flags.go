package config

// Overrides holds command-line values. Zero values leave the loaded
// configuration untouched.
type Overrides struct {
	ConfigPath  string
	Debug       bool
	HalfScale   float32
	HalfMode    string
	Strict      bool
	Legend      string
	SearchPaths []string
	LogFile     string
}

// apply applies CLI overrides to the config.
func (o Overrides) apply(cfg *Config) {
	if o.Debug {
		cfg.Logging.Level = "debug"
	}
	if o.HalfScale != 0 {
		cfg.Decode.HalfFloatScale = o.HalfScale
	}
	if o.HalfMode != "" {
		cfg.Decode.HalfFloatMode = o.HalfMode
	}
	if o.Strict {
		cfg.Decode.StrictRelocations = true
	}
	if o.Legend != "" {
		cfg.Decode.LegendMarkup = o.Legend
	}
	if len(o.SearchPaths) > 0 {
		cfg.Data.SearchPaths = append([]string(nil), o.SearchPaths...)
	}
	if o.LogFile != "" {
		cfg.Logging.LogFile = o.LogFile
	}
}
