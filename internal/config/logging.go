package config

import "github.com/caarlos0/env/v11"

// LogConfig drives the global zerolog setup. File is optional; when set, log
// output goes to a size-capped file at that path instead of stdout.
type LogConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Pretty bool   `env:"LOG_PRETTY" envDefault:"false"`
	// SampleEvery > 1 keeps only every Nth event, for noisy dev runs.
	SampleEvery int    `env:"LOG_SAMPLE_EVERY" envDefault:"0"`
	File        string `env:"LOG_FILE"`
	MaxMB       int    `env:"LOG_MAX_MB" envDefault:"10"`
}

func LoadLog() (LogConfig, error) {
	var cfg LogConfig
	err := env.Parse(&cfg)
	return cfg, err
}
