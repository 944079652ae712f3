package config

import "github.com/caarlos0/env/v11"

// TestConfig gates the postgres-backed store tests. Without TEST_POSTGRES_DSN
// in the environment those tests skip rather than fail.
type TestConfig struct {
	TestPostgresDSN string `env:"TEST_POSTGRES_DSN,required,notEmpty"`
}

func LoadTest() (TestConfig, error) {
	var cfg TestConfig
	err := env.Parse(&cfg)
	return cfg, err
}
