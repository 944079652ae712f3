package config

import "github.com/caarlos0/env/v11"

type ServerConfig struct {
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`

	// PostgresDSN empty means the in-memory store: dev mode and tests.
	PostgresDSN string `env:"POSTGRES_DSN"`

	AdminAPIKey string `env:"ADMIN_API_KEY"`

	// Timezone anchors calendar boundaries: daily-spin quota resets and
	// per-day statistics buckets.
	Timezone        string `env:"TIMEZONE" envDefault:"UTC"`
	GamesConfigPath string `env:"GAMES_CONFIG_PATH"`
	WelcomeGrantKC  int64  `env:"WELCOME_GRANT_KC" envDefault:"1000"`

	ShutdownTimeoutSecs int `env:"SHUTDOWN_TIMEOUT_SECONDS" envDefault:"10"`
}

func LoadServer() (ServerConfig, error) {
	var cfg ServerConfig
	err := env.Parse(&cfg)
	return cfg, err
}
