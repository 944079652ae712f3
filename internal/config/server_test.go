package config

import "testing"

func TestLoadServerDefaults(t *testing.T) {
	cfg, err := LoadServer()
	if err != nil {
		t.Fatalf("LoadServer() error = %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("HTTPAddr = %q, want :8080", cfg.HTTPAddr)
	}
	if cfg.Timezone != "UTC" {
		t.Fatalf("Timezone = %q, want UTC", cfg.Timezone)
	}
	if cfg.WelcomeGrantKC != 1000 {
		t.Fatalf("WelcomeGrantKC = %d, want 1000", cfg.WelcomeGrantKC)
	}
	if cfg.PostgresDSN != "" {
		t.Fatalf("PostgresDSN = %q, want empty", cfg.PostgresDSN)
	}
}

func TestLoadServerParseTypes(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "postgres://localhost:5432/arcade?sslmode=disable")
	t.Setenv("WELCOME_GRANT_KC", "250")
	t.Setenv("TIMEZONE", "Europe/Berlin")
	t.Setenv("SHUTDOWN_TIMEOUT_SECONDS", "30")

	cfg, err := LoadServer()
	if err != nil {
		t.Fatalf("LoadServer() error = %v", err)
	}
	if cfg.PostgresDSN == "" {
		t.Fatal("PostgresDSN not picked up")
	}
	if cfg.WelcomeGrantKC != 250 {
		t.Fatalf("WelcomeGrantKC = %d, want 250", cfg.WelcomeGrantKC)
	}
	if cfg.Timezone != "Europe/Berlin" {
		t.Fatalf("Timezone = %q, want Europe/Berlin", cfg.Timezone)
	}
	if cfg.ShutdownTimeoutSecs != 30 {
		t.Fatalf("ShutdownTimeoutSecs = %d, want 30", cfg.ShutdownTimeoutSecs)
	}
}
