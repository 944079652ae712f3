package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"karat-arcade/internal/app/bootstrap"
	"karat-arcade/internal/config"
	"karat-arcade/internal/game"
	"karat-arcade/internal/ledger"
	"karat-arcade/internal/logging"
	"karat-arcade/internal/stats"
	"karat-arcade/internal/store"
	"karat-arcade/internal/store/memory"
	"karat-arcade/internal/store/postgres"
	httptransport "karat-arcade/internal/transport/http"
	"karat-arcade/internal/wager"
)

func main() {
	root := &cobra.Command{
		Use:           "arcade-server",
		Short:         "Karat Arcade wagering and KC ledger server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(serveCmd(), seedGamesCmd())
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := setup()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func seedGamesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed-games",
		Short: "Load the game catalog into the store and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := setup()
			if err != nil {
				return err
			}
			st, err := openStore(cmd.Context(), cfg.Server)
			if err != nil {
				return err
			}
			defer st.Close()
			added, err := bootstrap.EnsureGames(cmd.Context(), st, cfg.Server.GamesConfigPath)
			if err != nil {
				return err
			}
			log.Info().Int("added", added).Msg("game catalog seeded")
			return nil
		},
	}
}

func setup() (config.AppConfig, error) {
	cfg, err := config.LoadApp()
	if err != nil {
		return config.AppConfig{}, fmt.Errorf("load config: %w", err)
	}
	if err := logging.Init(cfg.Log); err != nil {
		return config.AppConfig{}, fmt.Errorf("init logging: %w", err)
	}
	return cfg, nil
}

func openStore(ctx context.Context, cfg config.ServerConfig) (store.Store, error) {
	if cfg.PostgresDSN == "" {
		log.Info().Msg("no POSTGRES_DSN, using in-memory store")
		return memory.New(), nil
	}
	st, err := postgres.New(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return st, nil
}

func serve(ctx context.Context, cfg config.AppConfig) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg.Server)
	if err != nil {
		return err
	}
	defer st.Close()
	if err := st.Ping(ctx); err != nil {
		return fmt.Errorf("store ping: %w", err)
	}

	if _, err := bootstrap.EnsureGames(ctx, st, cfg.Server.GamesConfigPath); err != nil {
		return fmt.Errorf("seed games: %w", err)
	}

	loc, err := time.LoadLocation(cfg.Server.Timezone)
	if err != nil {
		return fmt.Errorf("load timezone %q: %w", cfg.Server.Timezone, err)
	}

	led := ledger.New(st)
	wag := wager.New(st, led, game.CryptoSource{}, wager.WithLocation(loc))
	sts := stats.New(st, stats.WithLocation(loc))

	r := httptransport.NewRouter(st, cfg.Server, led, wag, sts)
	httptransport.LogRoutes(r)

	server := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Server.HTTPAddr).Msg("http listening")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeoutSecs)*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	_ = logging.Close()
	return nil
}
