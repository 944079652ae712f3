package httptransport

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"karat-arcade/internal/config"
	"karat-arcade/internal/ledger"
	"karat-arcade/internal/stats"
	"karat-arcade/internal/store"
	"karat-arcade/internal/wager"
)

func NewRouter(st store.Store, cfg config.ServerConfig, led *ledger.Service, wag *wager.Service, sts *stats.Service) *chi.Mux {
	walletHandlers := NewWalletHandlers(led)
	playHandlers := NewPlayHandlers(wag)
	publicHandlers := NewPublicHandlers(st, sts)
	adminHandlers := NewAdminHandlers(st, led)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	r.With(APILogMiddleware()).Get("/healthz", adminHandlers.Health())
	r.Handle("/metrics", MetricsHandler())

	r.Route("/api", func(r chi.Router) {
		r.Use(APILogMiddleware())
		r.Use(MetricsMiddleware())

		r.Get("/public/games", publicHandlers.Games())
		r.Get("/public/leaderboard", publicHandlers.Leaderboard())
		r.Get("/public/stats", publicHandlers.Stats())

		r.Group(func(r chi.Router) {
			r.Use(IdentityMiddleware(st, led, cfg.WelcomeGrantKC))
			r.Post("/games/{game_id}/play", playHandlers.Play())
			r.Get("/history", playHandlers.History())
			r.Get("/spin/status", playHandlers.SpinStatus())
			r.Post("/spin", playHandlers.Spin())
			r.Get("/wallet/balance", walletHandlers.Balance())
			r.Get("/wallet/ledger", walletHandlers.Ledger())
			r.Post("/wallet/gift", walletHandlers.Gift())
		})

		r.Group(func(r chi.Router) {
			r.Use(AdminAuthMiddleware(cfg.AdminAPIKey))
			r.Post("/admin/topup", adminHandlers.Topup())
			r.Get("/admin/ledger", adminHandlers.Ledger())
			r.MethodFunc(http.MethodGet, "/admin/games", adminHandlers.Games())
			r.MethodFunc(http.MethodPost, "/admin/games", adminHandlers.Games())
			r.Post("/admin/games/status", adminHandlers.GameStatus())
			r.Get("/admin/reconciliation", adminHandlers.ReconciliationFlags())
		})
	})

	return r
}

func LogRoutes(r chi.Router) {
	type routeDef struct {
		Method string
		Path   string
	}
	routes := make([]routeDef, 0, 64)
	err := chi.Walk(r, func(method string, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		routes = append(routes, routeDef{Method: method, Path: route})
		return nil
	})
	if err != nil {
		log.Error().Err(err).Msg("walk routes failed")
		return
	}
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path == routes[j].Path {
			return routes[i].Method < routes[j].Method
		}
		return routes[i].Path < routes[j].Path
	})
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Registered routes (%d):\n", len(routes)))
	for _, rt := range routes {
		b.WriteString(fmt.Sprintf("  %-6s %s\n", rt.Method, rt.Path))
	}
	fmt.Print(b.String())
}
