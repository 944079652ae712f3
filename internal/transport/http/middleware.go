package httptransport

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog/v3"
	"github.com/rs/zerolog/log"

	"karat-arcade/internal/ledger"
	"karat-arcade/internal/logging"
	"karat-arcade/internal/store"
)

type playerContextKey struct{}

type Identity struct {
	Player *store.Player
	Role   string
}

func PlayerFromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(playerContextKey{}).(*Identity)
	return id, ok
}

func APILogMiddleware() func(http.Handler) http.Handler {
	return httplog.RequestLogger(
		slog.New(slog.NewJSONHandler(logging.Writer(), &slog.HandlerOptions{})),
		&httplog.Options{
			Level:              slog.LevelInfo,
			Schema:             httplog.Schema{ResponseStatus: "status", ResponseDuration: "duration_ms"},
			LogRequestBody:     func(*http.Request) bool { return false },
			LogResponseBody:    func(*http.Request) bool { return false },
			LogRequestHeaders:  []string{},
			LogResponseHeaders: []string{},
			LogExtraAttrs: func(req *http.Request, _ string, _ int) []slog.Attr {
				rc := chi.RouteContext(req.Context())
				route := req.URL.Path
				if rc != nil && rc.RoutePattern() != "" {
					route = rc.RoutePattern()
				}
				return []slog.Attr{
					slog.String("request_id", chimw.GetReqID(req.Context())),
					slog.String("method", req.Method),
					slog.String("route", route),
					slog.String("path", req.URL.Path),
				}
			},
		},
	)
}

// IdentityMiddleware resolves the calling player from the X-User-ID header,
// upserting the player row and issuing the one-time welcome grant on first
// contact. The grant is idempotent: it rides an operation id derived from the
// player, so a concurrent first request cannot double-credit.
func IdentityMiddleware(st store.Store, led *ledger.Service, welcomeGrantKC int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := strings.TrimSpace(r.Header.Get("X-User-ID"))
			if userID == "" || len(userID) > 64 {
				WriteHTTPError(w, http.StatusUnauthorized, "missing_user")
				return
			}
			name := strings.TrimSpace(r.Header.Get("X-User-Name"))
			role := strings.TrimSpace(r.Header.Get("X-User-Role"))

			p, err := st.GetPlayer(r.Context(), userID)
			switch {
			case err == nil:
				if name != "" && name != p.Name {
					p.Name = name
					if err := st.UpsertPlayer(r.Context(), *p); err != nil {
						log.Warn().Err(err).Str("player_id", userID).Msg("player name update failed")
					}
				}
			case errors.Is(err, store.ErrNotFound):
				p, err = registerPlayer(r.Context(), st, led, userID, name, welcomeGrantKC)
				if err != nil {
					WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
					return
				}
			default:
				WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
				return
			}

			ctx := context.WithValue(r.Context(), playerContextKey{}, &Identity{Player: p, Role: role})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func registerPlayer(ctx context.Context, st store.Store, led *ledger.Service, userID, name string, grantKC int64) (*store.Player, error) {
	p := store.Player{ID: userID, Name: name}
	if err := st.UpsertPlayer(ctx, p); err != nil {
		return nil, err
	}
	if grantKC > 0 {
		_, err := led.Deposit(ctx, userID, grantKC, store.KindReward, "welcome", userID, "welcome_grant")
		if err != nil && !errors.Is(err, ledger.ErrDuplicateOperation) {
			return nil, err
		}
		if err == nil {
			log.Info().Str("player_id", userID).Int64("amount_kc", grantKC).Msg("welcome grant issued")
		}
	}
	return &p, nil
}

func AdminAuthMiddleware(adminKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if adminKey == "" || !CheckAdminAuth(r, adminKey) {
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": "unauthorized"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func CheckAdminAuth(r *http.Request, adminKey string) bool {
	if v := r.Header.Get("X-Admin-Key"); v == adminKey {
		return true
	}
	auth := r.Header.Get("Authorization")
	prefix := "Bearer "
	if len(auth) > len(prefix) && auth[:len(prefix)] == prefix {
		return auth[len(prefix):] == adminKey
	}
	return false
}

func WriteHTTPError(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": code})
}

func ParsePagination(r *http.Request) (int, int) {
	limit := 50
	offset := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			offset = n
		}
	}
	if limit < 1 {
		limit = 1
	}
	if limit > 500 {
		limit = 500
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
