package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"

	"karat-arcade/internal/stats"
	"karat-arcade/internal/store"
)

type PublicHandlers struct {
	store    store.Store
	statsSvc *stats.Service
}

func NewPublicHandlers(st store.Store, sts *stats.Service) *PublicHandlers {
	return &PublicHandlers{store: st, statsSvc: sts}
}

// publicGame strips operational fields from the catalog entry; reward weights
// and multipliers stay visible so players can see the odds they are playing.
type publicGame struct {
	ID          string `json:"id"`
	Variant     string `json:"variant"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	MinBetKC    int64  `json:"min_bet_kc"`
	MaxBetKC    int64  `json:"max_bet_kc"`
	Status      string `json:"status"`
	Config      any    `json:"config"`
}

func (h *PublicHandlers) Games() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		games, err := h.store.ListGames(r.Context())
		if err != nil {
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		items := make([]publicGame, 0, len(games))
		for _, g := range games {
			if g.Status != store.GameActive {
				continue
			}
			items = append(items, publicGame{
				ID:          g.ID,
				Variant:     string(g.Variant),
				Name:        g.Name,
				Description: g.Description,
				MinBetKC:    g.MinBetKC,
				MaxBetKC:    g.MaxBetKC,
				Status:      g.Status,
				Config:      g.Config,
			})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"items": items})
	}
}

func (h *PublicHandlers) Leaderboard() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, _ := ParsePagination(r)
		if r.URL.Query().Get("limit") == "" {
			limit = 10
		}
		if limit > 100 {
			limit = 100
		}
		period := r.URL.Query().Get("period")
		rows, err := h.statsSvc.Leaderboard(r.Context(), period, limit)
		if err != nil {
			if errors.Is(err, stats.ErrBadPeriod) {
				WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
				return
			}
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"items": rows, "period": orAll(period)})
	}
}

func (h *PublicHandlers) Stats() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		period := r.URL.Query().Get("period")
		resp, err := h.statsSvc.Statistics(r.Context(), period)
		if err != nil {
			if errors.Is(err, stats.ErrBadPeriod) {
				WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
				return
			}
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func orAll(period string) string {
	if period == "" {
		return stats.PeriodAll
	}
	return period
}
