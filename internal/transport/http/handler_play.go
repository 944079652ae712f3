package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"karat-arcade/internal/game"
	"karat-arcade/internal/wager"
)

type PlayHandlers struct {
	wagerSvc *wager.Service
}

func NewPlayHandlers(wag *wager.Service) *PlayHandlers {
	return &PlayHandlers{wagerSvc: wag}
}

func (h *PlayHandlers) Play() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := PlayerFromContext(r.Context())
		if !ok {
			WriteHTTPError(w, http.StatusUnauthorized, "missing_user")
			return
		}
		gameID := chi.URLParam(r, "game_id")
		var body struct {
			BetKC       int64       `json:"bet_kc"`
			Choice      game.Choice `json:"choice"`
			OperationID string      `json:"operation_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		res, err := h.wagerSvc.Play(r.Context(), id.Player.ID, gameID, body.BetKC, body.Choice, body.OperationID)
		if err != nil {
			writeWagerError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(res)
	}
}

func (h *PlayHandlers) SpinStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := PlayerFromContext(r.Context())
		if !ok {
			WriteHTTPError(w, http.StatusUnauthorized, "missing_user")
			return
		}
		status, err := h.wagerSvc.SpinStatus(r.Context(), id.Player.ID)
		if err != nil {
			writeWagerError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(status)
	}
}

func (h *PlayHandlers) Spin() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := PlayerFromContext(r.Context())
		if !ok {
			WriteHTTPError(w, http.StatusUnauthorized, "missing_user")
			return
		}
		var body struct {
			OperationID string `json:"operation_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		res, err := h.wagerSvc.Spin(r.Context(), id.Player.ID, body.OperationID)
		if err != nil {
			writeWagerError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(res)
	}
}

func (h *PlayHandlers) History() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := PlayerFromContext(r.Context())
		if !ok {
			WriteHTTPError(w, http.StatusUnauthorized, "missing_user")
			return
		}
		limit, offset := ParsePagination(r)
		variant := game.Variant(r.URL.Query().Get("variant"))
		if variant != "" && !variant.Valid() {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		items, total, err := h.wagerSvc.History(r.Context(), id.Player.ID, variant, limit, offset)
		if err != nil {
			writeWagerError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"items": items, "total": total, "limit": limit, "offset": offset})
	}
}

func writeWagerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, wager.ErrValidation):
		WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
	case errors.Is(err, wager.ErrNotFound):
		WriteHTTPError(w, http.StatusNotFound, "not_found")
	case errors.Is(err, wager.ErrGameUnavailable):
		WriteHTTPError(w, http.StatusConflict, "game_unavailable")
	case errors.Is(err, wager.ErrInsufficientBalance):
		WriteHTTPError(w, http.StatusPaymentRequired, "insufficient_balance")
	case errors.Is(err, wager.ErrDuplicateOperation):
		WriteHTTPError(w, http.StatusConflict, "duplicate_operation")
	case errors.Is(err, wager.ErrConcurrencyConflict):
		WriteHTTPError(w, http.StatusConflict, "concurrency_conflict")
	default:
		WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
	}
}
