package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"karat-arcade/internal/game"
	"karat-arcade/internal/ledger"
	"karat-arcade/internal/store"
)

type AdminHandlers struct {
	store     store.Store
	ledgerSvc *ledger.Service
}

func NewAdminHandlers(st store.Store, led *ledger.Service) *AdminHandlers {
	return &AdminHandlers{store: st, ledgerSvc: led}
}

func (h *AdminHandlers) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.store.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "db": "down"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "db": "up"})
	}
}

// Topup credits a player from the house. Admin only; the operation id makes
// retried requests safe.
func (h *AdminHandlers) Topup() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			PlayerID    string `json:"player_id"`
			AmountKC    int64  `json:"amount_kc"`
			OperationID string `json:"operation_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		if body.PlayerID == "" || body.AmountKC <= 0 {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		if body.OperationID == "" {
			body.OperationID = uuid.NewString()
		}
		if _, err := h.store.GetPlayer(r.Context(), body.PlayerID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				WriteHTTPError(w, http.StatusNotFound, "not_found")
				return
			}
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		entry, err := h.ledgerSvc.Deposit(r.Context(), body.PlayerID, body.AmountKC, store.KindDeposit, "topup", "", body.OperationID)
		if err != nil {
			writeLedgerError(w, err)
			return
		}
		bal, err := h.ledgerSvc.Balance(r.Context(), body.PlayerID)
		if err != nil {
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "entry": entry, "balance_kc": bal})
	}
}

// Ledger pages the full ledger with admin-grade filters: any side, kind,
// status, time range.
func (h *AdminHandlers) Ledger() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, offset := ParsePagination(r)
		f := store.LedgerFilter{
			UserID:      r.URL.Query().Get("user_id"),
			SenderID:    r.URL.Query().Get("sender_id"),
			RecipientID: r.URL.Query().Get("recipient_id"),
			Kind:        r.URL.Query().Get("kind"),
			Status:      r.URL.Query().Get("status"),
		}
		if v := r.URL.Query().Get("from"); v != "" {
			if t, err := time.Parse(time.RFC3339, v); err == nil {
				f.From = &t
			}
		}
		if v := r.URL.Query().Get("to"); v != "" {
			if t, err := time.Parse(time.RFC3339, v); err == nil {
				f.To = &t
			}
		}
		items, total, err := h.store.ListLedgerEntries(r.Context(), f, limit, offset)
		if err != nil {
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"items": items, "total": total, "limit": limit, "offset": offset})
	}
}

func (h *AdminHandlers) Games() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			items, err := h.store.ListGames(r.Context())
			if err != nil {
				WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"items": items})
		case http.MethodPost:
			var seed json.RawMessage
			if err := json.NewDecoder(r.Body).Decode(&seed); err != nil {
				WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
				return
			}
			var g store.GameDefinition
			if err := json.Unmarshal(seed, &g); err != nil {
				WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
				return
			}
			if g.ID == "" || g.Name == "" || !g.Variant.Valid() {
				WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
				return
			}
			if g.Config.Variant == "" {
				g.Config.Variant = g.Variant
			}
			if g.Config.Variant != g.Variant || g.Config.Validate() != nil {
				WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
				return
			}
			if g.Variant != game.VariantDailySpin && (g.MinBetKC <= 0 || g.MaxBetKC < g.MinBetKC) {
				WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
				return
			}
			if g.Status == "" {
				g.Status = store.GameActive
			}
			if err := h.store.UpsertGame(r.Context(), g); err != nil {
				WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "game_id": g.ID})
		default:
			WriteHTTPError(w, http.StatusMethodNotAllowed, "method_not_allowed")
		}
	}
}

func (h *AdminHandlers) GameStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			GameID string `json:"game_id"`
			Status string `json:"status"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		switch body.Status {
		case store.GameActive, store.GameInactive, store.GameMaintenance:
		default:
			WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		if err := h.store.SetGameStatus(r.Context(), body.GameID, body.Status); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				WriteHTTPError(w, http.StatusNotFound, "not_found")
				return
			}
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}
}

func (h *AdminHandlers) ReconciliationFlags() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, offset := ParsePagination(r)
		items, total, err := h.store.ListReconciliationFlags(r.Context(), limit, offset)
		if err != nil {
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"items": items, "total": total, "limit": limit, "offset": offset})
	}
}
