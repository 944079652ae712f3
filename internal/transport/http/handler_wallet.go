package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"karat-arcade/internal/ledger"
	"karat-arcade/internal/store"
)

type WalletHandlers struct {
	ledgerSvc *ledger.Service
}

func NewWalletHandlers(led *ledger.Service) *WalletHandlers {
	return &WalletHandlers{ledgerSvc: led}
}

func (h *WalletHandlers) Balance() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := PlayerFromContext(r.Context())
		if !ok {
			WriteHTTPError(w, http.StatusUnauthorized, "missing_user")
			return
		}
		bal, err := h.ledgerSvc.Balance(r.Context(), id.Player.ID)
		if err != nil {
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"player_id":  id.Player.ID,
			"balance_kc": bal,
			"currency":   store.CurrencyKC,
		})
	}
}

func (h *WalletHandlers) Ledger() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := PlayerFromContext(r.Context())
		if !ok {
			WriteHTTPError(w, http.StatusUnauthorized, "missing_user")
			return
		}
		limit, offset := ParsePagination(r)
		f := store.LedgerFilter{
			UserID: id.Player.ID,
			Kind:   r.URL.Query().Get("kind"),
			Status: r.URL.Query().Get("status"),
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
		items, total, err := h.ledgerSvc.List(r.Context(), f, limit, offset)
		if err != nil {
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"items": items, "total": total, "limit": limit, "offset": offset})
	}
}

func (h *WalletHandlers) Gift() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := PlayerFromContext(r.Context())
		if !ok {
			WriteHTTPError(w, http.StatusUnauthorized, "missing_user")
			return
		}
		var body struct {
			RecipientID string `json:"recipient_id"`
			AmountKC    int64  `json:"amount_kc"`
			Note        string `json:"note"`
			OperationID string `json:"operation_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		if body.OperationID == "" {
			body.OperationID = uuid.NewString()
		}
		entry, err := h.ledgerSvc.Transfer(r.Context(), id.Player.ID, body.RecipientID, body.AmountKC, store.KindGift, "gift", body.Note, body.OperationID)
		if err != nil {
			if errors.Is(err, ledger.ErrDuplicateOperation) && entry != nil {
				_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "entry": entry, "replayed": true})
				return
			}
			writeLedgerError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "entry": entry})
	}
}

func writeLedgerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrValidation):
		WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
	case errors.Is(err, ledger.ErrNotFound):
		WriteHTTPError(w, http.StatusNotFound, "not_found")
	case errors.Is(err, ledger.ErrInsufficientBalance):
		WriteHTTPError(w, http.StatusPaymentRequired, "insufficient_balance")
	case errors.Is(err, ledger.ErrDuplicateOperation):
		WriteHTTPError(w, http.StatusConflict, "duplicate_operation")
	default:
		WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
	}
}
