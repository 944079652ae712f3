package wager

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"karat-arcade/internal/game"
	"karat-arcade/internal/ledger"
	"karat-arcade/internal/store"
)

const (
	SpinModeFree    = "free"
	SpinModePremium = "premium"
)

type SpinStatus struct {
	RemainingFreeSpins int   `json:"remaining_free_spins"`
	FreeSpinsPerDay    int   `json:"free_spins_per_day"`
	PremiumCostKC      int64 `json:"premium_cost_kc"`
	// LastSpinAt is the player's most recent spin ever, not just today's.
	LastSpinAt *time.Time `json:"last_spin_at,omitempty"`
}

type SpinResult struct {
	PlayID       string          `json:"play_id"`
	Mode         string          `json:"mode"`
	RewardCode   string          `json:"reward_code"`
	RewardKC     int64           `json:"reward_kc"`
	CostKC       int64           `json:"cost_kc"`
	DeltaKC      int64           `json:"delta_kc"`
	BalanceAfter int64           `json:"balance_after"`
	Detail       json.RawMessage `json:"detail"`
	Replayed     bool            `json:"replayed,omitempty"`
}

// SpinStatus reports the player's quota for today. The free-spin count is
// derived from play records since local midnight, never stored, so it resets
// itself at the day boundary.
func (s *Service) SpinStatus(ctx context.Context, userID string) (*SpinStatus, error) {
	if userID == "" {
		return nil, ErrValidation
	}
	_, cfg, err := s.spinGame(ctx)
	if err != nil {
		return nil, err
	}
	used, _, err := s.store.CountPlaysSince(ctx, userID, string(game.VariantDailySpin), s.localMidnight())
	if err != nil {
		return nil, errors.Join(ErrInternal, err)
	}
	_, lastAt, err := s.store.CountPlaysSince(ctx, userID, string(game.VariantDailySpin), time.Time{})
	if err != nil {
		return nil, errors.Join(ErrInternal, err)
	}
	remaining := cfg.FreeSpinsPerDay - used
	if remaining < 0 {
		remaining = 0
	}
	return &SpinStatus{
		RemainingFreeSpins: remaining,
		FreeSpinsPerDay:    cfg.FreeSpinsPerDay,
		PremiumCostKC:      cfg.PremiumCostKC,
		LastSpinAt:         lastAt,
	}, nil
}

// Spin runs one daily spin. While free quota remains the spin costs nothing
// and the reward credit anchors the idempotency key; once quota is exhausted
// the spin debits the premium cost and the debit anchors the key instead.
func (s *Service) Spin(ctx context.Context, userID, operationID string) (*SpinResult, error) {
	if userID == "" || operationID == "" {
		return nil, ErrValidation
	}
	g, cfg, err := s.spinGame(ctx)
	if err != nil {
		return nil, err
	}

	var res *SpinResult
	err = s.ledger.WithUser(userID, func() error {
		if prior, err := s.replayedSpin(ctx, userID, operationID); err == nil && prior != nil {
			res = prior
			return nil
		} else if err != nil {
			return err
		}

		used, _, err := s.store.CountPlaysSince(ctx, userID, string(game.VariantDailySpin), s.localMidnight())
		if err != nil {
			return errors.Join(ErrInternal, err)
		}
		mode := SpinModeFree
		var cost int64
		if used >= cfg.FreeSpinsPerDay {
			mode = SpinModePremium
			cost = cfg.PremiumCostKC
		}

		balance, err := s.ledger.Balance(ctx, userID)
		if err != nil {
			return errors.Join(ErrInternal, err)
		}
		if balance < cost {
			return ErrInsufficientBalance
		}

		playID := store.NewID()
		var debit *store.LedgerEntry
		if mode == SpinModePremium {
			debit, err = s.appendWithRetry(ctx, ledger.Request{
				Kind:        store.KindWagerDebit,
				AmountKC:    cost,
				SenderID:    userID,
				ActorID:     userID,
				OperationID: operationID,
				RefType:     "play",
				RefID:       playID,
			})
			if err != nil {
				return err
			}
		}

		outcome, err := game.Resolve(g.Config, game.Choice{}, s.src)
		if err != nil {
			if debit != nil {
				return s.compensate(ctx, userID, debit, nil, "resolve_failed")
			}
			return errors.Join(ErrInternal, err)
		}
		spin := outcome.Detail.(game.SpinDetail)

		creditReq := ledger.Request{
			Kind:        store.KindReward,
			AmountKC:    spin.AmountKC,
			RecipientID: userID,
			ActorID:     userID,
			RefType:     "play",
			RefID:       playID,
		}
		if mode == SpinModeFree {
			creditReq.OperationID = operationID
		}
		credit, err := s.appendWithRetry(ctx, creditReq)
		if err != nil {
			if debit != nil {
				return s.compensate(ctx, userID, debit, nil, "credit_failed")
			}
			return err
		}

		detail, err := json.Marshal(spin)
		if err != nil {
			return s.compensate(ctx, userID, debit, credit, "detail_marshal_failed")
		}
		rec := store.PlayRecord{
			ID:            playID,
			PlayerID:      userID,
			GameID:        g.ID,
			Variant:       game.VariantDailySpin,
			BetKC:         cost,
			Result:        ResultWin,
			DeltaKC:       spin.AmountKC - cost,
			BalanceBefore: balance,
			BalanceAfter:  balance - cost + spin.AmountKC,
			Detail:        detail,
			CreatedAt:     s.now(),
		}
		if err := s.recordWithRetry(ctx, rec); err != nil {
			return s.compensate(ctx, userID, debit, credit, "history_append_failed")
		}

		s.bumpTotals(ctx, g.ID, store.GameTotalsDelta{
			Plays:   1,
			BetKC:   cost,
			WonKC:   spin.AmountKC,
			Winners: 1,
		})

		spinsTotal.WithLabelValues(mode).Inc()
		playsTotal.WithLabelValues(string(game.VariantDailySpin), ResultWin).Inc()
		wageredKCTotal.Add(float64(cost))
		paidOutKCTotal.Add(float64(spin.AmountKC))

		res = &SpinResult{
			PlayID:       playID,
			Mode:         mode,
			RewardCode:   spin.RewardCode,
			RewardKC:     spin.AmountKC,
			CostKC:       cost,
			DeltaKC:      spin.AmountKC - cost,
			BalanceAfter: rec.BalanceAfter,
			Detail:       detail,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Service) replayedSpin(ctx context.Context, userID, operationID string) (*SpinResult, error) {
	entry, err := s.ledger.EntryByOperation(ctx, userID, operationID)
	if errors.Is(err, ledger.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Join(ErrInternal, err)
	}
	if entry.RefType != "play" {
		return nil, ErrDuplicateOperation
	}
	rec, err := s.store.GetPlayRecord(ctx, entry.RefID)
	if err != nil {
		return nil, ErrDuplicateOperation
	}
	var spin game.SpinDetail
	if err := json.Unmarshal(rec.Detail, &spin); err != nil {
		return nil, ErrDuplicateOperation
	}
	mode := SpinModeFree
	if rec.BetKC > 0 {
		mode = SpinModePremium
	}
	return &SpinResult{
		PlayID:       rec.ID,
		Mode:         mode,
		RewardCode:   spin.RewardCode,
		RewardKC:     spin.AmountKC,
		CostKC:       rec.BetKC,
		DeltaKC:      rec.DeltaKC,
		BalanceAfter: rec.BalanceAfter,
		Detail:       rec.Detail,
		Replayed:     true,
	}, nil
}

func (s *Service) spinGame(ctx context.Context) (*store.GameDefinition, *game.DailySpinConfig, error) {
	g, err := s.store.GetGameByVariant(ctx, string(game.VariantDailySpin))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, errors.Join(ErrInternal, err)
	}
	if g.Status != store.GameActive {
		return nil, nil, ErrGameUnavailable
	}
	if g.Config.DailySpin == nil {
		return nil, nil, errors.Join(ErrInternal, game.ErrBadConfig)
	}
	return g, g.Config.DailySpin, nil
}

// localMidnight is the start of today in the configured timezone, the point
// the free-spin quota resets.
func (s *Service) localMidnight() time.Time {
	t := s.now().In(s.loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, s.loc)
}
