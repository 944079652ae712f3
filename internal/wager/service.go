// Package wager orchestrates one play: validate, check balance, debit,
// resolve, credit, record history, bump game totals. The debit-to-credit
// window runs under the player's ledger lock, so two plays by the same player
// always observe a linear balance history.
package wager

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"karat-arcade/internal/game"
	"karat-arcade/internal/ledger"
	"karat-arcade/internal/store"
)

const maxWriteAttempts = 3

const (
	ResultWin  = "win"
	ResultLose = "lose"
)

type Service struct {
	store  store.Store
	ledger *ledger.Service
	src    game.Source
	loc    *time.Location
	now    func() time.Time
}

type Option func(*Service)

// WithClock overrides the time source. Test hook.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLocation sets the calendar timezone used for daily-spin quota resets
// and stats bucketing.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) { s.loc = loc }
}

func New(st store.Store, led *ledger.Service, src game.Source, opts ...Option) *Service {
	s := &Service{
		store:  st,
		ledger: led,
		src:    src,
		loc:    time.UTC,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

type PlayResult struct {
	PlayID       string          `json:"play_id"`
	GameID       string          `json:"game_id"`
	Variant      game.Variant    `json:"variant"`
	Result       string          `json:"result"`
	BetKC        int64           `json:"bet_kc"`
	PayoutKC     int64           `json:"payout_kc"`
	DeltaKC      int64           `json:"delta_kc"`
	BalanceAfter int64           `json:"balance_after"`
	Detail       json.RawMessage `json:"detail"`
	Replayed     bool            `json:"replayed,omitempty"`
}

// Play runs one wager to completion. operationID is the caller's idempotency
// key: replaying it returns the original result instead of debiting again.
func (s *Service) Play(ctx context.Context, userID, gameID string, betKC int64, choice game.Choice, operationID string) (*PlayResult, error) {
	if userID == "" || gameID == "" || operationID == "" || betKC <= 0 {
		return nil, ErrValidation
	}
	g, err := s.store.GetGame(ctx, gameID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Join(ErrInternal, err)
	}
	if g.Status != store.GameActive {
		return nil, ErrGameUnavailable
	}
	if g.Variant == game.VariantDailySpin {
		// spins go through Spin, not the wager path
		return nil, ErrValidation
	}
	if betKC < g.MinBetKC || betKC > g.MaxBetKC {
		return nil, ErrValidation
	}
	if err := game.ValidateChoice(g.Config, choice); err != nil {
		return nil, ErrValidation
	}

	var res *PlayResult
	err = s.ledger.WithUser(userID, func() error {
		if prior, err := s.replayedResult(ctx, userID, operationID); err == nil && prior != nil {
			res = prior
			return nil
		} else if err != nil {
			return err
		}

		balance, err := s.ledger.Balance(ctx, userID)
		if err != nil {
			return errors.Join(ErrInternal, err)
		}
		if balance < betKC {
			return ErrInsufficientBalance
		}

		playID := store.NewID()
		debit, err := s.appendWithRetry(ctx, ledger.Request{
			Kind:        store.KindWagerDebit,
			AmountKC:    betKC,
			SenderID:    userID,
			ActorID:     userID,
			OperationID: operationID,
			RefType:     "play",
			RefID:       playID,
		})
		if err != nil {
			return err
		}

		outcome, err := game.Resolve(g.Config, choice, s.src)
		if err != nil {
			return s.compensate(ctx, userID, debit, nil, "resolve_failed")
		}

		var payout int64
		var credit *store.LedgerEntry
		if outcome.Win {
			payout = game.Payout(betKC, outcome.Multiplier)
			credit, err = s.appendWithRetry(ctx, ledger.Request{
				Kind:        store.KindWagerCredit,
				AmountKC:    payout,
				RecipientID: userID,
				ActorID:     userID,
				RefType:     "play",
				RefID:       playID,
			})
			if err != nil {
				return s.compensate(ctx, userID, debit, nil, "credit_failed")
			}
		}

		detail, err := json.Marshal(outcome.Detail)
		if err != nil {
			return s.compensate(ctx, userID, debit, credit, "detail_marshal_failed")
		}
		result := ResultLose
		if outcome.Win {
			result = ResultWin
		}
		rec := store.PlayRecord{
			ID:            playID,
			PlayerID:      userID,
			GameID:        g.ID,
			Variant:       g.Variant,
			BetKC:         betKC,
			Result:        result,
			DeltaKC:       payout - betKC,
			BalanceBefore: balance,
			BalanceAfter:  balance - betKC + payout,
			Detail:        detail,
			CreatedAt:     s.now(),
		}
		if err := s.recordWithRetry(ctx, rec); err != nil {
			return s.compensate(ctx, userID, debit, credit, "history_append_failed")
		}

		s.bumpTotals(ctx, g.ID, store.GameTotalsDelta{
			Plays:   1,
			BetKC:   betKC,
			WonKC:   payout,
			Winners: boolToInt64(outcome.Win),
			Losers:  boolToInt64(!outcome.Win),
		})

		playsTotal.WithLabelValues(string(g.Variant), result).Inc()
		wageredKCTotal.Add(float64(betKC))
		paidOutKCTotal.Add(float64(payout))

		res = &PlayResult{
			PlayID:       playID,
			GameID:       g.ID,
			Variant:      g.Variant,
			Result:       result,
			BetKC:        betKC,
			PayoutKC:     payout,
			DeltaKC:      payout - betKC,
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

// replayedResult resolves an operation id that was already applied. Returns
// (nil, nil) when the operation is new. A known operation whose play record
// never landed (it was compensated) is surfaced as a duplicate.
func (s *Service) replayedResult(ctx context.Context, userID, operationID string) (*PlayResult, error) {
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
	payout := rec.DeltaKC + rec.BetKC
	return &PlayResult{
		PlayID:       rec.ID,
		GameID:       rec.GameID,
		Variant:      rec.Variant,
		Result:       rec.Result,
		BetKC:        rec.BetKC,
		PayoutKC:     payout,
		DeltaKC:      rec.DeltaKC,
		BalanceAfter: rec.BalanceAfter,
		Detail:       rec.Detail,
		Replayed:     true,
	}, nil
}

func (s *Service) appendWithRetry(ctx context.Context, req ledger.Request) (*store.LedgerEntry, error) {
	var lastErr error
	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		entry, err := s.ledger.Append(ctx, req)
		if err == nil {
			return entry, nil
		}
		if errors.Is(err, ledger.ErrDuplicateOperation) {
			return nil, ErrDuplicateOperation
		}
		if errors.Is(err, ledger.ErrValidation) {
			return nil, ErrValidation
		}
		lastErr = err
		if !errors.Is(err, store.ErrConflict) && attempt > 0 {
			break
		}
	}
	if errors.Is(lastErr, store.ErrConflict) {
		return nil, errors.Join(ErrConcurrencyConflict, lastErr)
	}
	return nil, errors.Join(ErrInternal, lastErr)
}

func (s *Service) recordWithRetry(ctx context.Context, rec store.PlayRecord) error {
	var lastErr error
	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		if err := s.store.AppendPlayRecord(ctx, rec); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}
	return lastErr
}

// compensate reverses whatever landed before the failure: a refund credit for
// the debit and, when a payout was already credited, a refund debit for it.
// If compensation itself cannot be written the play is flagged for manual
// reconciliation and the error escalates; it is never reported as success.
func (s *Service) compensate(ctx context.Context, userID string, debit, credit *store.LedgerEntry, reason string) error {
	failed := false
	if debit != nil {
		_, err := s.appendWithRetry(ctx, ledger.Request{
			Kind:        store.KindRefund,
			AmountKC:    debit.AmountKC,
			RecipientID: userID,
			ActorID:     userID,
			RefType:     debit.RefType,
			RefID:       debit.RefID,
			RefundOfID:  debit.ID,
		})
		if err != nil {
			failed = true
			s.flagReconciliation(ctx, userID, debit.ID, reason)
		} else {
			compensationsTotal.Inc()
		}
	}
	if credit != nil {
		_, err := s.appendWithRetry(ctx, ledger.Request{
			Kind:       store.KindRefund,
			AmountKC:   credit.AmountKC,
			SenderID:   userID,
			ActorID:    userID,
			RefType:    credit.RefType,
			RefID:      credit.RefID,
			RefundOfID: credit.ID,
		})
		if err != nil {
			failed = true
			s.flagReconciliation(ctx, userID, credit.ID, reason)
		} else {
			compensationsTotal.Inc()
		}
	}
	if failed {
		return errors.Join(ErrInternal, errors.New("compensation_failed: "+reason))
	}
	log.Warn().
		Str("player_id", userID).
		Str("reason", reason).
		Msg("play compensated")
	return errors.Join(ErrInternal, errors.New(reason))
}

func (s *Service) flagReconciliation(ctx context.Context, userID, entryID, reason string) {
	reconciliationsTotal.Inc()
	flag := store.ReconciliationFlag{
		ID:        store.NewID(),
		PlayerID:  userID,
		EntryID:   entryID,
		Reason:    reason,
		CreatedAt: s.now(),
	}
	if err := s.store.FlagReconciliation(ctx, flag); err != nil {
		log.Error().Err(err).
			Str("player_id", userID).
			Str("entry_id", entryID).
			Str("reason", reason).
			Msg("RECONCILIATION REQUIRED: flag write failed, books inconsistent")
		return
	}
	log.Error().
		Str("player_id", userID).
		Str("entry_id", entryID).
		Str("reason", reason).
		Msg("play flagged for manual reconciliation")
}

// bumpTotals updates the game's running counters. Best effort: these feed
// dashboards, never balance math, so a failure only logs.
func (s *Service) bumpTotals(ctx context.Context, gameID string, d store.GameTotalsDelta) {
	if err := s.store.ApplyGameTotals(ctx, gameID, d); err != nil {
		log.Warn().Err(err).Str("game_id", gameID).Msg("game totals update failed")
	}
}

// History pages a player's play records, optionally filtered by variant.
func (s *Service) History(ctx context.Context, userID string, variant game.Variant, limit, offset int) ([]store.PlayRecord, int, error) {
	if userID == "" {
		return nil, 0, ErrValidation
	}
	items, total, err := s.store.ListPlayRecords(ctx, store.PlayFilter{PlayerID: userID, Variant: variant}, limit, offset)
	if err != nil {
		return nil, 0, errors.Join(ErrInternal, err)
	}
	return items, total, nil
}

func boolToInt64(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
