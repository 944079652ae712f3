// Package ledger is the single authority for KC balances. A balance is always
// the sum of completed credits minus completed debits for a user; nothing in
// the system keeps a separately mutated counter.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"karat-arcade/internal/store"
)

type Service struct {
	store store.Store
	locks *userLocks
	now   func() time.Time
}

func New(st store.Store) *Service {
	return &Service{
		store: st,
		locks: newUserLocks(),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the time source. Test hook.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// WithUser serializes balance-affecting sequences for one user. Different
// users never contend on the same lock.
func (s *Service) WithUser(userID string, fn func() error) error {
	l := s.locks.get(userID)
	l.Lock()
	defer l.Unlock()
	return fn()
}

func (s *Service) Balance(ctx context.Context, userID string) (int64, error) {
	bal, err := s.store.UserBalance(ctx, userID)
	if err != nil {
		return 0, errors.Join(ErrPersistence, err)
	}
	return bal, nil
}

// Request describes one movement for Append. Either side may be empty,
// meaning the house.
type Request struct {
	Kind        string
	AmountKC    int64
	SenderID    string
	RecipientID string
	ActorID     string
	OperationID string
	RefType     string
	RefID       string
	RefundOfID  string
	Pending     bool
}

// Append validates, snapshots balances, and persists one entry. The caller
// must hold the sender's user lock (WithUser) when the entry debits a user.
// Wager entries complete synchronously; Pending leaves the entry open for a
// later CompleteEntry call (deposit flows).
func (s *Service) Append(ctx context.Context, req Request) (*store.LedgerEntry, error) {
	if req.AmountKC <= 0 {
		return nil, ErrValidation
	}
	if req.Kind == "" || req.ActorID == "" {
		return nil, ErrValidation
	}
	e := store.LedgerEntry{
		ID:          store.NewID(),
		Code:        store.NewTransactionCode(),
		Kind:        req.Kind,
		Currency:    store.CurrencyKC,
		AmountKC:    req.AmountKC,
		SenderID:    req.SenderID,
		RecipientID: req.RecipientID,
		ActorID:     req.ActorID,
		OperationID: req.OperationID,
		Status:      store.StatusCompleted,
		RefType:     req.RefType,
		RefID:       req.RefID,
		RefundOfID:  req.RefundOfID,
		CreatedAt:   s.now(),
	}
	if req.Pending {
		e.Status = store.StatusPending
	} else {
		t := e.CreatedAt
		e.CompletedAt = &t
	}
	if req.SenderID != "" {
		before, err := s.Balance(ctx, req.SenderID)
		if err != nil {
			return nil, err
		}
		after := before - req.AmountKC
		e.SenderBalanceBefore = &before
		e.SenderBalanceAfter = &after
	}
	if req.RecipientID != "" {
		before, err := s.Balance(ctx, req.RecipientID)
		if err != nil {
			return nil, err
		}
		after := before + req.AmountKC
		e.RecipientBalanceBefore = &before
		e.RecipientBalanceAfter = &after
	}
	if err := s.store.AppendLedgerEntry(ctx, e); err != nil {
		if errors.Is(err, store.ErrDuplicateOperation) {
			return nil, ErrDuplicateOperation
		}
		return nil, errors.Join(ErrPersistence, err)
	}
	return &e, nil
}

// CompleteEntry finalizes a pending entry (deposit settlement).
func (s *Service) CompleteEntry(ctx context.Context, id, status string) error {
	if err := s.store.CompleteLedgerEntry(ctx, id, status); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return errors.Join(ErrPersistence, err)
	}
	return nil
}

// EntryByOperation looks up the entry recorded for an idempotency key.
func (s *Service) EntryByOperation(ctx context.Context, actorID, operationID string) (*store.LedgerEntry, error) {
	e, err := s.store.GetLedgerEntryByOperation(ctx, actorID, operationID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Join(ErrPersistence, err)
	}
	return e, nil
}

// Transfer moves KC between two users (gift and transfer kinds). It runs
// under the sender's lock and fails before any write when the sender cannot
// cover the amount.
func (s *Service) Transfer(ctx context.Context, senderID, recipientID string, amountKC int64, kind, refType, refID, operationID string) (*store.LedgerEntry, error) {
	if senderID == "" || recipientID == "" || senderID == recipientID {
		return nil, ErrValidation
	}
	if amountKC <= 0 {
		return nil, ErrValidation
	}
	if _, err := s.store.GetPlayer(ctx, recipientID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Join(ErrPersistence, err)
	}
	var entry *store.LedgerEntry
	err := s.WithUser(senderID, func() error {
		if operationID != "" {
			if prior, err := s.EntryByOperation(ctx, senderID, operationID); err == nil {
				entry = prior
				return ErrDuplicateOperation
			} else if !errors.Is(err, ErrNotFound) {
				return err
			}
		}
		bal, err := s.Balance(ctx, senderID)
		if err != nil {
			return err
		}
		if bal < amountKC {
			return ErrInsufficientBalance
		}
		entry, err = s.Append(ctx, Request{
			Kind:        kind,
			AmountKC:    amountKC,
			SenderID:    senderID,
			RecipientID: recipientID,
			ActorID:     senderID,
			OperationID: operationID,
			RefType:     refType,
			RefID:       refID,
		})
		return err
	})
	if err != nil {
		return entry, err
	}
	log.Info().
		Str("sender_id", senderID).
		Str("recipient_id", recipientID).
		Int64("amount_kc", amountKC).
		Str("kind", kind).
		Msg("transfer completed")
	return entry, nil
}

// Deposit credits a user from the house. Used by admin topups and welcome
// grants; completes synchronously.
func (s *Service) Deposit(ctx context.Context, userID string, amountKC int64, kind, refType, refID, operationID string) (*store.LedgerEntry, error) {
	if userID == "" {
		return nil, ErrValidation
	}
	switch kind {
	case store.KindDeposit, store.KindReward:
	default:
		return nil, ErrValidation
	}
	return s.Append(ctx, Request{
		Kind:        kind,
		AmountKC:    amountKC,
		RecipientID: userID,
		ActorID:     userID,
		OperationID: operationID,
		RefType:     refType,
		RefID:       refID,
	})
}

func (s *Service) List(ctx context.Context, f store.LedgerFilter, limit, offset int) ([]store.LedgerEntry, int, error) {
	items, total, err := s.store.ListLedgerEntries(ctx, f, limit, offset)
	if err != nil {
		return nil, 0, errors.Join(ErrPersistence, err)
	}
	return items, total, nil
}
