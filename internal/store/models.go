package store

import (
	"encoding/json"
	"time"

	"karat-arcade/internal/game"
)

// Ledger entry kinds.
const (
	KindDeposit     = "deposit"
	KindWithdraw    = "withdraw"
	KindTransfer    = "transfer"
	KindWagerDebit  = "wager_debit"
	KindWagerCredit = "wager_credit"
	KindGift        = "gift"
	KindReward      = "reward"
	KindRefund      = "refund"
)

// Ledger entry statuses.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
	StatusRefunded  = "refunded"
)

// Game lifecycle statuses.
const (
	GameActive      = "active"
	GameInactive    = "inactive"
	GameMaintenance = "maintenance"
)

const CurrencyKC = "KC"

type Player struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// LedgerEntry is one immutable currency movement. SenderID is the debited
// party, RecipientID the credited one; either may be empty, meaning the house.
// ActorID is the authenticated user the operation ran as, and scopes the
// OperationID idempotency key.
type LedgerEntry struct {
	ID                     string     `json:"id"`
	Code                   string     `json:"code"`
	Kind                   string     `json:"kind"`
	Currency               string     `json:"currency"`
	AmountKC               int64      `json:"amount_kc"`
	SenderID               string     `json:"sender_id,omitempty"`
	RecipientID            string     `json:"recipient_id,omitempty"`
	ActorID                string     `json:"actor_id"`
	OperationID            string     `json:"operation_id,omitempty"`
	Status                 string     `json:"status"`
	SenderBalanceBefore    *int64     `json:"sender_balance_before,omitempty"`
	SenderBalanceAfter     *int64     `json:"sender_balance_after,omitempty"`
	RecipientBalanceBefore *int64     `json:"recipient_balance_before,omitempty"`
	RecipientBalanceAfter  *int64     `json:"recipient_balance_after,omitempty"`
	RefType                string     `json:"ref_type,omitempty"`
	RefID                  string     `json:"ref_id,omitempty"`
	RefundOfID             string     `json:"refund_of_id,omitempty"`
	CreatedAt              time.Time  `json:"created_at"`
	CompletedAt            *time.Time `json:"completed_at,omitempty"`
}

type GameTotals struct {
	PlayCount   int64 `json:"play_count"`
	TotalBetKC  int64 `json:"total_bet_kc"`
	TotalWonKC  int64 `json:"total_won_kc"`
	WinnerCount int64 `json:"winner_count"`
	LoserCount  int64 `json:"loser_count"`
}

type GameTotalsDelta struct {
	Plays   int64
	BetKC   int64
	WonKC   int64
	Winners int64
	Losers  int64
}

type GameDefinition struct {
	ID          string             `json:"id"`
	Variant     game.Variant       `json:"variant"`
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	MinBetKC    int64              `json:"min_bet_kc"`
	MaxBetKC    int64              `json:"max_bet_kc"`
	Config      game.VariantConfig `json:"config"`
	Status      string             `json:"status"`
	Totals      GameTotals         `json:"totals"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// PlayRecord is the append-only history row for one resolved play, created
// exactly once per play and independent of the ledger entries it produced.
type PlayRecord struct {
	ID            string          `json:"id"`
	PlayerID      string          `json:"player_id"`
	GameID        string          `json:"game_id"`
	Variant       game.Variant    `json:"variant"`
	BetKC         int64           `json:"bet_kc"`
	Result        string          `json:"result"`
	DeltaKC       int64           `json:"delta_kc"`
	BalanceBefore int64           `json:"balance_before"`
	BalanceAfter  int64           `json:"balance_after"`
	Detail        json.RawMessage `json:"detail,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// ReconciliationFlag marks a play whose compensation failed and needs an
// operator to settle the books by hand.
type ReconciliationFlag struct {
	ID        string    `json:"id"`
	PlayerID  string    `json:"player_id"`
	EntryID   string    `json:"entry_id"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

type LedgerFilter struct {
	SenderID    string
	RecipientID string
	UserID      string // matches either side
	Kind        string
	Status      string
	From        *time.Time
	To          *time.Time
}

type PlayFilter struct {
	PlayerID string
	GameID   string
	Variant  game.Variant
	Since    *time.Time
}
