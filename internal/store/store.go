package store

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("not_found")
var ErrDuplicateOperation = errors.New("duplicate_operation")
var ErrConflict = errors.New("conflict")

// Store is the persistence contract. The memory implementation backs dev mode
// and tests; the postgres implementation backs production. Balances are never
// stored: they are derived from completed ledger entries on every read.
type Store interface {
	Ping(ctx context.Context) error
	Close()

	UpsertPlayer(ctx context.Context, p Player) error
	GetPlayer(ctx context.Context, id string) (*Player, error)
	ListPlayersByIDs(ctx context.Context, ids []string) (map[string]Player, error)

	// AppendLedgerEntry persists e as given. It fails with
	// ErrDuplicateOperation when e.OperationID is non-empty and an entry with
	// the same (ActorID, OperationID) already exists.
	AppendLedgerEntry(ctx context.Context, e LedgerEntry) error
	GetLedgerEntry(ctx context.Context, id string) (*LedgerEntry, error)
	GetLedgerEntryByOperation(ctx context.Context, actorID, operationID string) (*LedgerEntry, error)
	// CompleteLedgerEntry moves a pending entry to a terminal status. Entries
	// already completed are immutable and the call fails with ErrConflict.
	CompleteLedgerEntry(ctx context.Context, id, status string) error
	// UserBalance sums completed entries: credits where the user is recipient
	// minus debits where the user is sender.
	UserBalance(ctx context.Context, userID string) (int64, error)
	ListLedgerEntries(ctx context.Context, f LedgerFilter, limit, offset int) ([]LedgerEntry, int, error)

	UpsertGame(ctx context.Context, g GameDefinition) error
	GetGame(ctx context.Context, id string) (*GameDefinition, error)
	GetGameByVariant(ctx context.Context, variant string) (*GameDefinition, error)
	ListGames(ctx context.Context) ([]GameDefinition, error)
	SetGameStatus(ctx context.Context, id, status string) error
	CountGames(ctx context.Context) (int, error)
	// ApplyGameTotals increments the running totals. These are best-effort
	// aggregates, never an input to balance math.
	ApplyGameTotals(ctx context.Context, id string, d GameTotalsDelta) error

	AppendPlayRecord(ctx context.Context, r PlayRecord) error
	GetPlayRecord(ctx context.Context, id string) (*PlayRecord, error)
	ListPlayRecords(ctx context.Context, f PlayFilter, limit, offset int) ([]PlayRecord, int, error)
	// CountPlaysSince returns how many plays match and when the latest one
	// happened. Used for the daily-spin quota.
	CountPlaysSince(ctx context.Context, playerID string, variant string, since time.Time) (int, *time.Time, error)

	FlagReconciliation(ctx context.Context, f ReconciliationFlag) error
	ListReconciliationFlags(ctx context.Context, limit, offset int) ([]ReconciliationFlag, int, error)
}
