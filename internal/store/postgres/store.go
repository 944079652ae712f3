// Package postgres implements the store contract over pgx. All SQL is inline;
// balances are computed by aggregation, never read from a counter column.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"karat-arcade/internal/game"
	"karat-arcade/internal/store"
)

type Store struct {
	Pool *pgxpool.Pool
}

func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{Pool: pool}, nil
}

func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.Pool.Ping(ctx)
}

func (s *Store) Close() {
	if s.Pool != nil {
		s.Pool.Close()
	}
}

func mapPgErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			if pgErr.ConstraintName == "ledger_entries_actor_operation" {
				return store.ErrDuplicateOperation
			}
			return store.ErrConflict
		case "40001":
			return store.ErrConflict
		}
	}
	return err
}

func (s *Store) UpsertPlayer(ctx context.Context, p store.Player) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO players (id, name) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET name = CASE WHEN EXCLUDED.name <> '' THEN EXCLUDED.name ELSE players.name END
	`, p.ID, p.Name)
	return mapPgErr(err)
}

func (s *Store) GetPlayer(ctx context.Context, id string) (*store.Player, error) {
	row := s.Pool.QueryRow(ctx, `SELECT id, name, created_at FROM players WHERE id = $1`, id)
	var p store.Player
	if err := row.Scan(&p.ID, &p.Name, &p.CreatedAt); err != nil {
		return nil, mapPgErr(err)
	}
	return &p, nil
}

func (s *Store) ListPlayersByIDs(ctx context.Context, ids []string) (map[string]store.Player, error) {
	rows, err := s.Pool.Query(ctx, `SELECT id, name, created_at FROM players WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, mapPgErr(err)
	}
	defer rows.Close()
	out := make(map[string]store.Player, len(ids))
	for rows.Next() {
		var p store.Player
		if err := rows.Scan(&p.ID, &p.Name, &p.CreatedAt); err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

func (s *Store) AppendLedgerEntry(ctx context.Context, e store.LedgerEntry) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO ledger_entries (
			id, code, kind, currency, amount_kc, sender_id, recipient_id, actor_id,
			operation_id, status, sender_balance_before, sender_balance_after,
			recipient_balance_before, recipient_balance_after, ref_type, ref_id,
			refund_of_id, created_at, completed_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
	`, e.ID, e.Code, e.Kind, e.Currency, e.AmountKC, e.SenderID, e.RecipientID, e.ActorID,
		e.OperationID, e.Status, e.SenderBalanceBefore, e.SenderBalanceAfter,
		e.RecipientBalanceBefore, e.RecipientBalanceAfter, e.RefType, e.RefID,
		e.RefundOfID, e.CreatedAt, e.CompletedAt)
	return mapPgErr(err)
}

const ledgerColumns = `id, code, kind, currency, amount_kc, sender_id, recipient_id, actor_id,
	operation_id, status, sender_balance_before, sender_balance_after,
	recipient_balance_before, recipient_balance_after, ref_type, ref_id,
	refund_of_id, created_at, completed_at`

func scanEntry(row pgx.Row) (*store.LedgerEntry, error) {
	var e store.LedgerEntry
	err := row.Scan(&e.ID, &e.Code, &e.Kind, &e.Currency, &e.AmountKC, &e.SenderID,
		&e.RecipientID, &e.ActorID, &e.OperationID, &e.Status,
		&e.SenderBalanceBefore, &e.SenderBalanceAfter,
		&e.RecipientBalanceBefore, &e.RecipientBalanceAfter,
		&e.RefType, &e.RefID, &e.RefundOfID, &e.CreatedAt, &e.CompletedAt)
	if err != nil {
		return nil, mapPgErr(err)
	}
	return &e, nil
}

func (s *Store) GetLedgerEntry(ctx context.Context, id string) (*store.LedgerEntry, error) {
	return scanEntry(s.Pool.QueryRow(ctx, `SELECT `+ledgerColumns+` FROM ledger_entries WHERE id = $1`, id))
}

func (s *Store) GetLedgerEntryByOperation(ctx context.Context, actorID, operationID string) (*store.LedgerEntry, error) {
	return scanEntry(s.Pool.QueryRow(ctx,
		`SELECT `+ledgerColumns+` FROM ledger_entries WHERE actor_id = $1 AND operation_id = $2`,
		actorID, operationID))
}

func (s *Store) CompleteLedgerEntry(ctx context.Context, id, status string) error {
	tag, err := s.Pool.Exec(ctx, `
		UPDATE ledger_entries SET status = $2, completed_at = now()
		WHERE id = $1 AND status = 'pending'
	`, id, status)
	if err != nil {
		return mapPgErr(err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.GetLedgerEntry(ctx, id); err != nil {
			return err
		}
		return store.ErrConflict
	}
	return nil
}

func (s *Store) UserBalance(ctx context.Context, userID string) (int64, error) {
	row := s.Pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(CASE WHEN recipient_id = $1 THEN amount_kc ELSE 0 END), 0)
		     - COALESCE(SUM(CASE WHEN sender_id = $1 THEN amount_kc ELSE 0 END), 0)
		FROM ledger_entries
		WHERE status = 'completed' AND (sender_id = $1 OR recipient_id = $1)
	`, userID)
	var bal int64
	if err := row.Scan(&bal); err != nil {
		return 0, mapPgErr(err)
	}
	return bal, nil
}

func (s *Store) ListLedgerEntries(ctx context.Context, f store.LedgerFilter, limit, offset int) ([]store.LedgerEntry, int, error) {
	if limit <= 0 {
		limit = 50
	}
	where := "WHERE 1=1"
	args := []any{}
	add := func(cond string, v any) {
		args = append(args, v)
		where += fmt.Sprintf(" AND "+cond, len(args))
	}
	if f.SenderID != "" {
		add("sender_id = $%d", f.SenderID)
	}
	if f.RecipientID != "" {
		add("recipient_id = $%d", f.RecipientID)
	}
	if f.UserID != "" {
		args = append(args, f.UserID)
		where += fmt.Sprintf(" AND (sender_id = $%d OR recipient_id = $%d)", len(args), len(args))
	}
	if f.Kind != "" {
		add("kind = $%d", f.Kind)
	}
	if f.Status != "" {
		add("status = $%d", f.Status)
	}
	if f.From != nil {
		add("created_at >= $%d", *f.From)
	}
	if f.To != nil {
		add("created_at <= $%d", *f.To)
	}

	var total int
	if err := s.Pool.QueryRow(ctx, `SELECT COUNT(1) FROM ledger_entries `+where, args...).Scan(&total); err != nil {
		return nil, 0, mapPgErr(err)
	}

	args = append(args, limit, offset)
	q := `SELECT ` + ledgerColumns + ` FROM ledger_entries ` + where +
		fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))
	rows, err := s.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, 0, mapPgErr(err)
	}
	defer rows.Close()
	out := []store.LedgerEntry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *e)
	}
	return out, total, rows.Err()
}

func (s *Store) UpsertGame(ctx context.Context, g store.GameDefinition) error {
	cfg, err := json.Marshal(g.Config)
	if err != nil {
		return err
	}
	_, err = s.Pool.Exec(ctx, `
		INSERT INTO games (id, variant, name, description, min_bet_kc, max_bet_kc, config, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (id) DO UPDATE SET
			variant = EXCLUDED.variant,
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			min_bet_kc = EXCLUDED.min_bet_kc,
			max_bet_kc = EXCLUDED.max_bet_kc,
			config = EXCLUDED.config,
			status = EXCLUDED.status,
			updated_at = now()
	`, g.ID, string(g.Variant), g.Name, g.Description, g.MinBetKC, g.MaxBetKC, cfg, g.Status)
	return mapPgErr(err)
}

const gameColumns = `id, variant, name, description, min_bet_kc, max_bet_kc, config, status,
	play_count, total_bet_kc, total_won_kc, winner_count, loser_count, created_at, updated_at`

func scanGame(row pgx.Row) (*store.GameDefinition, error) {
	var g store.GameDefinition
	var variant string
	var cfg []byte
	err := row.Scan(&g.ID, &variant, &g.Name, &g.Description, &g.MinBetKC, &g.MaxBetKC,
		&cfg, &g.Status, &g.Totals.PlayCount, &g.Totals.TotalBetKC, &g.Totals.TotalWonKC,
		&g.Totals.WinnerCount, &g.Totals.LoserCount, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return nil, mapPgErr(err)
	}
	g.Variant = game.Variant(variant)
	if err := json.Unmarshal(cfg, &g.Config); err != nil {
		return nil, err
	}
	return &g, nil
}

func (s *Store) GetGame(ctx context.Context, id string) (*store.GameDefinition, error) {
	return scanGame(s.Pool.QueryRow(ctx, `SELECT `+gameColumns+` FROM games WHERE id = $1`, id))
}

func (s *Store) GetGameByVariant(ctx context.Context, variant string) (*store.GameDefinition, error) {
	return scanGame(s.Pool.QueryRow(ctx,
		`SELECT `+gameColumns+` FROM games WHERE variant = $1 ORDER BY id ASC LIMIT 1`, variant))
}

func (s *Store) ListGames(ctx context.Context) ([]store.GameDefinition, error) {
	rows, err := s.Pool.Query(ctx, `SELECT `+gameColumns+` FROM games ORDER BY id ASC`)
	if err != nil {
		return nil, mapPgErr(err)
	}
	defer rows.Close()
	out := []store.GameDefinition{}
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *g)
	}
	return out, rows.Err()
}

func (s *Store) SetGameStatus(ctx context.Context, id, status string) error {
	tag, err := s.Pool.Exec(ctx, `UPDATE games SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	if err != nil {
		return mapPgErr(err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) CountGames(ctx context.Context) (int, error) {
	var c int
	if err := s.Pool.QueryRow(ctx, `SELECT COUNT(1) FROM games`).Scan(&c); err != nil {
		return 0, mapPgErr(err)
	}
	return c, nil
}

func (s *Store) ApplyGameTotals(ctx context.Context, id string, d store.GameTotalsDelta) error {
	tag, err := s.Pool.Exec(ctx, `
		UPDATE games SET
			play_count = play_count + $2,
			total_bet_kc = total_bet_kc + $3,
			total_won_kc = total_won_kc + $4,
			winner_count = winner_count + $5,
			loser_count = loser_count + $6,
			updated_at = now()
		WHERE id = $1
	`, id, d.Plays, d.BetKC, d.WonKC, d.Winners, d.Losers)
	if err != nil {
		return mapPgErr(err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) AppendPlayRecord(ctx context.Context, r store.PlayRecord) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO play_records (id, player_id, game_id, variant, bet_kc, result, delta_kc,
			balance_before, balance_after, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, r.ID, r.PlayerID, r.GameID, string(r.Variant), r.BetKC, r.Result, r.DeltaKC,
		r.BalanceBefore, r.BalanceAfter, []byte(r.Detail), r.CreatedAt)
	return mapPgErr(err)
}

const playColumns = `id, player_id, game_id, variant, bet_kc, result, delta_kc,
	balance_before, balance_after, detail, created_at`

func scanPlay(row pgx.Row) (*store.PlayRecord, error) {
	var r store.PlayRecord
	var variant string
	var detail []byte
	err := row.Scan(&r.ID, &r.PlayerID, &r.GameID, &variant, &r.BetKC, &r.Result,
		&r.DeltaKC, &r.BalanceBefore, &r.BalanceAfter, &detail, &r.CreatedAt)
	if err != nil {
		return nil, mapPgErr(err)
	}
	r.Variant = game.Variant(variant)
	r.Detail = detail
	return &r, nil
}

func (s *Store) GetPlayRecord(ctx context.Context, id string) (*store.PlayRecord, error) {
	return scanPlay(s.Pool.QueryRow(ctx, `SELECT `+playColumns+` FROM play_records WHERE id = $1`, id))
}

func (s *Store) ListPlayRecords(ctx context.Context, f store.PlayFilter, limit, offset int) ([]store.PlayRecord, int, error) {
	if limit <= 0 {
		limit = 50
	}
	where := "WHERE 1=1"
	args := []any{}
	add := func(cond string, v any) {
		args = append(args, v)
		where += fmt.Sprintf(" AND "+cond, len(args))
	}
	if f.PlayerID != "" {
		add("player_id = $%d", f.PlayerID)
	}
	if f.GameID != "" {
		add("game_id = $%d", f.GameID)
	}
	if f.Variant != "" {
		add("variant = $%d", string(f.Variant))
	}
	if f.Since != nil {
		add("created_at >= $%d", *f.Since)
	}

	var total int
	if err := s.Pool.QueryRow(ctx, `SELECT COUNT(1) FROM play_records `+where, args...).Scan(&total); err != nil {
		return nil, 0, mapPgErr(err)
	}

	args = append(args, limit, offset)
	q := `SELECT ` + playColumns + ` FROM play_records ` + where +
		fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))
	rows, err := s.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, 0, mapPgErr(err)
	}
	defer rows.Close()
	out := []store.PlayRecord{}
	for rows.Next() {
		r, err := scanPlay(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *r)
	}
	return out, total, rows.Err()
}

func (s *Store) CountPlaysSince(ctx context.Context, playerID, variant string, since time.Time) (int, *time.Time, error) {
	row := s.Pool.QueryRow(ctx, `
		SELECT COUNT(1), MAX(created_at) FROM play_records
		WHERE player_id = $1 AND variant = $2 AND created_at >= $3
	`, playerID, variant, since)
	var count int
	var last *time.Time
	if err := row.Scan(&count, &last); err != nil {
		return 0, nil, mapPgErr(err)
	}
	return count, last, nil
}

func (s *Store) FlagReconciliation(ctx context.Context, f store.ReconciliationFlag) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO reconciliation_flags (id, player_id, entry_id, reason, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, f.ID, f.PlayerID, f.EntryID, f.Reason, f.CreatedAt)
	return mapPgErr(err)
}

func (s *Store) ListReconciliationFlags(ctx context.Context, limit, offset int) ([]store.ReconciliationFlag, int, error) {
	if limit <= 0 {
		limit = 50
	}
	var total int
	if err := s.Pool.QueryRow(ctx, `SELECT COUNT(1) FROM reconciliation_flags`).Scan(&total); err != nil {
		return nil, 0, mapPgErr(err)
	}
	rows, err := s.Pool.Query(ctx, `
		SELECT id, player_id, entry_id, reason, created_at FROM reconciliation_flags
		ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, mapPgErr(err)
	}
	defer rows.Close()
	out := []store.ReconciliationFlag{}
	for rows.Next() {
		var f store.ReconciliationFlag
		if err := rows.Scan(&f.ID, &f.PlayerID, &f.EntryID, &f.Reason, &f.CreatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, f)
	}
	return out, total, rows.Err()
}
