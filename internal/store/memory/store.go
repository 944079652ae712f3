// Package memory implements the store contract in process memory. It backs
// dev mode (no POSTGRES_DSN) and the test suite.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"karat-arcade/internal/store"
)

type Store struct {
	mu       sync.RWMutex
	players  map[string]store.Player
	entries  []store.LedgerEntry
	entryIdx map[string]int    // id -> index into entries
	opIdx    map[string]string // actorID+"\x00"+operationID -> entry id
	games    map[string]store.GameDefinition
	records  []store.PlayRecord
	recIdx   map[string]int
	flags    []store.ReconciliationFlag

	// FailAppendPlayRecord makes the next n AppendPlayRecord calls fail.
	// Test hook for exercising compensation paths.
	FailAppendPlayRecord int
	// FailAppendLedger makes AppendLedgerEntry fail for the given kinds.
	FailAppendLedger map[string]int

	injected error
}

func New() *Store {
	return &Store{
		players:  make(map[string]store.Player),
		entryIdx: make(map[string]int),
		opIdx:    make(map[string]string),
		games:    make(map[string]store.GameDefinition),
		recIdx:   make(map[string]int),
	}
}

// SetInjectedError configures the error returned by the failure hooks.
// Defaults to store.ErrConflict when unset.
func (s *Store) SetInjectedError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.injected = err
}

func (s *Store) injectedErr() error {
	if s.injected != nil {
		return s.injected
	}
	return store.ErrConflict
}

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close()                     {}

func (s *Store) UpsertPlayer(_ context.Context, p store.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.players[p.ID]; ok {
		if p.Name != "" {
			existing.Name = p.Name
		}
		s.players[p.ID] = existing
		return nil
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	s.players[p.ID] = p
	return nil
}

func (s *Store) GetPlayer(_ context.Context, id string) (*store.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.players[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (s *Store) ListPlayersByIDs(_ context.Context, ids []string) (map[string]store.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]store.Player, len(ids))
	for _, id := range ids {
		if p, ok := s.players[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func opKey(actorID, operationID string) string {
	return actorID + "\x00" + operationID
}

func (s *Store) AppendLedgerEntry(_ context.Context, e store.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n := s.FailAppendLedger[e.Kind]; n > 0 {
		s.FailAppendLedger[e.Kind] = n - 1
		return s.injectedErr()
	}
	if e.OperationID != "" {
		if _, dup := s.opIdx[opKey(e.ActorID, e.OperationID)]; dup {
			return store.ErrDuplicateOperation
		}
	}
	s.entries = append(s.entries, e)
	s.entryIdx[e.ID] = len(s.entries) - 1
	if e.OperationID != "" {
		s.opIdx[opKey(e.ActorID, e.OperationID)] = e.ID
	}
	return nil
}

func (s *Store) GetLedgerEntry(_ context.Context, id string) (*store.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.entryIdx[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	e := s.entries[i]
	return &e, nil
}

func (s *Store) GetLedgerEntryByOperation(_ context.Context, actorID, operationID string) (*store.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.opIdx[opKey(actorID, operationID)]
	if !ok {
		return nil, store.ErrNotFound
	}
	e := s.entries[s.entryIdx[id]]
	return &e, nil
}

func (s *Store) CompleteLedgerEntry(_ context.Context, id, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.entryIdx[id]
	if !ok {
		return store.ErrNotFound
	}
	if s.entries[i].Status != store.StatusPending {
		return store.ErrConflict
	}
	now := time.Now().UTC()
	s.entries[i].Status = status
	s.entries[i].CompletedAt = &now
	return nil
}

func (s *Store) UserBalance(_ context.Context, userID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var bal int64
	for _, e := range s.entries {
		if e.Status != store.StatusCompleted {
			continue
		}
		if e.RecipientID == userID {
			bal += e.AmountKC
		}
		if e.SenderID == userID {
			bal -= e.AmountKC
		}
	}
	return bal, nil
}

func (s *Store) ListLedgerEntries(_ context.Context, f store.LedgerFilter, limit, offset int) ([]store.LedgerEntry, int, error) {
	if limit <= 0 {
		limit = 50
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	matched := make([]store.LedgerEntry, 0)
	for _, e := range s.entries {
		if !matchEntry(e, f) {
			continue
		}
		matched = append(matched, e)
	}
	sortEntriesDesc(matched)
	total := len(matched)
	return pageOf(matched, limit, offset), total, nil
}

func matchEntry(e store.LedgerEntry, f store.LedgerFilter) bool {
	if f.SenderID != "" && e.SenderID != f.SenderID {
		return false
	}
	if f.RecipientID != "" && e.RecipientID != f.RecipientID {
		return false
	}
	if f.UserID != "" && e.SenderID != f.UserID && e.RecipientID != f.UserID {
		return false
	}
	if f.Kind != "" && e.Kind != f.Kind {
		return false
	}
	if f.Status != "" && e.Status != f.Status {
		return false
	}
	if f.From != nil && e.CreatedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && e.CreatedAt.After(*f.To) {
		return false
	}
	return true
}

func sortEntriesDesc(entries []store.LedgerEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return strings.Compare(entries[i].ID, entries[j].ID) > 0
		}
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
}

func pageOf[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	out := make([]T, end-offset)
	copy(out, items[offset:end])
	return out
}

func (s *Store) UpsertGame(_ context.Context, g store.GameDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	if existing, ok := s.games[g.ID]; ok {
		g.Totals = existing.Totals
		g.CreatedAt = existing.CreatedAt
	} else if g.CreatedAt.IsZero() {
		g.CreatedAt = now
	}
	g.UpdatedAt = now
	s.games[g.ID] = g
	return nil
}

func (s *Store) GetGame(_ context.Context, id string) (*store.GameDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.games[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &g, nil
}

func (s *Store) GetGameByVariant(_ context.Context, variant string) (*store.GameDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.games))
	for id := range s.games {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		g := s.games[id]
		if string(g.Variant) == variant {
			return &g, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListGames(_ context.Context) ([]store.GameDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.GameDefinition, 0, len(s.games))
	for _, g := range s.games {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) SetGameStatus(_ context.Context, id, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.games[id]
	if !ok {
		return store.ErrNotFound
	}
	g.Status = status
	g.UpdatedAt = time.Now().UTC()
	s.games[id] = g
	return nil
}

func (s *Store) CountGames(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.games), nil
}

func (s *Store) ApplyGameTotals(_ context.Context, id string, d store.GameTotalsDelta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.games[id]
	if !ok {
		return store.ErrNotFound
	}
	g.Totals.PlayCount += d.Plays
	g.Totals.TotalBetKC += d.BetKC
	g.Totals.TotalWonKC += d.WonKC
	g.Totals.WinnerCount += d.Winners
	g.Totals.LoserCount += d.Losers
	g.UpdatedAt = time.Now().UTC()
	s.games[id] = g
	return nil
}

func (s *Store) AppendPlayRecord(_ context.Context, r store.PlayRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailAppendPlayRecord > 0 {
		s.FailAppendPlayRecord--
		return s.injectedErr()
	}
	s.records = append(s.records, r)
	s.recIdx[r.ID] = len(s.records) - 1
	return nil
}

func (s *Store) GetPlayRecord(_ context.Context, id string) (*store.PlayRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.recIdx[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	r := s.records[i]
	return &r, nil
}

func (s *Store) ListPlayRecords(_ context.Context, f store.PlayFilter, limit, offset int) ([]store.PlayRecord, int, error) {
	if limit <= 0 {
		limit = 50
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	matched := make([]store.PlayRecord, 0)
	for _, r := range s.records {
		if f.PlayerID != "" && r.PlayerID != f.PlayerID {
			continue
		}
		if f.GameID != "" && r.GameID != f.GameID {
			continue
		}
		if f.Variant != "" && r.Variant != f.Variant {
			continue
		}
		if f.Since != nil && r.CreatedAt.Before(*f.Since) {
			continue
		}
		matched = append(matched, r)
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return strings.Compare(matched[i].ID, matched[j].ID) > 0
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	total := len(matched)
	return pageOf(matched, limit, offset), total, nil
}

func (s *Store) CountPlaysSince(_ context.Context, playerID, variant string, since time.Time) (int, *time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	var last *time.Time
	for _, r := range s.records {
		if r.PlayerID != playerID || string(r.Variant) != variant || r.CreatedAt.Before(since) {
			continue
		}
		count++
		if last == nil || r.CreatedAt.After(*last) {
			t := r.CreatedAt
			last = &t
		}
	}
	return count, last, nil
}

func (s *Store) FlagReconciliation(_ context.Context, f store.ReconciliationFlag) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flags = append(s.flags, f)
	return nil
}

func (s *Store) ListReconciliationFlags(_ context.Context, limit, offset int) ([]store.ReconciliationFlag, int, error) {
	if limit <= 0 {
		limit = 50
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.ReconciliationFlag, len(s.flags))
	copy(out, s.flags)
	total := len(out)
	return pageOf(out, limit, offset), total, nil
}
