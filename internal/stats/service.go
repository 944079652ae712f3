// Package stats derives leaderboards and play statistics from the play
// history. Everything here is computed in Go over store reads, so the numbers
// come out identical on the memory and postgres backends.
package stats

import (
	"context"
	"errors"
	"sort"
	"time"

	"karat-arcade/internal/game"
	"karat-arcade/internal/store"
)

const (
	PeriodDay   = "day"
	PeriodWeek  = "week"
	PeriodMonth = "month"
	PeriodAll   = "all"
)

const fetchPageSize = 500

var ErrBadPeriod = errors.New("bad_period")

type Service struct {
	store store.Store
	loc   *time.Location
	now   func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithLocation(loc *time.Location) Option {
	return func(s *Service) { s.loc = loc }
}

func New(st store.Store, opts ...Option) *Service {
	s := &Service{
		store: st,
		loc:   time.UTC,
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

type LeaderboardRow struct {
	Rank       int    `json:"rank"`
	PlayerID   string `json:"player_id"`
	PlayerName string `json:"player_name,omitempty"`
	NetKC      int64  `json:"net_kc"`
	Plays      int64  `json:"plays"`
	Wins       int64  `json:"wins"`
}

type Overview struct {
	Plays         int64   `json:"plays"`
	WageredKC     int64   `json:"wagered_kc"`
	PaidOutKC     int64   `json:"paid_out_kc"`
	UniquePlayers int     `json:"unique_players"`
	WinRate       float64 `json:"win_rate"`
}

type GameStats struct {
	GameID    string       `json:"game_id"`
	Variant   game.Variant `json:"variant"`
	Plays     int64        `json:"plays"`
	WageredKC int64        `json:"wagered_kc"`
	PaidOutKC int64        `json:"paid_out_kc"`
	WinRate   float64      `json:"win_rate"`
}

type DayStats struct {
	Date      string `json:"date"`
	Plays     int64  `json:"plays"`
	WageredKC int64  `json:"wagered_kc"`
	PaidOutKC int64  `json:"paid_out_kc"`
}

type Statistics struct {
	Period  string      `json:"period"`
	Overall Overview    `json:"overall"`
	PerGame []GameStats `json:"per_game"`
	PerDay  []DayStats  `json:"per_day"`
}

// periodStart resolves a period name to its inclusive lower bound in the
// configured timezone. Weeks start on Monday; "all" has no bound.
func (s *Service) periodStart(period string) (*time.Time, error) {
	t := s.now().In(s.loc)
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, s.loc)
	switch period {
	case PeriodDay:
		return &midnight, nil
	case PeriodWeek:
		offset := (int(midnight.Weekday()) + 6) % 7
		start := midnight.AddDate(0, 0, -offset)
		return &start, nil
	case PeriodMonth:
		start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, s.loc)
		return &start, nil
	case PeriodAll, "":
		return nil, nil
	}
	return nil, ErrBadPeriod
}

func (s *Service) fetchPlays(ctx context.Context, since *time.Time) ([]store.PlayRecord, error) {
	var all []store.PlayRecord
	offset := 0
	for {
		page, total, err := s.store.ListPlayRecords(ctx, store.PlayFilter{Since: since}, fetchPageSize, offset)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		offset += len(page)
		if offset >= total || len(page) == 0 {
			return all, nil
		}
	}
}

// Leaderboard ranks players by net winnings over the period. Ties break on
// play count, then on player id, so the ordering is fully deterministic.
func (s *Service) Leaderboard(ctx context.Context, period string, limit int) ([]LeaderboardRow, error) {
	since, err := s.periodStart(period)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	plays, err := s.fetchPlays(ctx, since)
	if err != nil {
		return nil, err
	}

	type agg struct {
		net   int64
		plays int64
		wins  int64
	}
	byPlayer := map[string]*agg{}
	for _, p := range plays {
		a := byPlayer[p.PlayerID]
		if a == nil {
			a = &agg{}
			byPlayer[p.PlayerID] = a
		}
		a.net += p.DeltaKC
		a.plays++
		if p.Result == "win" {
			a.wins++
		}
	}

	rows := make([]LeaderboardRow, 0, len(byPlayer))
	for id, a := range byPlayer {
		rows = append(rows, LeaderboardRow{PlayerID: id, NetKC: a.net, Plays: a.plays, Wins: a.wins})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].NetKC != rows[j].NetKC {
			return rows[i].NetKC > rows[j].NetKC
		}
		if rows[i].Plays != rows[j].Plays {
			return rows[i].Plays > rows[j].Plays
		}
		return rows[i].PlayerID < rows[j].PlayerID
	})
	if len(rows) > limit {
		rows = rows[:limit]
	}

	ids := make([]string, len(rows))
	for i := range rows {
		ids[i] = rows[i].PlayerID
	}
	names, err := s.store.ListPlayersByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		rows[i].Rank = i + 1
		if p, ok := names[rows[i].PlayerID]; ok {
			rows[i].PlayerName = p.Name
		}
	}
	return rows, nil
}

// Statistics aggregates play volume overall, per game, and per local calendar
// day for the period.
func (s *Service) Statistics(ctx context.Context, period string) (*Statistics, error) {
	since, err := s.periodStart(period)
	if err != nil {
		return nil, err
	}
	if period == "" {
		period = PeriodAll
	}
	plays, err := s.fetchPlays(ctx, since)
	if err != nil {
		return nil, err
	}

	out := &Statistics{Period: period}
	players := map[string]struct{}{}
	var wins int64
	perGame := map[string]*GameStats{}
	perDay := map[string]*DayStats{}
	gameWins := map[string]int64{}

	for _, p := range plays {
		payout := p.DeltaKC + p.BetKC
		out.Overall.Plays++
		out.Overall.WageredKC += p.BetKC
		out.Overall.PaidOutKC += payout
		players[p.PlayerID] = struct{}{}
		if p.Result == "win" {
			wins++
			gameWins[p.GameID]++
		}

		g := perGame[p.GameID]
		if g == nil {
			g = &GameStats{GameID: p.GameID, Variant: p.Variant}
			perGame[p.GameID] = g
		}
		g.Plays++
		g.WageredKC += p.BetKC
		g.PaidOutKC += payout

		day := p.CreatedAt.In(s.loc).Format("2006-01-02")
		d := perDay[day]
		if d == nil {
			d = &DayStats{Date: day}
			perDay[day] = d
		}
		d.Plays++
		d.WageredKC += p.BetKC
		d.PaidOutKC += payout
	}

	out.Overall.UniquePlayers = len(players)
	if out.Overall.Plays > 0 {
		out.Overall.WinRate = float64(wins) / float64(out.Overall.Plays)
	}
	for id, g := range perGame {
		if g.Plays > 0 {
			g.WinRate = float64(gameWins[id]) / float64(g.Plays)
		}
		out.PerGame = append(out.PerGame, *g)
	}
	sort.Slice(out.PerGame, func(i, j int) bool {
		if out.PerGame[i].Plays != out.PerGame[j].Plays {
			return out.PerGame[i].Plays > out.PerGame[j].Plays
		}
		return out.PerGame[i].GameID < out.PerGame[j].GameID
	})
	for _, d := range perDay {
		out.PerDay = append(out.PerDay, *d)
	}
	sort.Slice(out.PerDay, func(i, j int) bool { return out.PerDay[i].Date < out.PerDay[j].Date })
	return out, nil
}
