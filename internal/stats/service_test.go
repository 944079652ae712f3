package stats

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"karat-arcade/internal/game"
	"karat-arcade/internal/store"
	"karat-arcade/internal/store/memory"
)

// Tuesday afternoon, so the week began the previous Monday.
var testNow = time.Date(2026, 8, 25, 15, 0, 0, 0, time.UTC)

func newStatsFixture(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	st := memory.New()
	svc := New(st, WithClock(func() time.Time { return testNow }))
	ctx := context.Background()
	for _, p := range []store.Player{
		{ID: "alice", Name: "Alice"},
		{ID: "bob", Name: "Bob"},
		{ID: "carol", Name: "Carol"},
	} {
		require.NoError(t, st.UpsertPlayer(ctx, p))
	}
	return svc, st
}

func addPlay(t *testing.T, st *memory.Store, id, player, gameID string, variant game.Variant, bet, delta int64, result string, at time.Time) {
	t.Helper()
	require.NoError(t, st.AppendPlayRecord(context.Background(), store.PlayRecord{
		ID:        id,
		PlayerID:  player,
		GameID:    gameID,
		Variant:   variant,
		BetKC:     bet,
		Result:    result,
		DeltaKC:   delta,
		CreatedAt: at,
	}))
}

func TestLeaderboardOrderingAndTieBreaks(t *testing.T) {
	ctx := context.Background()
	svc, st := newStatsFixture(t)

	// alice: net +50 over two plays
	addPlay(t, st, "p1", "alice", "coin-flip", game.VariantCoinFlip, 100, 95, "win", testNow.Add(-time.Hour))
	addPlay(t, st, "p2", "alice", "coin-flip", game.VariantCoinFlip, 45, -45, "lose", testNow.Add(-time.Hour))
	// bob: net +50 over one play -> loses the tie on play count
	addPlay(t, st, "p3", "bob", "coin-flip", game.VariantCoinFlip, 100, 50, "win", testNow.Add(-time.Hour))
	// carol: net -10
	addPlay(t, st, "p4", "carol", "coin-flip", game.VariantCoinFlip, 10, -10, "lose", testNow.Add(-time.Hour))

	rows, err := svc.Leaderboard(ctx, PeriodAll, 10)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	require.Equal(t, "alice", rows[0].PlayerID)
	require.Equal(t, 1, rows[0].Rank)
	require.Equal(t, int64(50), rows[0].NetKC)
	require.Equal(t, int64(2), rows[0].Plays)
	require.Equal(t, "Alice", rows[0].PlayerName)

	require.Equal(t, "bob", rows[1].PlayerID)
	require.Equal(t, 2, rows[1].Rank)

	require.Equal(t, "carol", rows[2].PlayerID)
	require.Equal(t, int64(-10), rows[2].NetKC)
}

func TestLeaderboardTieBreaksOnPlayerID(t *testing.T) {
	ctx := context.Background()
	svc, st := newStatsFixture(t)

	addPlay(t, st, "p1", "bob", "coin-flip", game.VariantCoinFlip, 100, 95, "win", testNow.Add(-time.Hour))
	addPlay(t, st, "p2", "alice", "coin-flip", game.VariantCoinFlip, 100, 95, "win", testNow.Add(-time.Hour))

	rows, err := svc.Leaderboard(ctx, PeriodAll, 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "alice", rows[0].PlayerID)
	require.Equal(t, "bob", rows[1].PlayerID)
}

func TestLeaderboardPeriodBounds(t *testing.T) {
	ctx := context.Background()
	svc, st := newStatsFixture(t)

	// today, earlier this week (Monday), and last week (Sunday)
	addPlay(t, st, "p1", "alice", "coin-flip", game.VariantCoinFlip, 10, 10, "win", testNow.Add(-2*time.Hour))
	addPlay(t, st, "p2", "bob", "coin-flip", game.VariantCoinFlip, 10, 10, "win", time.Date(2026, 8, 24, 9, 0, 0, 0, time.UTC))
	addPlay(t, st, "p3", "carol", "coin-flip", game.VariantCoinFlip, 10, 10, "win", time.Date(2026, 8, 23, 9, 0, 0, 0, time.UTC))

	rows, err := svc.Leaderboard(ctx, PeriodDay, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "alice", rows[0].PlayerID)

	rows, err = svc.Leaderboard(ctx, PeriodWeek, 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	rows, err = svc.Leaderboard(ctx, PeriodMonth, 10)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	rows, err = svc.Leaderboard(ctx, PeriodAll, 10)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	_, err = svc.Leaderboard(ctx, "fortnight", 10)
	require.ErrorIs(t, err, ErrBadPeriod)
}

func TestLeaderboardLimitTruncates(t *testing.T) {
	ctx := context.Background()
	svc, st := newStatsFixture(t)

	addPlay(t, st, "p1", "alice", "coin-flip", game.VariantCoinFlip, 10, 30, "win", testNow.Add(-time.Hour))
	addPlay(t, st, "p2", "bob", "coin-flip", game.VariantCoinFlip, 10, 20, "win", testNow.Add(-time.Hour))
	addPlay(t, st, "p3", "carol", "coin-flip", game.VariantCoinFlip, 10, 10, "win", testNow.Add(-time.Hour))

	rows, err := svc.Leaderboard(ctx, PeriodAll, 2)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "alice", rows[0].PlayerID)
	require.Equal(t, "bob", rows[1].PlayerID)
}

func TestStatisticsAggregates(t *testing.T) {
	ctx := context.Background()
	svc, st := newStatsFixture(t)

	addPlay(t, st, "p1", "alice", "coin-flip", game.VariantCoinFlip, 100, 95, "win", testNow.Add(-time.Hour))
	addPlay(t, st, "p2", "alice", "coin-flip", game.VariantCoinFlip, 100, -100, "lose", testNow.Add(-2*time.Hour))
	addPlay(t, st, "p3", "bob", "lucky-number", game.VariantNumberGuess, 50, -50, "lose", testNow.Add(-3*time.Hour))
	addPlay(t, st, "p4", "bob", "lucky-number", game.VariantNumberGuess, 50, -50, "lose", time.Date(2026, 8, 24, 9, 0, 0, 0, time.UTC))

	got, err := svc.Statistics(ctx, PeriodWeek)
	require.NoError(t, err)

	require.Equal(t, int64(4), got.Overall.Plays)
	require.Equal(t, int64(300), got.Overall.WageredKC)
	// payout = delta + bet: 195 + 0 + 0 + 0
	require.Equal(t, int64(195), got.Overall.PaidOutKC)
	require.Equal(t, 2, got.Overall.UniquePlayers)
	require.InDelta(t, 0.25, got.Overall.WinRate, 1e-9)

	require.Len(t, got.PerGame, 2)
	// both games have two plays, so the id tie-break orders them
	require.Equal(t, "coin-flip", got.PerGame[0].GameID)
	require.InDelta(t, 0.5, got.PerGame[0].WinRate, 1e-9)
	require.Equal(t, "lucky-number", got.PerGame[1].GameID)
	require.Zero(t, got.PerGame[1].WinRate)

	require.Len(t, got.PerDay, 2)
	require.Equal(t, "2026-08-24", got.PerDay[0].Date)
	require.Equal(t, int64(1), got.PerDay[0].Plays)
	require.Equal(t, "2026-08-25", got.PerDay[1].Date)
	require.Equal(t, int64(3), got.PerDay[1].Plays)
}

func TestStatisticsEmptyStore(t *testing.T) {
	ctx := context.Background()
	svc, _ := newStatsFixture(t)

	got, err := svc.Statistics(ctx, "")
	require.NoError(t, err)
	require.Equal(t, PeriodAll, got.Period)
	require.Zero(t, got.Overall.Plays)
	require.Zero(t, got.Overall.WinRate)
	require.Empty(t, got.PerGame)
	require.Empty(t, got.PerDay)
}

func TestFetchPlaysPaginatesThroughAllRecords(t *testing.T) {
	ctx := context.Background()
	svc, st := newStatsFixture(t)

	for i := 0; i < fetchPageSize+50; i++ {
		addPlay(t, st, store.NewID(), "alice", "coin-flip", game.VariantCoinFlip, 10, -10, "lose", testNow.Add(-time.Duration(i)*time.Second))
	}

	got, err := svc.Statistics(ctx, PeriodAll)
	require.NoError(t, err)
	require.Equal(t, int64(fetchPageSize+50), got.Overall.Plays)
}
