package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"karat-arcade/internal/config"
	"karat-arcade/internal/game"
	"karat-arcade/internal/ledger"
	"karat-arcade/internal/stats"
	"karat-arcade/internal/store"
	"karat-arcade/internal/store/memory"
	"karat-arcade/internal/wager"
)

const testAdminKey = "test-admin-key"

// headsSource always flips the first side and draws the first reward.
type headsSource struct{}

func (headsSource) IntN(int) int     { return 0 }
func (headsSource) Float64() float64 { return 0 }

func newTestServer(t *testing.T) (*httptest.Server, *memory.Store) {
	t.Helper()
	st := memory.New()
	cfg := config.ServerConfig{
		AdminAPIKey:    testAdminKey,
		WelcomeGrantKC: 1000,
	}
	led := ledger.New(st)
	wag := wager.New(st, led, headsSource{})
	sts := stats.New(st)

	seedTestGames(t, st)

	srv := httptest.NewServer(NewRouter(st, cfg, led, wag, sts))
	t.Cleanup(srv.Close)
	return srv, st
}

func seedTestGames(t *testing.T, st *memory.Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, st.UpsertGame(ctx, store.GameDefinition{
		ID:       "coin-flip",
		Variant:  game.VariantCoinFlip,
		Name:     "Coin Flip",
		MinBetKC: 10,
		MaxBetKC: 2000,
		Status:   store.GameActive,
		Config: game.VariantConfig{
			Variant: game.VariantCoinFlip,
			CoinFlip: &game.CoinFlipConfig{
				Sides:      []string{"heads", "tails"},
				Multiplier: decimal.RequireFromString("1.95"),
			},
		},
	}))
	require.NoError(t, st.UpsertGame(ctx, store.GameDefinition{
		ID:      "daily-spin",
		Variant: game.VariantDailySpin,
		Name:    "Daily Spin",
		Status:  store.GameActive,
		Config: game.VariantConfig{
			Variant: game.VariantDailySpin,
			DailySpin: &game.DailySpinConfig{
				FreeSpinsPerDay: 1,
				PremiumCostKC:   50,
				Rewards:         []game.SpinReward{{Code: "small", AmountKC: 25, Weight: 100}},
			},
		},
	}))
	require.NoError(t, st.UpsertGame(ctx, store.GameDefinition{
		ID:      "retired",
		Variant: game.VariantTripleDraw,
		Name:    "Retired Game",
		Status:  store.GameInactive,
		Config: game.VariantConfig{
			Variant: game.VariantTripleDraw,
			TripleDraw: &game.TripleDrawConfig{
				ThreeSevens:  decimal.RequireFromString("25"),
				ThreeOfAKind: decimal.RequireFromString("10"),
				Straight:     decimal.RequireFromString("5"),
			},
		},
	}))
}

func doJSON(t *testing.T, method, url, userID string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, body := doJSON(t, http.MethodGet, srv.URL+"/healthz", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, true, body["ok"])
}

func TestWelcomeGrantOnFirstContact(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/wallet/balance", "alice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, float64(1000), body["balance_kc"])

	// a second request must not grant again
	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/wallet/balance", "alice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, float64(1000), body["balance_kc"])
}

func TestIdentityRequired(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/wallet/balance", "", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "missing_user", body["error"])
}

func TestPlayEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/games/coin-flip/play", "alice", map[string]any{
		"bet_kc":       100,
		"choice":       map[string]any{"side": "heads"},
		"operation_id": "op-1",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "win", body["result"])
	require.Equal(t, float64(195), body["payout_kc"])
	require.Equal(t, float64(1095), body["balance_after"])

	// replaying the same operation returns the original play
	resp, body = doJSON(t, http.MethodPost, srv.URL+"/api/games/coin-flip/play", "alice", map[string]any{
		"bet_kc":       100,
		"choice":       map[string]any{"side": "heads"},
		"operation_id": "op-1",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, true, body["replayed"])
	require.Equal(t, float64(1095), body["balance_after"])
}

func TestPlayEndpointErrors(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/games/missing/play", "alice", map[string]any{
		"bet_kc": 100, "choice": map[string]any{"side": "heads"}, "operation_id": "op-1",
	})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Equal(t, "not_found", body["error"])

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/api/games/retired/play", "alice", map[string]any{
		"bet_kc": 100, "choice": map[string]any{}, "operation_id": "op-2",
	})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	require.Equal(t, "game_unavailable", body["error"])

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/api/games/coin-flip/play", "alice", map[string]any{
		"bet_kc": 100000, "choice": map[string]any{"side": "heads"}, "operation_id": "op-3",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "invalid_request", body["error"])

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/api/games/coin-flip/play", "alice", map[string]any{
		"bet_kc": 2000, "choice": map[string]any{"side": "heads"}, "operation_id": "op-4",
	})
	require.Equal(t, http.StatusPaymentRequired, resp.StatusCode)
	require.Equal(t, "insufficient_balance", body["error"])
}

func TestSpinEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/spin/status", "alice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, float64(1), body["remaining_free_spins"])

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/api/spin", "alice", map[string]any{"operation_id": "spin-1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "free", body["mode"])
	require.Equal(t, float64(25), body["reward_kc"])

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/spin/status", "alice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, float64(0), body["remaining_free_spins"])
}

func TestGiftEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	// both players exist after first contact
	doJSON(t, http.MethodGet, srv.URL+"/api/wallet/balance", "alice", nil)
	doJSON(t, http.MethodGet, srv.URL+"/api/wallet/balance", "bob", nil)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/wallet/gift", "alice", map[string]any{
		"recipient_id": "bob", "amount_kc": 300, "operation_id": "gift-1",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, true, body["ok"])

	_, balBody := doJSON(t, http.MethodGet, srv.URL+"/api/wallet/balance", "bob", nil)
	require.Equal(t, float64(1300), balBody["balance_kc"])

	// replay returns the original entry without moving funds again
	resp, body = doJSON(t, http.MethodPost, srv.URL+"/api/wallet/gift", "alice", map[string]any{
		"recipient_id": "bob", "amount_kc": 300, "operation_id": "gift-1",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, true, body["replayed"])

	_, balBody = doJSON(t, http.MethodGet, srv.URL+"/api/wallet/balance", "alice", nil)
	require.Equal(t, float64(700), balBody["balance_kc"])

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/api/wallet/gift", "alice", map[string]any{
		"recipient_id": "bob", "amount_kc": 10000, "operation_id": "gift-2",
	})
	require.Equal(t, http.StatusPaymentRequired, resp.StatusCode)
	require.Equal(t, "insufficient_balance", body["error"])
}

func TestWalletLedgerEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	doJSON(t, http.MethodPost, srv.URL+"/api/games/coin-flip/play", "alice", map[string]any{
		"bet_kc": 100, "choice": map[string]any{"side": "heads"}, "operation_id": "op-1",
	})

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/wallet/ledger", "alice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	// welcome grant, wager debit, wager credit
	require.Equal(t, float64(3), body["total"])

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/wallet/ledger?kind=wager_debit", "alice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, float64(1), body["total"])
}

func TestHistoryEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	doJSON(t, http.MethodPost, srv.URL+"/api/games/coin-flip/play", "alice", map[string]any{
		"bet_kc": 100, "choice": map[string]any{"side": "heads"}, "operation_id": "op-1",
	})

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/history", "alice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, float64(1), body["total"])

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/history?variant=bogus", "alice", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPublicGamesHidesInactive(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/public/games", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	items := body["items"].([]any)
	require.Len(t, items, 2)
	for _, it := range items {
		require.NotEqual(t, "retired", it.(map[string]any)["id"])
	}
}

func TestPublicLeaderboardAndStats(t *testing.T) {
	srv, _ := newTestServer(t)

	doJSON(t, http.MethodPost, srv.URL+"/api/games/coin-flip/play", "alice", map[string]any{
		"bet_kc": 100, "choice": map[string]any{"side": "heads"}, "operation_id": "op-1",
	})

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/public/leaderboard", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	items := body["items"].([]any)
	require.Len(t, items, 1)
	require.Equal(t, "alice", items[0].(map[string]any)["player_id"])

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/public/leaderboard?period=fortnight", "", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/public/stats", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	overall := body["overall"].(map[string]any)
	require.Equal(t, float64(1), overall["plays"])
	require.Equal(t, float64(100), overall["wagered_kc"])
}

func TestAdminAuth(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/api/admin/ledger", "", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/admin/ledger", nil)
	require.NoError(t, err)
	req.Header.Set("X-Admin-Key", testAdminKey)
	adminResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer adminResp.Body.Close()
	require.Equal(t, http.StatusOK, adminResp.StatusCode)
}

func TestAdminTopup(t *testing.T) {
	srv, _ := newTestServer(t)
	doJSON(t, http.MethodGet, srv.URL+"/api/wallet/balance", "alice", nil)

	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(map[string]any{
		"player_id": "alice", "amount_kc": 500, "operation_id": "topup-1",
	}))
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/admin/topup", &buf)
	require.NoError(t, err)
	req.Header.Set("X-Admin-Key", testAdminKey)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, float64(1500), body["balance_kc"])
}

func TestAdminGameUpsertValidatesConfig(t *testing.T) {
	srv, _ := newTestServer(t)

	post := func(body any) (*http.Response, map[string]any) {
		var buf bytes.Buffer
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
		req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/admin/games", &buf)
		require.NoError(t, err)
		req.Header.Set("X-Admin-Key", testAdminKey)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		t.Cleanup(func() { _ = resp.Body.Close() })
		var out map[string]any
		_ = json.NewDecoder(resp.Body).Decode(&out)
		return resp, out
	}

	// one-sided coin flip never reaches the store
	resp, body := post(map[string]any{
		"id": "broken-flip", "name": "Broken Flip", "variant": "coin_flip",
		"min_bet_kc": 10, "max_bet_kc": 100,
		"config": map[string]any{
			"variant":   "coin_flip",
			"coin_flip": map[string]any{"sides": []string{"heads"}, "multiplier": "1.95"},
		},
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "invalid_request", body["error"])

	// inverted bet range is rejected too
	resp, _ = post(map[string]any{
		"id": "backwards", "name": "Backwards", "variant": "coin_flip",
		"min_bet_kc": 100, "max_bet_kc": 10,
		"config": map[string]any{
			"variant":   "coin_flip",
			"coin_flip": map[string]any{"sides": []string{"heads", "tails"}, "multiplier": "1.95"},
		},
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = post(map[string]any{
		"id": "silver-flip", "name": "Silver Flip", "variant": "coin_flip",
		"min_bet_kc": 10, "max_bet_kc": 100,
		"config": map[string]any{
			"variant":   "coin_flip",
			"coin_flip": map[string]any{"sides": []string{"heads", "tails"}, "multiplier": "1.90"},
		},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "silver-flip", body["game_id"])
}

func TestAdminGameStatus(t *testing.T) {
	srv, _ := newTestServer(t)

	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(map[string]any{
		"game_id": "coin-flip", "status": "maintenance",
	}))
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/admin/games/status", &buf)
	require.NoError(t, err)
	req.Header.Set("X-Admin-Key", testAdminKey)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	playResp, body := doJSON(t, http.MethodPost, srv.URL+"/api/games/coin-flip/play", "alice", map[string]any{
		"bet_kc": 100, "choice": map[string]any{"side": "heads"}, "operation_id": "op-1",
	})
	require.Equal(t, http.StatusConflict, playResp.StatusCode)
	require.Equal(t, "game_unavailable", body["error"])
}
