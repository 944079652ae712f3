package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/shopspring/decimal"

	"karat-arcade/internal/game"
	"karat-arcade/internal/store"
)

type gamesFile struct {
	Games []gameSeed `toml:"games"`
}

type gameSeed struct {
	ID          string `toml:"id"`
	Variant     string `toml:"variant"`
	Name        string `toml:"name"`
	Description string `toml:"description"`
	MinBetKC    int64  `toml:"min_bet_kc"`
	MaxBetKC    int64  `toml:"max_bet_kc"`
	Status      string `toml:"status"`

	NumberGuess *game.NumberGuessConfig `toml:"number_guess"`
	TripleDraw  *game.TripleDrawConfig  `toml:"triple_draw"`
	CoinFlip    *game.CoinFlipConfig    `toml:"coin_flip"`
	DailySpin   *game.DailySpinConfig   `toml:"daily_spin"`
}

// LoadGames reads the game catalog from a TOML file. An empty path yields the
// built-in defaults.
func LoadGames(path string) ([]store.GameDefinition, error) {
	if path == "" {
		return DefaultGames(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read games config: %w", err)
	}
	var f gamesFile
	if err := toml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse games config: %w", err)
	}
	if len(f.Games) == 0 {
		return nil, fmt.Errorf("games config %s defines no games", path)
	}
	out := make([]store.GameDefinition, 0, len(f.Games))
	for i, s := range f.Games {
		g, err := s.toDefinition()
		if err != nil {
			return nil, fmt.Errorf("games config %s, game %d (%s): %w", path, i, s.ID, err)
		}
		out = append(out, g)
	}
	return out, nil
}

func (s gameSeed) toDefinition() (store.GameDefinition, error) {
	if s.ID == "" || s.Name == "" {
		return store.GameDefinition{}, fmt.Errorf("id and name are required")
	}
	v := game.Variant(s.Variant)
	if !v.Valid() {
		return store.GameDefinition{}, fmt.Errorf("unknown variant %q", s.Variant)
	}
	status := s.Status
	if status == "" {
		status = store.GameActive
	}
	switch status {
	case store.GameActive, store.GameInactive, store.GameMaintenance:
	default:
		return store.GameDefinition{}, fmt.Errorf("unknown status %q", s.Status)
	}
	cfg := game.VariantConfig{
		Variant:     v,
		NumberGuess: s.NumberGuess,
		TripleDraw:  s.TripleDraw,
		CoinFlip:    s.CoinFlip,
		DailySpin:   s.DailySpin,
	}
	if v != game.VariantDailySpin && (s.MinBetKC <= 0 || s.MaxBetKC < s.MinBetKC) {
		return store.GameDefinition{}, fmt.Errorf("bet range %d..%d is invalid", s.MinBetKC, s.MaxBetKC)
	}
	if err := game.ValidateChoice(cfg, firstValidChoice(cfg)); err != nil {
		return store.GameDefinition{}, fmt.Errorf("variant config: %w", err)
	}
	return store.GameDefinition{
		ID:          s.ID,
		Variant:     v,
		Name:        s.Name,
		Description: s.Description,
		MinBetKC:    s.MinBetKC,
		MaxBetKC:    s.MaxBetKC,
		Config:      cfg,
		Status:      status,
	}, nil
}

// firstValidChoice builds a choice that passes input validation for cfg, so
// seed-time validation exercises the config check, not the player input.
func firstValidChoice(cfg game.VariantConfig) game.Choice {
	switch cfg.Variant {
	case game.VariantNumberGuess:
		if cfg.NumberGuess != nil {
			n := cfg.NumberGuess.MinNumber
			return game.Choice{Number: &n}
		}
	case game.VariantCoinFlip:
		if cfg.CoinFlip != nil && len(cfg.CoinFlip.Sides) > 0 {
			return game.Choice{Side: cfg.CoinFlip.Sides[0]}
		}
	}
	return game.Choice{}
}

// DefaultGames is the catalog seeded when no config file is given.
func DefaultGames() []store.GameDefinition {
	return []store.GameDefinition{
		{
			ID:          "lucky-number",
			Variant:     game.VariantNumberGuess,
			Name:        "Lucky Number",
			Description: "Pick a number from 1 to 10. Hit it and win 9.5x your bet.",
			MinBetKC:    10,
			MaxBetKC:    1000,
			Status:      store.GameActive,
			Config: game.VariantConfig{
				Variant: game.VariantNumberGuess,
				NumberGuess: &game.NumberGuessConfig{
					MinNumber:  1,
					MaxNumber:  10,
					Multiplier: decimal.RequireFromString("9.5"),
				},
			},
		},
		{
			ID:          "triple-draw",
			Variant:     game.VariantTripleDraw,
			Name:        "Triple Draw",
			Description: "Three draws from 1 to 7. Sevens pay 25x, trips 10x, straights 5x.",
			MinBetKC:    10,
			MaxBetKC:    500,
			Status:      store.GameActive,
			Config: game.VariantConfig{
				Variant: game.VariantTripleDraw,
				TripleDraw: &game.TripleDrawConfig{
					ThreeSevens:  decimal.RequireFromString("25"),
					ThreeOfAKind: decimal.RequireFromString("10"),
					Straight:     decimal.RequireFromString("5"),
				},
			},
		},
		{
			ID:          "coin-flip",
			Variant:     game.VariantCoinFlip,
			Name:        "Coin Flip",
			Description: "Heads or tails, 1.95x on a win.",
			MinBetKC:    10,
			MaxBetKC:    2000,
			Status:      store.GameActive,
			Config: game.VariantConfig{
				Variant: game.VariantCoinFlip,
				CoinFlip: &game.CoinFlipConfig{
					Sides:      []string{"heads", "tails"},
					Multiplier: decimal.RequireFromString("1.95"),
				},
			},
		},
		{
			ID:          "daily-spin",
			Variant:     game.VariantDailySpin,
			Name:        "Daily Spin",
			Description: "Three free spins a day, extra spins for 50 KC.",
			Status:      store.GameActive,
			Config: game.VariantConfig{
				Variant: game.VariantDailySpin,
				DailySpin: &game.DailySpinConfig{
					FreeSpinsPerDay: 3,
					PremiumCostKC:   50,
					Rewards: []game.SpinReward{
						{Code: "small", AmountKC: 10, Weight: 50},
						{Code: "medium", AmountKC: 25, Weight: 30},
						{Code: "large", AmountKC: 100, Weight: 15},
						{Code: "jackpot", AmountKC: 500, Weight: 5},
					},
				},
			},
		},
	}
}
