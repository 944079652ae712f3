package game

import "github.com/shopspring/decimal"

type Variant string

const (
	VariantNumberGuess Variant = "number_guess"
	VariantTripleDraw  Variant = "triple_draw"
	VariantCoinFlip    Variant = "coin_flip"
	VariantDailySpin   Variant = "daily_spin"
)

func (v Variant) Valid() bool {
	switch v {
	case VariantNumberGuess, VariantTripleDraw, VariantCoinFlip, VariantDailySpin:
		return true
	}
	return false
}

// VariantConfig is a tagged union: exactly the field matching Variant is set.
type VariantConfig struct {
	Variant     Variant            `json:"variant"`
	NumberGuess *NumberGuessConfig `json:"number_guess,omitempty"`
	TripleDraw  *TripleDrawConfig  `json:"triple_draw,omitempty"`
	CoinFlip    *CoinFlipConfig    `json:"coin_flip,omitempty"`
	DailySpin   *DailySpinConfig   `json:"daily_spin,omitempty"`
}

type NumberGuessConfig struct {
	MinNumber  int             `json:"min_number" toml:"min_number"`
	MaxNumber  int             `json:"max_number" toml:"max_number"`
	Multiplier decimal.Decimal `json:"multiplier" toml:"multiplier"`
}

type TripleDrawConfig struct {
	ThreeSevens  decimal.Decimal `json:"three_sevens" toml:"three_sevens"`
	ThreeOfAKind decimal.Decimal `json:"three_of_a_kind" toml:"three_of_a_kind"`
	Straight     decimal.Decimal `json:"straight" toml:"straight"`
}

type CoinFlipConfig struct {
	Sides      []string        `json:"sides" toml:"sides"`
	Multiplier decimal.Decimal `json:"multiplier" toml:"multiplier"`
}

type SpinReward struct {
	Code     string  `json:"code" toml:"code"`
	AmountKC int64   `json:"amount_kc" toml:"amount_kc"`
	Weight   float64 `json:"weight" toml:"weight"`
}

type DailySpinConfig struct {
	Rewards         []SpinReward `json:"rewards" toml:"rewards"`
	FreeSpinsPerDay int          `json:"free_spins_per_day" toml:"free_spins_per_day"`
	PremiumCostKC   int64        `json:"premium_cost_kc" toml:"premium_cost_kc"`
}

// Choice carries the player's variant-specific input. Number is used by
// number-guess, Side by coin-flip; triple-draw and daily-spin take no input.
type Choice struct {
	Number *int   `json:"number,omitempty"`
	Side   string `json:"side,omitempty"`
}

// Validate checks the tagged union is well-formed: the variant is known, its
// config is present and every multiplier/weight is usable.
func (c *VariantConfig) Validate() error {
	switch c.Variant {
	case VariantNumberGuess:
		if c.NumberGuess == nil || c.NumberGuess.MinNumber >= c.NumberGuess.MaxNumber || !c.NumberGuess.Multiplier.IsPositive() {
			return ErrBadConfig
		}
	case VariantTripleDraw:
		if c.TripleDraw == nil || !c.TripleDraw.ThreeSevens.IsPositive() || !c.TripleDraw.ThreeOfAKind.IsPositive() || !c.TripleDraw.Straight.IsPositive() {
			return ErrBadConfig
		}
	case VariantCoinFlip:
		if c.CoinFlip == nil || len(c.CoinFlip.Sides) != 2 || c.CoinFlip.Sides[0] == c.CoinFlip.Sides[1] || !c.CoinFlip.Multiplier.IsPositive() {
			return ErrBadConfig
		}
	case VariantDailySpin:
		if c.DailySpin == nil || len(c.DailySpin.Rewards) == 0 {
			return ErrBadConfig
		}
		for _, r := range c.DailySpin.Rewards {
			if r.Weight <= 0 || r.AmountKC <= 0 {
				return ErrBadConfig
			}
		}
	default:
		return ErrBadConfig
	}
	return nil
}

// ValidateChoice checks the player's input against the config without drawing.
// The orchestrator calls it before any funds move.
func ValidateChoice(cfg VariantConfig, choice Choice) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	switch cfg.Variant {
	case VariantNumberGuess:
		if choice.Number == nil || *choice.Number < cfg.NumberGuess.MinNumber || *choice.Number > cfg.NumberGuess.MaxNumber {
			return ErrInvalidChoice
		}
	case VariantCoinFlip:
		if choice.Side != cfg.CoinFlip.Sides[0] && choice.Side != cfg.CoinFlip.Sides[1] {
			return ErrInvalidChoice
		}
	case VariantTripleDraw, VariantDailySpin:
		// no player input
	}
	return nil
}
