package game

import (
	"errors"
	"sort"

	"github.com/shopspring/decimal"
)

var ErrInvalidChoice = errors.New("invalid_choice")
var ErrBadConfig = errors.New("bad_game_config")

// Outcome is the verdict of one resolved draw. Multiplier is zero on a loss;
// Detail is the variant-specific record of what was drawn.
type Outcome struct {
	Win        bool
	Multiplier decimal.Decimal
	Detail     any
}

type NumberGuessDetail struct {
	Picked int `json:"picked"`
	Rolled int `json:"rolled"`
}

type TripleDrawDetail struct {
	Draws   [3]int `json:"draws"`
	Pattern string `json:"pattern"`
}

type CoinFlipDetail struct {
	Picked  string `json:"picked"`
	Flipped string `json:"flipped"`
}

type SpinDetail struct {
	RewardCode string `json:"reward_code"`
	AmountKC   int64  `json:"amount_kc"`
}

// Resolve runs the variant resolver for cfg. It is pure: all randomness comes
// from src, all inputs from its arguments.
func Resolve(cfg VariantConfig, choice Choice, src Source) (Outcome, error) {
	if err := ValidateChoice(cfg, choice); err != nil {
		return Outcome{}, err
	}
	switch cfg.Variant {
	case VariantNumberGuess:
		return resolveNumberGuess(*cfg.NumberGuess, *choice.Number, src), nil
	case VariantTripleDraw:
		return resolveTripleDraw(*cfg.TripleDraw, src), nil
	case VariantCoinFlip:
		return resolveCoinFlip(*cfg.CoinFlip, choice.Side, src), nil
	case VariantDailySpin:
		return resolveDailySpin(*cfg.DailySpin, src), nil
	}
	return Outcome{}, ErrBadConfig
}

func resolveNumberGuess(cfg NumberGuessConfig, picked int, src Source) Outcome {
	rolled := cfg.MinNumber + src.IntN(cfg.MaxNumber-cfg.MinNumber+1)
	out := Outcome{
		Win:    rolled == picked,
		Detail: NumberGuessDetail{Picked: picked, Rolled: rolled},
	}
	if out.Win {
		out.Multiplier = cfg.Multiplier
	}
	return out
}

// Pattern precedence is fixed: three-sevens beats three-of-a-kind beats
// straight. 7-7-7 must never be classified as plain three-of-a-kind.
func resolveTripleDraw(cfg TripleDrawConfig, src Source) Outcome {
	var draws [3]int
	for i := range draws {
		draws[i] = 1 + src.IntN(7)
	}
	pattern, mult := classifyTriple(cfg, draws)
	return Outcome{
		Win:        pattern != "lose",
		Multiplier: mult,
		Detail:     TripleDrawDetail{Draws: draws, Pattern: pattern},
	}
}

func classifyTriple(cfg TripleDrawConfig, draws [3]int) (string, decimal.Decimal) {
	if draws[0] == 7 && draws[1] == 7 && draws[2] == 7 {
		return "three_sevens", cfg.ThreeSevens
	}
	if draws[0] == draws[1] && draws[1] == draws[2] {
		return "three_of_a_kind", cfg.ThreeOfAKind
	}
	s := []int{draws[0], draws[1], draws[2]}
	sort.Ints(s)
	if s[1] == s[0]+1 && s[2] == s[1]+1 {
		return "straight", cfg.Straight
	}
	return "lose", decimal.Zero
}

func resolveCoinFlip(cfg CoinFlipConfig, picked string, src Source) Outcome {
	flipped := cfg.Sides[src.IntN(2)]
	out := Outcome{
		Win:    flipped == picked,
		Detail: CoinFlipDetail{Picked: picked, Flipped: flipped},
	}
	if out.Win {
		out.Multiplier = cfg.Multiplier
	}
	return out
}

// resolveDailySpin always yields a reward. Weights are normalized and walked in
// table order, so the reward table's ordering is part of the draw contract.
func resolveDailySpin(cfg DailySpinConfig, src Source) Outcome {
	total := 0.0
	for _, r := range cfg.Rewards {
		total += r.Weight
	}
	draw := src.Float64()
	cum := 0.0
	picked := cfg.Rewards[len(cfg.Rewards)-1]
	for _, r := range cfg.Rewards {
		cum += r.Weight / total
		if draw < cum {
			picked = r
			break
		}
	}
	return Outcome{
		Win:    true,
		Detail: SpinDetail{RewardCode: picked.Code, AmountKC: picked.AmountKC},
	}
}

// Payout converts a winning outcome into KC: floor(bet x multiplier).
func Payout(betKC int64, multiplier decimal.Decimal) int64 {
	return multiplier.Mul(decimal.NewFromInt(betKC)).Floor().IntPart()
}
