// Package bootstrap seeds the game catalog at startup.
package bootstrap

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"karat-arcade/internal/config"
	"karat-arcade/internal/store"
)

// EnsureGames loads the catalog from path (or the built-in defaults) and
// inserts any game not yet present. Games already in the store keep their
// stored config; the seed never overwrites. Returns the number added.
func EnsureGames(ctx context.Context, st store.Store, path string) (int, error) {
	games, err := config.LoadGames(path)
	if err != nil {
		return 0, err
	}
	added := 0
	for _, g := range games {
		if _, err := st.GetGame(ctx, g.ID); err == nil {
			continue
		} else if !errors.Is(err, store.ErrNotFound) {
			return added, err
		}
		if err := st.UpsertGame(ctx, g); err != nil {
			return added, err
		}
		log.Info().Str("game_id", g.ID).Str("variant", string(g.Variant)).Msg("game seeded")
		added++
	}
	return added, nil
}
