package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/stellarvision/launcherd/internal/launcher/domain"
	"github.com/stellarvision/launcherd/internal/launcher/store"
)

var ErrGameNotFound = errors.New("game not found")

// GameService resolves game licenses for launcher clients.
type GameService struct {
	games store.Games
	log   *slog.Logger
}

func NewGameService(games store.Games, log *slog.Logger) *GameService {
	return &GameService{games: games, log: log}
}

// License returns the license for the game identified by id and name. Both
// must match the same row; a name that belongs to a different id is treated
// as not found.
func (s *GameService) License(ctx context.Context, gameID, name string) (domain.Game, error) {
	g, err := s.games.GetGameByID(ctx, gameID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Game{}, ErrGameNotFound
	}
	if err != nil {
		return domain.Game{}, fmt.Errorf("lookup game: %w", err)
	}
	if g.Name != name {
		return domain.Game{}, ErrGameNotFound
	}
	return g, nil
}
