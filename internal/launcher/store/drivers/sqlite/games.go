package sqlite

import (
	"context"
	"database/sql"

	"github.com/stellarvision/launcherd/internal/launcher/domain"
)

type gamesRepo struct {
	db *sql.DB
}

const gameColumns = `id, name, license, created_at, updated_at`

func (r *gamesRepo) GetGameByID(ctx context.Context, id string) (domain.Game, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+gameColumns+` FROM games WHERE id = ?`, id)
	return scanGame(row)
}

func (r *gamesRepo) GetGameByName(ctx context.Context, name string) (domain.Game, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+gameColumns+` FROM games WHERE name = ?`, name)
	return scanGame(row)
}

func (r *gamesRepo) CreateGame(ctx context.Context, g domain.Game) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO games (id, name, license) VALUES (?, ?, ?)`,
		g.ID, g.Name, g.License)
	return mapConstraint(err)
}

func scanGame(row *sql.Row) (domain.Game, error) {
	var g domain.Game
	err := row.Scan(&g.ID, &g.Name, &g.License, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return domain.Game{}, mapNotFound(err)
	}
	return g, nil
}
