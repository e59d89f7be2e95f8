package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/stellarvision/launcherd/internal/launcher/domain"
	"github.com/stellarvision/launcherd/internal/launcher/store"
	"github.com/stellarvision/launcherd/pkg/cryptox"
	"github.com/stellarvision/launcherd/pkg/idx"
)

type seedUser struct {
	username string
	password string
	role     string
}

var defaultUsers = []seedUser{
	{username: "admin", password: "admin", role: domain.RoleAdmin},
	{username: "dev", password: "dev", role: domain.RoleDev},
	{username: "user", password: "user", role: domain.RoleUser},
}

var defaultGame = domain.Game{
	Name:    "PluginEnvironment",
	License: "PE-LIC-0001",
}

// SeedDefaults creates the development accounts and the sample game when the
// user table is empty. Meant for local setups only; production databases are
// never empty.
func SeedDefaults(ctx context.Context, st store.Store, log *slog.Logger) error {
	empty, err := st.Users().IsEmpty(ctx)
	if err != nil {
		return fmt.Errorf("check seed state: %w", err)
	}
	if !empty {
		return nil
	}

	for _, su := range defaultUsers {
		hash, err := cryptox.HashPassword(su.password)
		if err != nil {
			return fmt.Errorf("hash seed password: %w", err)
		}
		u := domain.User{
			ID:           idx.New().String(),
			Username:     su.username,
			PasswordHash: hash,
			Role:         su.role,
		}
		if err := st.Users().CreateUser(ctx, u); err != nil && !errors.Is(err, store.ErrAlreadyExists) {
			return fmt.Errorf("seed user %s: %w", su.username, err)
		}
		log.Info("seeded user", "username", su.username, "role", su.role)
	}

	g := defaultGame
	g.ID = idx.New().String()
	if err := st.Games().CreateGame(ctx, g); err != nil && !errors.Is(err, store.ErrAlreadyExists) {
		return fmt.Errorf("seed game %s: %w", g.Name, err)
	}
	log.Info("seeded game", "name", g.Name)
	return nil
}
