package store

import (
	"context"
	"errors"

	"github.com/stellarvision/launcherd/internal/launcher/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface for durable records (users and
// game licenses). Concrete drivers implement this; the launcher session core
// never touches it directly.
type Store interface {
	Users() Users
	Games() Games

	ApplyMigrations() error

	// Close releases the underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

type Users interface {
	// GetUserByID returns a user by id.
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByUsername is used during password login.
	GetUserByUsername(ctx context.Context, username string) (domain.User, error)

	// CreateUser inserts a new user (id is provided by the app via ULID).
	// Returns ErrAlreadyExists when the username is taken.
	CreateUser(ctx context.Context, u domain.User) error

	// IsEmpty reports whether any users exist, used by startup seeding.
	IsEmpty(ctx context.Context) (bool, error)
}

type Games interface {
	// GetGameByID returns a game by id.
	GetGameByID(ctx context.Context, id string) (domain.Game, error)

	// GetGameByName returns a game by its unique name.
	GetGameByName(ctx context.Context, name string) (domain.Game, error)

	// CreateGame inserts a new game record.
	CreateGame(ctx context.Context, g domain.Game) error
}
