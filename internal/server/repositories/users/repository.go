// Package users declares the repository contract for looking up platform
// accounts. The token engine consumes users read-only; the only write is the
// last-login timestamp recorded after a successful login.
package users

import (
	"context"
	"time"

	"github.com/newsplatform/sessiond/internal/server/models"
)

// Repository defines lookups over platform users.
type Repository interface {
	// ByUsername returns the user with the given username, or
	// common.ErrorNotFound.
	ByUsername(ctx context.Context, username string) (*models.User, error)

	// ByEmail returns the user with the given email, or common.ErrorNotFound.
	ByEmail(ctx context.Context, email string) (*models.User, error)

	// ByID returns the user with the given id, or common.ErrorNotFound.
	ByID(ctx context.Context, id string) (*models.User, error)

	// SaveLastLogin records the user's last successful login time.
	SaveLastLogin(ctx context.Context, id string, at time.Time) error

	// Create stores a new user and returns it with its generated id.
	// Used by seeding tools and tests; the engine never registers users.
	Create(ctx context.Context, user *models.User) (*models.User, error)
}
