// Package accesstokens declares the repository contract for stored access
// token rows.
package accesstokens

import (
	"context"
	"time"

	"github.com/newsplatform/sessiond/internal/server/models"
)

// Repository defines the persistence operations the token engine performs on
// access tokens. Every write path of the engine goes through one of these.
type Repository interface {
	// Insert stores the token if no row with the same token value exists.
	// Returns false, without error, when the value is already present.
	Insert(ctx context.Context, token *models.AccessToken) (bool, error)

	// FindByValue returns the row with the given token value together with
	// its owning user, or common.ErrorNotFound.
	FindByValue(ctx context.Context, value string) (*models.AccessToken, *models.User, error)

	// FindAllByValue returns every row sharing the given token value, newest
	// issued first. Used by duplicate reconciliation.
	FindAllByValue(ctx context.Context, value string) ([]*models.AccessToken, error)

	// RevokeAllForUser flips every ACTIVE row of the user to REVOKED in a
	// single statement and returns the number of rows affected.
	RevokeAllForUser(ctx context.Context, userID string) (int64, error)

	// DeleteOlderThan deletes at most limit rows whose expiry predates
	// cutoff, regardless of status, and returns the number deleted.
	DeleteOlderThan(ctx context.Context, cutoff time.Time, limit int) (int64, error)

	// DeleteByIDs removes the given rows.
	DeleteByIDs(ctx context.Context, ids []string) error

	// DuplicateValues returns every token value held by more than one row.
	DuplicateValues(ctx context.Context) ([]string, error)
}
