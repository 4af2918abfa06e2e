// Package refreshtokens declares the repository contract for stored refresh
// token rows.
package refreshtokens

import (
	"context"
	"time"

	"github.com/newsplatform/sessiond/internal/server/models"
)

// Repository defines the persistence operations performed on refresh tokens.
type Repository interface {
	// Insert stores the token if no row with the same token value exists.
	// Returns false, without error, when the value is already present.
	Insert(ctx context.Context, token *models.RefreshToken) (bool, error)

	// FindByValue returns the row with the given token value together with
	// its owning user, or common.ErrorNotFound.
	FindByValue(ctx context.Context, value string) (*models.RefreshToken, *models.User, error)

	// FindAllByValue returns every row sharing the given token value, newest
	// issued first. Used by duplicate reconciliation.
	FindAllByValue(ctx context.Context, value string) ([]*models.RefreshToken, error)

	// MarkUsed records a rotation against the token: used_at is set to at
	// and the usage counter is incremented. Informational only.
	MarkUsed(ctx context.Context, value string, at time.Time) error

	// Revoke flips the single row with the given value to revoked.
	Revoke(ctx context.Context, value string) error

	// RevokeAllForUser flips every non-revoked row of the user in a single
	// statement and returns the number of rows affected.
	RevokeAllForUser(ctx context.Context, userID string) (int64, error)

	// DeleteOlderThan deletes at most limit rows whose expiry predates
	// cutoff, regardless of status, and returns the number deleted.
	DeleteOlderThan(ctx context.Context, cutoff time.Time, limit int) (int64, error)

	// DeleteByIDs removes the given rows.
	DeleteByIDs(ctx context.Context, ids []string) error

	// DuplicateValues returns every token value held by more than one row.
	DuplicateValues(ctx context.Context) ([]string, error)
}
