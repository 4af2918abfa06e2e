// Package tokencache caches positive access-token validation results so the
// hot validate path can skip the store lookup. Entries are short-lived and a
// user's entries are purged when their tokens are revoked. The purge also
// leaves a per-user revocation marker: an entry whose store read predates the
// marker is never returned, so a validation that was already in flight when
// the revocation landed cannot resurrect a stale "valid" result.
package tokencache

import (
	"context"
	"time"

	"github.com/newsplatform/sessiond/internal/server/models"
)

// Cache is a read-through cache of validated access tokens, keyed by token
// value. Implementations are best-effort: a miss or a failed Set must never
// fail validation itself.
type Cache interface {
	// Get returns the cached validation result for the token value, if any.
	// An entry whose readAt predates the user's last purge is a miss.
	Get(ctx context.Context, value string) (*models.TokenInfo, bool)

	// Set stores a validation result for at most ttl. readAt is the instant
	// the backing store was consulted, not the instant of the call.
	Set(ctx context.Context, value string, info *models.TokenInfo, readAt time.Time, ttl time.Duration)

	// PurgeUser drops every cached entry belonging to the user and marks the
	// purge instant so in-flight Sets carrying older reads are rejected.
	PurgeUser(ctx context.Context, userID string) error
}
