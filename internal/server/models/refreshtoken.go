package models

import "time"

// RefreshToken is a stored opaque credential. UsedAt and UsageCount are
// informational audit fields updated on each rotation; neither affects
// validity. Only the revoked flag and expiry do.
type RefreshToken struct {
	ID         string
	TokenValue string
	UserID     string
	IssuedAt   time.Time
	ExpiresAt  time.Time
	UsedAt     *time.Time
	UsageCount int
	Revoked    bool
	ClientIP   string
	UserAgent  string
}

// IsExpired reports whether the token's expiry has passed at the given time.
func (t *RefreshToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// IsValid reports whether the token is not revoked and not expired.
func (t *RefreshToken) IsValid(now time.Time) bool {
	return !t.Revoked && !t.IsExpired(now)
}
