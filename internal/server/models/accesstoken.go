package models

import "time"

// TokenStatus is the stored lifecycle state of an access token.
type TokenStatus string

const (
	TokenStatusActive  TokenStatus = "ACTIVE"
	TokenStatusRevoked TokenStatus = "REVOKED"
)

// AccessToken is a stored signed JWT. Rows are created at issuance, flipped
// to REVOKED by bulk revocation, and deleted by the retention sweep.
type AccessToken struct {
	ID         string
	TokenValue string
	UserID     string
	IssuedAt   time.Time
	ExpiresAt  time.Time
	Status     TokenStatus
	ClientIP   string
	UserAgent  string
}

// IsExpired reports whether the token's expiry has passed at the given time.
func (t *AccessToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// IsValid reports whether the token is ACTIVE and not expired.
func (t *AccessToken) IsValid(now time.Time) bool {
	return t.Status == TokenStatusActive && !t.IsExpired(now)
}

// TokenInfo is the validation result handed to callers: the owning user and
// the validated token's expiry.
type TokenInfo struct {
	User      *User
	ExpiresAt time.Time
}
