// Package services contains the business logic of the session token engine:
// credential verification, token issuance, validation, rotation, bulk
// revocation and storage hygiene.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/newsplatform/sessiond/internal/common"
	"github.com/newsplatform/sessiond/internal/dbx"
	"github.com/newsplatform/sessiond/internal/logging"
	"github.com/newsplatform/sessiond/internal/server/auth"
	"github.com/newsplatform/sessiond/internal/server/config"
	"github.com/newsplatform/sessiond/internal/server/models"
	"github.com/newsplatform/sessiond/internal/server/repositories/repomanager"
	"github.com/newsplatform/sessiond/internal/server/tokencache"
)

// refreshTokenBytes is the crypto/rand size of an opaque refresh value;
// the stored string is twice as long in hex.
const refreshTokenBytes = 32

// refreshInsertAttempts bounds value regeneration when a freshly generated
// refresh value collides with a stored one.
const refreshInsertAttempts = 5

// TokenService owns the token lifecycle: issuance of signed access tokens
// and opaque refresh tokens, stateful validation, rotation and bulk
// revocation. The signing secret is fixed at construction and never exposed.
type TokenService struct {
	db         *sql.DB
	repos      repomanager.RepositoryManager
	cleanup    *CleanupService
	cache      tokencache.Cache
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	cacheTTL   time.Duration
	logger     logging.Logger
	now        func() time.Time
}

// NewTokenService constructs a TokenService. cache may be nil to disable the
// validation cache; cleanup must not be nil, it backs the opportunistic
// duplicate reconciliation run after every issuance.
func NewTokenService(db *sql.DB, m repomanager.RepositoryManager, cleanup *CleanupService,
	cache tokencache.Cache, cfg *config.Config, logger logging.Logger) *TokenService {
	return &TokenService{
		db:         db,
		repos:      m,
		cleanup:    cleanup,
		cache:      cache,
		secret:     []byte(cfg.SecretKey),
		accessTTL:  cfg.AccessTokenTTL,
		refreshTTL: cfg.RefreshTokenTTL,
		cacheTTL:   cfg.CacheTTL,
		logger:     logger.With("component", "tokens"),
		now:        time.Now,
	}
}

// IssueAccessToken mints, signs and persists an access token for user.
// The user must be active. The row is written with a conditional insert
// keyed on the token value, so two racing issuances can never persist two
// rows for one value.
func (s *TokenService) IssueAccessToken(ctx context.Context, user *models.User, clientIP, userAgent string) (*models.AccessToken, error) {
	if !user.Active {
		return nil, common.ErrInactiveUser
	}

	issued := s.now()
	value, err := auth.GenerateToken(user, s.secret, issued, s.accessTTL)
	if err != nil {
		return nil, fmt.Errorf("signing access token: %w", err)
	}

	token := &models.AccessToken{
		ID:         uuid.NewString(),
		TokenValue: value,
		UserID:     user.ID,
		IssuedAt:   issued,
		ExpiresAt:  issued.Add(s.accessTTL),
		Status:     models.TokenStatusActive,
		ClientIP:   clientIP,
		UserAgent:  userAgent,
	}

	repo := s.repos.AccessTokens(s.db)
	inserted, err := repo.Insert(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrPersistence, err)
	}

	s.reconcileAccessValue(ctx, value)

	if !inserted {
		// An identical token string is already stored: the claims of two
		// same-second issuances for one user coincide, and so do their
		// signatures. The surviving row backs both callers, so hand it back
		// rather than a record the store never kept.
		s.logger.Warn(ctx, "duplicate access token insert recovered", "user_id", user.ID)
		stored, _, err := repo.FindByValue(ctx, value)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return token, nil
			}
			return nil, fmt.Errorf("%w: %v", common.ErrPersistence, err)
		}
		return stored, nil
	}

	return token, nil
}

// IssueRefreshToken mints and persists an opaque refresh token for user.
// The value is drawn from crypto/rand; on the extremely unlikely stored
// collision a fresh value is generated and the insert retried.
func (s *TokenService) IssueRefreshToken(ctx context.Context, user *models.User, clientIP, userAgent string) (*models.RefreshToken, error) {
	if !user.Active {
		return nil, common.ErrInactiveUser
	}

	repo := s.repos.RefreshTokens(s.db)

	for attempt := 0; attempt < refreshInsertAttempts; attempt++ {
		value, err := common.MakeRandHexString(refreshTokenBytes)
		if err != nil {
			return nil, fmt.Errorf("generating refresh token: %w", err)
		}

		issued := s.now()
		token := &models.RefreshToken{
			ID:         uuid.NewString(),
			TokenValue: value,
			UserID:     user.ID,
			IssuedAt:   issued,
			ExpiresAt:  issued.Add(s.refreshTTL),
			ClientIP:   clientIP,
			UserAgent:  userAgent,
		}

		inserted, err := repo.Insert(ctx, token)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrPersistence, err)
		}
		if inserted {
			s.reconcileRefreshValue(ctx, value)
			return token, nil
		}

		s.logger.Warn(ctx, "refresh token value collision, regenerating", "attempt", attempt+1)
	}

	return nil, fmt.Errorf("%w: refresh token value kept colliding", common.ErrPersistence)
}

// ValidateAccessToken checks a presented access token. Phase one is
// stateless: signature and expiry are verified without touching the store,
// so tampered or expired tokens cost no I/O. Phase two looks the row up and
// requires ACTIVE status, which is how revocation takes effect before the
// signature would expire.
//
// Every kind of invalidity collapses to (nil, nil); only a storage fault
// returns an error.
func (s *TokenService) ValidateAccessToken(ctx context.Context, value string) (*models.TokenInfo, error) {
	if _, err := auth.ParseToken(value, s.secret); err != nil {
		return nil, nil
	}

	if s.cache != nil {
		if info, ok := s.cache.Get(ctx, value); ok {
			return info, nil
		}
	}

	// Captured before the store read: the cache uses it to discard this
	// result if a revocation lands between the read and the Set.
	readAt := s.now()

	token, user, err := s.repos.AccessTokens(s.db).FindByValue(ctx, value)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", common.ErrPersistence, err)
	}
	if !token.IsValid(s.now()) {
		return nil, nil
	}

	info := &models.TokenInfo{User: user, ExpiresAt: token.ExpiresAt}
	if s.cache != nil {
		s.cache.Set(ctx, value, info, readAt, s.cacheTTL)
	}
	return info, nil
}

// ValidateRefreshToken checks a presented refresh token against the store:
// valid iff the row exists, is not revoked and has not expired. A recorded
// used_at does not invalidate the token. Invalidity collapses to (nil, nil).
func (s *TokenService) ValidateRefreshToken(ctx context.Context, value string) (*models.TokenInfo, error) {
	token, user, err := s.repos.RefreshTokens(s.db).FindByValue(ctx, value)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", common.ErrPersistence, err)
	}
	if !token.IsValid(s.now()) {
		return nil, nil
	}

	return &models.TokenInfo{User: user, ExpiresAt: token.ExpiresAt}, nil
}

// RotateAccessToken exchanges a valid refresh token for a brand-new access
// token. The refresh token itself is returned to the caller unchanged and
// stays valid until its own expiry; rotation only records the use.
//
// If the owning user has been deactivated since issuance, the refresh token
// is revoked as a side effect and ErrUserInactive returned.
func (s *TokenService) RotateAccessToken(ctx context.Context, refreshValue, clientIP, userAgent string) (*models.AccessToken, error) {
	repo := s.repos.RefreshTokens(s.db)

	token, user, err := repo.FindByValue(ctx, refreshValue)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrRefreshInvalid
		}
		return nil, fmt.Errorf("%w: %v", common.ErrPersistence, err)
	}
	if !token.IsValid(s.now()) {
		return nil, common.ErrRefreshInvalid
	}

	if !user.Active {
		if err := repo.Revoke(ctx, refreshValue); err != nil {
			s.logger.Error(ctx, "revoking refresh token of inactive user failed", "error", err)
		}
		return nil, common.ErrUserInactive
	}

	if err := repo.MarkUsed(ctx, refreshValue, s.now()); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrPersistence, err)
	}

	s.reconcileRefreshValue(ctx, refreshValue)

	return s.IssueAccessToken(ctx, user, clientIP, userAgent)
}

// RevokeAll flips every currently-valid token of the user, both kinds, to
// revoked inside a single transaction and returns the total rows affected.
// A validation that begins after RevokeAll returns observes the revocation:
// the bulk updates commit atomically and the user's cache entries are purged
// before returning. The purge also leaves a revocation marker, so a
// validation that read the store before the commit cannot re-cache its stale
// result afterwards.
func (s *TokenService) RevokeAll(ctx context.Context, userID string) (int, error) {
	var total int64

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		nAccess, err := s.repos.AccessTokens(tx).RevokeAllForUser(ctx, userID)
		if err != nil {
			return err
		}
		nRefresh, err := s.repos.RefreshTokens(tx).RevokeAllForUser(ctx, userID)
		if err != nil {
			return err
		}
		total = nAccess + nRefresh
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", common.ErrPersistence, err)
	}

	if s.cache != nil {
		if err := s.cache.PurgeUser(ctx, userID); err != nil {
			s.logger.Error(ctx, "purging token cache failed", "user_id", userID, "error", err)
		}
	}

	s.logger.Info(ctx, "revoked all tokens", "user_id", userID, "count", total)
	return int(total), nil
}

// ExtractUserID returns the subject claim of a verified access token without
// consulting the store.
func (s *TokenService) ExtractUserID(value string) (string, error) {
	claims, err := auth.ParseToken(value, s.secret)
	if err != nil {
		return "", common.ErrInvalidToken
	}
	return claims.Subject, nil
}

// ExtractRole returns the role claim of a verified access token.
func (s *TokenService) ExtractRole(value string) (models.Role, error) {
	claims, err := auth.ParseToken(value, s.secret)
	if err != nil {
		return "", common.ErrInvalidToken
	}
	role := models.Role(claims.Role)
	if !role.Valid() {
		return "", common.ErrInvalidToken
	}
	return role, nil
}

// IsAdminToken reports whether the token carries the ADMIN role.
func (s *TokenService) IsAdminToken(value string) bool {
	role, err := s.ExtractRole(value)
	return err == nil && role == models.RoleAdmin
}

// IsEditorToken reports whether the token carries the EDITOR or ADMIN role.
func (s *TokenService) IsEditorToken(value string) bool {
	role, err := s.ExtractRole(value)
	return err == nil && (role == models.RoleEditor || role == models.RoleAdmin)
}

// reconcileAccessValue runs the duplicate safety net for one access token
// value after a write. Failures are logged, never propagated: reconciliation
// is a cleanup pass behind the unique index, not part of the write.
func (s *TokenService) reconcileAccessValue(ctx context.Context, value string) {
	if err := s.cleanup.ReconcileAccessValue(ctx, value); err != nil {
		s.logger.Error(ctx, "post-write duplicate reconcile failed", "error", err)
	}
}

func (s *TokenService) reconcileRefreshValue(ctx context.Context, value string) {
	if err := s.cleanup.ReconcileRefreshValue(ctx, value); err != nil {
		s.logger.Error(ctx, "post-write duplicate reconcile failed", "error", err)
	}
}
