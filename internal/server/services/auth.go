package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/newsplatform/sessiond/internal/common"
	"github.com/newsplatform/sessiond/internal/logging"
	"github.com/newsplatform/sessiond/internal/server/models"
	"github.com/newsplatform/sessiond/internal/server/password"
	"github.com/newsplatform/sessiond/internal/server/repositories/repomanager"
)

// LoginResult is the full outcome of a successful login: the authenticated
// user and a fresh token pair.
type LoginResult struct {
	User         *models.User
	AccessToken  *models.AccessToken
	RefreshToken *models.RefreshToken
}

// AuthService verifies credentials and drives login and logout on top of the
// token lifecycle.
type AuthService struct {
	db       *sql.DB
	repos    repomanager.RepositoryManager
	tokens   *TokenService
	verifier password.Verifier
	logger   logging.Logger
	now      func() time.Time
}

func NewAuthService(db *sql.DB, m repomanager.RepositoryManager, tokens *TokenService,
	verifier password.Verifier, logger logging.Logger) *AuthService {
	return &AuthService{
		db:       db,
		repos:    m,
		tokens:   tokens,
		verifier: verifier,
		logger:   logger.With("component", "auth"),
		now:      time.Now,
	}
}

// Authenticate resolves the login as a username first, falling back to an
// email lookup on a miss, and verifies the password against the stored hash.
// An unknown login and a wrong password are indistinguishable to the caller;
// a disabled account is reported only after the password verified, so
// account state cannot be probed with guessed passwords.
func (s *AuthService) Authenticate(ctx context.Context, login, plaintext string) (*models.User, error) {
	repo := s.repos.Users(s.db)

	user, err := repo.ByUsername(ctx, login)
	if errors.Is(err, common.ErrorNotFound) {
		user, err = repo.ByEmail(ctx, login)
	}
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("%w: %v", common.ErrPersistence, err)
	}

	if !s.verifier.Verify(plaintext, user.PasswordHash) {
		return nil, common.ErrInvalidCredentials
	}

	if !user.Active {
		return nil, common.ErrAccountDisabled
	}

	return user, nil
}

// Login authenticates the credentials and, on success, issues an access and
// a refresh token and records the login time. A failed last-login write does
// not fail the login.
func (s *AuthService) Login(ctx context.Context, login, plaintext, clientIP, userAgent string) (*LoginResult, error) {
	user, err := s.Authenticate(ctx, login, plaintext)
	if err != nil {
		return nil, err
	}

	access, err := s.tokens.IssueAccessToken(ctx, user, clientIP, userAgent)
	if err != nil {
		return nil, err
	}
	refresh, err := s.tokens.IssueRefreshToken(ctx, user, clientIP, userAgent)
	if err != nil {
		return nil, err
	}

	if err := s.repos.Users(s.db).SaveLastLogin(ctx, user.ID, s.now()); err != nil {
		s.logger.Error(ctx, "recording last login failed", "user_id", user.ID, "error", err)
	}

	s.logger.Info(ctx, "user logged in", "user_id", user.ID, "username", user.Username)
	return &LoginResult{User: user, AccessToken: access, RefreshToken: refresh}, nil
}

// Logout revokes every token the user holds.
func (s *AuthService) Logout(ctx context.Context, userID string) (int, error) {
	return s.tokens.RevokeAll(ctx, userID)
}
