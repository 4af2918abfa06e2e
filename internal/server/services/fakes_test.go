package services

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/newsplatform/sessiond/internal/common"
	"github.com/newsplatform/sessiond/internal/dbx"
	"github.com/newsplatform/sessiond/internal/logging"
	"github.com/newsplatform/sessiond/internal/server/config"
	"github.com/newsplatform/sessiond/internal/server/models"
	"github.com/newsplatform/sessiond/internal/server/repositories/accesstokens"
	"github.com/newsplatform/sessiond/internal/server/repositories/refreshtokens"
	"github.com/newsplatform/sessiond/internal/server/repositories/users"
)

// fakeStore is an in-memory repository manager. Its conditional inserts are
// guarded by one mutex, which makes it a faithful stand-in for the unique
// index the real store relies on. Setting failWith makes every operation
// fail, to exercise storage-fault paths.
type fakeStore struct {
	mu       sync.Mutex
	users    map[string]*models.User
	access   map[string][]*models.AccessToken
	refresh  map[string][]*models.RefreshToken
	failWith error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:   make(map[string]*models.User),
		access:  make(map[string][]*models.AccessToken),
		refresh: make(map[string][]*models.RefreshToken),
	}
}

func (f *fakeStore) RunMigrations(context.Context, *sql.DB) error { return nil }

func (f *fakeStore) Users(dbx.DBTX) users.Repository                 { return &fakeUsers{f} }
func (f *fakeStore) AccessTokens(dbx.DBTX) accesstokens.Repository   { return &fakeAccess{f} }
func (f *fakeStore) RefreshTokens(dbx.DBTX) refreshtokens.Repository { return &fakeRefresh{f} }

func (f *fakeStore) addUser(u *models.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[u.ID] = u
}

func (f *fakeStore) addAccess(tokens ...*models.AccessToken) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range tokens {
		f.access[t.TokenValue] = append(f.access[t.TokenValue], t)
	}
	for v := range f.access {
		sortAccessNewestFirst(f.access[v])
	}
}

func (f *fakeStore) addRefresh(tokens ...*models.RefreshToken) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range tokens {
		f.refresh[t.TokenValue] = append(f.refresh[t.TokenValue], t)
	}
	for v := range f.refresh {
		sortRefreshNewestFirst(f.refresh[v])
	}
}

func (f *fakeStore) accessCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, rows := range f.access {
		n += len(rows)
	}
	return n
}

func (f *fakeStore) refreshCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, rows := range f.refresh {
		n += len(rows)
	}
	return n
}

func sortAccessNewestFirst(rows []*models.AccessToken) {
	sort.Slice(rows, func(i, j int) bool { return rows[i].IssuedAt.After(rows[j].IssuedAt) })
}

func sortRefreshNewestFirst(rows []*models.RefreshToken) {
	sort.Slice(rows, func(i, j int) bool { return rows[i].IssuedAt.After(rows[j].IssuedAt) })
}

type fakeUsers struct{ s *fakeStore }

func (r *fakeUsers) ByUsername(_ context.Context, username string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failWith != nil {
		return nil, r.s.failWith
	}
	for _, u := range r.s.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *fakeUsers) ByEmail(_ context.Context, email string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failWith != nil {
		return nil, r.s.failWith
	}
	for _, u := range r.s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *fakeUsers) ByID(_ context.Context, id string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failWith != nil {
		return nil, r.s.failWith
	}
	if u, ok := r.s.users[id]; ok {
		return u, nil
	}
	return nil, common.ErrorNotFound
}

func (r *fakeUsers) SaveLastLogin(_ context.Context, id string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failWith != nil {
		return r.s.failWith
	}
	u, ok := r.s.users[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.LastLoginAt = &at
	return nil
}

func (r *fakeUsers) Create(_ context.Context, user *models.User) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failWith != nil {
		return nil, r.s.failWith
	}
	r.s.users[user.ID] = user
	return user, nil
}

type fakeAccess struct{ s *fakeStore }

func (r *fakeAccess) Insert(_ context.Context, token *models.AccessToken) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failWith != nil {
		return false, r.s.failWith
	}
	if len(r.s.access[token.TokenValue]) > 0 {
		return false, nil
	}
	cp := *token
	r.s.access[token.TokenValue] = []*models.AccessToken{&cp}
	return true, nil
}

func (r *fakeAccess) FindByValue(_ context.Context, value string) (*models.AccessToken, *models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failWith != nil {
		return nil, nil, r.s.failWith
	}
	rows := r.s.access[value]
	if len(rows) == 0 {
		return nil, nil, common.ErrorNotFound
	}
	t := rows[0]
	u, ok := r.s.users[t.UserID]
	if !ok {
		return nil, nil, common.ErrorNotFound
	}
	cp := *t
	return &cp, u, nil
}

func (r *fakeAccess) FindAllByValue(_ context.Context, value string) ([]*models.AccessToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failWith != nil {
		return nil, r.s.failWith
	}
	out := make([]*models.AccessToken, len(r.s.access[value]))
	copy(out, r.s.access[value])
	return out, nil
}

func (r *fakeAccess) RevokeAllForUser(_ context.Context, userID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failWith != nil {
		return 0, r.s.failWith
	}
	var n int64
	for _, rows := range r.s.access {
		for _, t := range rows {
			if t.UserID == userID && t.Status == models.TokenStatusActive {
				t.Status = models.TokenStatusRevoked
				n++
			}
		}
	}
	return n, nil
}

func (r *fakeAccess) DeleteOlderThan(_ context.Context, cutoff time.Time, limit int) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failWith != nil {
		return 0, r.s.failWith
	}
	var n int64
	for v, rows := range r.s.access {
		var kept []*models.AccessToken
		for _, t := range rows {
			if n < int64(limit) && t.ExpiresAt.Before(cutoff) {
				n++
				continue
			}
			kept = append(kept, t)
		}
		if len(kept) == 0 {
			delete(r.s.access, v)
		} else {
			r.s.access[v] = kept
		}
	}
	return n, nil
}

func (r *fakeAccess) DeleteByIDs(_ context.Context, ids []string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failWith != nil {
		return r.s.failWith
	}
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	for v, rows := range r.s.access {
		var kept []*models.AccessToken
		for _, t := range rows {
			if !drop[t.ID] {
				kept = append(kept, t)
			}
		}
		if len(kept) == 0 {
			delete(r.s.access, v)
		} else {
			r.s.access[v] = kept
		}
	}
	return nil
}

func (r *fakeAccess) DuplicateValues(_ context.Context) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failWith != nil {
		return nil, r.s.failWith
	}
	var out []string
	for v, rows := range r.s.access {
		if len(rows) > 1 {
			out = append(out, v)
		}
	}
	return out, nil
}

type fakeRefresh struct{ s *fakeStore }

func (r *fakeRefresh) Insert(_ context.Context, token *models.RefreshToken) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failWith != nil {
		return false, r.s.failWith
	}
	if len(r.s.refresh[token.TokenValue]) > 0 {
		return false, nil
	}
	cp := *token
	r.s.refresh[token.TokenValue] = []*models.RefreshToken{&cp}
	return true, nil
}

func (r *fakeRefresh) FindByValue(_ context.Context, value string) (*models.RefreshToken, *models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failWith != nil {
		return nil, nil, r.s.failWith
	}
	rows := r.s.refresh[value]
	if len(rows) == 0 {
		return nil, nil, common.ErrorNotFound
	}
	t := rows[0]
	u, ok := r.s.users[t.UserID]
	if !ok {
		return nil, nil, common.ErrorNotFound
	}
	cp := *t
	return &cp, u, nil
}

func (r *fakeRefresh) FindAllByValue(_ context.Context, value string) ([]*models.RefreshToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failWith != nil {
		return nil, r.s.failWith
	}
	out := make([]*models.RefreshToken, len(r.s.refresh[value]))
	copy(out, r.s.refresh[value])
	return out, nil
}

func (r *fakeRefresh) MarkUsed(_ context.Context, value string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failWith != nil {
		return r.s.failWith
	}
	rows := r.s.refresh[value]
	if len(rows) == 0 {
		return common.ErrorNotFound
	}
	rows[0].UsedAt = &at
	rows[0].UsageCount++
	return nil
}

func (r *fakeRefresh) Revoke(_ context.Context, value string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failWith != nil {
		return r.s.failWith
	}
	rows := r.s.refresh[value]
	if len(rows) == 0 {
		return common.ErrorNotFound
	}
	rows[0].Revoked = true
	return nil
}

func (r *fakeRefresh) RevokeAllForUser(_ context.Context, userID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failWith != nil {
		return 0, r.s.failWith
	}
	var n int64
	for _, rows := range r.s.refresh {
		for _, t := range rows {
			if t.UserID == userID && !t.Revoked {
				t.Revoked = true
				n++
			}
		}
	}
	return n, nil
}

func (r *fakeRefresh) DeleteOlderThan(_ context.Context, cutoff time.Time, limit int) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failWith != nil {
		return 0, r.s.failWith
	}
	var n int64
	for v, rows := range r.s.refresh {
		var kept []*models.RefreshToken
		for _, t := range rows {
			if n < int64(limit) && t.ExpiresAt.Before(cutoff) {
				n++
				continue
			}
			kept = append(kept, t)
		}
		if len(kept) == 0 {
			delete(r.s.refresh, v)
		} else {
			r.s.refresh[v] = kept
		}
	}
	return n, nil
}

func (r *fakeRefresh) DeleteByIDs(_ context.Context, ids []string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failWith != nil {
		return r.s.failWith
	}
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	for v, rows := range r.s.refresh {
		var kept []*models.RefreshToken
		for _, t := range rows {
			if !drop[t.ID] {
				kept = append(kept, t)
			}
		}
		if len(kept) == 0 {
			delete(r.s.refresh, v)
		} else {
			r.s.refresh[v] = kept
		}
	}
	return nil
}

func (r *fakeRefresh) DuplicateValues(_ context.Context) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failWith != nil {
		return nil, r.s.failWith
	}
	var out []string
	for v, rows := range r.s.refresh {
		if len(rows) > 1 {
			out = append(out, v)
		}
	}
	return out, nil
}

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.AccessTokenTTL = time.Hour
	cfg.RefreshTokenTTL = 24 * time.Hour
	return cfg
}

// newTestServices wires a full service stack over the given fake store with
// a frozen clock.
func newTestServices(store *fakeStore, at time.Time) (*AuthService, *TokenService, *CleanupService) {
	cfg := testConfig()
	log := testLogger()

	cleanup := NewCleanupService(nil, store, cfg, log)
	cleanup.now = func() time.Time { return at }

	tokens := NewTokenService(nil, store, cleanup, nil, cfg, log)
	tokens.now = func() time.Time { return at }

	auth := NewAuthService(nil, store, tokens, &stubVerifier{}, log)
	auth.now = func() time.Time { return at }

	return auth, tokens, cleanup
}

// stubVerifier accepts exactly the password "correct horse". The real bcrypt
// verifier has its own tests; service tests should not pay bcrypt cost.
type stubVerifier struct{}

func (*stubVerifier) Verify(plaintext, hash string) bool { return plaintext == "correct horse" }
