package refreshtokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/newsplatform/sessiond/internal/common"
	"github.com/newsplatform/sessiond/internal/dbx"
	"github.com/newsplatform/sessiond/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Insert(ctx context.Context, token *models.RefreshToken) (bool, error) {
	query :=
		`INSERT INTO refresh_tokens (id, token_value, user_id, issued_at, expires_at, revoked, client_ip, user_agent)
         VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
         ON CONFLICT (token_value) DO NOTHING`

	res, err := r.db.ExecContext(ctx, query,
		token.ID, token.TokenValue, token.UserID, token.IssuedAt, token.ExpiresAt,
		token.Revoked, token.ClientIP, token.UserAgent)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n > 0, nil
}

func (r *PostgresRepository) FindByValue(ctx context.Context, value string) (*models.RefreshToken, *models.User, error) {
	query :=
		`SELECT t.id, t.token_value, t.user_id, t.issued_at, t.expires_at, t.used_at, t.usage_count, t.revoked, t.client_ip, t.user_agent,
                u.id, u.username, u.email, u.password_hash, u.role, u.active, u.last_login_at
         FROM refresh_tokens t
         JOIN users u ON u.id = t.user_id
         WHERE t.token_value = $1`

	token := &models.RefreshToken{}
	user := &models.User{}
	var usedAt, lastLogin sql.NullTime

	err := r.db.QueryRowContext(ctx, query, value).Scan(
		&token.ID, &token.TokenValue, &token.UserID, &token.IssuedAt, &token.ExpiresAt,
		&usedAt, &token.UsageCount, &token.Revoked, &token.ClientIP, &token.UserAgent,
		&user.ID, &user.Username, &user.Email, &user.PasswordHash,
		&user.Role, &user.Active, &lastLogin)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, common.ErrorNotFound
		}
		return nil, nil, fmt.Errorf("db error: %w", err)
	}
	if usedAt.Valid {
		token.UsedAt = &usedAt.Time
	}
	if lastLogin.Valid {
		user.LastLoginAt = &lastLogin.Time
	}

	return token, user, nil
}

func (r *PostgresRepository) FindAllByValue(ctx context.Context, value string) ([]*models.RefreshToken, error) {
	query :=
		`SELECT id, token_value, user_id, issued_at, expires_at, used_at, usage_count, revoked, client_ip, user_agent
         FROM refresh_tokens
         WHERE token_value = $1
         ORDER BY issued_at DESC`

	rows, err := r.db.QueryContext(ctx, query, value)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var tokens []*models.RefreshToken
	for rows.Next() {
		t := &models.RefreshToken{}
		var usedAt sql.NullTime
		if err := rows.Scan(&t.ID, &t.TokenValue, &t.UserID, &t.IssuedAt, &t.ExpiresAt,
			&usedAt, &t.UsageCount, &t.Revoked, &t.ClientIP, &t.UserAgent); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		if usedAt.Valid {
			t.UsedAt = &usedAt.Time
		}
		tokens = append(tokens, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return tokens, nil
}

func (r *PostgresRepository) MarkUsed(ctx context.Context, value string, at time.Time) error {
	query :=
		`UPDATE refresh_tokens SET used_at = $2, usage_count = usage_count + 1
         WHERE token_value = $1`

	res, err := r.db.ExecContext(ctx, query, value, at)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) Revoke(ctx context.Context, value string) error {
	query := `UPDATE refresh_tokens SET revoked = true WHERE token_value = $1`

	res, err := r.db.ExecContext(ctx, query, value)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) RevokeAllForUser(ctx context.Context, userID string) (int64, error) {
	query :=
		`UPDATE refresh_tokens SET revoked = true
         WHERE user_id = $1 AND revoked = false`

	res, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	query :=
		`DELETE FROM refresh_tokens
         WHERE id IN (SELECT id FROM refresh_tokens WHERE expires_at < $1 LIMIT $2)`

	res, err := r.db.ExecContext(ctx, query, cutoff, limit)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) DeleteByIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "$" + strconv.Itoa(i+1)
		args[i] = id
	}
	query := `DELETE FROM refresh_tokens WHERE id IN (` + strings.Join(placeholders, ", ") + `)`

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) DuplicateValues(ctx context.Context) ([]string, error) {
	query :=
		`SELECT token_value FROM refresh_tokens
         GROUP BY token_value
         HAVING COUNT(*) > 1`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return values, nil
}
