package accesstokens

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

func (r *PostgresRepository) Insert(ctx context.Context, token *models.AccessToken) (bool, error) {
	query :=
		`INSERT INTO access_tokens (id, token_value, user_id, issued_at, expires_at, status, client_ip, user_agent)
         VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
         ON CONFLICT (token_value) DO NOTHING`

	res, err := r.db.ExecContext(ctx, query,
		token.ID, token.TokenValue, token.UserID, token.IssuedAt, token.ExpiresAt,
		token.Status, token.ClientIP, token.UserAgent)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n > 0, nil
}

func (r *PostgresRepository) FindByValue(ctx context.Context, value string) (*models.AccessToken, *models.User, error) {
	query :=
		`SELECT t.id, t.token_value, t.user_id, t.issued_at, t.expires_at, t.status, t.client_ip, t.user_agent,
                u.id, u.username, u.email, u.password_hash, u.role, u.active, u.last_login_at
         FROM access_tokens t
         JOIN users u ON u.id = t.user_id
         WHERE t.token_value = $1`

	token := &models.AccessToken{}
	user := &models.User{}
	var lastLogin sql.NullTime

	err := r.db.QueryRowContext(ctx, query, value).Scan(
		&token.ID, &token.TokenValue, &token.UserID, &token.IssuedAt, &token.ExpiresAt,
		&token.Status, &token.ClientIP, &token.UserAgent,
		&user.ID, &user.Username, &user.Email, &user.PasswordHash,
		&user.Role, &user.Active, &lastLogin)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, common.ErrorNotFound
		}
		return nil, nil, fmt.Errorf("db error: %w", err)
	}
	if lastLogin.Valid {
		user.LastLoginAt = &lastLogin.Time
	}

	return token, user, nil
}

func (r *PostgresRepository) FindAllByValue(ctx context.Context, value string) ([]*models.AccessToken, error) {
	query :=
		`SELECT id, token_value, user_id, issued_at, expires_at, status, client_ip, user_agent
         FROM access_tokens
         WHERE token_value = $1
         ORDER BY issued_at DESC`

	rows, err := r.db.QueryContext(ctx, query, value)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var tokens []*models.AccessToken
	for rows.Next() {
		t := &models.AccessToken{}
		if err := rows.Scan(&t.ID, &t.TokenValue, &t.UserID, &t.IssuedAt, &t.ExpiresAt,
			&t.Status, &t.ClientIP, &t.UserAgent); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		tokens = append(tokens, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return tokens, nil
}

func (r *PostgresRepository) RevokeAllForUser(ctx context.Context, userID string) (int64, error) {
	query :=
		`UPDATE access_tokens SET status = $2
         WHERE user_id = $1 AND status = $3`

	res, err := r.db.ExecContext(ctx, query, userID, models.TokenStatusRevoked, models.TokenStatusActive)
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
		`DELETE FROM access_tokens
         WHERE id IN (SELECT id FROM access_tokens WHERE expires_at < $1 LIMIT $2)`

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
	query := `DELETE FROM access_tokens WHERE id IN (` + strings.Join(placeholders, ", ") + `)`

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) DuplicateValues(ctx context.Context) ([]string, error) {
	query :=
		`SELECT token_value FROM access_tokens
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
