package tokencache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/newsplatform/sessiond/internal/logging"
	"github.com/newsplatform/sessiond/internal/server/models"
)

// entry is the JSON payload stored per cached token. Only the fields the
// validator hands back are kept; the password hash never enters the cache.
type entry struct {
	UserID    string      `json:"user_id"`
	Username  string      `json:"username"`
	Email     string      `json:"email"`
	Role      models.Role `json:"role"`
	Active    bool        `json:"active"`
	ExpiresAt time.Time   `json:"expires_at"`
	ReadAt    time.Time   `json:"read_at"`
}

// RedisCache stores validation results under a hash of the token value and
// maintains a per-user key set so revocation can purge everything at once.
// Each purge writes a per-user marker; Get refuses entries whose store read
// predates it, closing the window where a validation that started before a
// revocation writes its result after the purge ran.
type RedisCache struct {
	client   *redis.Client
	entryTTL time.Duration
	logger   logging.Logger
	now      func() time.Time
}

// NewRedisCache wraps client. entryTTL is the nominal lifetime callers pass
// to Set; the revocation marker is kept for twice that, long enough to
// outlive any entry a straggling Set could still write.
func NewRedisCache(client *redis.Client, entryTTL time.Duration, logger logging.Logger) *RedisCache {
	return &RedisCache{
		client:   client,
		entryTTL: entryTTL,
		logger:   logger.With("component", "tokencache"),
		now:      time.Now,
	}
}

func tokenKey(value string) string {
	sum := sha256.Sum256([]byte(value))
	return "session:at:" + hex.EncodeToString(sum[:])
}

func userKey(userID string) string {
	return "session:user:" + userID
}

func purgeKey(userID string) string {
	return "session:purged:" + userID
}

func (c *RedisCache) Get(ctx context.Context, value string) (*models.TokenInfo, bool) {
	raw, err := c.client.Get(ctx, tokenKey(value)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn(ctx, "cache get failed", "error", err)
		}
		return nil, false
	}

	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		c.logger.Warn(ctx, "cache entry corrupt, dropping", "error", err)
		_ = c.client.Del(ctx, tokenKey(value)).Err()
		return nil, false
	}

	if purgedAt, ok := c.purgedAt(ctx, e.UserID); ok && !e.ReadAt.After(purgedAt) {
		// Read from before the user's last revocation; the entry is stale no
		// matter what it says.
		_ = c.client.Del(ctx, tokenKey(value)).Err()
		return nil, false
	}

	return &models.TokenInfo{
		User: &models.User{
			ID:       e.UserID,
			Username: e.Username,
			Email:    e.Email,
			Role:     e.Role,
			Active:   e.Active,
		},
		ExpiresAt: e.ExpiresAt,
	}, true
}

func (c *RedisCache) Set(ctx context.Context, value string, info *models.TokenInfo, readAt time.Time, ttl time.Duration) {
	if ttl <= 0 || info == nil || info.User == nil {
		return
	}
	// never cache past the token's own expiry
	if remaining := time.Until(info.ExpiresAt); remaining < ttl {
		ttl = remaining
	}
	if ttl <= 0 {
		return
	}

	raw, err := json.Marshal(entry{
		UserID:    info.User.ID,
		Username:  info.User.Username,
		Email:     info.User.Email,
		Role:      info.User.Role,
		Active:    info.User.Active,
		ExpiresAt: info.ExpiresAt,
		ReadAt:    readAt,
	})
	if err != nil {
		c.logger.Warn(ctx, "cache marshal failed", "error", err)
		return
	}

	key := tokenKey(value)
	pipe := c.client.Pipeline()
	pipe.Set(ctx, key, raw, ttl)
	pipe.SAdd(ctx, userKey(info.User.ID), key)
	pipe.Expire(ctx, userKey(info.User.ID), ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Warn(ctx, "cache set failed", "error", err)
	}
}

// PurgeUser writes the revocation marker before deleting entries, so a Get
// racing the purge can never see an entry without also seeing the marker.
func (c *RedisCache) PurgeUser(ctx context.Context, userID string) error {
	markerTTL := 2 * c.entryTTL
	if markerTTL <= 0 {
		markerTTL = time.Minute
	}
	stamp := strconv.FormatInt(c.now().UnixNano(), 10)
	if err := c.client.Set(ctx, purgeKey(userID), stamp, markerTTL).Err(); err != nil {
		return err
	}

	keys, err := c.client.SMembers(ctx, userKey(userID)).Result()
	if err != nil && err != redis.Nil {
		return err
	}

	keys = append(keys, userKey(userID))
	return c.client.Del(ctx, keys...).Err()
}

func (c *RedisCache) purgedAt(ctx context.Context, userID string) (time.Time, bool) {
	raw, err := c.client.Get(ctx, purgeKey(userID)).Result()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn(ctx, "cache purge marker read failed", "error", err)
		}
		return time.Time{}, false
	}
	ns, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.Unix(0, ns), true
}
