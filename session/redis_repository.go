package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	fieldUserID    = "uid"
	fieldHash      = "rh"
	fieldUserAgent = "ua"
	fieldIP        = "ip"
	fieldCreatedAt = "ca"
	fieldExpiresAt = "ea"
	fieldRevokedAt = "ra"
)

const (
	rotateStatusRejected int64 = 0
	rotateStatusRotated  int64 = 1
)

// rotateScript applies a Rotation atomically. Missing, revoked, expired, and
// hash-mismatched records all yield status 0.
const rotateScript = `
local key = KEYS[1]
local expected = ARGV[1]
local next_hash = ARGV[2]
local now_ms = tonumber(ARGV[3])
local expires_ms = tonumber(ARGV[4])
local ua = ARGV[5]
local ip = ARGV[6]

local fields = redis.call("HMGET", key, "rh", "ea", "ra")
local stored = fields[1]
if not stored then
  return {0}
end
if fields[3] then
  return {0}
end
local ea = tonumber(fields[2])
if not ea or ea <= now_ms then
  return {0}
end
if stored ~= expected then
  return {0}
end

redis.call("HSET", key, "rh", next_hash, "ea", ARGV[4])
if ua ~= "" then
  redis.call("HSET", key, "ua", ua)
end
if ip ~= "" then
  redis.call("HSET", key, "ip", ip)
end
redis.call("PEXPIREAT", key, expires_ms)

return {1, redis.call("HGETALL", key)}
`

var rotateLua = redis.NewScript(rotateScript)

const revokeScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
redis.call("HSET", KEYS[1], "ra", ARGV[1])
return 1
`

var revokeLua = redis.NewScript(revokeScript)

// RedisRepository stores sessions as Redis hashes under prefix:id. Each hash
// expires at the session's expiry; revocation keeps the hash in place until
// then.
type RedisRepository struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedisRepository returns a repository using client. An empty prefix
// defaults to "gs".
func NewRedisRepository(client redis.UniversalClient, prefix string) *RedisRepository {
	if prefix == "" {
		prefix = "gs"
	}
	return &RedisRepository{redis: client, prefix: prefix}
}

func (r *RedisRepository) key(id string) string {
	return r.prefix + ":sess:" + id
}

// InsertSession writes the record and its absolute expiry in one transaction.
//
//	Performance: 1 MULTI/EXEC (HSET + PEXPIREAT).
func (r *RedisRepository) InsertSession(ctx context.Context, sess *Session) error {
	if sess == nil || sess.ID == "" {
		return errors.New("session id required")
	}
	key := r.key(sess.ID)

	_, err := r.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			fieldUserID, sess.UserID,
			fieldHash, sess.RefreshHash,
			fieldUserAgent, sess.UserAgent,
			fieldIP, sess.IPAddress,
			fieldCreatedAt, sess.CreatedAt.UnixMilli(),
			fieldExpiresAt, sess.ExpiresAt.UnixMilli(),
		)
		pipe.PExpireAt(ctx, key, sess.ExpiresAt)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// FindSessionByID loads the record or returns ErrNotFound.
//
//	Performance: 1 Redis HGETALL.
func (r *RedisRepository) FindSessionByID(ctx context.Context, id string) (*Session, error) {
	values, err := r.redis.HGetAll(ctx, r.key(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if len(values) == 0 {
		return nil, ErrNotFound
	}
	return decodeHash(id, values)
}

// UpdateSessionIfHashMatches runs the rotation compare-and-swap script.
//
//	Performance: 1 Lua EVALSHA (atomic compare-and-swap).
//	Security: CAS prevents two rotations from sharing one credential.
func (r *RedisRepository) UpdateSessionIfHashMatches(ctx context.Context, rot Rotation) (*Session, error) {
	result, err := rotateLua.Run(
		ctx,
		r.redis,
		[]string{r.key(rot.ID)},
		rot.ExpectedHash,
		rot.NextHash,
		rot.Now.UnixMilli(),
		rot.ExpiresAt.UnixMilli(),
		rot.UserAgent,
		rot.IPAddress,
	).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	parts, ok := result.([]interface{})
	if !ok || len(parts) == 0 {
		return nil, fmt.Errorf("%w: invalid rotate script response", ErrStoreUnavailable)
	}
	code, ok := parts[0].(int64)
	if !ok {
		return nil, fmt.Errorf("%w: invalid rotate script status", ErrStoreUnavailable)
	}

	switch code {
	case rotateStatusRejected:
		return nil, ErrNotFound
	case rotateStatusRotated:
		if len(parts) < 2 {
			return nil, fmt.Errorf("%w: missing rotated session payload", ErrStoreUnavailable)
		}
		flat, ok := parts[1].([]interface{})
		if !ok {
			return nil, fmt.Errorf("%w: invalid rotated session payload", ErrStoreUnavailable)
		}
		values := make(map[string]string, len(flat)/2)
		for i := 0; i+1 < len(flat); i += 2 {
			k, _ := flat[i].(string)
			v, _ := flat[i+1].(string)
			values[k] = v
		}
		return decodeHash(rot.ID, values)
	default:
		return nil, fmt.Errorf("%w: unknown rotate script status", ErrStoreUnavailable)
	}
}

// MarkSessionRevoked stamps ra on an existing record.
//
//	Performance: 1 Lua EVALSHA.
func (r *RedisRepository) MarkSessionRevoked(ctx context.Context, id string, at time.Time) (bool, error) {
	n, err := revokeLua.Run(ctx, r.redis, []string{r.key(id)}, at.UnixMilli()).Int64()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return n == 1, nil
}

// Ping checks Redis reachability.
func (r *RedisRepository) Ping(ctx context.Context) error {
	if err := r.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func decodeHash(id string, values map[string]string) (*Session, error) {
	createdAt, err := parseMillis(values[fieldCreatedAt])
	if err != nil {
		return nil, fmt.Errorf("%w: corrupt created_at: %v", ErrStoreUnavailable, err)
	}
	expiresAt, err := parseMillis(values[fieldExpiresAt])
	if err != nil {
		return nil, fmt.Errorf("%w: corrupt expires_at: %v", ErrStoreUnavailable, err)
	}

	sess := &Session{
		ID:          id,
		UserID:      values[fieldUserID],
		RefreshHash: values[fieldHash],
		UserAgent:   values[fieldUserAgent],
		IPAddress:   values[fieldIP],
		CreatedAt:   createdAt,
		ExpiresAt:   expiresAt,
	}
	if raw, ok := values[fieldRevokedAt]; ok && raw != "" {
		revokedAt, err := parseMillis(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: corrupt revoked_at: %v", ErrStoreUnavailable, err)
		}
		sess.RevokedAt = &revokedAt
	}
	return sess, nil
}

func parseMillis(v string) (time.Time, error) {
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms).UTC(), nil
}
