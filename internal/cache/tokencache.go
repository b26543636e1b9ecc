package cache

import (
  "context"
  "encoding/json"
  "errors"
  "fmt"
  "time"

  "github.com/google/uuid"
  "github.com/redis/go-redis/v9"

  "github.com/cocoja/cocoja-backend/internal/logger"
)

// Session is what the auth middleware needs to rebuild request data without
// touching the user_token table.
type Session struct {
  UserID       uuid.UUID `json:"user_id"`
  Username     string    `json:"username"`
  Email        string    `json:"email"`
  RefreshToken string    `json:"refresh_token"`
}

type TokenCache interface {
  Get(ctx context.Context, accessToken string) (*Session, bool, error)
  Set(ctx context.Context, accessToken string, session *Session, ttl time.Duration) error
  Delete(ctx context.Context, accessToken string) error
}

// NopTokenCache never hits. Used when Redis is disabled or unreachable.
type NopTokenCache struct{}

func (NopTokenCache) Get(ctx context.Context, accessToken string) (*Session, bool, error) {
  return nil, false, nil
}

func (NopTokenCache) Set(ctx context.Context, accessToken string, session *Session, ttl time.Duration) error {
  return nil
}

func (NopTokenCache) Delete(ctx context.Context, accessToken string) error {
  return nil
}

type RedisTokenCache struct {
  log    *logger.Logger
  client *redis.Client
  prefix string
}

func NewRedisTokenCache(log *logger.Logger, address, password string, db int) (*RedisTokenCache, error) {
  opt := &redis.Options{
    Addr:     address,
    Password: password,
    DB:       db,
  }
  rdb := redis.NewClient(opt)

  ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
  defer cancel()
  if err := rdb.Ping(ctx).Err(); err != nil {
    rdb.Close()
    return nil, fmt.Errorf("redis ping failed: %w", err)
  }
  return &RedisTokenCache{
    log:    log.With("component", "RedisTokenCache"),
    client: rdb,
    prefix: "cocoja:token:",
  }, nil
}

func (rc *RedisTokenCache) key(accessToken string) string {
  return rc.prefix + accessToken
}

func (rc *RedisTokenCache) Get(ctx context.Context, accessToken string) (*Session, bool, error) {
  raw, err := rc.client.Get(ctx, rc.key(accessToken)).Result()
  if errors.Is(err, redis.Nil) {
    return nil, false, nil
  }
  if err != nil {
    rc.log.Warn("Failed to read session from redis", "error", err)
    return nil, false, err
  }
  session, err := decodeSession(raw)
  if err != nil {
    rc.log.Warn("Failed to decode cached session, evicting", "error", err)
    _ = rc.client.Del(ctx, rc.key(accessToken)).Err()
    return nil, false, nil
  }
  return session, true, nil
}

func (rc *RedisTokenCache) Set(ctx context.Context, accessToken string, session *Session, ttl time.Duration) error {
  if ttl <= 0 {
    return nil
  }
  payload, err := encodeSession(session)
  if err != nil {
    rc.log.Warn("failed to encode session for redis", "error", err)
    return err
  }
  return rc.client.Set(ctx, rc.key(accessToken), payload, ttl).Err()
}

func (rc *RedisTokenCache) Delete(ctx context.Context, accessToken string) error {
  return rc.client.Del(ctx, rc.key(accessToken)).Err()
}

func (rc *RedisTokenCache) Close() error {
  return rc.client.Close()
}

func encodeSession(s *Session) (string, error) {
  raw, err := json.Marshal(s)
  if err != nil {
    return "", err
  }
  return string(raw), nil
}

func decodeSession(payload string) (*Session, error) {
  var s Session
  if err := json.Unmarshal([]byte(payload), &s); err != nil {
    return nil, fmt.Errorf("json unmarshal failed: %w", err)
  }
  return &s, nil
}
