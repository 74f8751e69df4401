package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"atelier/api/internal/store"
)

// profileRecord is the cached shape of a user profile.
type profileRecord struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	Username   string    `json:"username"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	ProfilePic string    `json:"profile_pic"`
	CachedAt   time.Time `json:"cached_at"`
}

// Cache is a Redis-backed profile cache. Misses and Redis failures are
// both treated as cache misses; the directory falls through to the store.
type Cache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewCache connects to Redis and verifies the connection.
func NewCache(redisURL string, ttl time.Duration) (*Cache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewCacheWithClient(client, ttl), nil
}

// NewCacheWithClient wraps an existing Redis client.
func NewCacheWithClient(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{client: client, prefix: "profile:", ttl: ttl}
}

func (c *Cache) key(userID string) string {
	return c.prefix + userID
}

// Get returns a cached profile and whether it was present.
func (c *Cache) Get(ctx context.Context, userID string) (store.User, bool) {
	raw, err := c.client.Get(ctx, c.key(userID)).Result()
	if err == redis.Nil {
		return store.User{}, false
	}
	if err != nil {
		log.Printf("directory: cache get %s: %v", userID, err)
		return store.User{}, false
	}

	var record profileRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		log.Printf("directory: cache decode %s: %v", userID, err)
		return store.User{}, false
	}
	return store.User{
		ID:         record.ID,
		Email:      record.Email,
		Username:   record.Username,
		FirstName:  record.FirstName,
		LastName:   record.LastName,
		ProfilePic: record.ProfilePic,
	}, true
}

// Set stores a profile with the cache TTL. Failures are logged only; the
// cache is an optimization, never a source of truth.
func (c *Cache) Set(ctx context.Context, user store.User) {
	record := profileRecord{
		ID:         user.ID,
		Email:      user.Email,
		Username:   user.Username,
		FirstName:  user.FirstName,
		LastName:   user.LastName,
		ProfilePic: user.ProfilePic,
		CachedAt:   time.Now(),
	}
	raw, err := json.Marshal(record)
	if err != nil {
		log.Printf("directory: cache encode %s: %v", user.ID, err)
		return
	}
	if err := c.client.Set(ctx, c.key(user.ID), raw, c.ttl).Err(); err != nil {
		log.Printf("directory: cache set %s: %v", user.ID, err)
	}
}

// Invalidate drops a cached profile.
func (c *Cache) Invalidate(ctx context.Context, userID string) {
	if err := c.client.Del(ctx, c.key(userID)).Err(); err != nil {
		log.Printf("directory: cache invalidate %s: %v", userID, err)
	}
}

// Ping checks if Redis is reachable.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	return c.client.Close()
}
