package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	tokenKeyPrefix = "auth:token:"
	// TokenExpiryBuffer drops cached claims this long before the token expires.
	TokenExpiryBuffer = 30 * time.Second
	// DefaultClaimsTTL applies to tokens without an exp claim.
	DefaultClaimsTTL = 5 * time.Minute
)

type cachedClaims struct {
	Claims
	ExpiresAt time.Time `json:"expires_at"`
}

// RedisTokenCache remembers verified claims so repeated admin calls with the
// same bearer token skip verification.
type RedisTokenCache struct {
	Client *redis.Client
}

func NewRedisTokenCache(client *redis.Client) *RedisTokenCache {
	return &RedisTokenCache{Client: client}
}

func tokenKey(rawToken string) string {
	sum := sha256.Sum256([]byte(rawToken))
	return tokenKeyPrefix + hex.EncodeToString(sum[:])
}

// Get returns the cached claims, or false when absent or about to expire.
func (c *RedisTokenCache) Get(ctx context.Context, rawToken string) (Claims, bool, error) {
	raw, err := c.Client.Get(ctx, tokenKey(rawToken)).Result()
	if errors.Is(err, redis.Nil) {
		return Claims{}, false, nil
	}
	if err != nil {
		return Claims{}, false, fmt.Errorf("failed to read token cache: %w", err)
	}

	var cached cachedClaims
	if err := json.Unmarshal([]byte(raw), &cached); err != nil {
		return Claims{}, false, fmt.Errorf("failed to unmarshal token cache: %w", err)
	}
	if !time.Now().Add(TokenExpiryBuffer).Before(cached.ExpiresAt) {
		return Claims{}, false, nil
	}
	claims := cached.Claims
	claims.ExpiresAt = cached.ExpiresAt
	return claims, true, nil
}

func (c *RedisTokenCache) Set(ctx context.Context, rawToken string, claims Claims) error {
	expiresAt := claims.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = time.Now().Add(DefaultClaimsTTL)
	}
	ttl := time.Until(expiresAt)
	if ttl <= TokenExpiryBuffer {
		return nil
	}

	data, err := json.Marshal(cachedClaims{Claims: claims, ExpiresAt: expiresAt})
	if err != nil {
		return fmt.Errorf("failed to marshal token cache: %w", err)
	}
	if err := c.Client.Set(ctx, tokenKey(rawToken), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store token in Redis: %w", err)
	}
	return nil
}
