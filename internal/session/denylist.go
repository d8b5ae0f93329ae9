package session

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/blake2b"
)

const keyRevokedToken = "session:revoked:%s"

// TokenDenylist remembers revoked tokens in redis until they would have
// expired anyway.
type TokenDenylist struct {
	cache *redis.Client
	now   func() time.Time
}

func NewTokenDenylist(cache *redis.Client) *TokenDenylist {
	return &TokenDenylist{cache: cache, now: time.Now}
}

func revokedKey(token string) string {
	sum := blake2b.Sum256([]byte(token))
	return fmt.Sprintf(keyRevokedToken, hex.EncodeToString(sum[:]))
}

func (d *TokenDenylist) Revoke(c context.Context, token string, until time.Time) error {
	ttl := until.Sub(d.now())
	if ttl < time.Second {
		ttl = time.Second
	}
	if err := d.cache.Set(c, revokedKey(token), 1, ttl).Err(); err != nil {
		return fmt.Errorf("failed revoking token with error=%w", err)
	}
	return nil
}

func (d *TokenDenylist) IsRevoked(c context.Context, token string) (bool, error) {
	n, err := d.cache.Exists(c, revokedKey(token)).Result()
	if err != nil {
		return false, fmt.Errorf("failed checking revoked token with error=%w", err)
	}
	return n > 0, nil
}
