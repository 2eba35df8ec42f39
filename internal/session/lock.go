package session

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

const defaultLockTTL = 30 * time.Second

func lockKey(id string) string { return "session:" + id + ":resume_lock" }

// unlockScript deletes the lock only while it still belongs to owner.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// LockResume marks the session as busy resuming a quote. It returns false
// when another resume already holds the session.
func (s *Store) LockResume(ctx context.Context, sessionID, owner string) (bool, error) {
	ttl := s.LockTTL
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return s.Client.SetNX(ctx, lockKey(sessionID), owner, ttl).Result()
}

// UnlockResume releases a lock taken by owner. Locks held by someone else,
// or already expired, are left alone.
func (s *Store) UnlockResume(ctx context.Context, sessionID, owner string) error {
	err := unlockScript.Run(ctx, s.Client, []string{lockKey(sessionID)}, owner).Err()
	if err == redis.Nil {
		return nil
	}
	return err
}
