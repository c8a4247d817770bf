package cache

import (
	"context"
	"time"

	"orvia_back_end/internal/database"

	"github.com/google/uuid"
)

// RedisLocker sérialise les mutations par utilisateur (panier, checkout) avec
// un SET NX + TTL. Le jeton aléatoire garantit qu'on ne relâche jamais le
// verrou d'un autre appelant après expiration.
type RedisLocker struct{}

func NewRedisLocker() *RedisLocker {
	return &RedisLocker{}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	token := uuid.NewString()
	ok, err := database.Redis.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		// Relâche uniquement si le jeton est encore le nôtre
		const script = `if redis.call("get", KEYS[1]) == ARGV[1] then return redis.call("del", KEYS[1]) else return 0 end`
		database.Redis.Eval(context.Background(), script, []string{key}, token)
	}
	return release, true, nil
}
