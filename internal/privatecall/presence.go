package privatecall

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Presence tracks which users are reachable for incoming-call delivery.
// A user counts as online while their client keeps polling for incoming
// calls; each poll refreshes the key.
type Presence interface {
	Touch(ctx context.Context, userID int) error
	Online(ctx context.Context, userID int) (bool, error)
}

const presenceTTL = 15 * time.Second

func presenceKey(userID int) string {
	return fmt.Sprintf("presence:%d", userID)
}

// RedisPresence stores presence as volatile keys so a crashed client
// goes offline without any explicit signout.
type RedisPresence struct {
	rdb *redis.Client
}

func NewRedisPresence(rdb *redis.Client) *RedisPresence {
	return &RedisPresence{rdb: rdb}
}

func (p *RedisPresence) Touch(ctx context.Context, userID int) error {
	return p.rdb.Set(ctx, presenceKey(userID), "1", presenceTTL).Err()
}

func (p *RedisPresence) Online(ctx context.Context, userID int) (bool, error) {
	n, err := p.rdb.Exists(ctx, presenceKey(userID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MemoryPresence is a process-local Presence for tests and local runs.
type MemoryPresence struct {
	mu    sync.Mutex
	seen  map[int]time.Time
	clock func() time.Time
}

func NewMemoryPresence() *MemoryPresence {
	return &MemoryPresence{seen: make(map[int]time.Time), clock: time.Now}
}

func (p *MemoryPresence) Touch(ctx context.Context, userID int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seen[userID] = p.clock()
	return nil
}

func (p *MemoryPresence) Online(ctx context.Context, userID int) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	t, ok := p.seen[userID]
	if !ok {
		return false, nil
	}
	return p.clock().Sub(t) < presenceTTL, nil
}
