package privatecall

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"intercom-platform/pkg/utils"
)

// SlotLimiter enforces one active private call per user. A slot is
// acquired for both participants when an invitation is created and
// released when the invitation reaches a terminal status.
type SlotLimiter interface {
	Acquire(ctx context.Context, userID int) (bool, error)
	Release(ctx context.Context, userID int) error
}

// Slot TTL must outlive the longest legitimate call we expect; the
// release path is the normal cleanup and TTL only catches crashes.
const callSlotTTL = 4 * time.Hour

func callSlotKey(userID int) string {
	return fmt.Sprintf("callslot:%d", userID)
}

type RedisSlotLimiter struct {
	rdb *redis.Client
}

func NewRedisSlotLimiter(rdb *redis.Client) *RedisSlotLimiter {
	return &RedisSlotLimiter{rdb: rdb}
}

func (l *RedisSlotLimiter) Acquire(ctx context.Context, userID int) (bool, error) {
	return utils.AcquireCallSlot(ctx, l.rdb, callSlotKey(userID), 1, callSlotTTL)
}

func (l *RedisSlotLimiter) Release(ctx context.Context, userID int) error {
	return utils.ReleaseCallSlot(ctx, l.rdb, callSlotKey(userID))
}

// MemorySlotLimiter is a process-local SlotLimiter for tests and local runs.
type MemorySlotLimiter struct {
	mu   sync.Mutex
	held map[int]bool
}

func NewMemorySlotLimiter() *MemorySlotLimiter {
	return &MemorySlotLimiter{held: make(map[int]bool)}
}

func (l *MemorySlotLimiter) Acquire(ctx context.Context, userID int) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[userID] {
		return false, nil
	}
	l.held[userID] = true
	return true, nil
}

func (l *MemorySlotLimiter) Release(ctx context.Context, userID int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, userID)
	return nil
}
