package users

import (
	"context"
	"sync"
)

// MemoryRepo is an in-memory account repository for tests and local runs.

type MemoryRepo struct {
	mu    sync.RWMutex
	byID  map[int]User
	byUsr map[string]int
}

func NewMemoryRepo(seed ...User) *MemoryRepo {
	r := &MemoryRepo{byID: make(map[int]User), byUsr: make(map[string]int)}
	for _, u := range seed {
		r.Put(u)
	}
	return r
}

func (r *MemoryRepo) Put(u User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[u.ID] = u
	r.byUsr[u.Username] = u.ID
}

func (r *MemoryRepo) ByUsername(ctx context.Context, username string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byUsr[username]
	if !ok {
		return User{}, ErrNotFound
	}
	return r.byID[id], nil
}

func (r *MemoryRepo) ByID(ctx context.Context, id int) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byID[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}
