package privatecall

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory invitation repository for tests and local runs.

type MemoryRepo struct {
	mu   sync.Mutex
	rows map[string]Invitation
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{rows: make(map[string]Invitation)}
}

func (r *MemoryRepo) Create(ctx context.Context, inv Invitation) error {
	if inv.ID == "" {
		return ErrInvalidArgument
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[inv.ID]; ok {
		return ErrConflict
	}
	r.rows[inv.ID] = inv
	return nil
}

func (r *MemoryRepo) Get(ctx context.Context, id string) (Invitation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.rows[id]
	if !ok {
		return Invitation{}, ErrNotFound
	}
	return inv, nil
}

func (r *MemoryRepo) Transition(ctx context.Context, id string, from Status, mutate func(*Invitation)) (Invitation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.rows[id]
	if !ok {
		return Invitation{}, ErrNotFound
	}
	if inv.Status != from {
		return Invitation{}, ErrConflict
	}
	mutate(&inv)
	r.rows[id] = inv
	return inv, nil
}

func (r *MemoryRepo) PendingFor(ctx context.Context, receiverID int, now time.Time) ([]Invitation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Invitation
	for _, inv := range r.rows {
		if inv.ReceiverID == receiverID && inv.Status == StatusPending && now.Before(inv.ExpiresAt) {
			out = append(out, inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRepo) HasActive(ctx context.Context, userID int, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, inv := range r.rows {
		if !inv.Participant(userID) {
			continue
		}
		switch inv.Status {
		case StatusAccepted:
			return true, nil
		case StatusPending:
			if now.Before(inv.ExpiresAt) {
				return true, nil
			}
		}
	}
	return false, nil
}

func (r *MemoryRepo) StatsFor(ctx context.Context, userID int, since time.Time) (Stats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := Stats{UserID: userID}
	var durTotal float64
	var durCount int
	for _, inv := range r.rows {
		if !inv.Participant(userID) || inv.CreatedAt.Before(since) {
			continue
		}
		if inv.CallerID == userID {
			st.CallsMade++
		} else {
			st.CallsReceived++
		}
		switch inv.Status {
		case StatusAccepted, StatusEnded:
			st.CallsAccepted++
		case StatusRejected:
			st.CallsRejected++
		case StatusExpired:
			st.CallsExpired++
		}
		if inv.AcceptedAt != nil && inv.EndedAt != nil {
			durTotal += inv.EndedAt.Sub(*inv.AcceptedAt).Seconds()
			durCount++
		}
	}
	if durCount > 0 {
		avg := durTotal / float64(durCount)
		st.AvgCallDurationSeconds = &avg
	}
	return st, nil
}

func (r *MemoryRepo) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, inv := range r.rows {
		if inv.Status.Terminal() && inv.UpdatedAt.Before(cutoff) {
			delete(r.rows, id)
			n++
		}
	}
	return n, nil
}
