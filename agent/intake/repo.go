package intake

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Repository is the persistence contract for service requests. The in-memory
// implementation is the default; a durable backend can be substituted without
// changing callers.
type Repository interface {
	Create(ctx context.Context, req *Request) error
	Get(ctx context.Context, id string) (*Request, error)
	List(ctx context.Context) ([]*Request, error)
	UpdateStatus(ctx context.Context, id string, next Status) (*Request, error)
	Stats(ctx context.Context) (Stats, error)
}

// MemoryRepository keeps service requests for the lifetime of the process.
// Writes are atomic with respect to each other and to reads: list and stats
// never observe a half-written record.
type MemoryRepository struct {
	mu       sync.RWMutex
	requests map[string]*Request
	order    []string

	now func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		requests: make(map[string]*Request),
		now:      time.Now,
	}
}

func (r *MemoryRepository) Create(ctx context.Context, req *Request) error {
	if req == nil || strings.TrimSpace(req.ID) == "" {
		return fmt.Errorf("%w: request id is empty", ErrIncompleteRequest)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.requests[req.ID]; exists {
		return fmt.Errorf("%w: id=%s", ErrDuplicateID, req.ID)
	}

	stored := req.Clone()
	if stored.Status == "" {
		stored.Status = StatusPending
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = r.now().UTC()
	}

	r.requests[stored.ID] = stored
	r.order = append(r.order, stored.ID)

	// Reflect defaults back so the caller sees the record as stored.
	*req = *stored
	return nil
}

func (r *MemoryRepository) Get(ctx context.Context, id string) (*Request, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	req, ok := r.requests[id]
	if !ok {
		return nil, fmt.Errorf("%w: id=%s", ErrNotFound, id)
	}
	return req.Clone(), nil
}

// List returns all requests in insertion order.
func (r *MemoryRepository) List(ctx context.Context) ([]*Request, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Request, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.requests[id].Clone())
	}
	return out, nil
}

// UpdateStatus advances a record and returns it as updated, so callers never
// have to re-read and race a concurrent writer.
func (r *MemoryRepository) UpdateStatus(ctx context.Context, id string, next Status) (*Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	req, ok := r.requests[id]
	if !ok {
		return nil, fmt.Errorf("%w: id=%s", ErrNotFound, id)
	}
	if !req.Status.CanAdvanceTo(next) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, req.Status, next)
	}
	req.Status = next
	return req.Clone(), nil
}

func (r *MemoryRepository) Stats(ctx context.Context) (Stats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := Stats{TotalCount: len(r.requests)}
	for _, req := range r.requests {
		if req.IsEmergency {
			stats.EmergencyCount++
		}
	}
	return stats, nil
}
