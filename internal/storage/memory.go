package storage

import (
	"context"
	"errors"
	"sync"
)

// MemoryGateway is an in-memory Gateway for tests and local runs.
// Puts replace the whole object under the lock, so writes are atomic
// and same-key races resolve last-write-wins.
type MemoryGateway struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMemoryGateway returns an empty in-memory store.
func NewMemoryGateway() *MemoryGateway {
	return &MemoryGateway{objects: make(map[string][]byte)}
}

func (g *MemoryGateway) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctxErr(ctx, "get", key); err != nil {
		return nil, err
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	data, ok := g.objects[key]
	if !ok {
		return nil, &Error{Op: "get", Key: key, Err: ErrNotFound}
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (g *MemoryGateway) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if err := ctxErr(ctx, "put", key); err != nil {
		return err
	}
	stored := make([]byte, len(data))
	copy(stored, data)
	g.mu.Lock()
	g.objects[key] = stored
	g.mu.Unlock()
	return nil
}

func (g *MemoryGateway) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctxErr(ctx, "exists", key); err != nil {
		return false, err
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.objects[key]
	return ok, nil
}

// Len returns the number of stored objects.
func (g *MemoryGateway) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.objects)
}

// Keys returns all stored keys; test helper.
func (g *MemoryGateway) Keys() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	keys := make([]string, 0, len(g.objects))
	for k := range g.objects {
		keys = append(keys, k)
	}
	return keys
}

func ctxErr(ctx context.Context, op, key string) error {
	switch err := ctx.Err(); {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Op: op, Key: key, Err: ErrTimeout}
	default:
		return &Error{Op: op, Key: key, Err: err}
	}
}
