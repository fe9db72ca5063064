package storage

import (
	"context"
	"errors"
	"time"
)

// TimeoutGateway bounds each individual call with its own deadline, so
// a caller without one still gets the configured ceiling. Expired
// deadlines surface as the timeout error kind. Place inside a retry
// decorator so each attempt gets a fresh deadline.
type TimeoutGateway struct {
	inner   Gateway
	timeout time.Duration
}

// WithTimeout wraps gw with a per-call deadline; d <= 0 returns gw
// unwrapped.
func WithTimeout(gw Gateway, d time.Duration) Gateway {
	if d <= 0 {
		return gw
	}
	return &TimeoutGateway{inner: gw, timeout: d}
}

func (g *TimeoutGateway) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	data, err := g.inner.Get(ctx, key)
	return data, g.mapDeadline("get", key, err)
}

func (g *TimeoutGateway) Put(ctx context.Context, key string, data []byte, contentType string) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	return g.mapDeadline("put", key, g.inner.Put(ctx, key, data, contentType))
}

func (g *TimeoutGateway) Exists(ctx context.Context, key string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	ok, err := g.inner.Exists(ctx, key)
	return ok, g.mapDeadline("exists", key, err)
}

func (g *TimeoutGateway) mapDeadline(op, key string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) && !IsTimeout(err) {
		return &Error{Op: op, Key: key, Err: ErrTimeout}
	}
	return err
}
