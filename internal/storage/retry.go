package storage

import (
	"context"
	"math/rand"
	"time"
)

// RetryConfig defines backoff behavior for transient storage failures.
type RetryConfig struct {
	MaxAttempts       int           `json:"max_attempts"`
	InitialDelay      time.Duration `json:"initial_delay"`
	MaxDelay          time.Duration `json:"max_delay"`
	BackoffMultiplier float64       `json:"backoff_multiplier"`
	Jitter            bool          `json:"jitter"`
}

// DefaultRetryConfig mirrors the defaults used for flaky remote stores.
var DefaultRetryConfig = RetryConfig{
	MaxAttempts:       3,
	InitialDelay:      500 * time.Millisecond,
	MaxDelay:          10 * time.Second,
	BackoffMultiplier: 2.0,
	Jitter:            true,
}

// RetryGateway decorates a Gateway with retries. Only timeout-class
// failures are retried; invalid keys and missing objects surface
// immediately.
type RetryGateway struct {
	inner  Gateway
	config RetryConfig
}

// WithRetry wraps gw with the given retry policy.
func WithRetry(gw Gateway, cfg RetryConfig) *RetryGateway {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.BackoffMultiplier <= 1 {
		cfg.BackoffMultiplier = DefaultRetryConfig.BackoffMultiplier
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = DefaultRetryConfig.InitialDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = DefaultRetryConfig.MaxDelay
	}
	return &RetryGateway{inner: gw, config: cfg}
}

func (g *RetryGateway) Get(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := g.do(ctx, func() error {
		var err error
		data, err = g.inner.Get(ctx, key)
		return err
	})
	return data, err
}

func (g *RetryGateway) Put(ctx context.Context, key string, data []byte, contentType string) error {
	return g.do(ctx, func() error {
		return g.inner.Put(ctx, key, data, contentType)
	})
}

func (g *RetryGateway) Exists(ctx context.Context, key string) (bool, error) {
	var ok bool
	err := g.do(ctx, func() error {
		var err error
		ok, err = g.inner.Exists(ctx, key)
		return err
	})
	return ok, err
}

func (g *RetryGateway) do(ctx context.Context, op func() error) error {
	delay := g.config.InitialDelay
	var err error
	for attempt := 1; attempt <= g.config.MaxAttempts; attempt++ {
		err = op()
		if err == nil || !IsTimeout(err) || attempt == g.config.MaxAttempts {
			return err
		}
		wait := delay
		if g.config.Jitter {
			wait += time.Duration(rand.Int63n(int64(delay)/2 + 1))
		}
		select {
		case <-ctx.Done():
			return err
		case <-time.After(wait):
		}
		delay = time.Duration(float64(delay) * g.config.BackoffMultiplier)
		if delay > g.config.MaxDelay {
			delay = g.config.MaxDelay
		}
	}
	return err
}
