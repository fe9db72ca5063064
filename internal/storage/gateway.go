package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Gateway is the abstract object store the pipeline persists artifacts
// through. Keys are opaque slash-separated strings; every Put writes a
// complete object or nothing.
type Gateway interface {
	// Get returns the object bytes, or an error wrapping ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Put stores data under key, overwriting any previous object.
	Put(ctx context.Context, key string, data []byte, contentType string) error
	// Exists reports whether an object is stored under key.
	Exists(ctx context.Context, key string) (bool, error)
}

// Sentinel error kinds surfaced by gateways.
var (
	ErrNotFound   = errors.New("object not found")
	ErrTimeout    = errors.New("storage operation timed out")
	ErrInvalidKey = errors.New("invalid storage key")
)

// Error wraps a gateway failure with the operation and key it occurred
// on, in the manner of s3-style operation errors.
type Error struct {
	Op  string
	Key string
	Err error
}

func (e *Error) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("storage.%s %s: %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("storage.%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// ValidateKey applies the store's key format rules: non-empty, no
// leading slash, no parent traversal, and a restricted charset.
func ValidateKey(key string) error {
	if key == "" {
		return &Error{Op: "validate", Key: key, Err: fmt.Errorf("%w: empty key", ErrInvalidKey)}
	}
	if strings.HasPrefix(key, "/") || strings.Contains(key, "..") {
		return &Error{Op: "validate", Key: key, Err: fmt.Errorf("%w: %q", ErrInvalidKey, key)}
	}
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '/' || r == '_' || r == '-' || r == '.':
		default:
			return &Error{Op: "validate", Key: key, Err: fmt.Errorf("%w: illegal character %q", ErrInvalidKey, r)}
		}
	}
	return nil
}

// IsTimeout reports whether err is the transient timeout kind (the only
// storage failure callers may safely retry).
func IsTimeout(err error) bool { return errors.Is(err, ErrTimeout) }
