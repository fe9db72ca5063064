package pipeline

import (
	"errors"

	"go-medimage-pipeline/internal/storage"
)

// Error kinds surfaced to the invoking layer. Invalid input and
// missing artifacts are caller faults and never retried; storage
// timeouts are transient and the whole invocation is safe to retry
// because every artifact write is a single atomic put.
var (
	ErrInvalidKey       = storage.ErrInvalidKey
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrNotFound         = storage.ErrNotFound
	ErrStorageTimeout   = storage.ErrTimeout
	ErrUnsupportedShape = errors.New("unsupported array shape")
)
