package pipeline

import (
	"context"
	"fmt"
	"path"

	"go-medimage-pipeline/internal/model"
	"go-medimage-pipeline/internal/storage"
)

// ResolveRequest carries the optional input-selection fields shared by
// both invocation operations.
type ResolveRequest struct {
	RunID     string
	SourceKey string
	InputKey  string
}

// Resolver decides which stored artifact a request actually operates
// on. The precedence chain is an ordered list of strategies tried in
// sequence, each returning a key or "no opinion":
//
//	run_id → source_key → input_key → configured default raw key
//
// Resolution is read-only; it never creates or mutates artifacts.
type Resolver struct {
	gateway       storage.Gateway
	defaultRawKey string
}

// NewResolver builds a resolver with the explicit default raw key; the
// default is constructor configuration, never ambient process state.
func NewResolver(gateway storage.Gateway, defaultRawKey string) *Resolver {
	return &Resolver{gateway: gateway, defaultRawKey: defaultRawKey}
}

type resolveStrategy func(ctx context.Context, req ResolveRequest) (key string, ok bool, err error)

// Resolve returns the single concrete storage key to read.
func (r *Resolver) Resolve(ctx context.Context, req ResolveRequest) (string, error) {
	strategies := []resolveStrategy{
		r.fromRun,
		r.fromSourceKey,
		r.fromInputKey,
		r.fromDefault,
	}
	for _, strategy := range strategies {
		key, ok, err := strategy(ctx, req)
		if err != nil {
			return "", err
		}
		if ok {
			return key, nil
		}
	}
	// Unreachable: fromDefault always has an opinion.
	return "", fmt.Errorf("resolve: %w: no input available", ErrNotFound)
}

// fromRun resolves against an existing run: its processed artifact if
// one exists, else its raw artifact, else not-found.
func (r *Resolver) fromRun(ctx context.Context, req ResolveRequest) (string, bool, error) {
	if req.RunID == "" {
		return "", false, nil
	}
	if err := validateRunID(req.RunID); err != nil {
		return "", false, err
	}
	for _, role := range []string{model.RoleProcessed, model.RoleRaw} {
		key := ArtifactKey(req.RunID, role)
		exists, err := r.gateway.Exists(ctx, key)
		if err != nil {
			return "", false, err
		}
		if exists {
			return key, true, nil
		}
	}
	return "", false, fmt.Errorf("resolve run %s: %w: no processed or raw artifact", req.RunID, ErrNotFound)
}

func (r *Resolver) fromSourceKey(ctx context.Context, req ResolveRequest) (string, bool, error) {
	return verbatimKey(req.SourceKey)
}

func (r *Resolver) fromInputKey(ctx context.Context, req ResolveRequest) (string, bool, error) {
	return verbatimKey(req.InputKey)
}

func (r *Resolver) fromDefault(ctx context.Context, req ResolveRequest) (string, bool, error) {
	return r.defaultRawKey, true, nil
}

// verbatimKey validates and passes through a caller-supplied key.
func verbatimKey(key string) (string, bool, error) {
	if key == "" {
		return "", false, nil
	}
	if err := ValidateInputKey(key); err != nil {
		return "", false, err
	}
	return key, true, nil
}

// ValidateInputKey checks the store's charset rules plus the loadable
// extensions: only .npy and .npz artifacts can serve as inputs.
func ValidateInputKey(key string) error {
	if err := storage.ValidateKey(key); err != nil {
		return err
	}
	switch path.Ext(key) {
	case ".npy", ".npz":
		return nil
	default:
		return fmt.Errorf("%w: %q must end in .npy or .npz", ErrInvalidKey, key)
	}
}

func validateRunID(runID string) error {
	for _, r := range runID {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '_' || r == '-':
		default:
			return fmt.Errorf("%w: run id %q contains illegal character %q", ErrInvalidKey, runID, r)
		}
	}
	if runID == "" {
		return fmt.Errorf("%w: empty run id", ErrInvalidKey)
	}
	return nil
}
