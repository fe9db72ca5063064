package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FSGateway stores objects as files under a root directory, mapping key
// path segments to subdirectories. Useful for local pipelines that have
// no bucket available.
type FSGateway struct {
	root string
}

// NewFSGateway creates the root directory if needed.
func NewFSGateway(root string) (*FSGateway, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, &Error{Op: "init", Err: fmt.Errorf("failed to create object root: %w", err)}
	}
	return &FSGateway{root: root}, nil
}

func (g *FSGateway) path(key string) string {
	return filepath.Join(g.root, filepath.FromSlash(key))
}

func (g *FSGateway) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctxErr(ctx, "get", key); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(g.path(key))
	if os.IsNotExist(err) {
		return nil, &Error{Op: "get", Key: key, Err: ErrNotFound}
	}
	if err != nil {
		return nil, &Error{Op: "get", Key: key, Err: err}
	}
	return data, nil
}

// Put writes to a temp file and renames it into place, so a reader
// never observes a half-written object.
func (g *FSGateway) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if err := ctxErr(ctx, "put", key); err != nil {
		return err
	}
	dest := g.path(key)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return &Error{Op: "put", Key: key, Err: err}
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".put-*")
	if err != nil {
		return &Error{Op: "put", Key: key, Err: err}
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return &Error{Op: "put", Key: key, Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return &Error{Op: "put", Key: key, Err: err}
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		os.Remove(tmp.Name())
		return &Error{Op: "put", Key: key, Err: err}
	}
	return nil
}

func (g *FSGateway) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctxErr(ctx, "exists", key); err != nil {
		return false, err
	}
	_, err := os.Stat(g.path(key))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, &Error{Op: "exists", Key: key, Err: err}
	}
	return true, nil
}
