// Package storage persists named JSON objects for the settings engine. A
// Backend holds many top-level keys; an Adapter binds one of them and is
// what the rest of the engine reads and writes through.
package storage

import (
	"context"
	"errors"
	"fmt"
)

// ErrClosed is returned by backends after Close.
var ErrClosed = errors.New("storage: backend closed")

// Backend stores JSON objects under top-level keys. Implementations only
// need to be safe for use by a single process.
type Backend interface {
	// Get returns the object stored under key, or nil when there is none.
	Get(ctx context.Context, key string) (map[string]any, error)
	// Put replaces the object stored under key, leaving other keys intact.
	Put(ctx context.Context, key string, value map[string]any) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Keys lists the stored top-level keys in sorted order.
	Keys(ctx context.Context) ([]string, error)
	Close() error
}

// Adapter is the persistence channel for one named store.
type Adapter struct {
	backend Backend
	key     string
}

// NewAdapter binds backend to the named store key.
func NewAdapter(backend Backend, key string) *Adapter {
	return &Adapter{backend: backend, key: key}
}

// Key returns the store name the adapter is bound to.
func (a *Adapter) Key() string { return a.key }

// Backend returns the underlying backend.
func (a *Adapter) Backend() Backend { return a.backend }

// Read returns the persisted object, or nil when nothing was written yet.
func (a *Adapter) Read(ctx context.Context) (map[string]any, error) {
	v, err := a.backend.Get(ctx, a.key)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", a.key, err)
	}
	return v, nil
}

// Write replaces the persisted object.
func (a *Adapter) Write(ctx context.Context, data map[string]any) error {
	if err := a.backend.Put(ctx, a.key, data); err != nil {
		return fmt.Errorf("writing %s: %w", a.key, err)
	}
	return nil
}

// RemoveKey deletes a single named top-level key from the backend. It is
// the only way persisted data is ever deleted.
func (a *Adapter) RemoveKey(ctx context.Context, name string) error {
	if err := a.backend.Delete(ctx, name); err != nil {
		return fmt.Errorf("removing %s: %w", name, err)
	}
	return nil
}
