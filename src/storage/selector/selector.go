// Package selector picks the storage backend for the running environment and
// hands out one initialized instance of it.
package selector

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/username/easyledger/backend/src/logger"
	"github.com/username/easyledger/backend/src/storage"
	"github.com/username/easyledger/backend/src/storage/blob"
	"github.com/username/easyledger/backend/src/storage/relational"
)

// Environment is the runtime tag the backend choice is made on.
type Environment string

const (
	// Native hosts get the embedded relational engine.
	Native Environment = "native"
	// Browser hosts only have a key-value blob store.
	Browser Environment = "browser"
)

var ErrUnknownEnvironment = errors.New("unknown runtime environment")

// ParseEnvironment maps a configuration value onto an Environment.
func ParseEnvironment(s string) (Environment, error) {
	switch env := Environment(strings.ToLower(strings.TrimSpace(s))); env {
	case Native, Browser:
		return env, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownEnvironment, s)
	}
}

// Options carries the backend locations.
type Options struct {
	DatabasePath     string // Relational backend file
	BlobSnapshotPath string // Optional snapshot file for the blob backend; empty keeps it in memory
}

// Factory builds an uninitialized backend. Tests substitute it.
type Factory func(env Environment, opts Options) (storage.Adapter, error)

// Selector lazily creates the backend on first use and caches it once its
// Initialize succeeded. Concurrent callers share that single instance.
type Selector struct {
	env     Environment
	opts    Options
	factory Factory

	mu      sync.Mutex
	adapter storage.Adapter
}

// NewSelector returns a selector for env using the real backends.
func NewSelector(env Environment, opts Options) *Selector {
	return NewSelectorWithFactory(env, opts, DefaultFactory)
}

func NewSelectorWithFactory(env Environment, opts Options, factory Factory) *Selector {
	return &Selector{env: env, opts: opts, factory: factory}
}

// DefaultFactory maps Native to the relational backend and Browser to the
// blob backend.
func DefaultFactory(env Environment, opts Options) (storage.Adapter, error) {
	switch env {
	case Native:
		return relational.Open(opts.DatabasePath)
	case Browser:
		kv, err := blob.OpenCacheKV(opts.BlobSnapshotPath)
		if err != nil {
			return nil, storage.BackendError("open blob store", err)
		}
		return blob.New(kv), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEnvironment, string(env))
	}
}

// Environment reports the tag the selector was built for.
func (s *Selector) Environment() Environment { return s.env }

// Adapter returns the initialized backend. A failed creation or
// initialization is not cached, so the next call retries.
func (s *Selector) Adapter(ctx context.Context) (storage.Adapter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.adapter != nil {
		return s.adapter, nil
	}

	adapter, err := s.factory(s.env, s.opts)
	if err != nil {
		logger.FromContext(ctx).Error("Failed to create storage backend", "environment", s.env, "error", err)
		return nil, err
	}
	if err := adapter.Initialize(ctx); err != nil {
		logger.FromContext(ctx).Error("Failed to initialize storage backend", "environment", s.env, "backend", adapter.Kind(), "error", err)
		if closeErr := adapter.Close(); closeErr != nil {
			logger.FromContext(ctx).Warn("Error closing backend after failed initialization", "error", closeErr)
		}
		return nil, err
	}

	logger.FromContext(ctx).Info("Storage backend ready", "environment", s.env, "backend", adapter.Kind())
	s.adapter = adapter
	return adapter, nil
}

// Close releases the cached backend, if any.
func (s *Selector) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.adapter == nil {
		return nil
	}
	err := s.adapter.Close()
	s.adapter = nil
	return err
}
