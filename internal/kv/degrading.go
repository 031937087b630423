package kv

import (
	"context"
	"log/slog"
	"sync"
)

// Degrading wraps a primary Store and keeps working when it fails.
//
// Every successful write is mirrored into memory. When the primary errors,
// the failure is logged once per key and operation and the call is served
// from memory instead, so callers never see storage errors.
type Degrading struct {
	primary  Store
	fallback *Memory
	logger   *slog.Logger

	mu     sync.Mutex
	warned map[string]bool
}

// NewDegrading wraps primary. A nil logger uses slog.Default().
func NewDegrading(primary Store, logger *slog.Logger) *Degrading {
	if logger == nil {
		logger = slog.Default()
	}
	return &Degrading{
		primary:  primary,
		fallback: NewMemory(),
		logger:   logger,
		warned:   make(map[string]bool),
	}
}

// Get implements Store. Never returns an error.
func (d *Degrading) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, ok, err := d.primary.Get(ctx, key)
	if err != nil {
		d.warn("get", key, err)
		return d.fallback.Get(ctx, key)
	}
	return v, ok, nil
}

// Set implements Store. Only malformed values are reported.
func (d *Degrading) Set(ctx context.Context, key string, value []byte) error {
	if err := d.fallback.Set(ctx, key, value); err != nil {
		return err
	}
	if err := d.primary.Set(ctx, key, value); err != nil {
		d.warn("set", key, err)
	}
	return nil
}

// Delete implements Store. Never returns an error.
func (d *Degrading) Delete(ctx context.Context, key string) error {
	_ = d.fallback.Delete(ctx, key)
	if err := d.primary.Delete(ctx, key); err != nil {
		d.warn("delete", key, err)
	}
	return nil
}

// Keys implements Store. Never returns an error.
func (d *Degrading) Keys(ctx context.Context, prefix string) ([]string, error) {
	keys, err := d.primary.Keys(ctx, prefix)
	if err != nil {
		d.warn("keys", prefix, err)
		return d.fallback.Keys(ctx, prefix)
	}
	return keys, nil
}

// Close closes the primary store.
func (d *Degrading) Close() error {
	return d.primary.Close()
}

func (d *Degrading) warn(op, key string, err error) {
	id := op + "\x00" + key
	d.mu.Lock()
	seen := d.warned[id]
	d.warned[id] = true
	d.mu.Unlock()
	if seen {
		return
	}
	d.logger.Warn("storage unavailable, using memory", "op", op, "key", key, "error", err)
}
