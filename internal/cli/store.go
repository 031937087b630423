package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/keepsake/internal/kv"
)

// openStore opens the configured answer store. The result degrades to
// memory on later failures; an open failure is returned as is.
func openStore(ctx context.Context, o *RootOptions, logger *slog.Logger) (kv.Store, error) {
	var (
		primary kv.Store
		err     error
	)
	switch o.Store {
	case "memory":
		return kv.NewMemory(), nil
	case "redis":
		primary, err = kv.DialRedis(ctx, o.Redis, "", 0, o.RedisPrefix)
	default:
		primary, err = kv.OpenSQLite(o.DB)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", o.Store, err)
	}
	return kv.NewDegrading(primary, logger), nil
}

// openStoreOrMemory is openStore for interactive use: an unavailable store
// is logged and replaced by memory so the session still runs.
func openStoreOrMemory(ctx context.Context, o *RootOptions, logger *slog.Logger) kv.Store {
	st, err := openStore(ctx, o, logger)
	if err != nil {
		logger.Warn("answer store unavailable, answers will not persist", "store", o.Store, "error", err)
		return kv.NewMemory()
	}
	return st
}
