package repository

import (
	"context"
	"fmt"
	"strings"
)

// Open picks a backend: PostgreSQL when url is set, SQLite at path otherwise,
// and memory when path is ":memory:".
func Open(ctx context.Context, url, path string, opts ...Option) (Store, error) {
	switch {
	case url != "":
		if !strings.HasPrefix(url, "postgres://") && !strings.HasPrefix(url, "postgresql://") {
			return nil, fmt.Errorf("%w: %q", ErrUnsupportedDSN, url)
		}
		return OpenPostgres(ctx, url, opts...)
	case path == ":memory:":
		return NewMemoryStore(), nil
	default:
		return OpenSQLite(ctx, path, opts...)
	}
}
