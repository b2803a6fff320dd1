package store

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Supported backends.
const (
	BackendS3     = "s3"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Options selects and configures a backend.
type Options struct {
	Backend    string
	S3         S3Options
	SQLitePath string
}

// Open constructs the configured backend. The returned close function is
// always non-nil.
func Open(ctx context.Context, opts Options, logger *zap.SugaredLogger) (ObjectStore, func() error, error) {
	noop := func() error { return nil }

	switch opts.Backend {
	case BackendS3, "":
		s, err := NewS3(ctx, opts.S3)
		if err != nil {
			return nil, noop, err
		}
		return s, noop, nil
	case BackendSQLite:
		s, err := NewSQLite(opts.SQLitePath, logger)
		if err != nil {
			return nil, noop, err
		}
		return s, s.Close, nil
	case BackendMemory:
		return NewMemoryStore(0), noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown storage backend %q", opts.Backend)
	}
}
