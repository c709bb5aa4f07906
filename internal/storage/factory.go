package storage

import (
	"context"
	"database/sql"
	"fmt"

	"healthvault/internal/config"
)

// Open builds the configured backend, wrapped in a read cache when
// BLOB_CACHE_ENTRIES is positive. db is only used by the database backend.
func Open(ctx context.Context, cfg *config.AppConfig, db *sql.DB) (Store, error) {
	var (
		s   Store
		err error
	)
	switch cfg.Blob.Backend {
	case "local":
		s, err = NewLocal(cfg.Blob.LocalRoot)
	case "database":
		if db == nil {
			return nil, fmt.Errorf("database blob backend requires a database connection")
		}
		var c *Chunked
		c, err = NewChunked(db, DialectPostgres, cfg.Blob.ChunkSize)
		if err == nil {
			err = c.EnsureSchema(ctx)
		}
		s = c
	case "s3":
		s, err = NewMinIO(ctx, cfg.MinIO)
	case "gcs":
		s, err = NewGCS(ctx, cfg.Blob.GCSBucket)
	default:
		return nil, fmt.Errorf("unknown blob backend %q", cfg.Blob.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s blob store: %w", cfg.Blob.Backend, err)
	}

	if cfg.Blob.CacheEntries > 0 {
		return NewCached(s, cfg.Blob.CacheEntries, cfg.Blob.CacheMaxSize)
	}
	return s, nil
}
