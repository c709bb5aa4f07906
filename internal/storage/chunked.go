package storage

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"strconv"
	"strings"
	"time"
)

// DefaultChunkSize keeps every chunk row under the common 256KiB row-size sweet spot.
const DefaultChunkSize = 255 * 1024

// Dialect selects the SQL flavor used by Chunked.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// Chunked stores blobs inside a SQL database, split into fixed-size chunk rows.
// One blob_objects row describes each blob; blob_chunks holds the bytes in
// sequence. Reads fetch one chunk at a time.
type Chunked struct {
	db        *sql.DB
	dialect   Dialect
	chunkSize int
}

// NewChunked creates a chunked store. Call EnsureSchema before first use.
func NewChunked(db *sql.DB, dialect Dialect, chunkSize int) (*Chunked, error) {
	if dialect != DialectPostgres && dialect != DialectSQLite {
		return nil, fmt.Errorf("unsupported dialect %q", dialect)
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Chunked{db: db, dialect: dialect, chunkSize: chunkSize}, nil
}

var _ Store = (*Chunked)(nil)

// EnsureSchema creates the blob tables when they do not exist.
func (s *Chunked) EnsureSchema(ctx context.Context) error {
	blobType, tsType := "BYTEA", "TIMESTAMPTZ"
	if s.dialect == DialectSQLite {
		blobType, tsType = "BLOB", "TIMESTAMP"
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS blob_objects (
			handle       TEXT PRIMARY KEY,
			size_bytes   BIGINT NOT NULL,
			chunk_count  INTEGER NOT NULL,
			content_type TEXT NOT NULL DEFAULT '',
			sha256       TEXT NOT NULL,
			created_at   ` + tsType + ` NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS blob_chunks (
			handle TEXT NOT NULL,
			seq    INTEGER NOT NULL,
			data   ` + blobType + ` NOT NULL,
			PRIMARY KEY (handle, seq)
		)`,
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create blob schema: %w", err)
		}
	}
	return nil
}

// rebind rewrites ? placeholders to $n for postgres.
func (s *Chunked) rebind(q string) string {
	if s.dialect != DialectPostgres {
		return q
	}
	var b strings.Builder
	n := 0
	for i := 0; i < len(q); i++ {
		if q[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(q[i])
	}
	return b.String()
}

// Put streams r into chunk rows inside one transaction.
func (s *Chunked) Put(ctx context.Context, r io.Reader, opt PutOptions) (ObjectInfo, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	handle := newID()
	insertChunk := s.rebind(`INSERT INTO blob_chunks (handle, seq, data) VALUES (?, ?, ?)`)

	var (
		h     = sha256.New()
		buf   = make([]byte, s.chunkSize)
		total int64
		seq   int
	)
	for {
		n, rerr := io.ReadFull(&ctxReader{ctx: ctx, r: r}, buf)
		if n > 0 {
			h.Write(buf[:n])
			if _, err := tx.ExecContext(ctx, insertChunk, handle, seq, buf[:n]); err != nil {
				return ObjectInfo{}, fmt.Errorf("insert chunk %d: %w", seq, err)
			}
			total += int64(n)
			seq++
		}
		if errors.Is(rerr, io.EOF) || errors.Is(rerr, io.ErrUnexpectedEOF) {
			break
		}
		if rerr != nil {
			return ObjectInfo{}, fmt.Errorf("read blob: %w", rerr)
		}
	}
	if opt.Size > 0 && opt.Size != total {
		return ObjectInfo{}, fmt.Errorf("write blob: got %d bytes, expected %d", total, opt.Size)
	}

	now := time.Now().UTC()
	sum := hex.EncodeToString(h.Sum(nil))
	if _, err := tx.ExecContext(ctx,
		s.rebind(`INSERT INTO blob_objects (handle, size_bytes, chunk_count, content_type, sha256, created_at) VALUES (?, ?, ?, ?, ?, ?)`),
		handle, total, seq, opt.ContentType, sum, now,
	); err != nil {
		return ObjectInfo{}, fmt.Errorf("insert blob: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return ObjectInfo{}, fmt.Errorf("commit: %w", err)
	}

	return ObjectInfo{
		Handle:       handle,
		Size:         total,
		ETag:         sum,
		ContentType:  opt.ContentType,
		LastModified: now,
		Metadata:     opt.Metadata,
	}, nil
}

// Get returns a reader that fetches chunks lazily and verifies the digest at EOF.
func (s *Chunked) Get(ctx context.Context, handle string) (io.ReadCloser, ObjectInfo, error) {
	var (
		info   = ObjectInfo{Handle: handle}
		chunks int
	)
	err := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT size_bytes, chunk_count, content_type, sha256, created_at FROM blob_objects WHERE handle = ?`),
		handle,
	).Scan(&info.Size, &chunks, &info.ContentType, &info.ETag, &info.LastModified)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ObjectInfo{}, ErrNotFound
	}
	if err != nil {
		return nil, ObjectInfo{}, fmt.Errorf("load blob: %w", err)
	}

	return &chunkReader{
		ctx:    ctx,
		store:  s,
		handle: handle,
		count:  chunks,
		want:   info.ETag,
		h:      sha256.New(),
	}, info, nil
}

// Delete removes the blob's chunks and descriptor.
func (s *Chunked) Delete(ctx context.Context, handle string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM blob_objects WHERE handle = ?`), handle)
	if err != nil {
		return fmt.Errorf("delete blob: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete blob: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	if _, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM blob_chunks WHERE handle = ?`), handle); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	return tx.Commit()
}

type chunkReader struct {
	ctx    context.Context
	store  *Chunked
	handle string
	count  int
	next   int
	buf    []byte
	want   string
	h      hash.Hash
	done   bool
}

func (r *chunkReader) Read(p []byte) (int, error) {
	for len(r.buf) == 0 {
		if r.next == r.count {
			if !r.done {
				r.done = true
				if hex.EncodeToString(r.h.Sum(nil)) != r.want {
					return 0, ErrChecksumMismatch
				}
			}
			return 0, io.EOF
		}
		var data []byte
		err := r.store.db.QueryRowContext(r.ctx,
			r.store.rebind(`SELECT data FROM blob_chunks WHERE handle = ? AND seq = ?`),
			r.handle, r.next,
		).Scan(&data)
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("chunk %d of %s missing: %w", r.next, r.handle, io.ErrUnexpectedEOF)
		}
		if err != nil {
			return 0, fmt.Errorf("read chunk %d: %w", r.next, err)
		}
		r.h.Write(data)
		r.buf = data
		r.next++
	}
	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	return n, nil
}

func (r *chunkReader) Close() error {
	r.buf = nil
	r.next = r.count
	r.done = true
	return nil
}
