package service

import (
	"bytes"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"healthvault/internal/repository/memory"
	"healthvault/internal/storage"

	"github.com/stretchr/testify/require"
)

type countingRecorder struct {
	blobDeleteFailed atomic.Int32
	integrity        atomic.Int32
	generated        atomic.Int32
	swept            atomic.Int64
	mu               sync.Mutex
	redeemed         map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{redeemed: map[string]int{}}
}

func (r *countingRecorder) BlobDeleteFailed()          { r.blobDeleteFailed.Add(1) }
func (r *countingRecorder) StorageIntegrityViolation() { r.integrity.Add(1) }
func (r *countingRecorder) ShareGenerated(int64)       { r.generated.Add(1) }
func (r *countingRecorder) SharesSwept(n int64)        { r.swept.Add(n) }
func (r *countingRecorder) ShareRedeemed(outcome string) {
	r.mu.Lock()
	r.redeemed[outcome]++
	r.mu.Unlock()
}

func (r *countingRecorder) outcomes(o string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.redeemed[o]
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestLogger() (*slog.Logger, *syncBuffer) {
	buf := &syncBuffer{}
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})), buf
}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

type fixture struct {
	store *storage.Local
	docs  *memory.DocumentMemory
	svc   DocumentService
	rec   *countingRecorder
	logs  *syncBuffer
}

func newFixture(t *testing.T, opts ...DocumentOption) *fixture {
	t.Helper()
	store, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	logger, logs := newTestLogger()
	rec := newCountingRecorder()
	repo := memory.NewDocumentMemory()
	opts = append([]DocumentOption{WithLogger(logger), WithRecorder(rec)}, opts...)
	return &fixture{
		store: store,
		docs:  repo,
		svc:   NewDocumentService(store, repo, opts...),
		rec:   rec,
		logs:  logs,
	}
}
