package storage

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func TestGCS_FailedCopyAbortsUpload(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"name":"documents/x","bucket":"vault","size":"7"}`))
	}))
	defer srv.Close()

	ctx := context.Background()
	s, err := NewGCS(ctx, "vault",
		option.WithEndpoint(srv.URL+"/storage/v1/"),
		option.WithoutAuthentication(),
	)
	require.NoError(t, err)
	defer s.Close()

	src := io.MultiReader(strings.NewReader("partial"), iotest.ErrReader(errors.New("client went away")))
	info, err := s.Put(ctx, src, PutOptions{ContentType: "application/pdf"})

	require.Error(t, err)
	assert.ErrorContains(t, err, "client went away")
	assert.Empty(t, info.Handle)
	assert.Zero(t, requests.Load(), "partial upload must not reach the bucket")
}
