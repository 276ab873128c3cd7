package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/tagsync/internal/profile"
	teststore "github.com/hrygo/tagsync/store/test"
)

func newTestingServer(t *testing.T) *Server {
	t.Helper()
	ctx := context.Background()
	ts := teststore.NewTestingStore(ctx, t)
	s, err := NewServer(ctx, &profile.Profile{
		Mode:            "dev",
		Addr:            "127.0.0.1",
		Port:            0,
		Version:         "0.2.0",
		InstanceURL:     "https://example.com",
		DefaultLanguage: "en",
		SweepInterval:   time.Minute,
		RateLimitRPS:    100,
	}, ts)
	require.NoError(t, err)
	return s
}

func TestServerRoutes(t *testing.T) {
	s := newTestingServer(t)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/items/blog/1/tags", strings.NewReader(`{"tags":["go"]}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.echoServer.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"url":"https://example.com/en/tags/detail/go"`)

	rec = httptest.NewRecorder()
	s.echoServer.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "tagsync_sync_total")
}

func TestServerStartShutdown(t *testing.T) {
	s := newTestingServer(t)
	require.NoError(t, s.Start(context.Background()))
	s.Shutdown(context.Background())
}
