package webhook

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/answerline/answerline/internal/config"
)

type recordingBatcher struct {
	mu      sync.Mutex
	batches []*Callback
}

func (b *recordingBatcher) HandleBatch(_ context.Context, cb *Callback) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.batches = append(b.batches, cb)
}

func (b *recordingBatcher) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.batches)
}

const testSecret = "unit-test-secret"

func newTestServer(t *testing.T) (*Server, *recordingBatcher) {
	t.Helper()
	cfg := config.Defaults().Server
	batcher := &recordingBatcher{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(cfg, testSecret, batcher, logger), batcher
}

func doRequest(t *testing.T, handler http.Handler, method, body, signature string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, "/callback", strings.NewReader(body))
	if signature != "" {
		req.Header.Set("X-Line-Signature", signature)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHandleCallbackSuccess(t *testing.T) {
	srv, batcher := newTestServer(t)
	router := srv.setupRoutes()

	body := `{"events":[{"type":"message","webhookEventId":"evt-1"},{"type":"follow","webhookEventId":"evt-2"}]}`
	rec := doRequest(t, router, http.MethodPost, body, Sign([]byte(body), testSecret))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))

	require.Equal(t, 1, batcher.count())
	assert.Len(t, batcher.batches[0].Events, 2)
}

func TestHandleCallbackMethodNotAllowed(t *testing.T) {
	srv, batcher := newTestServer(t)
	router := srv.setupRoutes()

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		rec := doRequest(t, router, method, "", "")
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, "method %s", method)
	}
	assert.Zero(t, batcher.count())
}

func TestHandleCallbackMissingSignature(t *testing.T) {
	srv, batcher := newTestServer(t)
	router := srv.setupRoutes()

	rec := doRequest(t, router, http.MethodPost, `{"events":[]}`, "")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, batcher.count())
}

func TestHandleCallbackBadSignature(t *testing.T) {
	srv, batcher := newTestServer(t)
	router := srv.setupRoutes()

	body := `{"events":[]}`
	rec := doRequest(t, router, http.MethodPost, body, Sign([]byte(body), "wrong-secret"))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, batcher.count())
}

func TestHandleCallbackMalformedPayload(t *testing.T) {
	srv, batcher := newTestServer(t)
	router := srv.setupRoutes()

	// Correctly signed garbage must pass auth and fail parsing.
	body := `{"no_events": true}`
	rec := doRequest(t, router, http.MethodPost, body, Sign([]byte(body), testSecret))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, batcher.count())
}

func TestHandleCallbackPayloadTooLarge(t *testing.T) {
	cfg := config.Defaults().Server
	cfg.MaxBodySize = 64
	batcher := &recordingBatcher{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := New(cfg, testSecret, batcher, logger)
	router := srv.setupRoutes()

	body := `{"events":[` + strings.Repeat(`{"type":"message"},`, 20) + `{"type":"message"}]}`
	rec := doRequest(t, router, http.MethodPost, body, Sign([]byte(body), testSecret))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Zero(t, batcher.count())
}

func TestHandleCallbackEmptyBatchAccepted(t *testing.T) {
	srv, batcher := newTestServer(t)
	router := srv.setupRoutes()

	body := `{"events":[]}`
	rec := doRequest(t, router, http.MethodPost, body, Sign([]byte(body), testSecret))

	assert.Equal(t, http.StatusOK, rec.Code)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
	assert.Equal(t, 1, batcher.count())
}
