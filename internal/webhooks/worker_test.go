package webhooks

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"vrpengine/internal/logging"
	"vrpengine/internal/store"
)

type recordStore struct {
	*store.Memory
	mu    sync.Mutex
	marks []markRec
	fails []string
}

type markRec struct {
	ID      string
	Success bool
	Code    int
	LastErr string
}

func (r *recordStore) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
	r.mu.Lock()
	r.marks = append(r.marks, markRec{ID: id, Success: success, Code: responseCode, LastErr: lastError})
	r.mu.Unlock()
	return r.Memory.MarkWebhookDelivery(ctx, id, success, nextAttemptAt, lastError, responseCode, latencyMs)
}

func (r *recordStore) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
	r.mu.Lock()
	r.fails = append(r.fails, id)
	r.mu.Unlock()
	return r.Memory.FailWebhookDelivery(ctx, id, lastError, responseCode, latencyMs)
}

func newWorker(s store.Store, client *http.Client, maxAttempts int) *Worker {
	w := NewWorker(s, maxAttempts, time.Second, time.Second, logging.Discard())
	w.HTTP = client
	return w
}

func TestWorkerDeliversSignedContinuation(t *testing.T) {
	var (
		gotSig, gotEvent, gotSolve string
		body                       []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get(HeaderSignature)
		gotEvent = r.Header.Get(HeaderEvent)
		gotSolve = r.Header.Get(HeaderSolveID)
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	rs := &recordStore{Memory: store.NewMemory()}
	pub := NewPublisher(rs, "secret")
	_, err := pub.Succeeded(context.Background(), "s1", srv.URL, []byte(`{"tours":[]}`))
	require.NoError(t, err)

	newWorker(rs, srv.Client(), 3).processOnce()

	require.Equal(t, EventSucceeded, gotEvent)
	require.Equal(t, "s1", gotSolve)
	require.True(t, VerifyHMAC("secret", body, gotSig))
	var env Envelope
	require.NoError(t, json.Unmarshal(body, &env))
	require.JSONEq(t, `{"tours":[]}`, string(env.Solution))
	require.Empty(t, env.Error)

	require.Len(t, rs.marks, 1)
	require.True(t, rs.marks[0].Success)
}

func TestWorkerRetriesThenGivesUp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	rs := &recordStore{Memory: store.NewMemory()}
	_, err := NewPublisher(rs, "").Failed(context.Background(), "s1", srv.URL, []byte(`{"code":"ValidationError"}`))
	require.NoError(t, err)

	w := newWorker(rs, srv.Client(), 2)
	w.processOnce()
	require.Len(t, rs.marks, 1)
	require.False(t, rs.marks[0].Success)
	require.Equal(t, "status 500", rs.marks[0].LastErr)
	require.Empty(t, rs.fails)

	// the retry is scheduled in the future; nothing is due yet
	w.processOnce()
	require.Len(t, rs.marks, 1)

	ds, err := rs.ListWebhookDeliveries(context.Background(), "s1", store.DeliveryRetry)
	require.NoError(t, err)
	require.Len(t, ds, 1)
	d := ds[0]
	w.deliver(context.Background(), d)
	require.Len(t, rs.fails, 1)
}

func TestNextBackoff(t *testing.T) {
	require.Equal(t, time.Second, nextBackoff(-1))
	require.Equal(t, 8*time.Second, nextBackoff(3))
	require.Equal(t, 1024*time.Second, nextBackoff(50))
}

func TestVerifyHMACRejectsGarbage(t *testing.T) {
	require.False(t, VerifyHMAC("k", []byte("x"), "not-hex"))
	require.False(t, VerifyHMAC("k", []byte("x"), SignHMAC("other", []byte("x"))))
	require.True(t, VerifyHMAC("k", []byte("x"), SignHMAC("k", []byte("x"))))
}
