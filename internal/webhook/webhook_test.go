package webhook

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quaero-labs/corequaero/internal/logging"
)

func TestVerifyAcceptsValidSignature(t *testing.T) {
	body := []byte(`{"hello":"world"}`)
	sig := hex.EncodeToString(sign("secret", body))
	now := time.Now().Unix()
	assert.True(t, Verify("secret", body, sig, now))
	assert.False(t, Verify("wrong-secret", body, sig, now))
}

func TestVerifyRejectsStaleTimestamp(t *testing.T) {
	body := []byte(`{"hello":"world"}`)
	sig := hex.EncodeToString(sign("secret", body))
	stale := time.Now().Add(-10 * time.Minute).Unix()
	assert.False(t, Verify("secret", body, sig, stale))
}

func TestDispatcherDeliversAndSignsEvent(t *testing.T) {
	var receivedSig, receivedEventID, receivedTimestamp string
	var receivedBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedSig = r.Header.Get("X-Signature")
		receivedEventID = r.Header.Get("X-Event-Id")
		receivedTimestamp = r.Header.Get("X-Timestamp")
		buf := make([]byte, r.ContentLength)
		r.Body.Read(buf)
		receivedBody = buf
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := New(10, 2*time.Second, "", logging.NewStdioLogger("error"))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	event := Event{ID: "evt-1", Type: "content_changed", URL: "https://example.com", Timestamp: time.Now()}
	sub := Subscription{ID: "sub-1", TargetURL: srv.URL, SigningSecret: "topsecret"}
	require.NoError(t, d.Enqueue(event, sub))

	require.Eventually(t, func() bool { return receivedSig != "" }, time.Second, 10*time.Millisecond)

	var decoded Event
	require.NoError(t, json.Unmarshal(receivedBody, &decoded))
	assert.Equal(t, "evt-1", decoded.ID)
	assert.Equal(t, "evt-1", receivedEventID)
	assert.NotEmpty(t, receivedTimestamp)

	ts, err := strconv.ParseInt(receivedTimestamp, 10, 64)
	require.NoError(t, err)

	sigHex := receivedSig[len("sha256="):]
	assert.True(t, Verify("topsecret", receivedBody, sigHex, ts))
	assert.Empty(t, d.DeadLetters())
}

func TestDispatcherDeadLettersAfterRetriesExhausted(t *testing.T) {
	var calls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	root := t.TempDir()
	d := New(10, time.Second, root, logging.NewStdioLogger("error"))
	d.policy.InitialBackoff = time.Millisecond
	d.policy.MaxBackoff = 5 * time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	require.NoError(t, d.Enqueue(Event{ID: "evt-2"}, Subscription{TargetURL: srv.URL, SigningSecret: "s"}))

	require.Eventually(t, func() bool { return len(d.DeadLetters()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.GreaterOrEqual(t, atomic.LoadInt64(&calls), int64(d.policy.MaxAttempts))

	dlqData, err := os.ReadFile(filepath.Join(root, "dlq.jsonl"))
	require.NoError(t, err)
	assert.Contains(t, string(dlqData), "evt-2")
}

func TestEnqueueDropsLowestPriorityOnOverflow(t *testing.T) {
	d := New(2, time.Second, "", logging.NewStdioLogger("error"))

	require.NoError(t, d.Enqueue(Event{ID: "low", Priority: PriorityLow}, Subscription{TargetURL: "http://example.invalid"}))
	require.NoError(t, d.Enqueue(Event{ID: "high-1", Priority: PriorityHigh}, Subscription{TargetURL: "http://example.invalid"}))

	require.NoError(t, d.Enqueue(Event{ID: "high-2", Priority: PriorityHigh}, Subscription{TargetURL: "http://example.invalid"}))

	assert.Equal(t, int64(1), d.OverflowCount())

	d.mu.Lock()
	ids := make([]string, 0, d.items.Len())
	for _, it := range d.items {
		ids = append(ids, it.delivery.Event.ID)
	}
	d.mu.Unlock()
	assert.ElementsMatch(t, []string{"high-1", "high-2"}, ids)
}

func TestEnqueuePersistsOverflowToRecoveryLog(t *testing.T) {
	root := t.TempDir()
	d := New(1, time.Second, root, logging.NewStdioLogger("error"))

	require.NoError(t, d.Enqueue(Event{ID: "a"}, Subscription{TargetURL: "http://example.invalid"}))
	require.NoError(t, d.Enqueue(Event{ID: "b"}, Subscription{TargetURL: "http://example.invalid"}))

	data, err := os.ReadFile(filepath.Join(root, "recovery.jsonl"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "dropped_event_id")
	assert.Contains(t, string(data), `"a"`)
}
