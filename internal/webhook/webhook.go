// Package webhook implements C13: HMAC-signed webhook delivery for the
// change-tracker, with a bounded priority queue and a dead-letter sink for
// deliveries that exhaust their retry budget. No pack example ships a
// webhook-delivery library (grounded decision in DESIGN.md): the signing
// scheme uses stdlib crypto/hmac+sha256 (the universal webhook-signature
// convention, e.g. Stripe/GitHub's X-Hub-Signature-256), delivery retry
// reuses internal/retry.Policy, the same backoff the fetch layer uses,
// and the queue is a container/heap priority queue, the same data
// structure the teacher's own crawler frontier (queue.go) uses for
// depth/priority ordering.
package webhook

import (
	"bytes"
	"container/heap"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/quaero-labs/corequaero/internal/metrics"
	"github.com/quaero-labs/corequaero/internal/model"
	"github.com/quaero-labs/corequaero/internal/retry"
)

// Priority is the webhook event's queue priority, per spec.md §4.13's
// three-level (high/normal/low) scheme. Lower values are serviced first.
type Priority int

const (
	PriorityHigh   Priority = 0
	PriorityNormal Priority = 1
	PriorityLow    Priority = 2
)

// Event is the payload delivered to a subscriber's webhook URL.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	URL       string    `json:"url"`
	Timestamp time.Time `json:"timestamp"`
	Priority  Priority  `json:"priority"`
	Data      any       `json:"data"`
}

// Subscription is one registered webhook target.
type Subscription struct {
	ID            string
	TargetURL     string
	SigningSecret string
}

// Delivery tracks one attempted (or pending) event delivery.
type Delivery struct {
	Event        Event
	Subscription Subscription
	Attempts     int
	LastError    string
	DeadLettered bool
}

// deliveryItem is one queued delivery, ordered by Event.Priority and then
// by insertion order (oldest first within a priority level).
type deliveryItem struct {
	delivery Delivery
	seq      int64
}

// deliveryHeap is a min-heap over deliveryItem: the root is always the
// highest-priority, oldest-queued delivery. Grounded on the teacher's
// internal/services/crawler/queue.go itemHeap.
type deliveryHeap []*deliveryItem

func (h deliveryHeap) Len() int { return len(h) }
func (h deliveryHeap) Less(i, j int) bool {
	if h[i].delivery.Event.Priority != h[j].delivery.Event.Priority {
		return h[i].delivery.Event.Priority < h[j].delivery.Event.Priority
	}
	return h[i].seq < h[j].seq
}
func (h deliveryHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *deliveryHeap) Push(x any)   { *h = append(*h, x.(*deliveryItem)) }
func (h *deliveryHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// worst reports whether a is the lower-priority (or, within the same
// priority, the older) of the two items, i.e. the one overflow should
// drop first.
func worst(a, b *deliveryItem) bool {
	if a.delivery.Event.Priority != b.delivery.Event.Priority {
		return a.delivery.Event.Priority > b.delivery.Event.Priority
	}
	return a.seq < b.seq
}

// Dispatcher queues and delivers webhook events with HMAC signing and
// bounded, priority-ordered retry, per spec.md §4.13.
type Dispatcher struct {
	client  *http.Client
	logger  arbor.ILogger
	policy  retry.Policy
	timeout time.Duration

	mu            sync.Mutex
	cond          *sync.Cond
	items         deliveryHeap
	nextSeq       int64
	closed        bool
	queueSize     int
	overflowCount int64

	deadLetters []Delivery

	dlqPath      string
	recoveryPath string
}

// New builds a Dispatcher with the given bounded queue size and
// per-attempt timeout. If root is non-empty, the dead-letter log and the
// overflow recovery log are persisted as append-only JSON-lines files
// under root (e.g. {storage.webhook_root}/dlq.jsonl per spec.md §6.3); an
// empty root keeps both in-memory only (used by tests).
func New(queueSize int, timeout time.Duration, root string, logger arbor.ILogger) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 10_000
	}
	d := &Dispatcher{
		client:    &http.Client{Timeout: timeout},
		logger:    logger,
		policy:    retry.NewPolicy(),
		timeout:   timeout,
		queueSize: queueSize,
	}
	d.cond = sync.NewCond(&d.mu)

	if root != "" {
		if err := os.MkdirAll(root, 0o755); err != nil {
			logger.Warn().Err(err).Str("dir", root).Msg("failed to create webhook log directory; DLQ/recovery logs disabled")
		} else {
			d.dlqPath = filepath.Join(root, "dlq.jsonl")
			d.recoveryPath = filepath.Join(root, "recovery.jsonl")
		}
	}
	return d
}

// Enqueue submits an event for delivery to sub. The queue never rejects a
// new event: when it is already at capacity, the lowest-priority (then
// oldest) existing delivery is dropped to make room, the queue_overflow
// counter is incremented, and the dropped event's id is appended to the
// recovery log.
func (d *Dispatcher) Enqueue(event Event, sub Subscription) error {
	d.mu.Lock()
	item := &deliveryItem{delivery: Delivery{Event: event, Subscription: sub}, seq: d.nextSeq}
	d.nextSeq++

	var dropped *deliveryItem
	if d.items.Len() >= d.queueSize {
		dropped = d.dropWorstLocked()
		d.overflowCount++
	}
	heap.Push(&d.items, item)
	d.cond.Signal()
	d.mu.Unlock()

	if dropped != nil {
		metrics.WebhookQueueOverflowTotal.Inc()
		d.logger.Warn().Str("event_id", dropped.delivery.Event.ID).Int64("overflow_count", d.overflowCount).
			Msg("webhook queue full, dropped lowest-priority event")
		if err := d.appendJSONLine(d.recoveryPath, map[string]any{
			"dropped_event_id": dropped.delivery.Event.ID,
			"dropped_at":       time.Now(),
			"reason":           "queue_overflow",
		}); err != nil {
			d.logger.Warn().Err(err).Msg("failed to persist dropped event to recovery log")
		}
	}
	return nil
}

// dropWorstLocked removes and returns the lowest-priority, oldest item in
// the queue. Callers must hold d.mu.
func (d *Dispatcher) dropWorstLocked() *deliveryItem {
	worstIdx := 0
	for i := 1; i < len(d.items); i++ {
		if worst(d.items[i], d.items[worstIdx]) {
			worstIdx = i
		}
	}
	item := d.items[worstIdx]
	heap.Remove(&d.items, worstIdx)
	return item
}

// OverflowCount returns the number of deliveries dropped due to queue
// overflow since the dispatcher was created.
func (d *Dispatcher) OverflowCount() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.overflowCount
}

// Run drains the delivery queue until ctx is cancelled, attempting each
// delivery with the configured retry policy and recording exhausted
// deliveries to the dead-letter sink.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		delivery, ok := d.pop(ctx)
		if !ok {
			return
		}
		d.deliver(ctx, delivery)
	}
}

// pop blocks until a delivery is available, ctx is cancelled, or Close is
// called, following the teacher's cond-variable queue pattern
// (internal/services/crawler/queue.go).
func (d *Dispatcher) pop(ctx context.Context) (Delivery, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	const maxWait = 2 * time.Second
	for {
		select {
		case <-ctx.Done():
			return Delivery{}, false
		default:
		}
		if d.closed {
			return Delivery{}, false
		}
		if d.items.Len() > 0 {
			item := heap.Pop(&d.items).(*deliveryItem)
			return item.delivery, true
		}

		timer := time.AfterFunc(maxWait, func() { d.cond.Broadcast() })
		d.cond.Wait()
		timer.Stop()
	}
}

// Close stops Run's pop loop and wakes any blocked caller.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	d.cond.Broadcast()
}

func (d *Dispatcher) deliver(ctx context.Context, delivery Delivery) {
	body, err := json.Marshal(delivery.Event)
	if err != nil {
		d.logger.Warn().Err(err).Str("event_id", delivery.Event.ID).Msg("failed to marshal webhook event")
		return
	}
	signature := sign(delivery.Subscription.SigningSecret, body)

	// Any transport error or non-2xx answer is retried, up to the policy's
	// attempt budget with its exponential backoff between attempts.
	var status int
	attempts := 0
	for attempt := 0; attempt < d.policy.MaxAttempts; attempt++ {
		attempts++
		status, err = d.attempt(ctx, delivery.Event, delivery.Subscription.TargetURL, body, signature)
		if err == nil && status >= 200 && status < 300 {
			break
		}
		if ctx.Err() != nil || attempt == d.policy.MaxAttempts-1 {
			break
		}
		select {
		case <-ctx.Done():
		case <-time.After(d.policy.Backoff(attempt)):
		}
	}
	delivery.Attempts = attempts

	if err != nil || status < 200 || status >= 300 {
		delivery.LastError = errOrStatus(err, status)
		delivery.DeadLettered = true
		d.mu.Lock()
		d.deadLetters = append(d.deadLetters, delivery)
		d.mu.Unlock()
		d.logger.Warn().Str("event_id", delivery.Event.ID).Str("target", delivery.Subscription.TargetURL).
			Int("attempts", attempts).Str("error", delivery.LastError).Msg("webhook delivery exhausted retries")
		if logErr := d.appendJSONLine(d.dlqPath, map[string]any{
			"event":      delivery.Event,
			"target_url": delivery.Subscription.TargetURL,
			"attempts":   delivery.Attempts,
			"error":      delivery.LastError,
			"dead_lettered_at": time.Now(),
		}); logErr != nil {
			d.logger.Warn().Err(logErr).Msg("failed to persist dead letter")
		}
		return
	}

	d.logger.Debug().Str("event_id", delivery.Event.ID).Int("attempts", attempts).Msg("webhook delivered")
}

func (d *Dispatcher) attempt(ctx context.Context, event Event, targetURL string, body, signature []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, targetURL, bytes.NewReader(body))
	if err != nil {
		return 0, model.Wrap(model.KindInvalidArgument, err, "build webhook request for %s", targetURL)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Signature", "sha256="+hex.EncodeToString(signature))
	req.Header.Set("X-Event-Id", event.ID)
	req.Header.Set("X-Timestamp", strconv.FormatInt(time.Now().Unix(), 10))

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, model.Wrap(model.KindConnectError, err, "deliver webhook to %s", targetURL)
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}

// sign computes the HMAC-SHA256 signature of body under secret.
func sign(secret string, body []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return mac.Sum(nil)
}

// maxTimestampSkew bounds how far X-Timestamp may drift from the
// verifier's clock before a signature is rejected outright, per spec.md
// §4.13's replay-protection requirement.
const maxTimestampSkew = 5 * time.Minute

// Verify reports whether signatureHex (hex-encoded, no "sha256=" prefix)
// is the valid HMAC-SHA256 signature of body under secret, and that
// timestampUnix (the X-Timestamp header value) falls within
// maxTimestampSkew of now — exposed so a subscriber-side handler (or a
// test of this package's own delivery path) can check authenticity using
// the same constant-time comparison.
func Verify(secret string, body []byte, signatureHex string, timestampUnix int64) bool {
	skew := time.Since(time.Unix(timestampUnix, 0))
	if skew < 0 {
		skew = -skew
	}
	if skew > maxTimestampSkew {
		return false
	}
	expected := sign(secret, body)
	given, err := hex.DecodeString(signatureHex)
	if err != nil {
		return false
	}
	return hmac.Equal(expected, given)
}

// DeadLetters returns every delivery that exhausted its retry budget.
func (d *Dispatcher) DeadLetters() []Delivery {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Delivery, len(d.deadLetters))
	copy(out, d.deadLetters)
	return out
}

func (d *Dispatcher) appendJSONLine(path string, v any) error {
	if path == "" {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(append(data, '\n'))
	return err
}

func errOrStatus(err error, status int) string {
	if err != nil {
		return err.Error()
	}
	return fmt.Sprintf("HTTP %d", status)
}
