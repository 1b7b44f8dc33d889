package metrics

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordFetchUpdatesCounters(t *testing.T) {
	before := testutilCount(FetchRequestsTotal.WithLabelValues("example.com", "ok"))
	RecordFetch("example.com", "ok", 50*time.Millisecond, 1024)
	after := testutilCount(FetchRequestsTotal.WithLabelValues("example.com", "ok"))
	assert.Equal(t, before+1, after)
}

func TestRecordCacheLabelsHitAndMiss(t *testing.T) {
	beforeHit := testutilCount(CacheRequestsTotal.WithLabelValues("l1", "hit"))
	RecordCache("l1", true)
	assert.Equal(t, beforeHit+1, testutilCount(CacheRequestsTotal.WithLabelValues("l1", "hit")))

	beforeMiss := testutilCount(CacheRequestsTotal.WithLabelValues("l2", "miss"))
	RecordCache("l2", false)
	assert.Equal(t, beforeMiss+1, testutilCount(CacheRequestsTotal.WithLabelValues("l2", "miss")))
}

func TestServerServesMetricsAndHealthz(t *testing.T) {
	s := Start("127.0.0.1:19191")
	defer s.Stop(context.Background())
	time.Sleep(50 * time.Millisecond)

	resp, err := http.Get("http://127.0.0.1:19191/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp2, err := http.Get("http://127.0.0.1:19191/metrics")
	require.NoError(t, err)
	defer resp2.Body.Close()
	body, err := io.ReadAll(resp2.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "quaero_fetch_requests_total")
}

func TestServerStopIsGraceful(t *testing.T) {
	s := Start("127.0.0.1:19192")
	err := s.Stop(context.Background())
	assert.NoError(t, err)
}

// testutilCount reads the current value of a counter without pulling in
// the prometheus/client_golang/prometheus/testutil package, since only
// one sample is needed here.
func testutilCount(c prometheus.Counter) float64 {
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		panic(fmt.Sprintf("write metric: %v", err))
	}
	return m.GetCounter().GetValue()
}
