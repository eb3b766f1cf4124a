package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveRequestAndScrape(t *testing.T) {
	m := New()
	m.ObserveRequest("sum", "200", 12*time.Millisecond)
	m.CacheHit()
	m.CacheMiss()
	m.SetQueueDepth(3)
	m.InFlightInc()
	m.InFlightDec()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	m.Handler().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "reductionist_requests_total")
	assert.Contains(t, body, "reductionist_cache_hits_total")
	assert.Contains(t, body, "reductionist_cache_queue_depth 3")
}

func TestCacheWriteDroppedIncrements(t *testing.T) {
	m := New()
	m.CacheWriteDropped()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Contains(t, rec.Body.String(), "reductionist_cache_writes_dropped_total 1")
}
