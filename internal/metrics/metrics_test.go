package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRegistry_IncAccumulatesPerName(t *testing.T) {
	r := New()

	r.Inc(ItemsProcessedTotal, 3)
	r.Inc(ItemsProcessedTotal, 2)
	r.Inc(ItemsDroppedTotal, 1)

	assert.Equal(t, 5.0, r.Counter(ItemsProcessedTotal))
	assert.Equal(t, 1.0, r.Counter(ItemsDroppedTotal))
	assert.Equal(t, 0.0, r.Counter(CooldownQueueDepth))
}

func TestRegistry_ObserveRecordsHistogramSamples(t *testing.T) {
	r := New()

	r.Observe(BatchFlushDuration, 10*time.Millisecond)
	r.Observe(BatchFlushDuration, 20*time.Millisecond)

	assert.Equal(t, 2, r.HistogramCount(BatchFlushDuration))
	assert.Equal(t, 0, r.HistogramCount(HostRequestTotal))
}

func TestRegistry_HandlerExposesPrometheusFormat(t *testing.T) {
	r := New()
	r.Inc(ItemsProcessedTotal, 1)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "tracklift_pipeline_events_total")
}

func TestNewServer_StartAsyncAndStop(t *testing.T) {
	r := New()
	srv := NewServer("127.0.0.1:0", r)

	srv.StartAsync()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	assert.NoError(t, srv.Stop(ctx))
}
