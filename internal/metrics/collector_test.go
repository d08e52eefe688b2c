package metrics

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

var collectorNamespaceSeq uint64

func nextTestNamespace() string {
	seq := atomic.AddUint64(&collectorNamespaceSeq, 1)
	return fmt.Sprintf("test_%d", seq)
}

func TestNewCollector(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	assert.NotNil(t, collector)
	assert.NotNil(t, collector.httpRequestsTotal)
	assert.NotNil(t, collector.iterationsTotal)
	assert.NotNil(t, collector.personaCallsTotal)
	assert.NotNil(t, collector.ragQueriesTotal)
	assert.NotNil(t, collector.writebacksTotal)
}

func TestCollector_RecordIteration(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordIteration("sequential", "active", 200*time.Millisecond)
	collector.RecordIteration("parallel", "completed", time.Second)

	count := testutil.CollectAndCount(collector.iterationsTotal)
	assert.Equal(t, 2, count)
}

func TestCollector_RecordPersonaCall(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordPersonaCall("ok", 100*time.Millisecond)
	collector.RecordPersonaCall("sentinel", 60*time.Second)

	count := testutil.CollectAndCount(collector.personaCallsTotal)
	assert.Equal(t, 2, count)
}

func TestCollector_NilSafe(t *testing.T) {
	var collector *Collector

	assert.NotPanics(t, func() {
		collector.RecordHTTPRequest("GET", "/test", 200, time.Millisecond)
		collector.RecordIteration("debate", "active", time.Second)
		collector.RecordPersonaCall("ok", time.Millisecond)
		collector.RecordRAGQuery("degraded")
		collector.RecordWriteback("dropped")
		collector.SetWritebackDepth(3)
	})
}

func TestStatusCode(t *testing.T) {
	assert.Equal(t, "2xx", statusCode(200))
	assert.Equal(t, "3xx", statusCode(301))
	assert.Equal(t, "4xx", statusCode(404))
	assert.Equal(t, "5xx", statusCode(502))
	assert.Equal(t, "unknown", statusCode(0))
}
