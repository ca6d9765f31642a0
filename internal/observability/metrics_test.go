package observability

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics()

	m.RecordRequest("/tickets", "POST", 201, 10*time.Millisecond)
	m.RecordTransition("CALLED")
	m.RecordTransition("CALLED")
	m.RecordBroadcast("hub", nil)
	m.RecordBroadcast("redis", errors.New("down"))
	m.RecordBroadcastDropped("buffer_full")
	m.AddStreamSubscribers(2)
	m.AddStreamSubscribers(-1)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestCount.WithLabelValues("/tickets", "POST", "201")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.transitionCount.WithLabelValues("CALLED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.broadcastCount.WithLabelValues("redis", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.broadcastDropped.WithLabelValues("buffer_full")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.streamSubscribers))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordRequest("/", "GET", 200, time.Second)
		m.RecordError("/", "GET", "X")
		m.RecordTransition("CREATED")
		m.RecordBroadcast("hub", nil)
		m.RecordBroadcastDropped("closed")
		m.AddStreamSubscribers(1)
	})
	assert.Nil(t, m.Registry())
}
