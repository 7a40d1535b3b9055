package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIncCounter_UnregisteredIsNoop(t *testing.T) {
	m := &Metric{Name: "x", Type: "counter_vec", Args: []string{"a"}}
	assert.NotPanics(t, func() { IncCounter(m, "v") })
	assert.NotPanics(t, func() { ObserveSince("t", "s", time.Now()) })
}

func TestIncCounter_Registered(t *testing.T) {
	m := &Metric{Name: "test_transitions_total", Type: "counter_vec", Args: []string{"entity", "to"}}
	c := NewMetric(m, "test")
	m.MetricCollector = c

	IncCounter(m, "visit", "confirmed")
	IncCounter(m, "visit", "confirmed")

	cv, ok := c.(*prometheus.CounterVec)
	require.True(t, ok)
	assert.Equal(t, float64(2), testutil.ToFloat64(cv.WithLabelValues("visit", "confirmed")))
}
