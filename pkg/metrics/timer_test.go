package metrics

import (
	"testing"
	"time"

	"github.com/cuemby/groupsync/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestTimerDuration(t *testing.T) {
	timer := NewTimer()
	time.Sleep(20 * time.Millisecond)

	first := timer.Duration()
	assert.GreaterOrEqual(t, first, 20*time.Millisecond)

	time.Sleep(5 * time.Millisecond)
	assert.Greater(t, timer.Duration(), first)
}

func TestTimerObserveDuration(t *testing.T) {
	histogram := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "test_step_seconds",
		Help:    "Test step histogram",
		Buckets: prometheus.DefBuckets,
	})

	NewTimer().ObserveDuration(histogram)
	assert.Equal(t, 1, testutil.CollectAndCount(histogram))
}

func TestTimerObserveDurationVec(t *testing.T) {
	vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "test_step_vec_seconds",
		Help:    "Test step histogram vec",
		Buckets: prometheus.DefBuckets,
	}, []string{"handler"})

	timer := NewTimer()
	timer.ObserveDurationVec(vec, "fetch-remote")
	timer.ObserveDurationVec(vec, "add")

	assert.Equal(t, 2, testutil.CollectAndCount(vec))
}

func TestObserveStats(t *testing.T) {
	ObserveStats(types.Stats{
		"staff@x.com": {RemoteCount: 2, LocalCount: 5},
	})

	assert.Equal(t, float64(2), testutil.ToFloat64(GroupMembers.WithLabelValues("staff@x.com", "remote")))
	assert.Equal(t, float64(5), testutil.ToFloat64(GroupMembers.WithLabelValues("staff@x.com", "local")))
}
