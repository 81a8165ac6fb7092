package collision

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAppMetricsThroughput(t *testing.T) {
	t.Parallel()

	var m AppMetrics
	m.RecordTick(4, 0.2, 10*time.Millisecond)
	m.RecordTick(8, 0.9, 12*time.Millisecond)

	assert.Equal(t, 2, m.Ticks)
	assert.Equal(t, 12, m.PairsChecked)
	assert.Equal(t, 6.0, m.Throughput())
	assert.Equal(t, 22*time.Millisecond, m.TotalProcessingTime)
}

func TestTopRiskEmptyCollisionMap(t *testing.T) {
	t.Parallel()

	e := New(DefaultScale)
	assert.Equal(t, 0.0, TopRisk(e))
}
