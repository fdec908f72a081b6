package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
)

func newTestRegistry() *Registry {
	return NewRegistry(prometheus.NewRegistry())
}

func TestRecordRequest_AccumulatesCountAndLatency(t *testing.T) {
	r := newTestRegistry()
	r.RecordRequest("ingest", 0.1)
	r.RecordRequest("ingest", 0.3)

	snap := r.JSON()
	assert.Equal(t, int64(2), snap.Requests["ingest"])
	assert.InDelta(t, 0.2, snap.AvgLatencySeconds["ingest"], 1e-9)
}

func TestRecordFailure_IncrementsFailureCount(t *testing.T) {
	r := newTestRegistry()
	r.RecordFailure("ingest", "StoreFailure")
	r.RecordFailure("ingest", "StoreFailure")

	snap := r.JSON()
	assert.Equal(t, int64(2), snap.Failures["ingest"])
}

func TestSetGauge_RecordsDerivedValue(t *testing.T) {
	r := newTestRegistry()
	r.SetGauge("reuse_ratio_nodes:default", 0.42)

	snap := r.JSON()
	assert.InDelta(t, 0.42, snap.Gauges["reuse_ratio_nodes:default"], 1e-9)
}

func TestJSON_OmitsLatencyAverageWhenNoRequests(t *testing.T) {
	r := newTestRegistry()
	snap := r.JSON()
	_, ok := snap.AvgLatencySeconds["ingest"]
	assert.False(t, ok)
}
