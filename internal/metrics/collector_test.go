package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollectorRecords(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector("conductor", reg)

	c.RecordTurn(false, 120*time.Millisecond)
	c.RecordTurn(true, 80*time.Millisecond)
	c.RecordAction("query_agent", false)
	c.RecordParseError()
	c.RecordRPC("message/send", false)
	c.RecordTaskWait(time.Second)
	c.RecordModelCall(false, 512)

	assert.Equal(t, float64(1), testutil.ToFloat64(c.turnsTotal.WithLabelValues("ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.turnsTotal.WithLabelValues("error")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.actionsTotal.WithLabelValues("query_agent", "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.parseErrors))
	assert.Equal(t, float64(512), testutil.ToFloat64(c.modelTokens))
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *Collector
	c.RecordTurn(false, time.Second)
	c.RecordAction("x", true)
	c.RecordParseError()
	c.RecordRPC("tasks/get", true)
	c.RecordTaskWait(time.Second)
	c.RecordModelCall(true, 0)
}
