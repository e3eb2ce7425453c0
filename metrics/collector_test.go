package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector("test", reg)

	c.RecordConnect(nil)
	c.RecordConnect(errors.New("dial failed"))
	require.Equal(t, 1.0, testutil.ToFloat64(c.connectsTotal.WithLabelValues("ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(c.connectsTotal.WithLabelValues("failed")))
	require.Equal(t, 1.0, testutil.ToFloat64(c.activeSessions))

	c.RecordDisconnect()
	require.Equal(t, 0.0, testutil.ToFloat64(c.activeSessions))

	c.RecordEvent("conversation.updated")
	c.RecordEvent("conversation.updated")
	require.Equal(t, 2.0, testutil.ToFloat64(c.eventsReceived.WithLabelValues("conversation.updated")))

	c.RecordDecodeFailure("")
	require.Equal(t, 1.0, testutil.ToFloat64(c.decodeFailures.WithLabelValues("unknown")))

	c.RecordToolCall("check_routes", "success", 20*time.Millisecond)
	c.RecordToolCall("check_routes", "error", time.Millisecond)
	require.Equal(t, 1.0, testutil.ToFloat64(c.toolCallsTotal.WithLabelValues("check_routes", "success")))
	require.Equal(t, 1, testutil.CollectAndCount(c.toolCallDuration))

	c.RecordAudioChunk(true)
	c.RecordAudioChunk(false)
	c.RecordAudioChunk(false)
	require.Equal(t, 2.0, testutil.ToFloat64(c.audioChunks.WithLabelValues("dropped")))

	c.RecordInterrupt()
	require.Equal(t, 1.0, testutil.ToFloat64(c.interrupts))
}

func TestCollector_Nil(t *testing.T) {
	var c *Collector
	require.NotPanics(t, func() {
		c.RecordConnect(nil)
		c.RecordDisconnect()
		c.RecordEvent("error")
		c.RecordDecodeFailure("x")
		c.RecordToolCall("x", "success", time.Second)
		c.RecordAudioChunk(true)
		c.RecordInterrupt()
	})
}
