// Package metrics exposes prometheus metrics of realtime sessions.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector records session metrics. A nil *Collector is valid and records
// nothing.
type Collector struct {
	// connection
	connectsTotal  *prometheus.CounterVec
	activeSessions prometheus.Gauge

	// inbound events
	eventsReceived *prometheus.CounterVec
	decodeFailures *prometheus.CounterVec

	// tools
	toolCallsTotal   *prometheus.CounterVec
	toolCallDuration *prometheus.HistogramVec

	// playback
	audioChunks *prometheus.CounterVec
	interrupts  prometheus.Counter
}

// NewCollector registers the collector's metrics with reg. A nil reg uses
// the default registerer.
func NewCollector(namespace string, reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	c := &Collector{}

	c.connectsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connects_total",
			Help:      "Total number of connection attempts",
		},
		[]string{"result"}, // result: ok, failed
	)

	c.activeSessions = f.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of connected sessions",
		},
	)

	c.eventsReceived = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_received_total",
			Help:      "Total number of normalized inbound events",
		},
		[]string{"kind"},
	)

	c.decodeFailures = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_failures_total",
			Help:      "Total number of inbound messages that could not be decoded",
		},
		[]string{"type"},
	)

	c.toolCallsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Total number of answered tool calls",
		},
		[]string{"tool", "outcome"},
	)

	c.toolCallDuration = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tool_call_duration_seconds",
			Help:      "Tool handler duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"tool"},
	)

	c.audioChunks = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_chunks_total",
			Help:      "Total number of assistant audio chunks",
		},
		[]string{"result"}, // result: forwarded, dropped
	)

	c.interrupts = f.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "interrupts_total",
			Help:      "Total number of playback interruptions",
		},
	)

	return c
}

func (c *Collector) RecordConnect(err error) {
	if c == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "failed"
	} else {
		c.activeSessions.Inc()
	}
	c.connectsTotal.WithLabelValues(result).Inc()
}

func (c *Collector) RecordDisconnect() {
	if c == nil {
		return
	}
	c.activeSessions.Dec()
}

func (c *Collector) RecordEvent(kind string) {
	if c == nil {
		return
	}
	c.eventsReceived.WithLabelValues(kind).Inc()
}

func (c *Collector) RecordDecodeFailure(typ string) {
	if c == nil {
		return
	}
	if typ == "" {
		typ = "unknown"
	}
	c.decodeFailures.WithLabelValues(typ).Inc()
}

func (c *Collector) RecordToolCall(name, outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.toolCallsTotal.WithLabelValues(name, outcome).Inc()
	c.toolCallDuration.WithLabelValues(name).Observe(d.Seconds())
}

// RecordAudioChunk counts a chunk that was either forwarded to the sink or
// dropped for carrying a stale track.
func (c *Collector) RecordAudioChunk(forwarded bool) {
	if c == nil {
		return
	}
	result := "forwarded"
	if !forwarded {
		result = "dropped"
	}
	c.audioChunks.WithLabelValues(result).Inc()
}

func (c *Collector) RecordInterrupt() {
	if c == nil {
		return
	}
	c.interrupts.Inc()
}
