// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package storeserver

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the daemon's Prometheus collectors.
type Metrics struct {
	Requests          *prometheus.CounterVec
	FieldsChanged     prometheus.Counter
	FramesSent        *prometheus.CounterVec
	ActiveStreams     *prometheus.GaugeVec
	ConnectedContexts prometheus.Gauge
	OrphansReleased   prometheus.Counter
}

// NewMetrics registers the collectors with registerer.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "canopy_requests_total",
			Help: "Socket requests handled, by action and outcome",
		}, []string{"action", "outcome"}),
		FieldsChanged: factory.NewCounter(prometheus.CounterOpts{
			Name: "canopy_fields_changed_total",
			Help: "Fields whose value changed through accepted writes",
		}),
		FramesSent: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "canopy_stream_frames_sent_total",
			Help: "Frames written on stream connections, by frame type",
		}, []string{"type"}),
		ActiveStreams: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "canopy_active_streams",
			Help: "Open stream connections, by action",
		}, []string{"action"}),
		ConnectedContexts: factory.NewGauge(prometheus.GaugeOpts{
			Name: "canopy_connected_contexts",
			Help: "Contexts with at least one open sentinel channel",
		}),
		OrphansReleased: factory.NewCounter(prometheus.CounterOpts{
			Name: "canopy_orphan_subscriptions_released_total",
			Help: "Subscriptions released because their context's sentinel channel ended",
		}),
	}
}

func (m *Metrics) request(action string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.Requests.WithLabelValues(action, outcome).Inc()
}

func (m *Metrics) frame(frameType string) {
	if m == nil {
		return
	}
	m.FramesSent.WithLabelValues(frameType).Inc()
}

func (m *Metrics) streamOpened(action string) {
	if m == nil {
		return
	}
	m.ActiveStreams.WithLabelValues(action).Inc()
}

func (m *Metrics) streamClosed(action string) {
	if m == nil {
		return
	}
	m.ActiveStreams.WithLabelValues(action).Dec()
}

func (m *Metrics) changed(count int) {
	if m == nil {
		return
	}
	m.FieldsChanged.Add(float64(count))
}

func (m *Metrics) contexts(count int) {
	if m == nil {
		return
	}
	m.ConnectedContexts.Set(float64(count))
}

func (m *Metrics) orphans(count int) {
	if m == nil {
		return
	}
	m.OrphansReleased.Add(float64(count))
}
