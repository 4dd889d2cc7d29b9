// Package metrics exposes Prometheus collectors for uploads, rows and
// SMS dispatch.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JonMunkholm/outreach/internal/core"
	"github.com/JonMunkholm/outreach/internal/dispatch"
)

// OutreachMetrics implements core.Observer and dispatch.Observer.
type OutreachMetrics struct {
	uploadsTotal   *prometheus.CounterVec
	uploadDuration *prometheus.HistogramVec
	rowsTotal      *prometheus.CounterVec
	dispatchTotal  *prometheus.CounterVec
}

var (
	_ core.Observer     = (*OutreachMetrics)(nil)
	_ dispatch.Observer = (*OutreachMetrics)(nil)
)

// NewOutreachMetrics registers the collectors on reg, or the default
// registerer when reg is nil.
func NewOutreachMetrics(reg prometheus.Registerer) *OutreachMetrics {
	m := &OutreachMetrics{
		uploadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "outreach",
			Subsystem: "upload",
			Name:      "processed_total",
			Help:      "Processed uploads by outcome",
		}, []string{"status"}),
		uploadDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "outreach",
			Subsystem: "upload",
			Name:      "duration_seconds",
			Help:      "Time spent processing an upload",
			Buckets:   prometheus.DefBuckets,
		}, []string{"status"}),
		rowsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "outreach",
			Subsystem: "upload",
			Name:      "rows_total",
			Help:      "Rows seen in uploads by outcome",
		}, []string{"outcome"}),
		dispatchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "outreach",
			Subsystem: "sms",
			Name:      "dispatch_total",
			Help:      "SMS dispatch attempts by result",
		}, []string{"result"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.uploadsTotal, m.uploadDuration, m.rowsTotal, m.dispatchTotal)
	return m
}

func (m *OutreachMetrics) ObserveUpload(status core.Status, duration time.Duration) {
	if m == nil {
		return
	}
	m.uploadsTotal.WithLabelValues(string(status)).Inc()
	m.uploadDuration.WithLabelValues(string(status)).Observe(duration.Seconds())
}

func (m *OutreachMetrics) ObserveRows(contacts, skipped, warnings int) {
	if m == nil {
		return
	}
	m.rowsTotal.WithLabelValues("contact").Add(float64(contacts))
	m.rowsTotal.WithLabelValues("skipped").Add(float64(skipped))
	m.rowsTotal.WithLabelValues("warning").Add(float64(warnings))
}

func (m *OutreachMetrics) ObserveDispatch(success bool) {
	if m == nil {
		return
	}
	result := "failed"
	if success {
		result = "sent"
	}
	m.dispatchTotal.WithLabelValues(result).Inc()
}
