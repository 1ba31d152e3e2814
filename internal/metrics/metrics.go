package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FlipsCreated counts status-transition events by reason.
	FlipsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pulsewatch_flips_created_total",
		Help: "Number of status flips created, by reason",
	}, []string{"reason"})

	// Notifications counts delivery attempts by channel kind and outcome.
	Notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pulsewatch_notifications_total",
		Help: "Number of notification attempts, by channel kind and outcome",
	}, []string{"kind", "outcome"})

	// NotifySeconds observes transport call latency by channel kind.
	NotifySeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pulsewatch_notify_seconds",
		Help:    "Transport call duration in seconds, by channel kind",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})

	// DownChecks tracks the number of checks currently down.
	DownChecks = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pulsewatch_down_checks",
		Help: "Number of checks currently in the down state",
	})

	// PingsReceived counts ingested pings by kind.
	PingsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pulsewatch_pings_received_total",
		Help: "Number of pings recorded, by kind",
	}, []string{"kind"})
)
