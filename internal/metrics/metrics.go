package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	launches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "devserver",
			Subsystem: "setup",
			Name:      "launches_total",
			Help:      "Number of server launch attempts, by outcome (ready, skipped, failed).",
		}, []string{"name", "outcome"},
	)
	conflicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "devserver",
			Subsystem: "setup",
			Name:      "port_conflicts_total",
			Help:      "Number of occupied-port conflicts resolved, by policy.",
		}, []string{"policy"},
	)
	readinessWait = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "devserver",
			Subsystem: "setup",
			Name:      "readiness_wait_seconds",
			Help:      "Time spent waiting for a server to become reachable.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"name"},
	)
	teardownKills = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "devserver",
			Subsystem: "teardown",
			Name:      "kills_total",
			Help:      "Number of process-tree terminations performed at teardown.",
		}, []string{"name"},
	)
	managedProcesses = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "devserver",
			Subsystem: "setup",
			Name:      "managed_processes",
			Help:      "Currently tracked managed processes.",
		},
	)
)

// Register registers all metrics with the provided registerer.
// Safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{launches, conflicts, readinessWait, teardownKills, managedProcesses}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler returns an http.Handler serving metrics from the default gatherer.
func Handler() http.Handler { return promhttp.Handler() }

// Helpers used by internal packages; no-ops until Register has been called.

func IncLaunch(name, outcome string) {
	if regOK.Load() {
		launches.WithLabelValues(name, outcome).Inc()
	}
}

func IncConflict(policy string) {
	if regOK.Load() {
		conflicts.WithLabelValues(policy).Inc()
	}
}

func ObserveReadinessWait(name string, seconds float64) {
	if regOK.Load() {
		readinessWait.WithLabelValues(name).Observe(seconds)
	}
}

func IncTeardownKill(name string) {
	if regOK.Load() {
		teardownKills.WithLabelValues(name).Inc()
	}
}

func SetManagedProcesses(n int) {
	if regOK.Load() {
		managedProcesses.Set(float64(n))
	}
}
