// Package metrics holds the prometheus collectors updated during a monitor run.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "govmon"

// Metrics groups the run collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	EndpointRequests *prometheus.CounterVec
	ListingResults   *prometheus.CounterVec
	ProposalsListed  *prometheus.CounterVec
	VoteChecks       *prometheus.CounterVec
	ProposalsStored  *prometheus.CounterVec
	RunDuration      prometheus.Gauge
	LastRunTimestamp prometheus.Gauge
}

// New creates the collectors and registers them on a dedicated registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		EndpointRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "endpoint_requests_total", Help: "Outbound JSON requests by outcome"},
			[]string{"outcome"},
		),
		ListingResults: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "listing_results_total", Help: "Proposal listing results per network"},
			[]string{"network", "result"},
		),
		ProposalsListed: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "proposals_listed_total", Help: "Proposals in voting period per network"},
			[]string{"network"},
		),
		VoteChecks: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "vote_checks_total", Help: "Vote resolution outcomes per network"},
			[]string{"network", "result"},
		),
		ProposalsStored: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "proposals_stored_total", Help: "Persistence outcomes per network"},
			[]string{"network", "result"},
		),
		RunDuration: prometheus.NewGauge(
			prometheus.GaugeOpts{Namespace: namespace, Name: "run_duration_seconds", Help: "Duration of the last run"},
		),
		LastRunTimestamp: prometheus.NewGauge(
			prometheus.GaugeOpts{Namespace: namespace, Name: "last_run_timestamp_seconds", Help: "Unix time the last run finished"},
		),
	}
	m.registry.MustRegister(
		m.EndpointRequests,
		m.ListingResults,
		m.ProposalsListed,
		m.VoteChecks,
		m.ProposalsStored,
		m.RunDuration,
		m.LastRunTimestamp,
	)
	return m
}

// Registry exposes the registry backing these collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) Request(outcome string) {
	if m == nil {
		return
	}
	m.EndpointRequests.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Listing(network, result string, proposals int) {
	if m == nil {
		return
	}
	m.ListingResults.WithLabelValues(network, result).Inc()
	if proposals > 0 {
		m.ProposalsListed.WithLabelValues(network).Add(float64(proposals))
	}
}

func (m *Metrics) Vote(network, result string) {
	if m == nil {
		return
	}
	m.VoteChecks.WithLabelValues(network, result).Inc()
}

func (m *Metrics) Stored(network, result string) {
	if m == nil {
		return
	}
	m.ProposalsStored.WithLabelValues(network, result).Inc()
}

// RunFinished records the duration of a completed run.
func (m *Metrics) RunFinished(started, finished time.Time) {
	if m == nil {
		return
	}
	m.RunDuration.Set(finished.Sub(started).Seconds())
	m.LastRunTimestamp.Set(float64(finished.Unix()))
}

// Push sends the registry to a Pushgateway. The monitor is a batch job,
// so nothing scrapes it directly.
func (m *Metrics) Push(ctx context.Context, gatewayURL, job string) error {
	if m == nil || gatewayURL == "" {
		return nil
	}
	if err := push.New(gatewayURL, job).Gatherer(m.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
