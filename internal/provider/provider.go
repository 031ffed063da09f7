// Package provider lists proposals in voting period and resolves the monitored
// validator's vote, one implementation per network family.
package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gov-monitoring/internal/config"
	"gov-monitoring/internal/endpoint"
	"gov-monitoring/internal/logger"
	"gov-monitoring/internal/metrics"
	"gov-monitoring/internal/proposal"
)

// Provider answers governance questions for one network.
type Provider interface {
	Network() config.NetworkDescriptor
	// ListProposals returns proposals in voting period. Endpoint failures are
	// handled internally; an error means every source was exhausted.
	ListProposals(ctx context.Context) ([]proposal.Proposal, error)
	// HasVoted reports whether the validator voted on proposal id. An error means
	// no source gave a conclusive answer.
	HasVoted(ctx context.Context, id uint64) (bool, error)
}

// Fetcher is the part of endpoint.Client providers depend on.
type Fetcher interface {
	FetchJSON(ctx context.Context, baseURL, path string, timeout time.Duration) (any, error)
}

// Options carries per-family request timeouts.
type Options struct {
	RequestTimeout time.Duration
	NamadaTimeout  time.Duration
}

// New returns the provider matching d.Family.
func New(d config.NetworkDescriptor, f Fetcher, opts Options, log logger.Logger, m *metrics.Metrics) (Provider, error) {
	log = log.With("network", d.Name)
	switch d.Family {
	case config.FamilyStandard:
		return newCosmosProvider(d, f, opts.RequestTimeout, log, m)
	case config.FamilyNamada:
		timeout := opts.NamadaTimeout
		if timeout <= 0 {
			timeout = config.DefaultNamadaTimeout
		}
		return newNamadaProvider(d, f, timeout, log, m), nil
	default:
		return nil, fmt.Errorf("network %s: unsupported family %q", d.Name, d.Family)
	}
}

// listing outcome labels
const (
	resultOK        = "ok"
	resultEmpty     = "empty"
	resultExhausted = "exhausted"
)

// listOutcome converts the result of a listing walk into the provider contract:
// a walk that saw at least one well-formed empty listing is an empty result, not a failure.
func listOutcome(network string, props []proposal.Proposal, err error, log logger.Logger, m *metrics.Metrics) ([]proposal.Proposal, error) {
	switch {
	case err == nil:
		m.Listing(network, resultOK, len(props))
		log.Info("proposals in voting period", "count", len(props))
		return props, nil
	case endpoint.KindOf(err) == endpoint.AllSourcesExhausted && errors.Is(err, endpoint.ErrEmptyResult):
		m.Listing(network, resultEmpty, 0)
		log.Info("no proposals in voting period")
		return nil, nil
	default:
		m.Listing(network, resultExhausted, 0)
		return nil, err
	}
}
