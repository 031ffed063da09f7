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

// listing versions in the order they are tried on each endpoint
var cosmosListVersions = []string{string(proposal.V1Beta1), string(proposal.V1)}

// cosmosProvider serves Cosmos-SDK chains through their LCD endpoints.
type cosmosProvider struct {
	desc    config.NetworkDescriptor
	voter   string
	fetch   Fetcher
	timeout time.Duration
	log     logger.Logger
	metrics *metrics.Metrics
}

func newCosmosProvider(d config.NetworkDescriptor, f Fetcher, timeout time.Duration, log logger.Logger, m *metrics.Metrics) (*cosmosProvider, error) {
	voter, err := AccountAddress(d.Validator, d.Bech32Prefix)
	if err != nil {
		return nil, fmt.Errorf("network %s: %w", d.Name, err)
	}
	if d.GovPrefix == "" {
		d.GovPrefix = config.DefaultGovPrefix
	}
	return &cosmosProvider{desc: d, voter: voter, fetch: f, timeout: timeout, log: log, metrics: m}, nil
}

func (p *cosmosProvider) Network() config.NetworkDescriptor { return p.desc }

// Voter is the account address whose votes are queried.
func (p *cosmosProvider) Voter() string { return p.voter }

func (p *cosmosProvider) ListProposals(ctx context.Context) ([]proposal.Proposal, error) {
	candidates := endpoint.Expand(p.desc.Endpoints, cosmosListVersions...)
	props, _, err := endpoint.FirstConclusive(ctx, candidates, p.listAt, func(c endpoint.Candidate, err error) {
		if errors.Is(err, endpoint.ErrEmptyResult) {
			p.log.Debug("empty proposal listing", "endpoint", c.BaseURL, "api", c.Version)
			return
		}
		p.log.Info("proposal listing failed, trying next source", "endpoint", c.BaseURL, "api", c.Version, "err", err)
	})
	return listOutcome(p.desc.Name, props, err, p.log, p.metrics)
}

func (p *cosmosProvider) listAt(ctx context.Context, c endpoint.Candidate) ([]proposal.Proposal, error) {
	path := fmt.Sprintf("/%s/gov/%s/proposals?proposal_status=2&pagination.limit=100", p.desc.GovPrefix, c.Version)
	doc, err := p.fetch.FetchJSON(ctx, c.BaseURL, path, p.timeout)
	if err != nil {
		return nil, err
	}
	obj, ok := doc.(map[string]any)
	if !ok {
		return nil, &endpoint.Failure{Kind: endpoint.MalformedResponse, URL: c.BaseURL, Cause: fmt.Errorf("expected object, got %T", doc)}
	}
	// gRPC gateway errors come back as {"code": ..., "message": ...}
	if _, hasCode := obj["code"]; hasCode {
		return nil, &endpoint.Failure{Kind: endpoint.HTTPError, URL: c.BaseURL, Body: obj, Cause: fmt.Errorf("gateway error: %v", obj["message"])}
	}
	raw, ok := obj["proposals"].([]any)
	if !ok {
		return nil, &endpoint.Failure{Kind: endpoint.MalformedResponse, URL: c.BaseURL, Cause: errors.New("missing proposals array")}
	}

	out := make([]proposal.Proposal, 0, len(raw))
	for _, r := range raw {
		entry, ok := r.(map[string]any)
		if !ok || !proposal.InVotingPeriod(entry) {
			continue
		}
		prop, err := proposal.ParseCosmos(entry, proposal.APIVersion(c.Version), p.desc.Name)
		if err != nil {
			p.log.Error("skipping unparseable proposal", "endpoint", c.BaseURL, "api", c.Version, "err", err)
			continue
		}
		out = append(out, prop)
	}
	if len(out) == 0 {
		return nil, endpoint.ErrEmptyResult
	}
	return out, nil
}

// HasVoted queries the v1beta1 vote endpoint. A gateway error document (one with a
// "code" field) means the vote does not exist; any other object means it does.
func (p *cosmosProvider) HasVoted(ctx context.Context, id uint64) (bool, error) {
	path := fmt.Sprintf("/%s/gov/v1beta1/proposals/%d/votes/%s", p.desc.GovPrefix, id, p.voter)
	voted, c, err := endpoint.FirstConclusive(ctx, endpoint.Expand(p.desc.Endpoints),
		func(ctx context.Context, c endpoint.Candidate) (bool, error) {
			doc, err := p.fetch.FetchJSON(ctx, c.BaseURL, path, p.timeout)
			if err != nil {
				var f *endpoint.Failure
				if errors.As(err, &f) && f.Kind == endpoint.HTTPError && hasCode(f.Body) {
					return false, nil
				}
				return false, err
			}
			obj, ok := doc.(map[string]any)
			if !ok {
				return false, &endpoint.Failure{Kind: endpoint.MalformedResponse, URL: c.BaseURL, Cause: fmt.Errorf("expected object, got %T", doc)}
			}
			return !hasCode(obj), nil
		},
		func(c endpoint.Candidate, err error) {
			p.log.Info("vote check failed, trying next endpoint", "proposal", id, "endpoint", c.BaseURL, "err", err)
		},
	)
	if err != nil {
		return false, err
	}
	p.log.Debug("vote resolved", "proposal", id, "voted", voted, "endpoint", c.BaseURL)
	return voted, nil
}

func hasCode(body any) bool {
	obj, ok := body.(map[string]any)
	if !ok {
		return false
	}
	_, ok = obj["code"]
	return ok
}
