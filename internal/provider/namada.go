package provider

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"gov-monitoring/internal/config"
	"gov-monitoring/internal/endpoint"
	"gov-monitoring/internal/logger"
	"gov-monitoring/internal/metrics"
	"gov-monitoring/internal/proposal"
)

const namadaListPath = "/api/v1/gov/proposal?status=votingPeriod"

// namadaProvider serves Namada through indexer REST APIs. Namada has no x/gov module.
type namadaProvider struct {
	desc    config.NetworkDescriptor
	fetch   Fetcher
	timeout time.Duration
	log     logger.Logger
	metrics *metrics.Metrics
}

func newNamadaProvider(d config.NetworkDescriptor, f Fetcher, timeout time.Duration, log logger.Logger, m *metrics.Metrics) *namadaProvider {
	return &namadaProvider{desc: d, fetch: f, timeout: timeout, log: log, metrics: m}
}

func (p *namadaProvider) Network() config.NetworkDescriptor { return p.desc }

// ListProposals lists proposals and resolves the validator's vote on each of them.
// Proposals whose vote could not be resolved keep VoteResolved false.
func (p *namadaProvider) ListProposals(ctx context.Context) ([]proposal.Proposal, error) {
	props, _, err := endpoint.FirstConclusive(ctx, endpoint.Expand(p.desc.Endpoints), p.listAt,
		func(c endpoint.Candidate, err error) {
			p.log.Info("indexer listing failed, trying next indexer", "indexer", c.BaseURL, "err", err)
		})
	props, err = listOutcome(p.desc.Name, props, err, p.log, p.metrics)
	if err != nil {
		return nil, err
	}

	for i := range props {
		voted, err := p.HasVoted(ctx, props[i].ID)
		if err != nil {
			p.log.Info("could not verify vote status", "proposal", props[i].ID, "err", err)
			continue
		}
		props[i].Voted = voted
		props[i].VoteResolved = true
	}
	return props, nil
}

func (p *namadaProvider) listAt(ctx context.Context, c endpoint.Candidate) ([]proposal.Proposal, error) {
	doc, err := p.fetch.FetchJSON(ctx, c.BaseURL, namadaListPath, p.timeout)
	if err != nil {
		return nil, err
	}
	obj, ok := doc.(map[string]any)
	if !ok {
		return nil, &endpoint.Failure{Kind: endpoint.MalformedResponse, URL: c.BaseURL, Cause: fmt.Errorf("expected object, got %T", doc)}
	}
	raw, ok := obj["results"].([]any)
	if !ok {
		return nil, &endpoint.Failure{Kind: endpoint.MalformedResponse, URL: c.BaseURL, Cause: errors.New("missing results array")}
	}

	out := make([]proposal.Proposal, 0, len(raw))
	for _, r := range raw {
		entry, ok := r.(map[string]any)
		if !ok || !proposal.NamadaInVotingPeriod(entry) {
			continue
		}
		prop, err := proposal.ParseNamada(entry, p.desc.Name)
		if err != nil {
			p.log.Error("skipping unparseable proposal", "indexer", c.BaseURL, "err", err)
			continue
		}
		out = append(out, prop)
	}
	if len(out) == 0 {
		return nil, endpoint.ErrEmptyResult
	}
	return out, nil
}

// HasVoted scans the validator's vote list on the first indexer that answers.
func (p *namadaProvider) HasVoted(ctx context.Context, id uint64) (bool, error) {
	path := fmt.Sprintf("/api/v1/gov/voter/%s/votes", url.PathEscape(p.desc.Validator))
	voted, _, err := endpoint.FirstConclusive(ctx, endpoint.Expand(p.desc.Endpoints),
		func(ctx context.Context, c endpoint.Candidate) (bool, error) {
			doc, err := p.fetch.FetchJSON(ctx, c.BaseURL, path, p.timeout)
			if err != nil {
				return false, err
			}
			votes, ok := doc.([]any)
			if !ok {
				return false, &endpoint.Failure{Kind: endpoint.MalformedResponse, URL: c.BaseURL, Cause: fmt.Errorf("expected array, got %T", doc)}
			}
			return containsVote(votes, id), nil
		},
		func(c endpoint.Candidate, err error) {
			p.log.Info("indexer vote check failed, trying next indexer", "proposal", id, "indexer", c.BaseURL, "err", err)
		},
	)
	if err != nil {
		return false, err
	}
	if voted {
		p.log.Debug("validator has voted", "proposal", id)
	}
	return voted, nil
}

func containsVote(votes []any, id uint64) bool {
	for _, v := range votes {
		vote, ok := v.(map[string]any)
		if !ok {
			continue
		}
		if got, ok := proposal.CoerceID(vote["proposalId"]); ok && got == id {
			return true
		}
	}
	return false
}
