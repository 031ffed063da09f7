// Package moniker looks up the monitored validator's moniker on standard networks.
package moniker

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"time"

	"gov-monitoring/internal/config"
	"gov-monitoring/internal/endpoint"
	"gov-monitoring/internal/logger"
)

// Fetcher is the part of endpoint.Client the resolver needs.
type Fetcher interface {
	FetchJSON(ctx context.Context, baseURL, path string, timeout time.Duration) (any, error)
}

type entry struct {
	moniker string
	fetched time.Time
}

// Resolver fetches and caches monikers by querying REST
// /cosmos/staking/v1beta1/validators/{operator} on the network's endpoints.
type Resolver struct {
	fetch   Fetcher
	timeout time.Duration
	log     logger.Logger
	mu      sync.RWMutex
	cache   map[string]entry // network/operator -> moniker
	ttl     time.Duration
}

func NewResolver(f Fetcher, timeout time.Duration, log logger.Logger) *Resolver {
	return &Resolver{
		fetch:   f,
		timeout: timeout,
		log:     log.With("module", "moniker"),
		cache:   map[string]entry{},
		ttl:     30 * time.Minute, // monikers change rarely
	}
}

// Resolve returns the validator moniker for d, or "" when it cannot be found.
// Namada networks are not supported and always return "".
func (r *Resolver) Resolve(ctx context.Context, d config.NetworkDescriptor) string {
	if r == nil || d.Family != config.FamilyStandard || d.Validator == "" {
		return ""
	}
	key := d.Name + "/" + d.Validator

	r.mu.RLock()
	e, ok := r.cache[key]
	r.mu.RUnlock()
	if ok && time.Since(e.fetched) <= r.ttl {
		return e.moniker
	}

	path := "/cosmos/staking/v1beta1/validators/" + url.PathEscape(d.Validator)
	moniker, _, err := endpoint.FirstConclusive(ctx, endpoint.Expand(d.Endpoints),
		func(ctx context.Context, c endpoint.Candidate) (string, error) {
			doc, err := r.fetch.FetchJSON(ctx, c.BaseURL, path, r.timeout)
			if err != nil {
				return "", err
			}
			return monikerFrom(doc)
		}, nil)
	if err != nil {
		r.log.Info("moniker lookup failed", "network", d.Name, "err", err)
		return ""
	}

	r.mu.Lock()
	r.cache[key] = entry{moniker: moniker, fetched: time.Now()}
	r.mu.Unlock()
	return moniker
}

// ResolveAll resolves every network in the catalog concurrently.
func (r *Resolver) ResolveAll(ctx context.Context, catalog *config.Catalog) map[string]string {
	networks := catalog.Networks()
	out := make(map[string]string, len(networks))
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, d := range networks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m := r.Resolve(ctx, d)
			mu.Lock()
			out[d.Name] = m
			mu.Unlock()
		}()
	}
	wg.Wait()
	return out
}

func monikerFrom(doc any) (string, error) {
	obj, _ := doc.(map[string]any)
	val, _ := obj["validator"].(map[string]any)
	desc, _ := val["description"].(map[string]any)
	moniker, _ := desc["moniker"].(string)
	if strings.TrimSpace(moniker) == "" {
		return "", &endpoint.Failure{Kind: endpoint.MalformedResponse, Cause: errors.New("validator description has no moniker")}
	}
	return strings.TrimSpace(moniker), nil
}
