// Package collector runs one ingestion pass: list proposals on every network,
// resolve the validator's votes and persist what still needs a vote.
package collector

import (
	"context"
	"fmt"
	"time"

	"gov-monitoring/internal/config"
	"gov-monitoring/internal/logger"
	"gov-monitoring/internal/metrics"
	"gov-monitoring/internal/models"
	"gov-monitoring/internal/proposal"
	"gov-monitoring/internal/provider"

	"golang.org/x/sync/errgroup"
)

// DiscoveryLead is added to the run time when stamping newly discovered proposals.
const DiscoveryLead = 15 * time.Second

// Stage is a step of the run pipeline.
type Stage string

const (
	StageIdle       Stage = "idle"
	StageListing    Stage = "listing_proposals"
	StageResolving  Stage = "resolving_votes"
	StagePersisting Stage = "persisting"
	StageDone       Stage = "done"
)

// Store is the persistence port. Implementations must be safe for concurrent use.
type Store interface {
	CreateSchema(ctx context.Context) error
	IsDuplicate(ctx context.Context, network string, id uint64) (bool, error)
	Insert(ctx context.Context, p models.Proposal) error
	MarkVoted(ctx context.Context, network string, id uint64) error
}

type Options struct {
	MaxConcurrency int
	ZeroIDs        config.ZeroIDPolicy
	UnresolvedVote config.UnresolvedVotePolicy
	Provider       provider.Options
}

// OptionsFromConfig maps the loaded configuration to collector options.
func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		MaxConcurrency: cfg.MaxConcurrency,
		ZeroIDs:        cfg.ZeroIDs,
		UnresolvedVote: cfg.UnresolvedVote,
		Provider: provider.Options{
			RequestTimeout: cfg.RequestTimeout,
			NamadaTimeout:  cfg.NamadaTimeout,
		},
	}
}

type Collector struct {
	opts      Options
	networks  []config.NetworkDescriptor
	providers map[string]provider.Provider
	setupErrs map[string]error
	store     Store
	log       logger.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

// NewCollector builds one provider per catalog network. A network whose provider
// cannot be built (bad validator address, unknown family) is logged and reported
// in the run summary; the others still run.
func NewCollector(opts Options, catalog *config.Catalog, f provider.Fetcher, store Store, log logger.Logger, m *metrics.Metrics) *Collector {
	log = log.With("module", "collector")
	var providers []provider.Provider
	setupErrs := make(map[string]error)
	networks := catalog.Networks()
	for _, d := range networks {
		p, err := provider.New(d, f, opts.Provider, log, m)
		if err != nil {
			log.Error("network disabled", "network", d.Name, "err", err)
			setupErrs[d.Name] = err
			continue
		}
		providers = append(providers, p)
	}
	c := newCollector(opts, providers, store, log, m)
	c.networks = networks
	c.setupErrs = setupErrs
	return c
}

func newCollector(opts Options, providers []provider.Provider, store Store, log logger.Logger, m *metrics.Metrics) *Collector {
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = config.DefaultMaxConcurrency
	}
	if opts.ZeroIDs == "" {
		opts.ZeroIDs = config.KeepZeroID
	}
	if opts.UnresolvedVote == "" {
		opts.UnresolvedVote = config.AssumeNotVoted
	}
	c := &Collector{
		opts:      opts,
		providers: make(map[string]provider.Provider, len(providers)),
		setupErrs: map[string]error{},
		store:     store,
		log:       log,
		metrics:   m,
		now:       time.Now,
	}
	for _, p := range providers {
		d := p.Network()
		c.networks = append(c.networks, d)
		c.providers[d.Name] = p
	}
	return c
}

// Run executes one pass. Only a schema failure aborts it; network and proposal level
// failures are logged and show up in the returned summary.
func (c *Collector) Run(ctx context.Context) (*Summary, error) {
	started := c.now()
	sum := newSummary(c.networks, started)
	for name, err := range c.setupErrs {
		sum.network(name).ListErr = err
	}
	c.stage(StageIdle)

	if err := c.store.CreateSchema(ctx); err != nil {
		return sum, fmt.Errorf("create schema: %w", err)
	}

	c.stage(StageListing)
	listed := c.listProposals(ctx, sum)

	c.stage(StageResolving)
	pending := c.resolveVotes(ctx, listed, sum)

	c.stage(StagePersisting)
	c.persist(ctx, pending, sum)

	sum.Finished = c.now()
	c.metrics.RunFinished(sum.Started, sum.Finished)
	c.stage(StageDone)
	c.logSummary(sum)
	return sum, nil
}

func (c *Collector) stage(s Stage) {
	c.log.Debug("stage", "stage", s)
}

type listResult struct {
	props []proposal.Proposal
	err   error
}

func (c *Collector) listProposals(ctx context.Context, sum *Summary) []proposal.Proposal {
	var active []provider.Provider
	for _, d := range c.networks {
		if p, ok := c.providers[d.Name]; ok {
			active = append(active, p)
		}
	}

	results := make([]listResult, len(active))
	c.fanOut(len(active), func(i int) error {
		props, err := active[i].ListProposals(ctx)
		results[i] = listResult{props: props, err: err}
		return err
	}, func(i int, err error) {
		results[i] = listResult{err: err}
	})

	var out []proposal.Proposal
	for i, r := range results {
		name := active[i].Network().Name
		ns := sum.network(name)
		if r.err != nil {
			ns.ListErr = r.err
			c.log.Error("could not list proposals", "network", name, "err", r.err)
			continue
		}
		for _, p := range r.props {
			if p.Flags.Has(proposal.FlagPlaceholderTitle) {
				c.log.Debug("proposal has no title", "network", name, "proposal", p.ID)
			}
			if p.Flags.Has(proposal.FlagZeroID) {
				if c.opts.ZeroIDs == config.SkipZeroID {
					c.log.Error("skipping proposal without id", "network", name, "title", p.Title)
					ns.Skipped++
					continue
				}
				c.log.Error("proposal id missing, storing as 0", "network", name, "title", p.Title)
			}
			ns.Listed++
			out = append(out, p)
		}
	}
	return out
}

type voteResult struct {
	voted bool
	err   error
}

// resolveVotes returns the proposals the validator has not voted on. Voted
// proposals are recorded through Store.MarkVoted and dropped.
func (c *Collector) resolveVotes(ctx context.Context, props []proposal.Proposal, sum *Summary) []proposal.Proposal {
	results := make([]voteResult, len(props))
	var todo []int
	for i, p := range props {
		if p.VoteResolved {
			results[i] = voteResult{voted: p.Voted}
			continue
		}
		todo = append(todo, i)
	}

	c.fanOut(len(todo), func(j int) error {
		i := todo[j]
		voted, err := c.providers[props[i].Network].HasVoted(ctx, props[i].ID)
		results[i] = voteResult{voted: voted, err: err}
		return err
	}, func(j int, err error) {
		results[todo[j]] = voteResult{err: err}
	})

	out := make([]proposal.Proposal, 0, len(props))
	for i, p := range props {
		r := results[i]
		ns := sum.network(p.Network)
		switch {
		case r.err != nil:
			ns.Unresolved++
			c.metrics.Vote(p.Network, "unresolved")
			if c.opts.UnresolvedVote == config.SkipUnresolved {
				c.log.Error("vote status unknown, skipping proposal this run", "network", p.Network, "proposal", p.ID, "err", r.err)
				continue
			}
			c.log.Error("vote status unknown, assuming not voted", "network", p.Network, "proposal", p.ID, "err", r.err)
			p.Voted = false
			out = append(out, p)
		case r.voted:
			ns.Voted++
			c.metrics.Vote(p.Network, "voted")
			if err := c.store.MarkVoted(ctx, p.Network, p.ID); err != nil {
				c.log.Error("could not mark proposal voted", "network", p.Network, "proposal", p.ID, "err", err)
			}
		default:
			c.metrics.Vote(p.Network, "not_voted")
			p.Voted = false
			out = append(out, p)
		}
	}
	return out
}

func (c *Collector) persist(ctx context.Context, props []proposal.Proposal, sum *Summary) {
	discovered := sum.Started.Add(DiscoveryLead).Unix()
	seen := make(map[proposal.Key]struct{}, len(props))
	for _, p := range props {
		if _, ok := seen[p.Key()]; ok {
			continue
		}
		seen[p.Key()] = struct{}{}

		ns := sum.network(p.Network)
		ns.Pending++
		dup, err := c.store.IsDuplicate(ctx, p.Network, p.ID)
		if err != nil {
			c.metrics.Stored(p.Network, "error")
			c.log.Error("duplicate check failed", "network", p.Network, "proposal", p.ID, "err", err)
			continue
		}
		if dup {
			ns.Duplicates++
			c.metrics.Stored(p.Network, "duplicate")
			continue
		}
		if err := c.store.Insert(ctx, toModel(p, discovered)); err != nil {
			c.metrics.Stored(p.Network, "error")
			c.log.Error("insert failed", "network", p.Network, "proposal", p.ID, "err", err)
			continue
		}
		ns.Inserted++
		c.metrics.Stored(p.Network, "inserted")
		c.log.Info("new proposal", "network", p.Network, "proposal", p.ID, "title", p.Title)
	}
}

func toModel(p proposal.Proposal, discoveredAt int64) models.Proposal {
	return models.Proposal{
		Network:       p.Network,
		ProposalID:    p.ID,
		Title:         p.Title,
		VotingEndTime: p.VotingEndTime,
		Voted:         p.Voted,
		DiscoveredAt:  discoveredAt,
		ReminderStage: 0,
	}
}

// fanOut runs task(0..n-1) with at most MaxConcurrency in flight. A task error or
// panic never cancels its siblings; panics are reported through onPanic.
func (c *Collector) fanOut(n int, task func(i int) error, onPanic func(i int, err error)) {
	var g errgroup.Group
	g.SetLimit(c.opts.MaxConcurrency)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					err := fmt.Errorf("panic: %v", r)
					c.log.Error("task panicked", "err", err)
					onPanic(i, err)
				}
			}()
			_ = task(i)
			return nil
		})
	}
	_ = g.Wait()
}

func (c *Collector) logSummary(sum *Summary) {
	t := sum.Totals()
	c.log.Info("run finished",
		"networks", len(sum.Networks),
		"listed", t.Listed,
		"voted", t.Voted,
		"inserted", t.Inserted,
		"duplicates", t.Duplicates,
		"unresolved", t.Unresolved,
		"failed_networks", sum.FailedNetworks(),
		"duration", sum.Finished.Sub(sum.Started),
	)
}
