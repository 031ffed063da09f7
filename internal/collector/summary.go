package collector

import (
	"time"

	"gov-monitoring/internal/config"
)

// NetworkSummary counts what happened to one network during a run.
type NetworkSummary struct {
	Name       string
	Family     config.Family
	Listed     int // proposals in voting period
	Skipped    int // dropped by the zero-id policy
	Voted      int
	Unresolved int // vote checks with no conclusive answer
	Pending    int // reached persisting
	Inserted   int
	Duplicates int
	ListErr    error
}

type Summary struct {
	Started  time.Time
	Finished time.Time
	Networks []*NetworkSummary

	byName map[string]*NetworkSummary
}

func newSummary(networks []config.NetworkDescriptor, started time.Time) *Summary {
	s := &Summary{Started: started, byName: make(map[string]*NetworkSummary, len(networks))}
	for _, d := range networks {
		s.network(d.Name).Family = d.Family
	}
	return s
}

func (s *Summary) network(name string) *NetworkSummary {
	if ns, ok := s.byName[name]; ok {
		return ns
	}
	ns := &NetworkSummary{Name: name}
	s.byName[name] = ns
	s.Networks = append(s.Networks, ns)
	return ns
}

// Network returns the counters for name, or nil if the network was not part of the run.
func (s *Summary) Network(name string) *NetworkSummary {
	return s.byName[name]
}

// Totals sums the counters over all networks. ListErr is left nil.
func (s *Summary) Totals() NetworkSummary {
	var t NetworkSummary
	for _, ns := range s.Networks {
		t.Listed += ns.Listed
		t.Skipped += ns.Skipped
		t.Voted += ns.Voted
		t.Unresolved += ns.Unresolved
		t.Pending += ns.Pending
		t.Inserted += ns.Inserted
		t.Duplicates += ns.Duplicates
	}
	return t
}

// FailedNetworks counts networks whose listing failed or that could not be set up.
func (s *Summary) FailedNetworks() int {
	n := 0
	for _, ns := range s.Networks {
		if ns.ListErr != nil {
			n++
		}
	}
	return n
}
