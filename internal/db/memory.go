package db

import (
	"context"
	"sort"
	"sync"

	"gov-monitoring/internal/models"
)

type memoryKey struct {
	network string
	id      uint64
}

// MemoryStore keeps proposals in process memory. Used for dry runs without a database.
type MemoryStore struct {
	mu        sync.RWMutex
	proposals map[memoryKey]models.Proposal
	nextID    uint
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{proposals: make(map[memoryKey]models.Proposal)}
}

func (s *MemoryStore) CreateSchema(context.Context) error { return nil }

func (s *MemoryStore) IsDuplicate(_ context.Context, network string, id uint64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.proposals[memoryKey{network, id}]
	return ok, nil
}

func (s *MemoryStore) Insert(_ context.Context, p models.Proposal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := memoryKey{p.Network, p.ProposalID}
	if _, exists := s.proposals[k]; exists {
		return nil
	}
	s.nextID++
	p.ID = s.nextID
	s.proposals[k] = p
	return nil
}

func (s *MemoryStore) MarkVoted(_ context.Context, network string, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := memoryKey{network, id}
	if p, ok := s.proposals[k]; ok {
		p.Voted = true
		s.proposals[k] = p
	}
	return nil
}

// All returns the stored proposals ordered by network and proposal id.
func (s *MemoryStore) All() []models.Proposal {
	s.mu.RLock()
	out := make([]models.Proposal, 0, len(s.proposals))
	for _, p := range s.proposals {
		out = append(out, p)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Network != out[j].Network {
			return out[i].Network < out[j].Network
		}
		return out[i].ProposalID < out[j].ProposalID
	})
	return out
}
