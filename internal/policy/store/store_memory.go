package store

import (
	"context"
	"sync"

	"execledger/internal/policy/models"
	id "execledger/pkg/domain"
	"execledger/pkg/platform/sentinel"
)

// InMemoryPolicyStore keeps policies in a slice so the id of each policy is
// its position.
type InMemoryPolicyStore struct {
	mu       sync.RWMutex
	policies []models.Policy
}

func NewInMemoryPolicyStore() *InMemoryPolicyStore {
	return &InMemoryPolicyStore{}
}

// Append assigns the next id to p and stores a copy.
func (s *InMemoryPolicyStore) Append(_ context.Context, p *models.Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = id.PolicyID(len(s.policies))
	s.policies = append(s.policies, *p)
	return nil
}

func (s *InMemoryPolicyStore) FindByID(_ context.Context, policyID id.PolicyID) (*models.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if uint64(policyID) >= uint64(len(s.policies)) {
		return nil, sentinel.ErrNotFound
	}
	p := s.policies[policyID]
	return &p, nil
}

func (s *InMemoryPolicyStore) Count(_ context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return uint64(len(s.policies)), nil
}

// List returns up to limit policies starting at offset, in id order.
func (s *InMemoryPolicyStore) List(_ context.Context, offset, limit uint64) ([]*models.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := uint64(len(s.policies))
	if offset >= total || limit == 0 {
		return []*models.Policy{}, nil
	}
	end := offset + limit
	if end > total || end < offset {
		end = total
	}
	out := make([]*models.Policy, 0, end-offset)
	for i := offset; i < end; i++ {
		p := s.policies[i]
		out = append(out, &p)
	}
	return out, nil
}
