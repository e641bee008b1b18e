package store

import (
	"context"
	"sync"

	"execledger/internal/diagnostic/models"
	id "execledger/pkg/domain"
	"execledger/pkg/platform/sentinel"
)

// InMemoryLogStore keeps one slice of entries per policy id.
type InMemoryLogStore struct {
	mu   sync.RWMutex
	logs map[id.PolicyID][]models.Entry
}

func NewInMemoryLogStore() *InMemoryLogStore {
	return &InMemoryLogStore{logs: make(map[id.PolicyID][]models.Entry)}
}

// Append assigns e the next index for its policy id and stores a copy.
func (s *InMemoryLogStore) Append(_ context.Context, e *models.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := s.logs[e.PolicyID]
	e.LogIndex = id.LogIndex(len(entries))
	s.logs[e.PolicyID] = append(entries, *e)
	return nil
}

func (s *InMemoryLogStore) Find(_ context.Context, policyID id.PolicyID, index id.LogIndex) (*models.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.logs[policyID]
	if uint64(index) >= uint64(len(entries)) {
		return nil, sentinel.ErrNotFound
	}
	e := entries[index]
	return &e, nil
}

func (s *InMemoryLogStore) Count(_ context.Context, policyID id.PolicyID) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return uint64(len(s.logs[policyID])), nil
}
