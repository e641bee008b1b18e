package store

import (
	"context"
	"math"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"execledger/internal/diagnostic/models"
	"execledger/internal/platform/database"
	id "execledger/pkg/domain"
	"execledger/pkg/platform/sentinel"
)

type logStore interface {
	Append(ctx context.Context, e *models.Entry) error
	Find(ctx context.Context, policyID id.PolicyID, index id.LogIndex) (*models.Entry, error)
	Count(ctx context.Context, policyID id.PolicyID) (uint64, error)
}

// LogStoreSuite runs the same behavior checks against every backend. The
// redis backend runs it from the integration tests.
type LogStoreSuite struct {
	suite.Suite
	NewStore func(t *testing.T) logStore
	store    logStore
	ctx      context.Context
}

func (s *LogStoreSuite) SetupTest() {
	s.store = s.NewStore(s.T())
	s.ctx = context.Background()
}

func TestInMemoryLogStore(t *testing.T) {
	suite.Run(t, &LogStoreSuite{NewStore: func(*testing.T) logStore {
		return NewInMemoryLogStore()
	}})
}

func TestSQLiteLogStore(t *testing.T) {
	suite.Run(t, &LogStoreSuite{NewStore: func(t *testing.T) logStore {
		db, err := database.Open(context.Background(), database.SQLite, filepath.Join(t.TempDir(), "logs.db"), database.Options{})
		require.NoError(t, err)
		t.Cleanup(func() { _ = db.Close() })
		return NewSQLLogStore(db)
	}})
}

func entry(policyID id.PolicyID, message string) *models.Entry {
	return &models.Entry{
		PolicyID:  policyID,
		Message:   message,
		CreatedAt: time.Date(2024, 3, 4, 5, 6, 7, 0, time.UTC),
	}
}

func (s *LogStoreSuite) TestAppendAssignsPerPolicyIndices() {
	a := entry(0, "m1")
	s.Require().NoError(s.store.Append(s.ctx, a))
	s.Equal(id.LogIndex(0), a.LogIndex)

	b := entry(0, "m2")
	s.Require().NoError(s.store.Append(s.ctx, b))
	s.Equal(id.LogIndex(1), b.LogIndex)

	other := entry(42, "elsewhere")
	s.Require().NoError(s.store.Append(s.ctx, other))
	s.Equal(id.LogIndex(0), other.LogIndex)

	n, err := s.store.Count(s.ctx, 0)
	s.Require().NoError(err)
	s.Equal(uint64(2), n)

	n, err = s.store.Count(s.ctx, 99)
	s.Require().NoError(err)
	s.Zero(n)
}

func (s *LogStoreSuite) TestFind() {
	s.Require().NoError(s.store.Append(s.ctx, entry(1, "m1")))
	s.Require().NoError(s.store.Append(s.ctx, entry(1, "m2")))

	got, err := s.store.Find(s.ctx, 1, 1)
	s.Require().NoError(err)
	s.Equal("m2", got.Message)
	s.Equal(id.PolicyID(1), got.PolicyID)
	s.Equal(id.LogIndex(1), got.LogIndex)
	s.True(got.CreatedAt.Equal(time.Date(2024, 3, 4, 5, 6, 7, 0, time.UTC)))

	_, err = s.store.Find(s.ctx, 1, 2)
	s.ErrorIs(err, sentinel.ErrNotFound)
	_, err = s.store.Find(s.ctx, 2, 0)
	s.ErrorIs(err, sentinel.ErrNotFound)
	_, err = s.store.Find(s.ctx, 1, id.LogIndex(^uint64(0)))
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *LogStoreSuite) TestFullPolicyIDRange() {
	ids := []id.PolicyID{math.MaxInt64, 1 << 63, math.MaxUint64}
	for _, pid := range ids {
		first := entry(pid, "first "+pid.String())
		s.Require().NoError(s.store.Append(s.ctx, first))
		s.Equal(id.LogIndex(0), first.LogIndex, "policy %s", pid)

		second := entry(pid, "second "+pid.String())
		s.Require().NoError(s.store.Append(s.ctx, second))
		s.Equal(id.LogIndex(1), second.LogIndex, "policy %s", pid)
	}

	for _, pid := range ids {
		got, err := s.store.Find(s.ctx, pid, 1)
		s.Require().NoError(err, "policy %s", pid)
		s.Equal(pid, got.PolicyID)
		s.Equal("second "+pid.String(), got.Message)

		n, err := s.store.Count(s.ctx, pid)
		s.Require().NoError(err)
		s.Equal(uint64(2), n, "policy %s", pid)
	}

	n, err := s.store.Count(s.ctx, 0)
	s.Require().NoError(err)
	s.Zero(n)
	_, err = s.store.Find(s.ctx, math.MaxUint64-1, 0)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *LogStoreSuite) TestMessagesAreStoredVerbatim() {
	msg := "  line one\nline two ☃ "
	e := entry(3, msg)
	s.Require().NoError(s.store.Append(s.ctx, e))
	got, err := s.store.Find(s.ctx, 3, e.LogIndex)
	s.Require().NoError(err)
	s.Equal(msg, got.Message)
}

func (s *LogStoreSuite) TestConcurrentAppend() {
	const n = 25
	var wg sync.WaitGroup
	indices := make(chan id.LogIndex, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e := entry(9, "c")
			s.NoError(s.store.Append(s.ctx, e))
			indices <- e.LogIndex
		}()
	}
	wg.Wait()
	close(indices)

	seen := make(map[id.LogIndex]bool)
	for idx := range indices {
		s.False(seen[idx])
		seen[idx] = true
	}
	s.Len(seen, n)
	for i := 0; i < n; i++ {
		s.True(seen[id.LogIndex(i)])
	}
}
