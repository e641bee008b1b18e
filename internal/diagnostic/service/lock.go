package service

import (
	"context"
	"sync"

	id "execledger/pkg/domain"
	dErrors "execledger/pkg/domain-errors"
)

// numLogShards spreads policy ids over a fixed set of mutexes. Appends for
// one policy id always share a shard; appends for different ids rarely do.
const numLogShards = 128

type shardedLock struct {
	shards [numLogShards]sync.Mutex
}

// run executes fn while holding the shard for policyID.
func (l *shardedLock) run(ctx context.Context, policyID id.PolicyID, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "append aborted: context cancelled")
	}

	shard := &l.shards[shardFor(policyID)]
	shard.Lock()
	defer shard.Unlock()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "append aborted: context cancelled")
	}
	return fn()
}

// shardFor mixes the id with FNV-1a so sequential ids land on different shards.
func shardFor(policyID id.PolicyID) uint64 {
	const (
		fnvOffset = 14695981039346656037
		fnvPrime  = 1099511628211
	)
	h := uint64(fnvOffset)
	v := uint64(policyID)
	for i := 0; i < 8; i++ {
		h ^= v & 0xff
		h *= fnvPrime
		v >>= 8
	}
	return h % numLogShards
}
