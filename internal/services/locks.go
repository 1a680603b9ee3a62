package services

import (
	"sync"

	"github.com/google/uuid"
)

const lockShards = 32

// userLockRegistry hands out one mutex per user id so concurrent cold
// requests for the same user serialize while unrelated users never
// contend. Sharding keeps registry bookkeeping off a single mutex.
// Entries are not reclaimed; the registry is bounded by the number of
// users that ever hit the compute path in this process.
type userLockRegistry struct {
	shards [lockShards]lockShard
}

type lockShard struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func newUserLockRegistry() *userLockRegistry {
	r := &userLockRegistry{}
	for i := range r.shards {
		r.shards[i].locks = make(map[uuid.UUID]*sync.Mutex)
	}
	return r
}

func (r *userLockRegistry) get(userID uuid.UUID) *sync.Mutex {
	shard := &r.shards[userID[0]%lockShards]
	shard.mu.Lock()
	defer shard.mu.Unlock()
	lock, ok := shard.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		shard.locks[userID] = lock
	}
	return lock
}

func (r *userLockRegistry) Lock(userID uuid.UUID) {
	r.get(userID).Lock()
}

func (r *userLockRegistry) Unlock(userID uuid.UUID) {
	r.get(userID).Unlock()
}
