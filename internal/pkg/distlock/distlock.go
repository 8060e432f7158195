package distlock

import (
	"context"
	"database/sql"
	"hash/fnv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DistLock guards a critical section across processes. A snapshot refresh
// acquires one keyed by segment and version so two refreshers of the same
// snapshot can never interleave their writes.
//
// Instances are single-owner: create one per attempted acquisition and do
// not share it across goroutines.
type DistLock interface {
	// Acquire makes a non-blocking attempt to take the lock and reports
	// whether it succeeded.
	Acquire(ctx context.Context) (bool, error)
	// Release drops the lock if this instance still owns it. Releasing a
	// lock held by someone else is a no-op.
	Release(ctx context.Context) error
}

// LeaseRenewer is implemented by backends whose locks expire. Holders of a
// long critical section renew the lease before the expensive phase so the
// lock cannot lapse mid-write. Advisory locks are session-scoped and have
// no lease to renew.
type LeaseRenewer interface {
	Renew(ctx context.Context) error
}

// NewLock picks the strongest backend available: Redis when a client is
// configured (works across hosts), otherwise a Postgres advisory lock on
// the shared database.
func NewLock(redisClient *redis.Client, db *sql.DB, key string, ttl time.Duration) DistLock {
	if redisClient != nil {
		return NewRedisLock(redisClient, key, ttl)
	}
	return NewPGAdvisoryLock(db, key)
}

// PGAdvisoryLock is the fallback backend. pg_try_advisory_lock is
// session-scoped, so a crashed holder frees the lock as soon as its
// connection dies, which stands in for the Redis TTL.
type PGAdvisoryLock struct {
	db    *sql.DB
	keyID int64
}

// NewPGAdvisoryLock maps the string key onto the bigint keyspace advisory
// locks use. The mapping is deterministic so every process contends on the
// same ID for the same key.
func NewPGAdvisoryLock(db *sql.DB, key string) *PGAdvisoryLock {
	h := fnv.New64a()
	h.Write([]byte(key))
	return &PGAdvisoryLock{db: db, keyID: int64(h.Sum64())}
}

func (l *PGAdvisoryLock) Acquire(ctx context.Context) (bool, error) {
	var ok bool
	err := l.db.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", l.keyID).Scan(&ok)
	return ok, err
}

func (l *PGAdvisoryLock) Release(ctx context.Context) error {
	_, err := l.db.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", l.keyID)
	return err
}
