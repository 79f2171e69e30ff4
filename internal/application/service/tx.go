package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	id "licensure/pkg/domain"
	dErrors "licensure/pkg/domain-errors"
	txcontext "licensure/pkg/platform/tx"
)

// StoreTx provides the atomic unit for operations that mutate an application
// and append history. Work for the same application is serialized; different
// applications proceed fully in parallel. Lock acquisition is bounded: a
// caller that cannot acquire the boundary in time fails with a timeout error
// rather than deadlocking.
type StoreTx interface {
	RunInTx(ctx context.Context, appID id.ApplicationID, fn func(ctx context.Context) error) error
}

// defaultTxTimeout bounds both lock waits and the transaction body.
const defaultTxTimeout = 5 * time.Second

// numShards spreads per-application locks across independent mutexes so
// unrelated applications rarely contend.
const numShards = 128

// shardedTx is the in-memory transactional boundary. Each shard is a
// semaphore channel so lock waits respect the context deadline.
type shardedTx struct {
	shards  [numShards]chan struct{}
	timeout time.Duration
}

// NewShardedTx builds the in-memory StoreTx used with the memory stores.
func NewShardedTx() StoreTx {
	t := &shardedTx{timeout: defaultTxTimeout}
	for i := range t.shards {
		t.shards[i] = make(chan struct{}, 1)
	}
	return t
}

func (t *shardedTx) RunInTx(ctx context.Context, appID id.ApplicationID, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	shard := t.shards[shardFor(appID)]
	select {
	case shard <- struct{}{}:
		defer func() { <-shard }()
	case <-ctx.Done():
		return dErrors.New(dErrors.CodeTimeout, "timed out waiting for application lock")
	}

	return fn(ctx)
}

// shardFor hashes the application ID with FNV-1a.
func shardFor(appID id.ApplicationID) int {
	const (
		fnvOffset = 2166136261
		fnvPrime  = 16777619
	)
	h := uint32(fnvOffset)
	s := appID.String()
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= fnvPrime
	}
	return int(h % numShards)
}

// pgLockNotAvailable is the postgres error code raised when lock_timeout
// expires while waiting on a row lock.
const pgLockNotAvailable = "55P03"

// postgresTx runs fn inside a database transaction. The transaction rides the
// context (pkg/platform/tx) so every store touched inside fn joins it; the
// row lock taken by the application store's FOR UPDATE provides the
// per-application serialization.
type postgresTx struct {
	db      *sql.DB
	timeout time.Duration
}

// NewPostgresTx builds the postgres-backed StoreTx.
func NewPostgresTx(db *sql.DB) StoreTx {
	return &postgresTx{db: db, timeout: defaultTxTimeout}
}

func (t *postgresTx) RunInTx(ctx context.Context, _ id.ApplicationID, fn func(ctx context.Context) error) error {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", t.timeout.Milliseconds())); err != nil {
		return fmt.Errorf("set lock timeout: %w", err)
	}

	if err := fn(txcontext.WithTx(ctx, tx)); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pgLockNotAvailable {
			return dErrors.New(dErrors.CodeTimeout, "timed out waiting for application lock")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
