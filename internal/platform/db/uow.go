package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Queryer is the subset of pgx operations shared by pools, connections and
// transactions. Read-only repository methods accept a Queryer so they can run
// either standalone against the pool or inside a unit of work.
type Queryer interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// UnitOfWork is one transactional scope over the store. Every mutating
// repository method takes one explicitly; the caller owns its lifetime and
// must Commit or Rollback. There is no ambient/context-carried transaction.
type UnitOfWork struct {
	tx   pgx.Tx
	done bool
}

func Begin(ctx context.Context, pool *pgxpool.Pool) (*UnitOfWork, error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &UnitOfWork{tx: tx}, nil
}

func (u *UnitOfWork) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	return u.tx.Query(ctx, sql, args...)
}

func (u *UnitOfWork) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	return u.tx.QueryRow(ctx, sql, args...)
}

func (u *UnitOfWork) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	return u.tx.Exec(ctx, sql, args...)
}

func (u *UnitOfWork) Commit(ctx context.Context) error {
	u.done = true
	if err := u.tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Rollback aborts the unit of work. Safe to defer after a successful Commit;
// it becomes a no-op.
func (u *UnitOfWork) Rollback(ctx context.Context) {
	if u.done {
		return
	}
	u.done = true
	_ = u.tx.Rollback(ctx)
}

// Runner starts unit-of-work scopes. Services depend on this interface so
// tests can substitute a pass-through implementation.
type Runner interface {
	Run(ctx context.Context, fn func(uow *UnitOfWork) error) error
}

// PoolRunner runs each unit of work as one transaction on a pgx pool.
type PoolRunner struct {
	pool *pgxpool.Pool
}

func NewRunner(pool *pgxpool.Pool) *PoolRunner {
	return &PoolRunner{pool: pool}
}

func (r *PoolRunner) Run(ctx context.Context, fn func(uow *UnitOfWork) error) error {
	return RunInUnitOfWork(ctx, r.pool, fn)
}

// RunInUnitOfWork begins a unit of work, runs fn, and commits if fn returned
// nil. Any error (or panic) rolls the whole scope back.
func RunInUnitOfWork(ctx context.Context, pool *pgxpool.Pool, fn func(uow *UnitOfWork) error) error {
	uow, err := Begin(ctx, pool)
	if err != nil {
		return err
	}
	defer uow.Rollback(ctx)

	if err := fn(uow); err != nil {
		return err
	}
	return uow.Commit(ctx)
}
