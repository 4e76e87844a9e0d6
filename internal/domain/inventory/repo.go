package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pis/pis/internal/platform/db"
)

// BatchRepository is the stock ledger. Read methods accept a db.Queryer so
// they run either against the pool or inside a unit of work; mutating methods
// require an explicit *db.UnitOfWork; there is no way to touch the ledger
// outside a transaction the caller owns.
type BatchRepository interface {
	Insert(ctx context.Context, uow *db.UnitOfWork, b *Batch) error

	// EligibleRemaining sums remaining_uom over batches eligible for
	// dispensing: matching drug and base package, something left, not
	// quarantined, not expired as of today (null expiry counts as eligible).
	EligibleRemaining(ctx context.Context, q db.Queryer, drugID, packageID uuid.UUID, today time.Time) (decimal.Decimal, error)

	// SelectForAllocation returns the eligible batches in FEFO order
	// (expiry_date ascending with nulls last, received_at as tie-break),
	// locked for update so concurrent allocations serialize per row.
	SelectForAllocation(ctx context.Context, uow *db.UnitOfWork, drugID, packageID uuid.UUID, today time.Time) ([]*Batch, error)

	// Deduct subtracts amount from a batch's remaining_uom.
	Deduct(ctx context.Context, uow *db.UnitOfWork, batchID uuid.UUID, amount decimal.Decimal) error

	// LatestUnitCost returns the unit cost of the most recently received
	// batch for a base package; ok is false when no batch carries a cost.
	LatestUnitCost(ctx context.Context, q db.Queryer, packageID uuid.UUID) (decimal.Decimal, bool, error)

	// Snapshot aggregates the ledger per drug and base package.
	Snapshot(ctx context.Context, q db.Queryer) ([]*DrugStock, error)
}
