package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pis/pis/internal/platform/db"
)

// UnitResolver resolves packaging-tree quantities down to base units. The
// catalog service implements it.
type UnitResolver interface {
	ResolveBaseUnits(ctx context.Context, packageID uuid.UUID, packageQuantity decimal.Decimal) (decimal.Decimal, error)
	ResolveBasePackage(ctx context.Context, packageID uuid.UUID) (uuid.UUID, error)
}

// CatalogLookup answers the existence and ownership questions Receive asks of
// the drug catalog. The catalog service implements it too.
type CatalogLookup interface {
	DrugName(ctx context.Context, drugID uuid.UUID) (string, error)
	PackageOwner(ctx context.Context, packageID uuid.UUID) (uuid.UUID, error)
}

type Service struct {
	batches  BatchRepository
	resolver UnitResolver
	catalog  CatalogLookup
	runner   db.Runner
	store    db.Queryer
	currency string
}

func NewService(batches BatchRepository, resolver UnitResolver, catalog CatalogLookup, runner db.Runner, store db.Queryer, currency string) *Service {
	return &Service{
		batches:  batches,
		resolver: resolver,
		catalog:  catalog,
		runner:   runner,
		store:    store,
		currency: currency,
	}
}

// Receive converts an incoming package quantity to base units and appends one
// new ledger batch at the base package id. No existing row is touched.
func (s *Service) Receive(ctx context.Context, req *ReceiveRequest) (*Batch, error) {
	if req.DrugID == uuid.Nil {
		return nil, fmt.Errorf("drug_id is required")
	}
	if req.PackageID == uuid.Nil {
		return nil, fmt.Errorf("package_id is required")
	}
	if req.Quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive")
	}
	if req.CostPerPackage != nil && req.CostPerPackage.IsNegative() {
		return nil, fmt.Errorf("cost_per_package must not be negative")
	}
	if req.ExpiryDate != nil && req.ManufactureDate != nil && req.ExpiryDate.Before(*req.ManufactureDate) {
		return nil, fmt.Errorf("expiry_date precedes manufacture_date")
	}

	// The drug must exist and the package must be one of its packagings;
	// otherwise the ledger row would be allocatable under the wrong pair.
	if _, err := s.catalog.DrugName(ctx, req.DrugID); err != nil {
		return nil, err
	}
	owner, err := s.catalog.PackageOwner(ctx, req.PackageID)
	if err != nil {
		return nil, err
	}
	if owner != req.DrugID {
		return nil, fmt.Errorf("package %s does not belong to drug %s", req.PackageID, req.DrugID)
	}

	baseID, err := s.resolver.ResolveBasePackage(ctx, req.PackageID)
	if err != nil {
		return nil, err
	}
	baseUnits, err := s.resolver.ResolveBaseUnits(ctx, req.PackageID, decimal.NewFromInt(int64(req.Quantity)))
	if err != nil {
		return nil, err
	}
	if !baseUnits.IsPositive() {
		return nil, fmt.Errorf("package %s converts to zero base units", req.PackageID)
	}

	var unitCost *decimal.Decimal
	if req.CostPerPackage != nil {
		// Per-base-unit cost, spread over the whole receipt. The positive
		// baseUnits check above keeps this division defined.
		perUnit := req.CostPerPackage.Div(baseUnits)
		unitCost = &perUnit
	}

	b := &Batch{
		DrugID:          req.DrugID,
		PackageID:       baseID,
		BatchNumber:     req.BatchNumber,
		ManufactureDate: req.ManufactureDate,
		ExpiryDate:      req.ExpiryDate,
		QuantityUom:     baseUnits,
		RemainingUom:    baseUnits,
		UnitCost:        unitCost,
		Currency:        s.currency,
		ReceivedBy:      req.ReceivedBy,
	}
	err = s.runner.Run(ctx, func(uow *db.UnitOfWork) error {
		return s.batches.Insert(ctx, uow, b)
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Available reports whether requiredBaseUnits of eligible stock exist for a
// drug/base-package pair. Necessary but not sufficient for a dispense: the
// allocator re-checks under lock.
func (s *Service) Available(ctx context.Context, drugID, basePackageID uuid.UUID, required decimal.Decimal) (bool, error) {
	return s.AvailableIn(ctx, s.store, drugID, basePackageID, required)
}

// AvailableIn is Available running on a caller-supplied Queryer, typically a
// dispense unit of work.
func (s *Service) AvailableIn(ctx context.Context, q db.Queryer, drugID, basePackageID uuid.UUID, required decimal.Decimal) (bool, error) {
	total, err := s.batches.EligibleRemaining(ctx, q, drugID, basePackageID, today())
	if err != nil {
		return false, err
	}
	return total.GreaterThanOrEqual(required), nil
}

// Allocate deducts required base units across eligible batches first-expired-
// first-out. The candidate rows are locked before remaining_uom is read, so
// two concurrent allocations of the same stock serialize; the loser observes
// the reduced remainders. Coming up short here means exactly that race, hence
// ErrStockRace rather than ErrInsufficientStock.
func (s *Service) Allocate(ctx context.Context, uow *db.UnitOfWork, drugID, basePackageID uuid.UUID, required decimal.Decimal, asOf time.Time) error {
	if !required.IsPositive() {
		return fmt.Errorf("allocation quantity must be positive")
	}

	batches, err := s.batches.SelectForAllocation(ctx, uow, drugID, basePackageID, asOf)
	if err != nil {
		return err
	}

	needed := required
	for _, b := range batches {
		if !needed.IsPositive() {
			break
		}
		deduct := decimal.Min(b.RemainingUom, needed)
		if err := s.batches.Deduct(ctx, uow, b.ID, deduct); err != nil {
			return err
		}
		needed = needed.Sub(deduct)
	}

	if needed.IsPositive() {
		return fmt.Errorf("drug %s, package %s short by %s: %w",
			drugID, basePackageID, needed, ErrStockRace)
	}
	return nil
}

// Snapshot returns the per-drug, per-base-package stock aggregates,
// optionally filtered to one status. Read-only.
func (s *Service) Snapshot(ctx context.Context, filter *StockStatus) ([]*DrugStock, error) {
	all, err := s.batches.Snapshot(ctx, s.store)
	if err != nil {
		return nil, err
	}
	if filter == nil {
		return all, nil
	}

	var result []*DrugStock
	for _, ds := range all {
		var kept []PackageStock
		for _, ps := range ds.Packages {
			if ps.Status == *filter {
				kept = append(kept, ps)
			}
		}
		if len(kept) == 0 {
			continue
		}
		filtered := *ds
		filtered.Packages = kept
		result = append(result, &filtered)
	}
	return result, nil
}

// LineCost prices a base-unit quantity at the most recent unit cost recorded
// for the base package; zero when the ledger has no costed batch.
func (s *Service) LineCost(ctx context.Context, basePackageID uuid.UUID, baseUnits decimal.Decimal) (decimal.Decimal, error) {
	cost, ok, err := s.batches.LatestUnitCost(ctx, s.store, basePackageID)
	if err != nil {
		return decimal.Zero, err
	}
	if !ok {
		return decimal.Zero, nil
	}
	return cost.Mul(baseUnits), nil
}

// today returns the UTC calendar date used for expiry comparisons.
func today() time.Time {
	return time.Now().UTC().Truncate(24 * time.Hour)
}
