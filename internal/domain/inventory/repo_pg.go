package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/pis/pis/internal/platform/db"
)

type batchRepoPG struct{}

func NewBatchRepoPG() BatchRepository {
	return &batchRepoPG{}
}

// eligibleWhere is the single stock-eligibility predicate, shared by the
// availability sum and the allocation candidate query so the check can never
// pass against stock the allocator refuses to touch.
const eligibleWhere = `drug_id = $1 AND package_id = $2
	AND remaining_uom > 0
	AND quarantined = FALSE
	AND (expiry_date IS NULL OR expiry_date >= $3)`

func (r *batchRepoPG) Insert(ctx context.Context, uow *db.UnitOfWork, b *Batch) error {
	b.ID = uuid.New()
	_, err := uow.Exec(ctx, `
		INSERT INTO inventory_batches (id, drug_id, package_id, batch_number,
			manufacture_date, expiry_date, quantity_uom, remaining_uom,
			unit_cost, currency, received_by, quarantined)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		b.ID, b.DrugID, b.PackageID, b.BatchNumber,
		b.ManufactureDate, b.ExpiryDate, b.QuantityUom, b.RemainingUom,
		b.UnitCost, b.Currency, b.ReceivedBy, b.Quarantined)
	if err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}
	return nil
}

func (r *batchRepoPG) EligibleRemaining(ctx context.Context, q db.Queryer, drugID, packageID uuid.UUID, today time.Time) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := q.QueryRow(ctx, `
		SELECT COALESCE(SUM(remaining_uom), 0) FROM inventory_batches
		WHERE `+eligibleWhere, drugID, packageID, today).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum eligible stock: %w", err)
	}
	return total, nil
}

func (r *batchRepoPG) SelectForAllocation(ctx context.Context, uow *db.UnitOfWork, drugID, packageID uuid.UUID, today time.Time) ([]*Batch, error) {
	rows, err := uow.Query(ctx, `
		SELECT id, drug_id, package_id, batch_number, manufacture_date, expiry_date,
			quantity_uom, remaining_uom, unit_cost, currency, received_by,
			quarantined, received_at
		FROM inventory_batches
		WHERE `+eligibleWhere+`
		ORDER BY expiry_date ASC NULLS LAST, received_at ASC
		FOR UPDATE`, drugID, packageID, today)
	if err != nil {
		return nil, fmt.Errorf("select batches for allocation: %w", err)
	}
	defer rows.Close()

	var batches []*Batch
	for rows.Next() {
		var b Batch
		if err := rows.Scan(&b.ID, &b.DrugID, &b.PackageID, &b.BatchNumber,
			&b.ManufactureDate, &b.ExpiryDate, &b.QuantityUom, &b.RemainingUom,
			&b.UnitCost, &b.Currency, &b.ReceivedBy, &b.Quarantined, &b.ReceivedAt); err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		batches = append(batches, &b)
	}
	return batches, rows.Err()
}

func (r *batchRepoPG) Deduct(ctx context.Context, uow *db.UnitOfWork, batchID uuid.UUID, amount decimal.Decimal) error {
	tag, err := uow.Exec(ctx, `
		UPDATE inventory_batches SET remaining_uom = remaining_uom - $2
		WHERE id = $1 AND remaining_uom >= $2`, batchID, amount)
	if err != nil {
		return fmt.Errorf("deduct from batch %s: %w", batchID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("deduct from batch %s: %w", batchID, ErrStockRace)
	}
	return nil
}

func (r *batchRepoPG) LatestUnitCost(ctx context.Context, q db.Queryer, packageID uuid.UUID) (decimal.Decimal, bool, error) {
	var cost *decimal.Decimal
	err := q.QueryRow(ctx, `
		SELECT unit_cost FROM inventory_batches
		WHERE package_id = $1
		ORDER BY received_at DESC
		LIMIT 1`, packageID).Scan(&cost)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("latest unit cost: %w", err)
	}
	if cost == nil {
		return decimal.Zero, false, nil
	}
	return *cost, true, nil
}

func (r *batchRepoPG) Snapshot(ctx context.Context, q db.Queryer) ([]*DrugStock, error) {
	rows, err := q.Query(ctx, `
		SELECT d.id, d.name,
			COALESCE(c.name, ''), COALESCE(g.name, ''),
			p.id, p.package_name,
			SUM(b.quantity_uom), SUM(b.remaining_uom),
			(ARRAY_AGG(b.unit_cost ORDER BY b.received_at DESC))[1]
		FROM inventory_batches b
		JOIN drugs d ON d.id = b.drug_id
		JOIN drug_packages p ON p.id = b.package_id
		LEFT JOIN drug_categories c ON c.id = d.category_id
		LEFT JOIN drug_generics g ON g.id = d.generic_id
		GROUP BY d.id, d.name, c.name, g.name, p.id, p.package_name
		ORDER BY d.name, p.package_name`)
	if err != nil {
		return nil, fmt.Errorf("snapshot query: %w", err)
	}
	defer rows.Close()

	byDrug := map[uuid.UUID]*DrugStock{}
	var order []*DrugStock
	for rows.Next() {
		var (
			drugID            uuid.UUID
			drugName          string
			category, generic string
			ps                PackageStock
		)
		if err := rows.Scan(&drugID, &drugName, &category, &generic,
			&ps.PackageID, &ps.PackageName,
			&ps.TotalEntered, &ps.TotalRemaining, &ps.LatestCost); err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}
		ps.Status = classifyStock(ps.TotalEntered, ps.TotalRemaining)

		ds, ok := byDrug[drugID]
		if !ok {
			ds = &DrugStock{DrugID: drugID, DrugName: drugName, Category: category, Generic: generic}
			byDrug[drugID] = ds
			order = append(order, ds)
		}
		ds.Packages = append(ds.Packages, ps)
	}
	return order, rows.Err()
}
