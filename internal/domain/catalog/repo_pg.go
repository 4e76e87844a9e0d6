package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type drugRepoPG struct{ pool *pgxpool.Pool }

func NewDrugRepoPG(pool *pgxpool.Pool) DrugRepository {
	return &drugRepoPG{pool: pool}
}

const drugCols = `id, name, category_id, generic_id, description, active, created_at`

func scanDrug(row pgx.Row) (*Drug, error) {
	var d Drug
	err := row.Scan(&d.ID, &d.Name, &d.CategoryID, &d.GenericID, &d.Description, &d.Active, &d.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrDrugNotFound
	}
	return &d, err
}

func (r *drugRepoPG) Create(ctx context.Context, d *Drug) error {
	d.ID = uuid.New()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO drugs (id, name, category_id, generic_id, description, active)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		d.ID, d.Name, d.CategoryID, d.GenericID, d.Description, d.Active)
	return err
}

func (r *drugRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Drug, error) {
	return scanDrug(r.pool.QueryRow(ctx, `SELECT `+drugCols+` FROM drugs WHERE id = $1`, id))
}

func (r *drugRepoPG) List(ctx context.Context, limit, offset int) ([]*Drug, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM drugs`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count drugs: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+drugCols+` FROM drugs ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list drugs: %w", err)
	}
	defer rows.Close()

	var drugs []*Drug
	for rows.Next() {
		var d Drug
		if err := rows.Scan(&d.ID, &d.Name, &d.CategoryID, &d.GenericID, &d.Description, &d.Active, &d.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan drug: %w", err)
		}
		drugs = append(drugs, &d)
	}
	return drugs, total, rows.Err()
}

func (r *drugRepoPG) Update(ctx context.Context, d *Drug) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE drugs SET name=$2, category_id=$3, generic_id=$4, description=$5, active=$6
		WHERE id = $1`,
		d.ID, d.Name, d.CategoryID, d.GenericID, d.Description, d.Active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDrugNotFound
	}
	return nil
}

func (r *drugRepoPG) Deactivate(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `UPDATE drugs SET active = FALSE WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDrugNotFound
	}
	return nil
}

type packageRepoPG struct{ pool *pgxpool.Pool }

func NewPackageRepoPG(pool *pgxpool.Pool) PackageRepository {
	return &packageRepoPG{pool: pool}
}

const packageCols = `id, drug_id, package_name, sub_package_id, quantity,
	strength_value, strength_unit, created_at`

func scanPackage(row pgx.Row) (*Package, error) {
	var p Package
	err := row.Scan(&p.ID, &p.DrugID, &p.PackageName, &p.SubPackageID, &p.Quantity,
		&p.StrengthValue, &p.StrengthUnit, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPackageNotFound
	}
	return &p, err
}

func (r *packageRepoPG) Create(ctx context.Context, p *Package) error {
	p.ID = uuid.New()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO drug_packages (id, drug_id, package_name, sub_package_id, quantity,
			strength_value, strength_unit)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		p.ID, p.DrugID, p.PackageName, p.SubPackageID, p.Quantity,
		p.StrengthValue, p.StrengthUnit)
	return err
}

func (r *packageRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Package, error) {
	return scanPackage(r.pool.QueryRow(ctx, `
		SELECT `+packageCols+` FROM drug_packages WHERE id = $1`, id))
}

func (r *packageRepoPG) list(ctx context.Context, sql string, args ...interface{}) ([]*Package, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list packages: %w", err)
	}
	defer rows.Close()

	var pkgs []*Package
	for rows.Next() {
		var p Package
		if err := rows.Scan(&p.ID, &p.DrugID, &p.PackageName, &p.SubPackageID, &p.Quantity,
			&p.StrengthValue, &p.StrengthUnit, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan package: %w", err)
		}
		pkgs = append(pkgs, &p)
	}
	return pkgs, rows.Err()
}

func (r *packageRepoPG) ListByDrug(ctx context.Context, drugID uuid.UUID) ([]*Package, error) {
	return r.list(ctx, `
		SELECT `+packageCols+` FROM drug_packages WHERE drug_id = $1 ORDER BY created_at`, drugID)
}

func (r *packageRepoPG) ListBaseByDrug(ctx context.Context, drugID uuid.UUID) ([]*Package, error) {
	return r.list(ctx, `
		SELECT `+packageCols+` FROM drug_packages
		WHERE drug_id = $1 AND sub_package_id IS NULL ORDER BY created_at`, drugID)
}

func (r *packageRepoPG) Update(ctx context.Context, p *Package) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE drug_packages SET package_name=$2, sub_package_id=$3, quantity=$4,
			strength_value=$5, strength_unit=$6
		WHERE id = $1`,
		p.ID, p.PackageName, p.SubPackageID, p.Quantity, p.StrengthValue, p.StrengthUnit)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPackageNotFound
	}
	return nil
}

func (r *packageRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM drug_packages WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPackageNotFound
	}
	return nil
}
