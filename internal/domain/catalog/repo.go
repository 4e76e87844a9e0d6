package catalog

import (
	"context"

	"github.com/google/uuid"
)

type DrugRepository interface {
	Create(ctx context.Context, d *Drug) error
	GetByID(ctx context.Context, id uuid.UUID) (*Drug, error)
	List(ctx context.Context, limit, offset int) ([]*Drug, int, error)
	Update(ctx context.Context, d *Drug) error
	Deactivate(ctx context.Context, id uuid.UUID) error
}

type PackageRepository interface {
	Create(ctx context.Context, p *Package) error
	GetByID(ctx context.Context, id uuid.UUID) (*Package, error)
	ListByDrug(ctx context.Context, drugID uuid.UUID) ([]*Package, error)
	ListBaseByDrug(ctx context.Context, drugID uuid.UUID) ([]*Package, error)
	Update(ctx context.Context, p *Package) error
	Delete(ctx context.Context, id uuid.UUID) error
}
