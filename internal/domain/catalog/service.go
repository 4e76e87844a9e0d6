package catalog

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// maxPackageDepth bounds the packaging-tree walk. Real hierarchies are two or
// three levels (Box -> Strip -> Tablet); anything deeper than this is corrupt
// data, not a legitimate catalog.
const maxPackageDepth = 16

type Service struct {
	drugs    DrugRepository
	packages PackageRepository
}

func NewService(drugs DrugRepository, packages PackageRepository) *Service {
	return &Service{drugs: drugs, packages: packages}
}

// -- Drugs --

func (s *Service) CreateDrug(ctx context.Context, d *Drug) error {
	if d.Name == "" {
		return fmt.Errorf("name is required")
	}
	d.Active = true
	return s.drugs.Create(ctx, d)
}

func (s *Service) GetDrug(ctx context.Context, id uuid.UUID) (*Drug, error) {
	return s.drugs.GetByID(ctx, id)
}

func (s *Service) ListDrugs(ctx context.Context, limit, offset int) ([]*Drug, int, error) {
	return s.drugs.List(ctx, limit, offset)
}

func (s *Service) UpdateDrug(ctx context.Context, d *Drug) error {
	if d.Name == "" {
		return fmt.Errorf("name is required")
	}
	return s.drugs.Update(ctx, d)
}

func (s *Service) DeactivateDrug(ctx context.Context, id uuid.UUID) error {
	return s.drugs.Deactivate(ctx, id)
}

// DrugName resolves a drug's display name.
func (s *Service) DrugName(ctx context.Context, id uuid.UUID) (string, error) {
	d, err := s.drugs.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	return d.Name, nil
}

// -- Packages --

func (s *Service) CreatePackage(ctx context.Context, p *Package) error {
	if err := s.validatePackage(ctx, p, uuid.Nil); err != nil {
		return err
	}
	return s.packages.Create(ctx, p)
}

func (s *Service) UpdatePackage(ctx context.Context, p *Package) error {
	if err := s.validatePackage(ctx, p, p.ID); err != nil {
		return err
	}
	return s.packages.Update(ctx, p)
}

// validatePackage rejects writes that would corrupt the packaging tree. The
// parent chain below the new sub-package must terminate at a base package
// without passing through the package being written (selfID, uuid.Nil on
// create).
func (s *Service) validatePackage(ctx context.Context, p *Package, selfID uuid.UUID) error {
	if p.PackageName == "" {
		return fmt.Errorf("package_name is required")
	}
	if _, err := s.drugs.GetByID(ctx, p.DrugID); err != nil {
		return err
	}
	if p.SubPackageID == nil {
		return nil
	}
	if p.Quantity < 1 {
		return fmt.Errorf("quantity must be at least 1 for a non-base package")
	}
	if selfID != uuid.Nil && *p.SubPackageID == selfID {
		return fmt.Errorf("%w: package cannot contain itself", ErrPackageCycle)
	}

	seen := map[uuid.UUID]bool{}
	currentID := *p.SubPackageID
	for depth := 0; depth < maxPackageDepth; depth++ {
		if currentID == selfID || seen[currentID] {
			return fmt.Errorf("%w: via package %s", ErrPackageCycle, currentID)
		}
		seen[currentID] = true

		pkg, err := s.packages.GetByID(ctx, currentID)
		if err != nil {
			return err
		}
		if pkg.DrugID != p.DrugID {
			return fmt.Errorf("sub-package %s belongs to a different drug", currentID)
		}
		if pkg.SubPackageID == nil {
			return nil
		}
		currentID = *pkg.SubPackageID
	}
	return fmt.Errorf("%w: depth limit exceeded", ErrPackageCycle)
}

func (s *Service) GetPackage(ctx context.Context, id uuid.UUID) (*Package, error) {
	return s.packages.GetByID(ctx, id)
}

func (s *Service) ListPackages(ctx context.Context, drugID uuid.UUID) ([]*Package, error) {
	return s.packages.ListByDrug(ctx, drugID)
}

func (s *Service) ListBasePackages(ctx context.Context, drugID uuid.UUID) ([]*Package, error) {
	return s.packages.ListBaseByDrug(ctx, drugID)
}

func (s *Service) DeletePackage(ctx context.Context, id uuid.UUID) error {
	return s.packages.Delete(ctx, id)
}

// PackageOwner returns the id of the drug the package belongs to.
func (s *Service) PackageOwner(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	p, err := s.packages.GetByID(ctx, id)
	if err != nil {
		return uuid.Nil, err
	}
	return p.DrugID, nil
}

// PackageDisplay resolves a package's display name for prescription views.
func (s *Service) PackageDisplay(ctx context.Context, id uuid.UUID) (string, error) {
	p, err := s.packages.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	return p.Display(), nil
}

// -- Hierarchy resolution --

// walkToBase follows sub_package_id pointers from packageID down to the base
// package, accumulating the base-unit multiplier. The base package itself
// contributes a factor of 1. Guarded by a visited set and a depth bound so a
// corrupt (cyclic) hierarchy fails with ErrPackageCycle instead of looping.
func (s *Service) walkToBase(ctx context.Context, packageID uuid.UUID) (uuid.UUID, decimal.Decimal, error) {
	multiplier := decimal.NewFromInt(1)
	seen := map[uuid.UUID]bool{}
	currentID := packageID

	for depth := 0; depth < maxPackageDepth; depth++ {
		if seen[currentID] {
			return uuid.Nil, decimal.Zero, fmt.Errorf("%w: via package %s", ErrPackageCycle, currentID)
		}
		seen[currentID] = true

		pkg, err := s.packages.GetByID(ctx, currentID)
		if err != nil {
			return uuid.Nil, decimal.Zero, err
		}
		if pkg.SubPackageID == nil {
			return currentID, multiplier, nil
		}
		multiplier = multiplier.Mul(decimal.NewFromInt(int64(pkg.Quantity)))
		currentID = *pkg.SubPackageID
	}
	return uuid.Nil, decimal.Zero, fmt.Errorf("%w: depth limit exceeded", ErrPackageCycle)
}

// ResolveBaseUnits converts a quantity expressed in the given package to base
// units: packageQuantity times the product of each non-base ancestor's
// quantity.
func (s *Service) ResolveBaseUnits(ctx context.Context, packageID uuid.UUID, packageQuantity decimal.Decimal) (decimal.Decimal, error) {
	_, multiplier, err := s.walkToBase(ctx, packageID)
	if err != nil {
		return decimal.Zero, err
	}
	return packageQuantity.Mul(multiplier), nil
}

// ResolveBasePackage returns the id of the base package reached from
// packageID.
func (s *Service) ResolveBasePackage(ctx context.Context, packageID uuid.UUID) (uuid.UUID, error) {
	baseID, _, err := s.walkToBase(ctx, packageID)
	return baseID, err
}
