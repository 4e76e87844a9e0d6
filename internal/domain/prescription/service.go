package prescription

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pis/pis/internal/domain/inventory"
	"github.com/pis/pis/internal/platform/db"
)

// UnitResolver converts dosed package quantities into base units.
// Satisfied by catalog.Service.
type UnitResolver interface {
	ResolveBaseUnits(ctx context.Context, packageID uuid.UUID, qty decimal.Decimal) (decimal.Decimal, error)
	ResolveBasePackage(ctx context.Context, packageID uuid.UUID) (uuid.UUID, error)
}

// StockKeeper is the slice of the inventory service a dispense needs.
type StockKeeper interface {
	AvailableIn(ctx context.Context, q db.Queryer, drugID, basePackageID uuid.UUID, required decimal.Decimal) (bool, error)
	Allocate(ctx context.Context, uow *db.UnitOfWork, drugID, basePackageID uuid.UUID, required decimal.Decimal, asOf time.Time) error
	LineCost(ctx context.Context, basePackageID uuid.UUID, baseUnits decimal.Decimal) (decimal.Decimal, error)
}

// CatalogReader supplies display names for the read views.
type CatalogReader interface {
	DrugName(ctx context.Context, drugID uuid.UUID) (string, error)
	PackageDisplay(ctx context.Context, packageID uuid.UUID) (string, error)
}

// PrescriberDirectory resolves a prescriber id to a display name for
// departments whose staff registry this system can reach.
type PrescriberDirectory interface {
	LookupName(ctx context.Context, prescriberID uuid.UUID) (string, error)
}

// NoDirectory is a PrescriberDirectory with no registry behind it; every
// lookup misses.
type NoDirectory struct{}

func (NoDirectory) LookupName(context.Context, uuid.UUID) (string, error) {
	return "", nil
}

type Service struct {
	repo      Repository
	resolver  UnitResolver
	stock     StockKeeper
	catalog   CatalogReader
	directory PrescriberDirectory
	runner    db.Runner
	store     db.Queryer
	currency  string
}

func NewService(repo Repository, resolver UnitResolver, stock StockKeeper,
	catalog CatalogReader, directory PrescriberDirectory,
	runner db.Runner, store db.Queryer, currency string) *Service {
	return &Service{
		repo:      repo,
		resolver:  resolver,
		stock:     stock,
		catalog:   catalog,
		directory: directory,
		runner:    runner,
		store:     store,
		currency:  currency,
	}
}

// Create validates and stores a new prescription with all of its lines in
// one unit of work. It does not touch stock; that happens at dispense.
func (s *Service) Create(ctx context.Context, req *CreateRequest) (*Prescription, error) {
	if req.PatientID == "" {
		return nil, fmt.Errorf("patient id is required")
	}
	if req.PrescriberID == uuid.Nil {
		return nil, fmt.Errorf("prescriber id is required")
	}
	dept, err := ParseDept(req.PrescriberDept)
	if err != nil {
		return nil, err
	}
	if len(req.Medications) == 0 {
		return nil, fmt.Errorf("at least one medication line is required")
	}

	lines := make([]*Medication, 0, len(req.Medications))
	for i, in := range req.Medications {
		if in.DrugID == uuid.Nil || in.PackageID == uuid.Nil {
			return nil, fmt.Errorf("medication %d: drug and package ids are required", i)
		}
		if !in.DosageQuantity.IsPositive() {
			return nil, fmt.Errorf("medication %d: dosage quantity must be positive", i)
		}
		if in.IntakeInterval <= 0 || in.DurationValue <= 0 || in.DurationUnit <= 0 {
			return nil, fmt.Errorf("medication %d: intake interval, duration value and duration unit must be positive", i)
		}
		lines = append(lines, &Medication{
			DrugID:         in.DrugID,
			PackageID:      in.PackageID,
			DosageQuantity: in.DosageQuantity,
			IntakeInterval: in.IntakeInterval,
			DurationValue:  in.DurationValue,
			DurationUnit:   in.DurationUnit,
			Instruction:    in.Instruction,
		})
	}

	p := &Prescription{
		PatientID:      req.PatientID,
		PrescriberID:   req.PrescriberID,
		PrescriberDept: dept,
		Status:         StatusPrescribed,
	}
	err = s.runner.Run(ctx, func(uow *db.UnitOfWork) error {
		return s.repo.Insert(ctx, uow, p, lines)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Dispense allocates stock for every line of a PRESCRIBED prescription and
// moves it to ONGOING, all inside a single unit of work. Any failure rolls
// the whole thing back: no line is deducted unless all are.
func (s *Service) Dispense(ctx context.Context, id uuid.UUID) error {
	return s.runner.Run(ctx, func(uow *db.UnitOfWork) error {
		p, err := s.repo.GetByID(ctx, uow, id)
		if err != nil {
			return err
		}
		if p.Status != StatusPrescribed {
			return fmt.Errorf("prescription %s is %s: %w", id, p.Status, ErrAlreadyDispensed)
		}

		lines, err := s.repo.ListMedications(ctx, uow, id)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return fmt.Errorf("prescription %s has no medication lines", id)
		}

		type demand struct {
			line      *Medication
			basePkg   uuid.UUID
			baseUnits decimal.Decimal
		}
		demands := make([]demand, 0, len(lines))
		for _, m := range lines {
			dose := requiredDose(m.DosageQuantity, m.IntakeInterval, m.DurationValue, m.DurationUnit)
			baseUnits, err := s.resolver.ResolveBaseUnits(ctx, m.PackageID, dose)
			if err != nil {
				return fmt.Errorf("medication %s: %w", m.ID, err)
			}
			basePkg, err := s.resolver.ResolveBasePackage(ctx, m.PackageID)
			if err != nil {
				return fmt.Errorf("medication %s: %w", m.ID, err)
			}
			demands = append(demands, demand{line: m, basePkg: basePkg, baseUnits: baseUnits})
		}

		// Check every line before deducting any, so a later line's
		// shortage surfaces as insufficient stock, not a half-applied
		// dispense.
		for _, d := range demands {
			ok, err := s.stock.AvailableIn(ctx, uow, d.line.DrugID, d.basePkg, d.baseUnits)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("drug %s needs %s base units: %w",
					d.line.DrugID, d.baseUnits, inventory.ErrInsufficientStock)
			}
		}

		asOf := time.Now().UTC().Truncate(24 * time.Hour)
		for _, d := range demands {
			if err := s.stock.Allocate(ctx, uow, d.line.DrugID, d.basePkg, d.baseUnits, asOf); err != nil {
				return err
			}
		}

		moved, err := s.repo.UpdateStatus(ctx, uow, id, StatusPrescribed, StatusOngoing)
		if err != nil {
			return err
		}
		if !moved {
			// Another dispense won the race between our read and this
			// update.
			return fmt.Errorf("prescription %s: %w", id, ErrAlreadyDispensed)
		}
		return nil
	})
}

// Get returns the prescription detail view with display names and costs.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*View, error) {
	p, err := s.repo.GetByID(ctx, s.store, id)
	if err != nil {
		return nil, err
	}
	return s.buildView(ctx, p)
}

// ListByStatus pages prescription detail views newest first.
func (s *Service) ListByStatus(ctx context.Context, status *Status, limit, offset int) ([]*View, error) {
	list, err := s.repo.ListByStatus(ctx, s.store, status, limit, offset)
	if err != nil {
		return nil, err
	}
	views := make([]*View, 0, len(list))
	for _, p := range list {
		v, err := s.buildView(ctx, p)
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, nil
}

// Counts returns the per-status dashboard totals.
func (s *Service) Counts(ctx context.Context) (*StatusCounts, error) {
	return s.repo.CountByStatus(ctx, s.store)
}

func (s *Service) buildView(ctx context.Context, p *Prescription) (*View, error) {
	lines, err := s.repo.ListMedications(ctx, s.store, p.ID)
	if err != nil {
		return nil, err
	}

	v := &View{
		ID:             p.ID,
		PatientID:      p.PatientID,
		PrescriberID:   p.PrescriberID,
		PrescriberDept: p.PrescriberDept,
		PrescriberName: s.prescriberName(ctx, p),
		Status:         p.Status,
		PrescribedAt:   p.PrescribedAt,
		TotalCost:      decimal.Zero,
		Currency:       s.currency,
	}

	for _, m := range lines {
		drugName, err := s.catalog.DrugName(ctx, m.DrugID)
		if err != nil {
			return nil, err
		}
		pkgName, err := s.catalog.PackageDisplay(ctx, m.PackageID)
		if err != nil {
			return nil, err
		}

		dose := requiredDose(m.DosageQuantity, m.IntakeInterval, m.DurationValue, m.DurationUnit)
		baseUnits, err := s.resolver.ResolveBaseUnits(ctx, m.PackageID, dose)
		if err != nil {
			return nil, err
		}
		basePkg, err := s.resolver.ResolveBasePackage(ctx, m.PackageID)
		if err != nil {
			return nil, err
		}
		cost, err := s.stock.LineCost(ctx, basePkg, baseUnits)
		if err != nil {
			return nil, err
		}

		v.Medications = append(v.Medications, MedicationView{
			ID:             m.ID,
			DrugID:         m.DrugID,
			DrugName:       drugName,
			PackageID:      m.PackageID,
			PackageName:    pkgName,
			DosageQuantity: m.DosageQuantity,
			IntakeInterval: IntakeIntervalText(m.IntakeInterval),
			Duration:       fmt.Sprintf("%d %s", m.DurationValue, DurationUnitText(m.DurationUnit)),
			Instruction:    m.Instruction,
			RequiredUnits:  baseUnits,
			Cost:           cost,
		})
		v.TotalCost = v.TotalCost.Add(cost)
	}
	return v, nil
}

// prescriberName resolves a display name per originating department. Only
// PIS and EMR carry a reachable staff registry; LIS and CAD identities live
// in systems this service has no view of.
func (s *Service) prescriberName(ctx context.Context, p *Prescription) string {
	switch p.PrescriberDept {
	case DeptPIS, DeptEMR:
		name, err := s.directory.LookupName(ctx, p.PrescriberID)
		if err != nil || name == "" {
			return "Unknown"
		}
		return name
	case DeptLIS, DeptCAD:
		return "Unknown"
	default:
		return "Unknown"
	}
}
