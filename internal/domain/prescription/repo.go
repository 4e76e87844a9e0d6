package prescription

import (
	"context"

	"github.com/google/uuid"

	"github.com/pis/pis/internal/platform/db"
)

// Repository is the persistence port for prescriptions. Mutations take the
// caller's unit of work; reads take any Queryer so they can run inside a
// dispense transaction or straight off the pool.
type Repository interface {
	// Insert stores the prescription and all of its lines, numbering them
	// 1..n in the order given. The caller has already assigned ids and
	// status.
	Insert(ctx context.Context, uow *db.UnitOfWork, p *Prescription, lines []*Medication) error

	// GetByID returns ErrNotFound when the id does not exist.
	GetByID(ctx context.Context, q db.Queryer, id uuid.UUID) (*Prescription, error)

	// ListMedications returns the lines of one prescription ordered by
	// line number, the order they were prescribed in.
	ListMedications(ctx context.Context, q db.Queryer, prescriptionID uuid.UUID) ([]*Medication, error)

	// ListByStatus pages prescriptions newest first, optionally filtered to
	// one status.
	ListByStatus(ctx context.Context, q db.Queryer, status *Status, limit, offset int) ([]*Prescription, error)

	// UpdateStatus transitions id from one status to another. No row moved
	// means the prescription was missing or not in the expected state; the
	// caller disambiguates.
	UpdateStatus(ctx context.Context, uow *db.UnitOfWork, id uuid.UUID, from, to Status) (bool, error)

	// CountByStatus returns totals per lifecycle state.
	CountByStatus(ctx context.Context, q db.Queryer) (*StatusCounts, error)
}
