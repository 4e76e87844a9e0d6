package prescription

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pis/pis/internal/platform/db"
)

type repoPG struct{}

func NewRepoPG() Repository {
	return &repoPG{}
}

func (r *repoPG) Insert(ctx context.Context, uow *db.UnitOfWork, p *Prescription, lines []*Medication) error {
	err := uow.QueryRow(ctx, `
		INSERT INTO prescriptions (patient_id, prescriber_id, prescriber_dept, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, prescribed_at`,
		p.PatientID, p.PrescriberID, p.PrescriberDept, p.Status,
	).Scan(&p.ID, &p.PrescribedAt)
	if err != nil {
		return fmt.Errorf("insert prescription: %w", err)
	}

	for i, m := range lines {
		m.PrescriptionID = p.ID
		m.LineNo = i + 1
		err := uow.QueryRow(ctx, `
			INSERT INTO prescription_medications
				(prescription_id, line_no, drug_id, package_id, dosage_quantity,
				 intake_interval, duration_value, duration_unit, instruction)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING id`,
			m.PrescriptionID, m.LineNo, m.DrugID, m.PackageID, m.DosageQuantity,
			m.IntakeInterval, m.DurationValue, m.DurationUnit, m.Instruction,
		).Scan(&m.ID)
		if err != nil {
			return fmt.Errorf("insert prescription line: %w", err)
		}
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, q db.Queryer, id uuid.UUID) (*Prescription, error) {
	row := q.QueryRow(ctx, `
		SELECT id, patient_id, prescriber_id, prescriber_dept, status, prescribed_at
		FROM prescriptions
		WHERE id = $1`, id)

	var p Prescription
	err := row.Scan(&p.ID, &p.PatientID, &p.PrescriberID, &p.PrescriberDept, &p.Status, &p.PrescribedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("prescription %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get prescription: %w", err)
	}
	return &p, nil
}

func (r *repoPG) ListMedications(ctx context.Context, q db.Queryer, prescriptionID uuid.UUID) ([]*Medication, error) {
	rows, err := q.Query(ctx, `
		SELECT id, prescription_id, line_no, drug_id, package_id, dosage_quantity,
		       intake_interval, duration_value, duration_unit, instruction
		FROM prescription_medications
		WHERE prescription_id = $1
		ORDER BY line_no`, prescriptionID)
	if err != nil {
		return nil, fmt.Errorf("list prescription lines: %w", err)
	}
	defer rows.Close()

	var lines []*Medication
	for rows.Next() {
		var m Medication
		if err := rows.Scan(&m.ID, &m.PrescriptionID, &m.LineNo, &m.DrugID, &m.PackageID,
			&m.DosageQuantity, &m.IntakeInterval, &m.DurationValue,
			&m.DurationUnit, &m.Instruction); err != nil {
			return nil, fmt.Errorf("scan prescription line: %w", err)
		}
		lines = append(lines, &m)
	}
	return lines, rows.Err()
}

func (r *repoPG) ListByStatus(ctx context.Context, q db.Queryer, status *Status, limit, offset int) ([]*Prescription, error) {
	query := `
		SELECT id, patient_id, prescriber_id, prescriber_dept, status, prescribed_at
		FROM prescriptions`
	args := []any{}
	if status != nil {
		query += ` WHERE status = $1`
		args = append(args, *status)
	}
	query += fmt.Sprintf(` ORDER BY prescribed_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list prescriptions: %w", err)
	}
	defer rows.Close()

	var result []*Prescription
	for rows.Next() {
		var p Prescription
		if err := rows.Scan(&p.ID, &p.PatientID, &p.PrescriberID, &p.PrescriberDept,
			&p.Status, &p.PrescribedAt); err != nil {
			return nil, fmt.Errorf("scan prescription: %w", err)
		}
		result = append(result, &p)
	}
	return result, rows.Err()
}

func (r *repoPG) UpdateStatus(ctx context.Context, uow *db.UnitOfWork, id uuid.UUID, from, to Status) (bool, error) {
	tag, err := uow.Exec(ctx, `
		UPDATE prescriptions SET status = $1
		WHERE id = $2 AND status = $3`, to, id, from)
	if err != nil {
		return false, fmt.Errorf("update prescription status: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *repoPG) CountByStatus(ctx context.Context, q db.Queryer) (*StatusCounts, error) {
	rows, err := q.Query(ctx, `
		SELECT status, COUNT(*) FROM prescriptions GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count prescriptions: %w", err)
	}
	defer rows.Close()

	var counts StatusCounts
	for rows.Next() {
		var status Status
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan prescription count: %w", err)
		}
		switch status {
		case StatusPrescribed:
			counts.Prescribed = n
		case StatusOngoing:
			counts.Ongoing = n
		case StatusCompleted:
			counts.Completed = n
		}
	}
	return &counts, rows.Err()
}
