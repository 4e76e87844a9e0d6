package prescription

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Dept identifies the hospital subsystem a prescription came from.
type Dept string

const (
	DeptPIS Dept = "PIS"
	DeptLIS Dept = "LIS"
	DeptEMR Dept = "EMR"
	DeptCAD Dept = "CAD"
)

// ParseDept validates a department string from the wire.
func ParseDept(s string) (Dept, error) {
	switch Dept(s) {
	case DeptPIS, DeptLIS, DeptEMR, DeptCAD:
		return Dept(s), nil
	default:
		return "", fmt.Errorf("unknown prescriber department %q", s)
	}
}

// Status is the prescription lifecycle state. Dispensing moves PRESCRIBED
// to ONGOING; COMPLETED is set when the course ends.
type Status string

const (
	StatusPrescribed Status = "PRESCRIBED"
	StatusOngoing    Status = "ONGOING"
	StatusCompleted  Status = "COMPLETED"
)

// ParseStatus maps a query-string value onto a Status filter; empty or
// unknown means no filter.
func ParseStatus(s string) *Status {
	switch Status(s) {
	case StatusPrescribed, StatusOngoing, StatusCompleted:
		st := Status(s)
		return &st
	default:
		return nil
	}
}

type Prescription struct {
	ID             uuid.UUID `json:"id"`
	PatientID      string    `json:"patient_id"`
	PrescriberID   uuid.UUID `json:"prescriber_id"`
	PrescriberDept Dept      `json:"prescriber_dept"`
	Status         Status    `json:"status"`
	PrescribedAt   time.Time `json:"prescribed_at"`
}

// Medication is one prescribed line. DosageQuantity is counted in units of
// PackageID, which need not be the base package; duration_unit carries the
// day-multiplier encoding (1 day, 7 week, 30 month, 365 year).
type Medication struct {
	ID             uuid.UUID       `json:"id"`
	PrescriptionID uuid.UUID       `json:"prescription_id"`
	LineNo         int             `json:"line_no"`
	DrugID         uuid.UUID       `json:"drug_id"`
	PackageID      uuid.UUID       `json:"package_id"`
	DosageQuantity decimal.Decimal `json:"dosage_quantity"`
	IntakeInterval int             `json:"intake_interval"`
	DurationValue  int             `json:"duration_value"`
	DurationUnit   int             `json:"duration_unit"`
	Instruction    *string         `json:"instruction,omitempty"`
}

type CreateRequest struct {
	PatientID      string            `json:"patient_id"`
	PrescriberID   uuid.UUID         `json:"prescriber_id"`
	PrescriberDept string            `json:"prescriber_dept"`
	Medications    []MedicationInput `json:"medications"`
}

type MedicationInput struct {
	DrugID         uuid.UUID       `json:"drug_id"`
	PackageID      uuid.UUID       `json:"package_id"`
	DosageQuantity decimal.Decimal `json:"dosage_quantity"`
	IntakeInterval int             `json:"intake_interval"`
	DurationValue  int             `json:"duration_value"`
	DurationUnit   int             `json:"duration_unit"`
	Instruction    *string         `json:"instruction,omitempty"`
}

// requiredDose computes how many package units a line consumes over the
// whole course: dosage × intake interval × duration value × duration unit.
//
// TODO: duration_unit already converts duration_value to days, but
// intake_interval is a frequency code, not doses per day, so e.g. code 3
// ("Every 8 hours") multiplies by 3 while code 4 ("Every 6 hours")
// multiplies by 4. Confirm the intended arithmetic with pharmacy before
// changing it; downstream stock counts depend on the current behavior.
func requiredDose(dosage decimal.Decimal, intakeInterval, durationValue, durationUnit int) decimal.Decimal {
	return dosage.
		Mul(decimal.NewFromInt(int64(intakeInterval))).
		Mul(decimal.NewFromInt(int64(durationValue))).
		Mul(decimal.NewFromInt(int64(durationUnit)))
}

// IntakeIntervalText renders the interval code for display. Codes outside
// the known set render as "Unknown".
func IntakeIntervalText(code int) string {
	switch code {
	case 1:
		return "Once daily"
	case 2:
		return "Twice daily"
	case 3:
		return "Every 8 hours"
	case 4:
		return "Every 6 hours"
	default:
		return "Unknown"
	}
}

// DurationUnitText renders the duration-unit day multiplier for display.
// Codes outside the known set render as "Unknown".
func DurationUnitText(code int) string {
	switch code {
	case 1:
		return "Days"
	case 7:
		return "Weeks"
	case 30:
		return "Months"
	case 365:
		return "Years"
	default:
		return "Unknown"
	}
}

// MedicationView is a medication line enriched for read endpoints.
type MedicationView struct {
	ID             uuid.UUID       `json:"id"`
	DrugID         uuid.UUID       `json:"drug_id"`
	DrugName       string          `json:"drug_name"`
	PackageID      uuid.UUID       `json:"package_id"`
	PackageName    string          `json:"package_name"`
	DosageQuantity decimal.Decimal `json:"dosage_quantity"`
	IntakeInterval string          `json:"intake_interval"`
	Duration       string          `json:"duration"`
	Instruction    *string         `json:"instruction,omitempty"`
	RequiredUnits  decimal.Decimal `json:"required_units"`
	Cost           decimal.Decimal `json:"cost"`
}

// View is the full prescription detail returned by Get and ListByStatus.
type View struct {
	ID             uuid.UUID        `json:"id"`
	PatientID      string           `json:"patient_id"`
	PrescriberID   uuid.UUID        `json:"prescriber_id"`
	PrescriberDept Dept             `json:"prescriber_dept"`
	PrescriberName string           `json:"prescriber_name"`
	Status         Status           `json:"status"`
	PrescribedAt   time.Time        `json:"prescribed_at"`
	Medications    []MedicationView `json:"medications"`
	TotalCost      decimal.Decimal  `json:"total_cost"`
	Currency       string           `json:"currency"`
}

// StatusCounts is the dashboard aggregate.
type StatusCounts struct {
	Prescribed int64 `json:"prescribed"`
	Ongoing    int64 `json:"ongoing"`
	Completed  int64 `json:"completed"`
}
