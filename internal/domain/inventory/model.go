package inventory

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Batch is one stock receipt in the ledger. PackageID is always a base
// package id; quantities are expressed in base units. RemainingUom only ever
// decreases, and only via allocation.
type Batch struct {
	ID              uuid.UUID        `db:"id" json:"id"`
	DrugID          uuid.UUID        `db:"drug_id" json:"drug_id"`
	PackageID       uuid.UUID        `db:"package_id" json:"package_id"`
	BatchNumber     *string          `db:"batch_number" json:"batch_number,omitempty"`
	ManufactureDate *time.Time       `db:"manufacture_date" json:"manufacture_date,omitempty"`
	ExpiryDate      *time.Time       `db:"expiry_date" json:"expiry_date,omitempty"`
	QuantityUom     decimal.Decimal  `db:"quantity_uom" json:"quantity_uom"`
	RemainingUom    decimal.Decimal  `db:"remaining_uom" json:"remaining_uom"`
	UnitCost        *decimal.Decimal `db:"unit_cost" json:"unit_cost,omitempty"`
	Currency        string           `db:"currency" json:"currency"`
	ReceivedBy      *uuid.UUID       `db:"received_by" json:"received_by,omitempty"`
	Quarantined     bool             `db:"quarantined" json:"quarantined"`
	ReceivedAt      time.Time        `db:"received_at" json:"received_at"`
}

// ReceiveRequest is the input to the receiving operation. Quantity is
// expressed in the (possibly non-base) package identified by PackageID;
// CostPerPackage, when given, is the cost of one such package.
type ReceiveRequest struct {
	DrugID          uuid.UUID        `json:"drug_id"`
	PackageID       uuid.UUID        `json:"package_id"`
	Quantity        int              `json:"quantity"`
	BatchNumber     *string          `json:"batch_number,omitempty"`
	ManufactureDate *time.Time       `json:"manufacture_date,omitempty"`
	ExpiryDate      *time.Time       `json:"expiry_date,omitempty"`
	CostPerPackage  *decimal.Decimal `json:"cost_per_package,omitempty"`
	ReceivedBy      *uuid.UUID       `json:"received_by,omitempty"`
}

// StockStatus classifies a package's on-hand stock level.
type StockStatus string

const (
	StatusOutOfStock StockStatus = "OUT_OF_STOCK"
	StatusLowStock   StockStatus = "LOW_STOCK"
	StatusOK         StockStatus = "OK"
)

// lowStockRatio marks a package LOW_STOCK when remaining drops below this
// share of the quantity ever entered.
var lowStockRatio = decimal.NewFromFloat(0.2)

// ParseStockStatus maps a query-string value onto a StockStatus filter; an
// empty or unknown value means no filter.
func ParseStockStatus(s string) *StockStatus {
	switch StockStatus(s) {
	case StatusOutOfStock, StatusLowStock, StatusOK:
		st := StockStatus(s)
		return &st
	default:
		return nil
	}
}

// classifyStock applies the stock thresholds: nothing left is OUT_OF_STOCK,
// under 20% of the entered quantity is LOW_STOCK, anything else OK.
func classifyStock(entered, remaining decimal.Decimal) StockStatus {
	switch {
	case remaining.LessThanOrEqual(decimal.Zero):
		return StatusOutOfStock
	case remaining.LessThan(entered.Mul(lowStockRatio)):
		return StatusLowStock
	default:
		return StatusOK
	}
}

// PackageStock is the per-base-package aggregate in the inventory snapshot.
type PackageStock struct {
	PackageID      uuid.UUID        `json:"package_id"`
	PackageName    string           `json:"package_name"`
	TotalEntered   decimal.Decimal  `json:"total_entered"`
	TotalRemaining decimal.Decimal  `json:"total_remaining"`
	LatestCost     *decimal.Decimal `json:"latest_cost,omitempty"`
	Status         StockStatus      `json:"status"`
}

// DrugStock groups a drug's package aggregates in the inventory snapshot.
type DrugStock struct {
	DrugID   uuid.UUID      `json:"drug_id"`
	DrugName string         `json:"drug_name"`
	Category string         `json:"category"`
	Generic  string         `json:"generic"`
	Packages []PackageStock `json:"packages"`
}
