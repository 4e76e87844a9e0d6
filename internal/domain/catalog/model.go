package catalog

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DrugCategory maps to the drug_categories table.
type DrugCategory struct {
	ID          uuid.UUID `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description *string   `db:"description" json:"description,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// DrugGeneric maps to the drug_generics table.
type DrugGeneric struct {
	ID          uuid.UUID `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description *string   `db:"description" json:"description,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Drug maps to the drugs table.
type Drug struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	Name        string     `db:"name" json:"name"`
	CategoryID  *uuid.UUID `db:"category_id" json:"category_id,omitempty"`
	GenericID   *uuid.UUID `db:"generic_id" json:"generic_id,omitempty"`
	Description *string    `db:"description" json:"description,omitempty"`
	Active      bool       `db:"active" json:"active"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}

// Package is one node of a drug's packaging tree. SubPackageID points at what
// one of this package is made of; nil means this is the base (indivisible)
// package at which stock is tracked. Quantity is how many sub-package units
// compose one of this package and carries no meaning on a base package.
// Strength fields are only meaningful on the base package.
type Package struct {
	ID            uuid.UUID        `db:"id" json:"id"`
	DrugID        uuid.UUID        `db:"drug_id" json:"drug_id"`
	PackageName   string           `db:"package_name" json:"package_name"`
	SubPackageID  *uuid.UUID       `db:"sub_package_id" json:"sub_package_id,omitempty"`
	Quantity      int              `db:"quantity" json:"quantity"`
	StrengthValue *decimal.Decimal `db:"strength_value" json:"strength_value,omitempty"`
	StrengthUnit  *string          `db:"strength_unit" json:"strength_unit,omitempty"`
	CreatedAt     time.Time        `db:"created_at" json:"created_at"`
}

// IsBase reports whether this package is the indivisible packaging level.
func (p *Package) IsBase() bool {
	return p.SubPackageID == nil
}

// Display is the human-readable name used on prescription views, e.g.
// "500mg Tablet" for a base package with strength, otherwise the package name.
func (p *Package) Display() string {
	if p.StrengthValue != nil && p.StrengthUnit != nil {
		return p.StrengthValue.String() + *p.StrengthUnit + " " + p.PackageName
	}
	return p.PackageName
}
