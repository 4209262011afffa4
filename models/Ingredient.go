package models

import (
	"strings"

	"gorm.io/gorm"

	"foodgram/internal/apperr"
)

// Ingredient is a catalog entry identified by its name and measurement unit.
type Ingredient struct {
	ID              uint   `gorm:"primaryKey" json:"id"`
	Name            string `gorm:"not null;size:200;uniqueIndex:idx_ingredient_name_unit" json:"name"`
	MeasurementUnit string `gorm:"not null;size:200;uniqueIndex:idx_ingredient_name_unit" json:"measurement_unit"`
}

// BeforeSave lower-cases the identity and rejects blank values.
func (i *Ingredient) BeforeSave(*gorm.DB) error {
	i.Name = NormalizeName(i.Name)
	i.MeasurementUnit = NormalizeName(i.MeasurementUnit)
	if i.Name == "" {
		return apperr.Validation(apperr.ErrInvalidField, "ingredient name must not be empty")
	}
	if i.MeasurementUnit == "" {
		return apperr.Validation(apperr.ErrInvalidField, "ingredient measurement unit must not be empty")
	}
	return nil
}

// NormalizeName trims, collapses inner whitespace and lower-cases value.
func NormalizeName(value string) string {
	return strings.ToLower(strings.Join(strings.Fields(value), " "))
}
