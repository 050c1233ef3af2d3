// Package validation provides struct-tag validation built on
// go-playground/validator, translating failures into the service's
// structured AppError type with field-level detail.
package validation
