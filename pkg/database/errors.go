package database

import (
	"strings"

	"github.com/lib/pq"

	"github.com/CoderMariusz/MonoPilot-sub006/pkg/errors"
)

// MapPQError converts a PostgreSQL error to an AppError with meaningful messages.
// Returns nil if the error is not a pq.Error.
func MapPQError(err error) *errors.AppError {
	pqErr, ok := err.(*pq.Error)
	if !ok {
		return nil
	}

	switch pqErr.Code {
	// Check constraint violation (23514)
	case "23514":
		return mapCheckConstraint(pqErr)

	// Unique constraint violation (23505)
	case "23505":
		return errors.Conflict(formatConstraintMessage(pqErr))

	// Foreign key violation (23503)
	case "23503":
		return errors.ValidationMessage("referenced record does not exist")

	// Not null violation (23502)
	case "23502":
		col := pqErr.Column
		if col == "" {
			col = "required field"
		}
		return errors.Validation(map[string]string{
			col: "must not be empty",
		})

	default:
		return nil
	}
}

// mapCheckConstraint maps specific CHECK constraint names to user-friendly messages.
func mapCheckConstraint(pqErr *pq.Error) *errors.AppError {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "quantity_non_negative"):
		return errors.InsufficientQuantity("quantity cannot go below zero")

	case strings.Contains(constraint, "status_valid"):
		return errors.Validation(map[string]string{
			"status": "must be one of: available, reserved, blocked, consumed",
		})

	case strings.Contains(constraint, "qa_status_valid"):
		return errors.Validation(map[string]string{
			"qa_status": "must be one of: pending, passed, failed, quarantine",
		})

	case strings.Contains(constraint, "source_valid"):
		return errors.Validation(map[string]string{
			"source": "must be one of: receipt, production, merge, transfer",
		})

	default:
		return errors.ValidationMessage("data validation failed: " + constraint)
	}
}

// formatConstraintMessage creates a user-friendly message for unique constraint violations.
func formatConstraintMessage(pqErr *pq.Error) string {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "lp_number"):
		return "a license plate with this number already exists"
	case strings.Contains(constraint, "receipt_number"):
		return "a goods receipt with this number already exists"
	default:
		return "a record with these values already exists"
	}
}
