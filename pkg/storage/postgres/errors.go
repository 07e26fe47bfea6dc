package postgres

import (
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// pq error codes for constraint failures.
const (
	pqForeignKeyViolation = "23503"
	pqUniqueViolation     = "23505"
)

// ConstraintViolationError is a write rejected by the schema's isolation
// constraints: a composite foreign key or composite uniqueness failure.
// Such writes indicate a tenant-consistency bug in the caller and are
// never retried.
type ConstraintViolationError struct {
	Table      string
	Constraint string
	Code       string
	Detail     string
}

func (e *ConstraintViolationError) Error() string {
	return fmt.Sprintf("constraint violation on %s (%s): %s", e.Table, e.Constraint, e.Detail)
}

// ClassifyError maps pq foreign-key and uniqueness violations to
// ConstraintViolationError, passing every other error through unchanged.
func ClassifyError(err error) error {
	if err == nil {
		return nil
	}

	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}

	switch string(pqErr.Code) {
	case pqForeignKeyViolation, pqUniqueViolation:
		return &ConstraintViolationError{
			Table:      pqErr.Table,
			Constraint: pqErr.Constraint,
			Code:       string(pqErr.Code),
			Detail:     pqErr.Message,
		}
	}

	return err
}

// IsConstraintViolation reports whether err is an isolation-constraint
// failure.
func IsConstraintViolation(err error) bool {
	var violation *ConstraintViolationError
	return errors.As(err, &violation)
}

// SchemaContractError is returned when a migration declares a composite
// foreign key against a table whose composite (id, tenant_id) uniqueness
// has not been declared. Applying such a migration would silently weaken
// the isolation guarantee, so the engine refuses it outright.
type SchemaContractError struct {
	Version         int
	ReferencedTable string
}

func (e *SchemaContractError) Error() string {
	return fmt.Sprintf(
		"migration %d references %s (id, tenant_id) but no composite key is declared for that table",
		e.Version, e.ReferencedTable)
}
