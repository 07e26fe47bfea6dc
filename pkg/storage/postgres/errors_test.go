package postgres

import (
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyErrorForeignKeyViolation(t *testing.T) {
	pqErr := &pq.Error{
		Code:       "23503",
		Table:      "case_notes",
		Constraint: "case_notes_client_tenant_fkey",
		Message:    `insert or update on table "case_notes" violates foreign key constraint`,
	}

	err := ClassifyError(fmt.Errorf("failed to create case note: %w", pqErr))
	require.True(t, IsConstraintViolation(err))

	var violation *ConstraintViolationError
	require.ErrorAs(t, err, &violation)
	assert.Equal(t, "case_notes", violation.Table)
	assert.Equal(t, "case_notes_client_tenant_fkey", violation.Constraint)
	assert.Equal(t, "23503", violation.Code)
}

func TestClassifyErrorUniqueViolation(t *testing.T) {
	pqErr := &pq.Error{Code: "23505", Table: "clients", Constraint: "clients_id_tenant_key"}

	err := ClassifyError(pqErr)
	assert.True(t, IsConstraintViolation(err))
}

func TestClassifyErrorPassthrough(t *testing.T) {
	// Other pq codes are not isolation failures.
	pqErr := &pq.Error{Code: "42P01", Message: "relation does not exist"}
	assert.False(t, IsConstraintViolation(ClassifyError(pqErr)))

	// Non-pq errors pass through untouched.
	err := assert.AnError
	assert.Equal(t, err, ClassifyError(err))

	assert.NoError(t, ClassifyError(nil))
}
