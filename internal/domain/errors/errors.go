// Package errors defines the constraint-violation error types raised by the
// domain/schema layer during row validation, index maintenance, and change
// application.
package errors

import "fmt"

// ConstraintError reports a schema constraint violated by a row value.
type ConstraintError struct {
	Table      string
	Column     string
	Value      interface{}
	Constraint string
	Reason     string
	RowIndex   int
}

func (e *ConstraintError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("constraint violation on %s.%s (%s): %s (value=%v)",
			e.Table, e.Column, e.Constraint, e.Reason, e.Value)
	}
	return fmt.Sprintf("constraint violation on %s.%s (%s): %s",
		e.Table, e.Column, e.Constraint, e.Reason)
}

// ColumnNotFoundError reports a reference to a column absent from a table's schema.
type ColumnNotFoundError struct {
	TableName  string
	ColumnName string
}

func (e *ColumnNotFoundError) Error() string {
	return fmt.Sprintf("column %s.%s does not exist", e.TableName, e.ColumnName)
}

// NewNotNullViolation builds the ConstraintError raised when a NOT NULL
// column is missing a value at the given row position.
func NewNotNullViolation(table, column string, rowIndex int) *ConstraintError {
	return &ConstraintError{
		Table:      table,
		Column:     column,
		Constraint: "not_null",
		Reason:     "missing required value",
		RowIndex:   rowIndex,
	}
}

// NewUniqueViolation builds the ConstraintError raised when a UNIQUE column
// would hold the same value at more than one of the given row positions.
func NewUniqueViolation(table, column string, value interface{}, positions []int) *ConstraintError {
	return &ConstraintError{
		Table:      table,
		Column:     column,
		Value:      value,
		Constraint: "unique",
		Reason:     fmt.Sprintf("duplicate value at row positions %v", positions),
	}
}

// NewPrimaryKeyViolation builds the ConstraintError raised when a primary key
// column would take a value already held by another row.
func NewPrimaryKeyViolation(table, column string, value interface{}) *ConstraintError {
	return &ConstraintError{
		Table:      table,
		Column:     column,
		Value:      value,
		Constraint: "primary_key",
		Reason:     "duplicate primary key value",
	}
}
