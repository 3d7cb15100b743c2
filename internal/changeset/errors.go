// Package changeset implements a change-capture and change-application
// engine: a session recorder that intercepts row mutations on a
// domain/schema.Database, a binary changeset codec, a forward iterator, a
// structural inverter, a conflict-aware applier, and a well-formedness
// preserving fuzzer for differential testing.
package changeset

import "fmt"

// Kind names one of the error categories defined by the changeset wire
// format and API contract. Kind values are not themselves errors; use the
// Error type to build one.
type Kind int

const (
	// OutOfMemory reports an allocation failure, latched on the owning session.
	OutOfMemory Kind = iota + 1
	// CorruptFormat reports malformed changeset bytes.
	CorruptFormat
	// SchemaChanged reports a table's column count diverging from what
	// was cached or from what the stream declares.
	SchemaChanged
	// DataConflict is an applier conflict kind: the row exists but its
	// non-PK columns disagree with the expected OLD image.
	DataConflict
	// NotFound is an applier conflict kind: the targeted row is absent.
	NotFound
	// UniqueConflict is an applier conflict kind: a PK collision on INSERT/UPDATE.
	UniqueConflict
	// OtherConstraint is an applier conflict kind for any non-uniqueness
	// constraint violation.
	OtherConstraint
	// Misuse reports an API contract violation.
	Misuse
	// Range reports an index outside [0, nCol).
	Range
	// Abort reports an applier rollback performed at callback request.
	Abort
	// Done reports the iterator's normal end of stream.
	Done
)

func (k Kind) String() string {
	switch k {
	case OutOfMemory:
		return "OutOfMemory"
	case CorruptFormat:
		return "CorruptFormat"
	case SchemaChanged:
		return "SchemaChanged"
	case DataConflict:
		return "DataConflict"
	case NotFound:
		return "NotFound"
	case UniqueConflict:
		return "UniqueConflict"
	case OtherConstraint:
		return "OtherConstraint"
	case Misuse:
		return "Misuse"
	case Range:
		return "Range"
	case Abort:
		return "Abort"
	case Done:
		return "Done"
	default:
		return "Unknown"
	}
}

// Error is the changeset package's error type: a Kind plus context.
type Error struct {
	Kind   Kind
	Op     string // method/operation that raised the error
	Table  string
	Reason string
}

func (e *Error) Error() string {
	if e.Table != "" {
		return fmt.Sprintf("changeset: %s: %s (table=%s): %s", e.Op, e.Kind, e.Table, e.Reason)
	}
	return fmt.Sprintf("changeset: %s: %s: %s", e.Op, e.Kind, e.Reason)
}

// Is reports whether err (or one of its wrapped causes) is a changeset
// Error of the given Kind, so callers can use errors.Is(err, changeset.Done)
// style checks against a sentinel such as ErrDone or ErrCorruptFormat.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}

func newErr(kind Kind, op, table, reason string) *Error {
	return &Error{Kind: kind, Op: op, Table: table, Reason: reason}
}

// sentinel, kind-only errors for errors.Is comparisons where no extra
// context is available (e.g. iterator Done).
var (
	ErrDone          = &Error{Kind: Done, Op: "next", Reason: "end of stream"}
	ErrCorruptFormat = &Error{Kind: CorruptFormat, Op: "decode", Reason: "malformed changeset"}
)
