package changeset

import (
	"github.com/leengari/changetrack/internal/domain/data"
	"github.com/leengari/changetrack/internal/domain/schema"
)

// ConflictKind classifies why Apply could not apply a record as recorded.
type ConflictKind int

const (
	// ConflictData means the targeted row exists but its current values
	// disagree with the record's OLD image.
	ConflictData ConflictKind = iota + 1
	// ConflictNotFound means the targeted row does not exist.
	ConflictNotFound
	// ConflictPK means an INSERT or UPDATE collides on at least one
	// primary-key column with a row already occupying that key. REPLACE is
	// well-defined for this kind: delete the colliding row and retry.
	ConflictPK
	// ConflictConstraint means an INSERT or UPDATE would violate some
	// other (non-PK) table constraint. REPLACE has no defined recovery for
	// this kind and is treated as an omit.
	ConflictConstraint
)

func (k ConflictKind) String() string {
	switch k {
	case ConflictData:
		return "DATA"
	case ConflictNotFound:
		return "NOTFOUND"
	case ConflictPK:
		return "CONFLICT"
	case ConflictConstraint:
		return "CONSTRAINT"
	default:
		return "UNKNOWN"
	}
}

// Resolution is a conflict handler's decision for one conflicting record.
type Resolution int

const (
	// ResolveOmit skips the record and continues applying the rest of the
	// changeset.
	ResolveOmit Resolution = iota + 1
	// ResolveReplace forces the record's effect onto the table regardless
	// of the conflict.
	ResolveReplace
	// ResolveAbort rolls the whole Apply call back to its starting state.
	ResolveAbort
)

// ConflictHandler is consulted whenever applying a record would conflict
// with a target table's current state. it is positioned on the
// conflicting record so the handler can inspect Old/New values.
type ConflictHandler func(kind ConflictKind, tableName string, it *Iterator) Resolution

// DefaultConflictHandler aborts on every conflict, the conservative choice
// for a caller with no conflict policy of its own.
func DefaultConflictHandler(ConflictKind, string, *Iterator) Resolution {
	return ResolveAbort
}

// Apply applies every record in changesetBytes to db's tables. Before
// touching anything it snapshots every target table's row slice; if a
// conflict handler returns ResolveAbort, or the stream turns out to be
// corrupt partway through, every table touched so far is restored from
// that snapshot, matching the "bracket the whole apply in a savepoint"
// behavior of an engine with native transactions.
func Apply(db *schema.Database, changesetBytes []byte, handler ConflictHandler) error {
	if handler == nil {
		handler = DefaultConflictHandler
	}

	snapshot := snapshotTables(db)
	it := NewIterator(changesetBytes)

	for it.Next() {
		if err := applyRecord(db, it, handler); err != nil {
			restoreTables(db, snapshot)
			return err
		}
	}
	if it.State() == StateCorrupt {
		restoreTables(db, snapshot)
		return it.Err()
	}
	return nil
}

func snapshotTables(db *schema.Database) map[string][]data.Row {
	snap := make(map[string][]data.Row, len(db.Tables))
	for name, t := range db.Tables {
		snap[name] = t.SelectAll(nil)
	}
	return snap
}

// restoreTables rewrites each table's row slice back to its snapshotted
// contents and rebuilds indexes via schema.BuildIndexes, keeping this
// package on Table's public surface rather than reaching into its
// unexported rebuild path.
func restoreTables(db *schema.Database, snap map[string][]data.Row) {
	for name, rows := range snap {
		t, ok := db.Tables[name]
		if !ok {
			continue
		}
		t.Lock()
		t.Rows = rows
		t.Unlock()
		_ = schema.BuildIndexes(t)
	}
}

func applyRecord(db *schema.Database, it *Iterator, handler ConflictHandler) error {
	tableName := it.TableName()
	t, ok := db.Tables[tableName]
	if !ok {
		return newErr(SchemaChanged, "Apply", tableName, "target table does not exist")
	}

	colNames := t.ColumnNames()
	if len(colNames) != it.NCol() {
		return newErr(SchemaChanged, "Apply", tableName, "target table column count does not match changeset")
	}

	op, err := it.Op()
	if err != nil {
		return err
	}

	switch op {
	case "INSERT":
		return applyInsert(t, it, colNames, handler)
	case "DELETE":
		return applyDelete(t, it, colNames, handler)
	case "UPDATE":
		return applyUpdate(t, it, colNames, handler)
	default:
		return newErr(CorruptFormat, "Apply", tableName, "unrecognized op")
	}
}

// pkColumn returns the name of the single primary-key column the
// changeset's PK bitmap identifies for the current record, or false if the
// group carries none (a table with no PK cannot be conflict-checked by
// identity: applyDelete and applyUpdate refuse it with Misuse, and
// applyInsert inserts without a PK collision check).
func pkColumn(it *Iterator, colNames []string) (string, int, bool) {
	for i, name := range colNames {
		isPK, err := it.PK(i)
		if err == nil && isPK {
			return name, i, true
		}
	}
	return "", 0, false
}

func applyInsert(t *schema.Table, it *Iterator, colNames []string, handler ConflictHandler) error {
	rowData := make(map[string]interface{}, len(colNames))
	for i, name := range colNames {
		v, err := it.New(i)
		if err != nil {
			return err
		}
		rowData[name] = wireValueToGo(v)
	}

	if pkName, pkIdx, ok := pkColumn(it, colNames); ok {
		pkVal := rowData[colNames[pkIdx]]
		if colliding, found := t.SelectByIndex(pkName, pkVal, nil); found {
			switch handler(ConflictPK, t.Name, it) {
			case ResolveOmit:
				return nil
			case ResolveReplace:
				if _, err := t.Delete(matchValue(pkName, pkVal), nil); err != nil {
					return newErr(Abort, "Apply", t.Name, err.Error())
				}
				if err := t.Insert(data.NewRow(rowData), nil); err != nil {
					// retry failed: undo the forced delete and continue with
					// the next record, per REPLACE-on-CONFLICT semantics.
					if reErr := t.Insert(colliding.Copy(), nil); reErr != nil {
						return newErr(Abort, "Apply", t.Name, "failed to restore colliding row after failed REPLACE retry: "+reErr.Error())
					}
					return nil
				}
				return nil
			default:
				return newErr(Abort, "Apply", t.Name, "conflict handler requested abort")
			}
		}
	}

	if err := t.Insert(data.NewRow(rowData), nil); err != nil {
		switch handler(ConflictConstraint, t.Name, it) {
		case ResolveOmit, ResolveReplace:
			return nil
		default:
			return newErr(Abort, "Apply", t.Name, err.Error())
		}
	}
	return nil
}

func applyDelete(t *schema.Table, it *Iterator, colNames []string, handler ConflictHandler) error {
	oldData := make(map[string]interface{}, len(colNames))
	for i, name := range colNames {
		v, err := it.Old(i)
		if err != nil {
			return err
		}
		if v.IsDefined() {
			oldData[name] = wireValueToGo(v)
		}
	}

	pkName, pkIdx, ok := pkColumn(it, colNames)
	if !ok {
		return newErr(Misuse, "Apply", t.Name, "no primary key column recorded for this table")
	}
	pkVal := oldData[colNames[pkIdx]]

	current, found := t.SelectByIndex(pkName, pkVal, nil)
	if !found {
		switch handler(ConflictNotFound, t.Name, it) {
		case ResolveOmit, ResolveReplace:
			return nil
		default:
			return newErr(Abort, "Apply", t.Name, "conflict handler requested abort")
		}
	}

	if !rowMatchesOld(current, oldData) {
		switch handler(ConflictData, t.Name, it) {
		case ResolveOmit:
			return nil
		case ResolveReplace:
			// fall through to delete regardless of the mismatch
		default:
			return newErr(Abort, "Apply", t.Name, "conflict handler requested abort")
		}
	}

	_, err := t.Delete(matchValue(pkName, pkVal), nil)
	return err
}

func applyUpdate(t *schema.Table, it *Iterator, colNames []string, handler ConflictHandler) error {
	oldData := make(map[string]interface{}, len(colNames))
	newData := make(map[string]interface{})
	for i, name := range colNames {
		ov, err := it.Old(i)
		if err != nil {
			return err
		}
		if ov.IsDefined() {
			oldData[name] = wireValueToGo(ov)
		}
		nv, err := it.New(i)
		if err != nil {
			return err
		}
		if nv.IsDefined() {
			newData[name] = wireValueToGo(nv)
		}
	}

	pkName, pkIdx, ok := pkColumn(it, colNames)
	if !ok {
		return newErr(Misuse, "Apply", t.Name, "no primary key column recorded for this table")
	}
	pkVal := oldData[colNames[pkIdx]]

	current, found := t.SelectByIndex(pkName, pkVal, nil)
	if !found {
		switch handler(ConflictNotFound, t.Name, it) {
		case ResolveOmit:
			return nil
		case ResolveReplace:
			return applyInsertValues(t, colNames, pkName, newData, handler, it)
		default:
			return newErr(Abort, "Apply", t.Name, "conflict handler requested abort")
		}
	}

	if !rowMatchesOld(current, oldData) {
		switch handler(ConflictData, t.Name, it) {
		case ResolveOmit:
			return nil
		case ResolveReplace:
			// proceed with the update regardless of the mismatch
		default:
			return newErr(Abort, "Apply", t.Name, "conflict handler requested abort")
		}
	}

	if newPKVal, changesPK := newData[pkName]; changesPK && !valuesEqual(newPKVal, pkVal) {
		if colliding, found := t.SelectByIndex(pkName, newPKVal, nil); found {
			switch handler(ConflictPK, t.Name, it) {
			case ResolveOmit:
				return nil
			case ResolveReplace:
				if _, err := t.Delete(matchValue(pkName, newPKVal), nil); err != nil {
					return newErr(Abort, "Apply", t.Name, err.Error())
				}
				if _, err := t.Update(matchValue(pkName, pkVal), data.NewRow(newData), nil); err != nil {
					// retry failed: undo the forced delete and continue with
					// the next record, per REPLACE-on-CONFLICT semantics.
					if reErr := t.Insert(colliding.Copy(), nil); reErr != nil {
						return newErr(Abort, "Apply", t.Name, "failed to restore colliding row after failed REPLACE retry: "+reErr.Error())
					}
					return nil
				}
				return nil
			default:
				return newErr(Abort, "Apply", t.Name, "conflict handler requested abort")
			}
		}
	}

	if _, err := t.Update(matchValue(pkName, pkVal), data.NewRow(newData), nil); err != nil {
		switch handler(ConflictConstraint, t.Name, it) {
		case ResolveOmit, ResolveReplace:
			return nil
		default:
			return newErr(Abort, "Apply", t.Name, err.Error())
		}
	}
	return nil
}

func applyInsertValues(t *schema.Table, colNames []string, pkName string, newData map[string]interface{}, handler ConflictHandler, it *Iterator) error {
	if err := t.Insert(data.NewRow(newData), nil); err != nil {
		switch handler(ConflictConstraint, t.Name, it) {
		case ResolveOmit, ResolveReplace:
			return nil
		default:
			return newErr(Abort, "Apply", t.Name, err.Error())
		}
	}
	return nil
}

func matchValue(colName string, value interface{}) func(data.Row) bool {
	return func(r data.Row) bool {
		v, ok := r.Data[colName]
		return ok && valuesEqual(v, value)
	}
}

// rowMatchesOld reports whether current's values agree with every column
// present in oldData (columns the record left UNDEF are not checked,
// since the changeset never claimed to know their old value).
func rowMatchesOld(current data.Row, oldData map[string]interface{}) bool {
	for k, want := range oldData {
		if !valuesEqual(current.Data[k], want) {
			return false
		}
	}
	return true
}

// valuesEqual compares two row-cell values allowing for the int64/float64
// ambiguity a JSON round trip introduces.
func valuesEqual(a, b interface{}) bool {
	af, aok := asFloat(a)
	bf, bok := asFloat(b)
	if aok && bok {
		return af == bf
	}
	return a == b
}

func asFloat(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int64:
		return float64(x), true
	case int:
		return float64(x), true
	default:
		return 0, false
	}
}
