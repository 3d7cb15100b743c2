package changeset

import (
	"testing"

	"github.com/leengari/changetrack/internal/domain/data"
	"github.com/leengari/changetrack/internal/domain/schema"
	"gotest.tools/v3/assert"
)

func TestSessionRecordsInsertUpdateDelete(t *testing.T) {
	db, tbl := newTestDatabase(t)
	insertRow(t, tbl, 1, "before")
	insertRow(t, tbl, 2, "to delete")

	sess := NewSession(db, db.Name)
	defer sess.Close()
	assert.NilError(t, sess.Attach("events"))

	_, err := tbl.Update(func(r data.Row) bool {
		id, _ := r.Data["id"].(int64)
		return id == 1
	}, data.NewRow(map[string]interface{}{"payload": "after"}), nil)
	assert.NilError(t, err)

	_, err = tbl.Delete(func(r data.Row) bool {
		id, _ := r.Data["id"].(int64)
		return id == 2
	}, nil)
	assert.NilError(t, err)

	insertRow(t, tbl, 3, "new")

	assert.NilError(t, sess.Err())

	cs, err := sess.Changeset()
	assert.NilError(t, err)
	assert.Check(t, len(cs) > 0)

	it := NewIterator(cs)
	var ops []string
	for it.Next() {
		op, err := it.Op()
		assert.NilError(t, err)
		ops = append(ops, op)
		assert.Equal(t, it.TableName(), "events")
		assert.Equal(t, it.NCol(), 2)
	}
	assert.Equal(t, it.State(), StateDone)
	assert.DeepEqual(t, ops, []string{"UPDATE", "DELETE", "INSERT"})
}

// TestSessionInsertThenUpdateCollapsesToInsert covers spec scenario A: a row
// created and then mutated within the same session never existed from the
// changeset's point of view before the session's final state, so it
// collapses to one INSERT carrying the row's latest values, not an UPDATE
// carrying its original (in-session) values.
func TestSessionInsertThenUpdateCollapsesToInsert(t *testing.T) {
	db, tbl := newTestDatabase(t)
	sess := NewSession(db, db.Name)
	defer sess.Close()
	assert.NilError(t, sess.Attach("events"))

	insertRow(t, tbl, 1, "x")
	_, err := tbl.Update(func(r data.Row) bool {
		id, _ := r.Data["id"].(int64)
		return id == 1
	}, data.NewRow(map[string]interface{}{"payload": "y"}), nil)
	assert.NilError(t, err)

	cs, err := sess.Changeset()
	assert.NilError(t, err)

	it := NewIterator(cs)
	assert.Check(t, it.Next())
	op, err := it.Op()
	assert.NilError(t, err)
	assert.Equal(t, op, "INSERT")

	newVal, err := it.New(1)
	assert.NilError(t, err)
	assert.Equal(t, newVal.Text, "y")

	assert.Check(t, !it.Next())
	assert.Equal(t, it.State(), StateDone)
}

// TestSessionInsertThenDeleteSuppressed covers a row both created and
// removed within the same session: it never existed before the session and
// does not exist after, so no record should be emitted for it at all.
func TestSessionInsertThenDeleteSuppressed(t *testing.T) {
	db, tbl := newTestDatabase(t)
	sess := NewSession(db, db.Name)
	defer sess.Close()
	assert.NilError(t, sess.Attach("events"))

	insertRow(t, tbl, 1, "x")
	_, err := tbl.Delete(func(r data.Row) bool {
		id, _ := r.Data["id"].(int64)
		return id == 1
	}, nil)
	assert.NilError(t, err)

	cs, err := sess.Changeset()
	assert.NilError(t, err)
	assert.Equal(t, len(cs), 0)
}

func TestSessionEarliestPreimageWins(t *testing.T) {
	db, tbl := newTestDatabase(t)
	insertRow(t, tbl, 1, "v1")

	sess := NewSession(db, db.Name)
	defer sess.Close()
	assert.NilError(t, sess.Attach("events"))

	for _, payload := range []string{"v2", "v3", "v4"} {
		_, err := tbl.Update(func(r data.Row) bool {
			id, _ := r.Data["id"].(int64)
			return id == 1
		}, data.NewRow(map[string]interface{}{"payload": payload}), nil)
		assert.NilError(t, err)
	}

	cs, err := sess.Changeset()
	assert.NilError(t, err)

	it := NewIterator(cs)
	assert.Check(t, it.Next())
	op, err := it.Op()
	assert.NilError(t, err)
	assert.Equal(t, op, "UPDATE")

	old, err := it.Old(1) // payload column
	assert.NilError(t, err)
	assert.Equal(t, old.Text, "v1")

	newVal, err := it.New(1)
	assert.NilError(t, err)
	assert.Equal(t, newVal.Text, "v4")
}

func TestSessionNoOpUpdateSuppressed(t *testing.T) {
	db, tbl := newTestDatabase(t)
	sess := NewSession(db, db.Name)
	defer sess.Close()
	assert.NilError(t, sess.Attach("events"))

	insertRow(t, tbl, 1, "same")

	cs, err := sess.Changeset()
	assert.NilError(t, err)
	assert.Check(t, len(cs) > 0) // the INSERT itself is still recorded

	// A fresh session observing only a same-value UPDATE should record
	// nothing at all: the changeset is empty.
	sess2 := NewSession(db, db.Name)
	defer sess2.Close()
	assert.NilError(t, sess2.Attach("events"))

	_, err = tbl.Update(func(r data.Row) bool {
		id, _ := r.Data["id"].(int64)
		return id == 1
	}, data.NewRow(map[string]interface{}{"payload": "same"}), nil)
	assert.NilError(t, err)

	cs2, err := sess2.Changeset()
	assert.NilError(t, err)
	assert.Equal(t, len(cs2), 0)
}

func TestSessionRejectsTableWithoutIntPK(t *testing.T) {
	db, _ := newTestDatabase(t)
	tbl := &schema.Table{
		Name: "no_pk",
		Schema: &schema.TableSchema{
			TableName: "no_pk",
			Columns: []schema.Column{
				{Name: "name", Type: schema.ColumnTypeText, PrimaryKey: true},
			},
		},
		Indexes: make(map[string]*data.Index),
	}
	db.AddTable(tbl)

	sess := NewSession(db, db.Name)
	defer sess.Close()
	assert.NilError(t, sess.Attach("no_pk"))

	if err := tbl.Insert(data.NewRow(map[string]interface{}{"name": "x"}), nil); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	assert.ErrorContains(t, sess.Err(), "no usable single-column INTEGER primary key")
}
