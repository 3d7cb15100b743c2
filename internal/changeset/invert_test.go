package changeset

import (
	"testing"

	"github.com/leengari/changetrack/internal/domain/data"
	"gotest.tools/v3/assert"
)

func TestInvertSwapsInsertAndDelete(t *testing.T) {
	db, tbl := newTestDatabase(t)
	sess := NewSession(db, db.Name)
	defer sess.Close()
	assert.NilError(t, sess.Attach("events"))

	insertRow(t, tbl, 1, "created")

	cs, err := sess.Changeset()
	assert.NilError(t, err)

	it := NewIterator(cs)
	assert.Check(t, it.Next())
	op, _ := it.Op()
	assert.Equal(t, op, "INSERT")

	inverted, err := Invert(cs)
	assert.NilError(t, err)

	invIt := NewIterator(inverted)
	assert.Check(t, invIt.Next())
	invOp, err := invIt.Op()
	assert.NilError(t, err)
	assert.Equal(t, invOp, "DELETE")

	old, err := invIt.Old(1)
	assert.NilError(t, err)
	assert.Equal(t, old.Text, "created")
}

func TestInvertSwapsUpdateHalves(t *testing.T) {
	db, tbl := newTestDatabase(t)
	insertRow(t, tbl, 1, "v1")

	sess := NewSession(db, db.Name)
	defer sess.Close()
	assert.NilError(t, sess.Attach("events"))

	_, err := tbl.Update(func(r data.Row) bool {
		id, _ := r.Data["id"].(int64)
		return id == 1
	}, data.NewRow(map[string]interface{}{"payload": "v2"}), nil)
	assert.NilError(t, err)

	cs, err := sess.Changeset()
	assert.NilError(t, err)

	inverted, err := Invert(cs)
	assert.NilError(t, err)

	it := NewIterator(inverted)
	assert.Check(t, it.Next())
	op, _ := it.Op()
	assert.Equal(t, op, "UPDATE")

	old, err := it.Old(1)
	assert.NilError(t, err)
	assert.Equal(t, old.Text, "v2")

	newVal, err := it.New(1)
	assert.NilError(t, err)
	assert.Equal(t, newVal.Text, "v1")
}

func TestInvertTwiceRestoresOriginal(t *testing.T) {
	db, tbl := newTestDatabase(t)
	sess := NewSession(db, db.Name)
	defer sess.Close()
	assert.NilError(t, sess.Attach("events"))

	insertRow(t, tbl, 1, "created")

	cs, err := sess.Changeset()
	assert.NilError(t, err)

	twice, err := Invert(cs)
	assert.NilError(t, err)
	twice, err = Invert(twice)
	assert.NilError(t, err)

	assert.DeepEqual(t, cs, twice)
}
