package changeset

import (
	"testing"

	"gotest.tools/v3/assert"
)

func TestChangeTableInsertLookup(t *testing.T) {
	ct := newChangeTable()
	ct.insert(&rowChange{rowid: 1})
	ct.insert(&rowChange{rowid: 2})

	assert.Check(t, ct.lookup(1) != nil)
	assert.Check(t, ct.lookup(2) != nil)
	assert.Check(t, ct.lookup(3) == nil)
}

func TestChangeTableNegativeRowID(t *testing.T) {
	ct := newChangeTable()
	ct.insert(&rowChange{rowid: -5})
	found := ct.lookup(-5)
	assert.Check(t, found != nil)
	assert.Equal(t, found.rowid, int64(-5))
}

func TestChangeTableRehash(t *testing.T) {
	ct := newChangeTable()
	n := initialBuckets // forces at least one rehash past the load factor
	for i := int64(0); i < int64(n); i++ {
		ct.insert(&rowChange{rowid: i})
	}

	assert.Check(t, len(ct.buckets) > initialBuckets)
	for i := int64(0); i < int64(n); i++ {
		assert.Check(t, ct.lookup(i) != nil)
	}
}

func TestChangeTableEntriesVisitsEveryRow(t *testing.T) {
	ct := newChangeTable()
	want := map[int64]bool{10: true, 20: true, 30: true}
	for rowid := range want {
		ct.insert(&rowChange{rowid: rowid})
	}

	seen := map[int64]bool{}
	ct.entries(func(c *rowChange) { seen[c.rowid] = true })
	assert.DeepEqual(t, seen, want)
}
