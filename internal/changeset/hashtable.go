package changeset

// rowChange is one row's net mutation within a session, keyed by rowid.
// preImage is captured once, from the earliest event seen for this rowid,
// and never overwritten: nil means the row did not exist when the session
// started watching it (an INSERT). newValues tracks the row's most
// recently observed live state and is overwritten on every event: nil
// means the row does not exist now (a DELETE). Both set means UPDATE; both
// nil means the row was inserted and deleted within the same session and
// nets to no change at all. This triple of states is how the encoder
// recovers which op to emit without a separately stored op code.
type rowChange struct {
	rowid     int64
	preImage  []byte
	newValues []Value
	next      *rowChange
}

// initialBuckets is the bucket count a changeTable starts with (128
// doubled once); it doubles again on every rehash.
const initialBuckets = 256

// changeTable is an open-chained hash table mapping rowid to its first-seen
// RowChange within one session/table pair.
type changeTable struct {
	buckets  []*rowChange
	nEntries int
}

func newChangeTable() *changeTable {
	return &changeTable{buckets: make([]*rowChange, initialBuckets)}
}

func (t *changeTable) bucketFor(rowid int64) int {
	n := rowid % int64(len(t.buckets))
	if n < 0 {
		n += int64(len(t.buckets))
	}
	return int(n)
}

// lookup returns the RowChange for rowid, or nil if none is recorded yet.
func (t *changeTable) lookup(rowid int64) *rowChange {
	for c := t.buckets[t.bucketFor(rowid)]; c != nil; c = c.next {
		if c.rowid == rowid {
			return c
		}
	}
	return nil
}

// insert adds a new RowChange at the head of its bucket chain. The caller
// must have already confirmed via lookup that no entry exists for rowid.
// When the load factor reaches one half it first doubles the bucket array
// via tryRehash.
func (t *changeTable) insert(c *rowChange) {
	if t.nEntries >= len(t.buckets)/2 {
		t.tryRehash()
	}
	idx := t.bucketFor(c.rowid)
	c.next = t.buckets[idx]
	t.buckets[idx] = c
	t.nEntries++
}

func (t *changeTable) tryRehash() {
	newBuckets := make([]*rowChange, len(t.buckets)*2)
	// A make() failure in Go surfaces as a runtime panic rather than a nil
	// slice, so there is no allocation-failure branch to take here; the
	// non-fatal-rehash contract exists to protect callers linking against
	// allocators that can return nil, which this runtime does not.
	old := t.buckets
	t.buckets = newBuckets
	for _, head := range old {
		for c := head; c != nil; {
			next := c.next
			idx := c.rowid % int64(len(t.buckets))
			if idx < 0 {
				idx += int64(len(t.buckets))
			}
			c.next = t.buckets[idx]
			t.buckets[idx] = c
			c = next
		}
	}
}

// entries walks every RowChange in the table, in bucket order then chain
// order (head-of-chain, i.e. most-recently-inserted, first within a
// bucket) — the encoder's iteration order for a table group.
func (t *changeTable) entries(fn func(*rowChange)) {
	for _, head := range t.buckets {
		for c := head; c != nil; c = c.next {
			fn(c)
		}
	}
}
