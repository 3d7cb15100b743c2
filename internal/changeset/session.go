package changeset

import (
	"strings"
	"sync"

	"github.com/leengari/changetrack/internal/domain/schema"
)

// connHooks is the single PreUpdateHook installed on a given
// domain/schema.Database, fanning one pre-update event out to every Session
// attached to that database. It is the concrete "opaque hook state pointer
// that uniquely identifies a head-of-list" described for the connection-wide
// session list: Session.next chains through it, and mu is the short
// critical section guarding link/unlink, standing in for the connection
// mutex a real embedded engine would hold.
type connHooks struct {
	mu   sync.Mutex
	head *Session
}

func (h *connHooks) OnPreUpdate(ev schema.PreUpdateEvent) {
	h.mu.Lock()
	head := h.head
	h.mu.Unlock()

	for s := head; s != nil; s = s.next {
		if strings.EqualFold(s.schemaName, ev.SchemaName) {
			s.handle(ev)
		}
	}
}

func (h *connHooks) link(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s.next = h.head
	h.head = s
}

func (h *connHooks) unlink(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.head == s {
		h.head = s.next
		s.next = nil
		return
	}
	for cur := h.head; cur != nil; cur = cur.next {
		if cur.next == s {
			cur.next = s.next
			s.next = nil
			return
		}
	}
}

// attachedTable is one table a Session records mutations for. Its
// descriptor (column count, names, PK bitmap) is populated lazily, on the
// first mutation the session observes for it.
type attachedTable struct {
	name      string
	populated bool
	nCol      int
	colNames  []string
	pkBitmap  []bool
	changes   *changeTable
}

// Session records row mutations on a database connection for later
// encoding into a changeset. Create one with NewSession, Attach the tables
// of interest, and call Changeset once recording is complete.
type Session struct {
	db         *schema.Database
	schemaName string
	hooks      *connHooks
	next       *Session // connHooks chain

	mu      sync.Mutex
	enabled bool
	tables  map[string]*attachedTable
	errLatch error
}

// NewSession creates a Session bound to db under the given schema name
// (the database's own name is compared case-insensitively against the
// schema name on every pre-update event, per spec.md §9's resolution of
// the donor's db-name/table-name comparison ambiguity: full, correct
// case-insensitive equality, not the source's confused-length behavior).
func NewSession(db *schema.Database, schemaName string) *Session {
	s := &Session{
		db:         db,
		schemaName: schemaName,
		enabled:    true,
		tables:     make(map[string]*attachedTable),
	}

	existing := db.CurrentPreUpdateHook()
	hooks, ok := existing.(*connHooks)
	if !ok {
		hooks = &connHooks{}
		db.InstallPreUpdateHook(hooks)
	}
	s.hooks = hooks
	hooks.link(s)

	return s
}

// Attach registers tableName for recording. Idempotent: attaching an
// already-attached name returns nil. Schema introspection (and the
// integer-rowid-PK requirement) is deferred to the table's first mutation.
func (s *Session) Attach(tableName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.errLatch != nil {
		return s.errLatch
	}
	if _, ok := s.tables[tableName]; ok {
		return nil
	}
	s.tables[tableName] = &attachedTable{name: tableName}
	return nil
}

// Enable turns recording on or off without detaching any table.
func (s *Session) Enable(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = on
}

// Close detaches the session from its connection's hook chain. A closed
// session must not be used again.
func (s *Session) Close() {
	s.hooks.unlink(s)
}

// Err returns the session's latched fatal error, if recording has failed.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errLatch
}

// handle implements the core of PreUpdateHook(op, db-name, table-name,
// old-rowid, new-rowid) from spec.md §4.D, for one session whose
// schema-name already matched.
func (s *Session) handle(ev schema.PreUpdateEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.errLatch != nil || !s.enabled {
		return
	}

	at, attached := s.tables[ev.TableName]
	if !attached {
		for name, cand := range s.tables {
			if strings.EqualFold(name, ev.TableName) {
				at, attached = cand, true
				break
			}
		}
	}
	if !attached {
		return
	}

	tbl, exists := s.db.Tables[ev.TableName]
	if !exists {
		s.errLatch = newErr(SchemaChanged, "PreUpdateHook", ev.TableName, "attached table no longer exists")
		return
	}

	if !at.populated {
		pkCol := tbl.Schema.GetPrimaryKeyColumn()
		if pkCol == nil || pkCol.Type != schema.ColumnTypeInt {
			s.errLatch = newErr(Misuse, "Attach", ev.TableName, "table has no usable single-column INTEGER primary key")
			return
		}
		at.nCol = len(tbl.Schema.Columns)
		at.colNames = tbl.ColumnNames()
		at.pkBitmap = make([]bool, at.nCol)
		for i, c := range tbl.Schema.Columns {
			at.pkBitmap[i] = c.PrimaryKey
		}
		at.changes = newChangeTable()
		at.populated = true
	} else if len(tbl.Schema.Columns) != at.nCol {
		s.errLatch = newErr(SchemaChanged, "PreUpdateHook", ev.TableName, "column count changed since attach")
		return
	}

	// Look up new-rowid (DELETE events carry the same value in both
	// fields, matching INSERT/UPDATE's convention so this lookup key is
	// uniform across all three ops). Only the row's pre-image is pinned to
	// the earliest event ever seen for it; its NEW-side state always tracks
	// the most recently observed live value, so a row inserted then updated
	// (or updated then updated again) within one session encodes as a
	// single record carrying the row's current state, not its first-seen
	// state. A row both inserted and deleted within the session (preImage
	// still nil when the DELETE arrives) collapses to no record at all.
	change := at.changes.lookup(ev.NewRowID)
	if change == nil {
		change = &rowChange{rowid: ev.NewRowID}
		if ev.Op == schema.PreUpdateUpdate || ev.Op == schema.PreUpdateDelete {
			preImage, err := capturePreImage(at.colNames, ev.Old)
			if err != nil {
				s.errLatch = err
				return
			}
			change.preImage = preImage
		}
		at.changes.insert(change)
	}

	if ev.Op == schema.PreUpdateInsert || ev.Op == schema.PreUpdateUpdate {
		newValues, err := captureNewValues(at.colNames, ev.New)
		if err != nil {
			s.errLatch = err
			return
		}
		change.newValues = newValues
	} else {
		change.newValues = nil
	}
}

// capturePreImage serializes the OLD row's columns in schema order. Values
// are copied out of ev immediately into the wire format rather than held by
// reference: the schema.Row view handed to the hook shares the table's own
// row map.
func capturePreImage(colNames []string, old *schema.Row) ([]byte, error) {
	buf := NewBuffer()
	for _, name := range colNames {
		v, ok := old.Values[name]
		if !ok {
			if err := buf.AppendValue(Null()); err != nil {
				return nil, newErr(OutOfMemory, "capturePreImage", "", err.Error())
			}
			continue
		}
		if err := buf.AppendValue(goValueToWire(v)); err != nil {
			return nil, newErr(OutOfMemory, "capturePreImage", "", err.Error())
		}
	}
	if err := buf.Err(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// captureNewValues reads the NEW row's columns in schema order into wire
// Values, for an INSERT or UPDATE event.
func captureNewValues(colNames []string, newRow *schema.Row) ([]Value, error) {
	values := make([]Value, len(colNames))
	for i, name := range colNames {
		v, ok := newRow.Values[name]
		if !ok {
			values[i] = Null()
			continue
		}
		values[i] = goValueToWire(v)
	}
	return values, nil
}
