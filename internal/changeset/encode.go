package changeset

// Table-group and record tag bytes, per the wire format: a group header
// starts with 'T', each record starts with an op byte followed by an
// indirect flag byte.
const (
	tagTable byte = 0x54 // 'T'

	opInsert byte = 0x12
	opDelete byte = 0x17
	opUpdate byte = 0x11
)

// Changeset serializes every recorded RowChange into the binary changeset
// format described by spec.md §4.E: one table group per attached table that
// recorded at least one change, each group holding one record per row.
// Tables with zero changes are omitted entirely (their group header is
// rewound rather than emitted), and an UPDATE whose every column is
// unchanged is suppressed rather than written as a no-op record.
func (s *Session) Changeset() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.errLatch != nil {
		return nil, s.errLatch
	}

	buf := NewBuffer()
	for _, at := range s.tables {
		if !at.populated || at.changes.nEntries == 0 {
			continue
		}
		if err := encodeTableGroup(buf, at); err != nil {
			return nil, err
		}
	}
	if err := buf.Err(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// encodeTableGroup writes one 'T' header followed by one record per row
// captured for at. If every row's record turns out to be a suppressed
// no-op UPDATE, the header itself is rewound and nothing is emitted.
func encodeTableGroup(buf *Buffer, at *attachedTable) error {
	headerStart := buf.Len()

	if err := buf.AppendByte(tagTable); err != nil {
		return err
	}
	if err := buf.AppendVarint(uint32(at.nCol)); err != nil {
		return err
	}
	for _, isPK := range at.pkBitmap {
		b := byte(0)
		if isPK {
			b = 1
		}
		if err := buf.AppendByte(b); err != nil {
			return err
		}
	}
	if err := buf.AppendString(at.name); err != nil {
		return err
	}
	if err := buf.AppendByte(0); err != nil { // cstr NUL terminator
		return err
	}

	wroteAny := false
	var encErr error
	at.changes.entries(func(c *rowChange) {
		if encErr != nil {
			return
		}
		wrote, err := encodeRecord(buf, at, c)
		if err != nil {
			encErr = err
			return
		}
		wroteAny = wroteAny || wrote
	})
	if encErr != nil {
		return encErr
	}

	if !wroteAny {
		buf.Truncate(headerStart)
	}
	return nil
}

// encodeRecord writes one record for c and reports whether anything was
// written (false for a suppressed no-op UPDATE, or for a row inserted and
// deleted within the same session). Which op a RowChange represents
// follows directly from which of preImage/newValues are set: INSERT has
// no preImage, DELETE has no newValues, UPDATE has both, and neither means
// the row's net effect canceled out entirely.
func encodeRecord(buf *Buffer, at *attachedTable, c *rowChange) (bool, error) {
	switch {
	case c.preImage == nil && c.newValues == nil:
		return false, nil
	case c.preImage == nil:
		return true, encodeInsert(buf, at, c)
	case c.newValues == nil:
		return true, encodeDelete(buf, at, c)
	default:
		return encodeUpdate(buf, at, c)
	}
}

func encodeInsert(buf *Buffer, at *attachedTable, c *rowChange) error {
	if err := buf.AppendByte(opInsert); err != nil {
		return err
	}
	if err := buf.AppendByte(0); err != nil { // indirect
		return err
	}
	for _, v := range c.newValues {
		if err := buf.AppendValue(v); err != nil {
			return err
		}
	}
	return nil
}

func encodeDelete(buf *Buffer, at *attachedTable, c *rowChange) error {
	if err := buf.AppendByte(opDelete); err != nil {
		return err
	}
	if err := buf.AppendByte(0); err != nil {
		return err
	}
	values, err := decodePreImage(c.preImage, at.nCol)
	if err != nil {
		return err
	}
	for _, v := range values {
		if err := buf.AppendValue(v); err != nil {
			return err
		}
	}
	return nil
}

// encodeUpdate writes an UPDATE record, suppressing any non-PK column whose
// OLD and NEW values compare Equal by writing UNDEF for it in both halves,
// per the column-minimality rule; PK columns are always carried. If no
// column changed, nothing is written and (false, nil) is returned so the
// caller can skip the row entirely.
func encodeUpdate(buf *Buffer, at *attachedTable, c *rowChange) (bool, error) {
	oldValues, err := decodePreImage(c.preImage, at.nCol)
	if err != nil {
		return false, err
	}

	changedAny := false
	for i, ov := range oldValues {
		if !ov.Equal(c.newValues[i]) {
			changedAny = true
			break
		}
	}
	if !changedAny {
		return false, nil
	}

	if err := buf.AppendByte(opUpdate); err != nil {
		return false, err
	}
	if err := buf.AppendByte(0); err != nil {
		return false, err
	}
	for i, ov := range oldValues {
		out := ov
		if !at.pkBitmap[i] && ov.Equal(c.newValues[i]) {
			out = Undef()
		}
		if err := buf.AppendValue(out); err != nil {
			return false, err
		}
	}
	for i, nv := range c.newValues {
		out := nv
		if !at.pkBitmap[i] && oldValues[i].Equal(nv) {
			out = Undef()
		}
		if err := buf.AppendValue(out); err != nil {
			return false, err
		}
	}
	if err := buf.Err(); err != nil {
		return false, err
	}
	return true, nil
}

// decodePreImage splits a flat pre-image byte slice (produced by
// capturePreImage) back into nCol individual Values.
func decodePreImage(data []byte, nCol int) ([]Value, error) {
	values := make([]Value, nCol)
	off := 0
	for i := 0; i < nCol; i++ {
		v, n, err := decodeValue(data[off:])
		if err != nil {
			return nil, err
		}
		values[i] = v
		off += n
	}
	return values, nil
}
