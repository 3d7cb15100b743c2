package changeset

import "math/rand"

// fuzzRecord is one parsed record within a parsed group, used only by the
// structural fuzzer.
type fuzzRecord struct {
	op       byte
	indirect byte
	oldVals  []Value
	newVals  []Value
}

type fuzzGroup struct {
	name     string
	pkBitmap []bool
	records  []fuzzRecord
}

// parseChangeset fully decodes changesetBytes into an in-memory group list,
// the representation the fuzzer mutates before re-encoding.
func parseChangeset(changesetBytes []byte) ([]fuzzGroup, error) {
	var groups []fuzzGroup
	pos := 0
	data := changesetBytes

	for pos < len(data) {
		headerLen, hdr, err := parseGroupHeader(data[pos:])
		if err != nil {
			return nil, err
		}
		pos += headerLen
		group := fuzzGroup{name: hdr.name, pkBitmap: hdr.pkBitmap}

		for pos < len(data) && data[pos] != tagTable {
			if len(data[pos:]) < 2 {
				return nil, newErr(CorruptFormat, "parseChangeset", hdr.name, "truncated record header")
			}
			op := data[pos]
			indirect := data[pos+1]
			off := pos + 2
			rec := fuzzRecord{op: op, indirect: indirect}

			readVals := func() ([]Value, error) {
				vals := make([]Value, hdr.nCol)
				for i := 0; i < hdr.nCol; i++ {
					v, n, err := decodeValue(data[off:])
					if err != nil {
						return nil, err
					}
					vals[i] = v
					off += n
				}
				return vals, nil
			}

			switch op {
			case opInsert:
				vals, err := readVals()
				if err != nil {
					return nil, err
				}
				rec.newVals = vals
			case opDelete:
				vals, err := readVals()
				if err != nil {
					return nil, err
				}
				rec.oldVals = vals
			case opUpdate:
				oldVals, err := readVals()
				if err != nil {
					return nil, err
				}
				newVals, err := readVals()
				if err != nil {
					return nil, err
				}
				rec.oldVals = oldVals
				rec.newVals = newVals
			default:
				return nil, newErr(CorruptFormat, "parseChangeset", hdr.name, "unknown record op byte")
			}

			group.records = append(group.records, rec)
			pos = off
		}

		groups = append(groups, group)
	}

	return groups, nil
}

// encodeGroups is the structural inverse of parseChangeset: it re-emits
// every group and record exactly as the wire format requires. A group left
// with zero records (the fuzzer's "drop" transform can empty a group) is
// omitted, matching the encoder's own empty-group rewind.
func encodeGroups(groups []fuzzGroup) ([]byte, error) {
	buf := NewBuffer()
	for _, g := range groups {
		if len(g.records) == 0 {
			continue
		}
		if err := buf.AppendByte(tagTable); err != nil {
			return nil, err
		}
		if err := buf.AppendVarint(uint32(len(g.pkBitmap))); err != nil {
			return nil, err
		}
		for _, isPK := range g.pkBitmap {
			b := byte(0)
			if isPK {
				b = 1
			}
			if err := buf.AppendByte(b); err != nil {
				return nil, err
			}
		}
		if err := buf.AppendString(g.name); err != nil {
			return nil, err
		}
		if err := buf.AppendByte(0); err != nil {
			return nil, err
		}
		for _, r := range g.records {
			if err := buf.AppendByte(r.op); err != nil {
				return nil, err
			}
			if err := buf.AppendByte(r.indirect); err != nil {
				return nil, err
			}
			for _, v := range r.oldVals {
				if err := buf.AppendValue(v); err != nil {
					return nil, err
				}
			}
			for _, v := range r.newVals {
				if err := buf.AppendValue(v); err != nil {
					return nil, err
				}
			}
		}
	}
	if err := buf.Err(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// FuzzTransform names one of the structural mutations Fuzz can apply.
type FuzzTransform int

const (
	FuzzDuplicateRecord FuzzTransform = iota + 1
	FuzzDropRecord
	FuzzSwapRecords
	FuzzFlipIndirect
	FuzzPerturbInt
	FuzzTruncateText
	FuzzSwapUpdateHalves
)

var allTransforms = []FuzzTransform{
	FuzzDuplicateRecord,
	FuzzDropRecord,
	FuzzSwapRecords,
	FuzzFlipIndirect,
	FuzzPerturbInt,
	FuzzTruncateText,
	FuzzSwapUpdateHalves,
}

// Fuzz deterministically generates n well-formed variants of changesetBytes
// from the given seed, applying one of seven structural transforms to each:
// duplicating a record, dropping one, swapping two within a group,
// flipping a record's indirect flag, perturbing an INT64 payload,
// truncating a TEXT/BLOB payload, or swapping an UPDATE's OLD/NEW halves.
// Every variant remains a structurally valid changeset (it parses cleanly
// with NewIterator); only its data content may now be semantically bogus,
// which is the point for differential testing against Apply/Invert.
func Fuzz(changesetBytes []byte, seed int64, n int) ([][]byte, error) {
	groups, err := parseChangeset(changesetBytes)
	if err != nil {
		return nil, err
	}
	if len(groups) == 0 {
		return nil, newErr(Misuse, "Fuzz", "", "changeset has no table groups to mutate")
	}

	rng := rand.New(rand.NewSource(seed))
	variants := make([][]byte, 0, n)

	for i := 0; i < n; i++ {
		mutated := cloneGroups(groups)
		transform := allTransforms[rng.Intn(len(allTransforms))]
		applyTransform(mutated, transform, rng)

		encoded, err := encodeGroups(mutated)
		if err != nil {
			return nil, err
		}
		variants = append(variants, encoded)
	}

	return variants, nil
}

func cloneGroups(groups []fuzzGroup) []fuzzGroup {
	out := make([]fuzzGroup, len(groups))
	for i, g := range groups {
		out[i] = fuzzGroup{
			name:     g.name,
			pkBitmap: append([]bool(nil), g.pkBitmap...),
			records:  append([]fuzzRecord(nil), g.records...),
		}
		for j := range out[i].records {
			r := &out[i].records[j]
			r.oldVals = append([]Value(nil), r.oldVals...)
			r.newVals = append([]Value(nil), r.newVals...)
		}
	}
	return out
}

// nonEmptyGroup picks a random group with at least one record, or -1 if
// none exists.
func nonEmptyGroup(groups []fuzzGroup, rng *rand.Rand) int {
	var candidates []int
	for i, g := range groups {
		if len(g.records) > 0 {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		return -1
	}
	return candidates[rng.Intn(len(candidates))]
}

func applyTransform(groups []fuzzGroup, t FuzzTransform, rng *rand.Rand) {
	gi := nonEmptyGroup(groups, rng)
	if gi < 0 {
		return
	}
	g := &groups[gi]
	ri := rng.Intn(len(g.records))

	switch t {
	case FuzzDuplicateRecord:
		g.records = append(g.records, g.records[ri])
	case FuzzDropRecord:
		g.records = append(g.records[:ri], g.records[ri+1:]...)
	case FuzzSwapRecords:
		if len(g.records) < 2 {
			return
		}
		rj := rng.Intn(len(g.records))
		g.records[ri], g.records[rj] = g.records[rj], g.records[ri]
	case FuzzFlipIndirect:
		if g.records[ri].indirect == 0 {
			g.records[ri].indirect = 1
		} else {
			g.records[ri].indirect = 0
		}
	case FuzzPerturbInt:
		perturbIntInRecord(&g.records[ri], rng)
	case FuzzTruncateText:
		truncateTextInRecord(&g.records[ri])
	case FuzzSwapUpdateHalves:
		r := &g.records[ri]
		if r.op == opUpdate {
			r.oldVals, r.newVals = r.newVals, r.oldVals
		}
	}
}

func perturbIntInRecord(r *fuzzRecord, rng *rand.Rand) {
	for _, vals := range [][]Value{r.oldVals, r.newVals} {
		for i, v := range vals {
			if v.Tag == TagInt64 {
				vals[i] = Int64Value(v.I64 ^ int64(rng.Uint32()))
				return
			}
		}
	}
}

func truncateTextInRecord(r *fuzzRecord) {
	for _, vals := range [][]Value{r.oldVals, r.newVals} {
		for i, v := range vals {
			if v.Tag == TagText && len(v.Text) > 0 {
				vals[i] = TextValue(v.Text[:len(v.Text)/2])
				return
			}
			if v.Tag == TagBlob && len(v.Blob) > 0 {
				vals[i] = BlobValue(v.Blob[:len(v.Blob)/2])
				return
			}
		}
	}
}
