package changeset

import "math"

// Tag identifies the variant of a Value. These are wire-format constants
// and must never change.
type Tag byte

const (
	TagUndef   Tag = 0x00
	TagInt64   Tag = 0x01
	TagFloat64 Tag = 0x02
	TagText    Tag = 0x03
	TagBlob    Tag = 0x04
	TagNull    Tag = 0x05
)

// Value is a tagged union of the wire value types. Only the field matching
// Tag is meaningful.
type Value struct {
	Tag   Tag
	I64   int64
	F64   float64
	Text  string
	Blob  []byte
}

// Undef returns the UNDEF sentinel value.
func Undef() Value { return Value{Tag: TagUndef} }

// Null returns the NULL value.
func Null() Value { return Value{Tag: TagNull} }

// Int64Value wraps a signed 64-bit integer.
func Int64Value(v int64) Value { return Value{Tag: TagInt64, I64: v} }

// Float64Value wraps an IEEE-754 double.
func Float64Value(v float64) Value { return Value{Tag: TagFloat64, F64: v} }

// TextValue wraps a UTF-8 string (no trailing NUL).
func TextValue(v string) Value { return Value{Tag: TagText, Text: v} }

// BlobValue wraps opaque bytes.
func BlobValue(v []byte) Value { return Value{Tag: TagBlob, Blob: v} }

// IsDefined reports whether v carries a value (anything but UNDEF).
func (v Value) IsDefined() bool { return v.Tag != TagUndef }

// Equal reports whether two values have the same tag and payload bytes,
// per the UPDATE-column-minimality rule: differing type tag or differing
// payload means the column changed.
func (v Value) Equal(o Value) bool {
	if v.Tag != o.Tag {
		return false
	}
	switch v.Tag {
	case TagInt64:
		return v.I64 == o.I64
	case TagFloat64:
		return math.Float64bits(v.F64) == math.Float64bits(o.F64)
	case TagText:
		return v.Text == o.Text
	case TagBlob:
		return string(v.Blob) == string(o.Blob)
	default: // UNDEF, NULL
		return true
	}
}

// serializedSize returns the number of bytes appendValue would write for v,
// without writing them.
func serializedSize(v Value) int {
	switch v.Tag {
	case TagUndef, TagNull:
		return 1
	case TagInt64, TagFloat64:
		return 9
	case TagText:
		return 1 + varintLen(uint32(len(v.Text))) + len(v.Text)
	case TagBlob:
		return 1 + varintLen(uint32(len(v.Blob))) + len(v.Blob)
	default:
		return 1
	}
}

// appendValue serializes v onto dst and returns the extended slice.
func appendValue(dst []byte, v Value) []byte {
	dst = append(dst, byte(v.Tag))
	switch v.Tag {
	case TagUndef, TagNull:
		// no payload
	case TagInt64:
		dst = appendUint64BE(dst, uint64(v.I64))
	case TagFloat64:
		dst = appendUint64BE(dst, math.Float64bits(v.F64))
	case TagText:
		dst = appendVarint(dst, uint32(len(v.Text)))
		dst = append(dst, v.Text...)
	case TagBlob:
		dst = appendVarint(dst, uint32(len(v.Blob)))
		dst = append(dst, v.Blob...)
	}
	return dst
}

func appendUint64BE(dst []byte, v uint64) []byte {
	return append(dst,
		byte(v>>56), byte(v>>48), byte(v>>40), byte(v>>32),
		byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

func decodeUint64BE(data []byte) uint64 {
	return uint64(data[0])<<56 | uint64(data[1])<<48 | uint64(data[2])<<40 | uint64(data[3])<<32 |
		uint64(data[4])<<24 | uint64(data[5])<<16 | uint64(data[6])<<8 | uint64(data[7])
}

// decodeValue reads one tagged value from the front of data, returning the
// value and the number of bytes consumed.
func decodeValue(data []byte) (Value, int, error) {
	if len(data) < 1 {
		return Value{}, 0, newErr(CorruptFormat, "decodeValue", "", "truncated payload")
	}
	tag := Tag(data[0])
	switch tag {
	case TagUndef:
		return Undef(), 1, nil
	case TagNull:
		return Null(), 1, nil
	case TagInt64:
		if len(data) < 9 {
			return Value{}, 0, newErr(CorruptFormat, "decodeValue", "", "truncated INT64 payload")
		}
		return Int64Value(int64(decodeUint64BE(data[1:9]))), 9, nil
	case TagFloat64:
		if len(data) < 9 {
			return Value{}, 0, newErr(CorruptFormat, "decodeValue", "", "truncated FLOAT64 payload")
		}
		return Float64Value(math.Float64frombits(decodeUint64BE(data[1:9]))), 9, nil
	case TagText, TagBlob:
		n, consumed, err := decodeVarint(data[1:])
		if err != nil {
			return Value{}, 0, err
		}
		start := 1 + consumed
		end := start + int(n)
		if end > len(data) {
			return Value{}, 0, newErr(CorruptFormat, "decodeValue", "", "text/blob length extends beyond record bounds")
		}
		if tag == TagText {
			return TextValue(string(data[start:end])), end, nil
		}
		b := make([]byte, n)
		copy(b, data[start:end])
		return BlobValue(b), end, nil
	default:
		return Value{}, 0, newErr(CorruptFormat, "decodeValue", "", "unknown tag byte")
	}
}

// goValueToWire converts one Go row-cell value (as stored in
// domain/data.Row.Data, which after a JSON round trip holds float64 for
// every numeric type) into its wire Value. Booleans have no dedicated wire
// tag and are carried as INT64 0/1, matching how an embedded engine with no
// native BOOL type would represent them.
func goValueToWire(v interface{}) Value {
	switch x := v.(type) {
	case nil:
		return Null()
	case int64:
		return Int64Value(x)
	case int:
		return Int64Value(int64(x))
	case int32:
		return Int64Value(int64(x))
	case float64:
		if x == math.Trunc(x) {
			return Int64Value(int64(x))
		}
		return Float64Value(x)
	case float32:
		return Float64Value(float64(x))
	case bool:
		if x {
			return Int64Value(1)
		}
		return Int64Value(0)
	case string:
		return TextValue(x)
	case []byte:
		return BlobValue(x)
	default:
		return TextValue("")
	}
}

// wireValueToGo converts a decoded wire Value back into the Go
// representation domain/data.Row expects. INT64 comes back as int64, the
// type an INT column accepts on Insert and the key type of its index.
func wireValueToGo(v Value) interface{} {
	switch v.Tag {
	case TagNull, TagUndef:
		return nil
	case TagInt64:
		return v.I64
	case TagFloat64:
		return v.F64
	case TagText:
		return v.Text
	case TagBlob:
		return v.Blob
	default:
		return nil
	}
}

// valueSizeAt computes the serialized size of the value at the front of
// data without fully materializing it. Nothing in the package calls it at
// present; the encoder walks pre-images with decodePreImage instead.
func valueSizeAt(data []byte) (int, error) {
	if len(data) < 1 {
		return 0, newErr(CorruptFormat, "valueSizeAt", "", "truncated payload")
	}
	switch Tag(data[0]) {
	case TagUndef, TagNull:
		return 1, nil
	case TagInt64, TagFloat64:
		if len(data) < 9 {
			return 0, newErr(CorruptFormat, "valueSizeAt", "", "truncated fixed payload")
		}
		return 9, nil
	case TagText, TagBlob:
		n, consumed, err := decodeVarint(data[1:])
		if err != nil {
			return 0, err
		}
		size := 1 + consumed + int(n)
		if size > len(data) {
			return 0, newErr(CorruptFormat, "valueSizeAt", "", "text/blob length extends beyond record bounds")
		}
		return size, nil
	default:
		return 0, newErr(CorruptFormat, "valueSizeAt", "", "unknown tag byte")
	}
}
