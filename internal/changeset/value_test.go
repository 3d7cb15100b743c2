package changeset

import (
	"testing"

	"gotest.tools/v3/assert"
)

func TestValueRoundTrip(t *testing.T) {
	cases := []Value{
		Undef(),
		Null(),
		Int64Value(-42),
		Int64Value(0),
		Float64Value(3.5),
		TextValue("hello"),
		TextValue(""),
		BlobValue([]byte{0x01, 0x02, 0x03}),
	}

	for _, v := range cases {
		dst := appendValue(nil, v)
		assert.Equal(t, len(dst), serializedSize(v))

		got, n, err := decodeValue(dst)
		assert.NilError(t, err)
		assert.Equal(t, n, len(dst))
		assert.Check(t, got.Equal(v))
	}
}

func TestValueEqual(t *testing.T) {
	assert.Check(t, Int64Value(5).Equal(Int64Value(5)))
	assert.Check(t, !Int64Value(5).Equal(Int64Value(6)))
	assert.Check(t, !Int64Value(5).Equal(Float64Value(5)))
	assert.Check(t, Null().Equal(Null()))
	assert.Check(t, TextValue("a").Equal(TextValue("a")))
	assert.Check(t, !TextValue("a").Equal(TextValue("b")))
}

func TestGoValueToWireRoundTrip(t *testing.T) {
	assert.Check(t, goValueToWire(nil).Equal(Null()))
	assert.Check(t, goValueToWire(int64(7)).Equal(Int64Value(7)))
	assert.Check(t, goValueToWire(float64(3)).Equal(Int64Value(3)))
	assert.Check(t, goValueToWire(2.5).Equal(Float64Value(2.5)))
	assert.Check(t, goValueToWire("x").Equal(TextValue("x")))
	assert.Check(t, goValueToWire(true).Equal(Int64Value(1)))
	assert.Check(t, goValueToWire(false).Equal(Int64Value(0)))
}

func TestDecodeValueTruncated(t *testing.T) {
	_, _, err := decodeValue([]byte{byte(TagInt64), 0x01})
	assert.ErrorContains(t, err, "truncated")
}
