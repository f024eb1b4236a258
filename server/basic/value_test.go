package basic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []Value{
		Null(),
		NewBool(true),
		NewBool(false),
		NewInt64(-42),
		NewFloat64(3.14159),
		NewString("hello"),
		{Type: TypeLabel, S: "person"},
	}
	for _, v := range cases {
		tag, payload := Encode(v)
		got := Decode(tag, payload)
		assert.Zero(t, Compare(v, got), "round trip mismatch: in=%+v out=%+v", v, got)
		assert.Equal(t, v.Type, got.Type, "round trip mismatch: in=%+v out=%+v", v, got)
	}
}

func TestCompareOrdersByTypeThenValue(t *testing.T) {
	assert.Negative(t, Compare(NewInt64(1), NewString("a")), "expected int64 to sort before string by type")
	assert.Negative(t, Compare(NewInt64(1), NewInt64(2)), "expected 1 < 2")
	assert.Negative(t, Compare(NewString("a"), NewString("b")), "expected a < b")
}

func TestAsFloat64NaNForNonNumeric(t *testing.T) {
	assert.True(t, isNaN(NewString("x").AsFloat64()), "expected NaN for string value")
}

func isNaN(f float64) bool { return f != f }
