package dmath

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSqrtPerfectSquares(t *testing.T) {
	cases := map[string]string{
		"0":       "0",
		"1":       "1",
		"4":       "2",
		"1000000": "1000",
		"0.25":    "0.5",
	}
	for in, want := range cases {
		got := Sqrt(decimal.RequireFromString(in))
		assert.True(t, got.Equal(decimal.RequireFromString(want)),
			"sqrt(%s) = %s, want %s", in, got, want)
	}
}

func TestSqrtIrrational(t *testing.T) {
	got := Sqrt(decimal.NewFromInt(2))
	want := decimal.RequireFromString("1.4142135623730951")
	require.True(t, got.Sub(want).Abs().LessThan(decimal.New(1, -10)),
		"sqrt(2) = %s", got)
}

func TestSqrtNegative(t *testing.T) {
	assert.True(t, Sqrt(decimal.NewFromInt(-4)).IsZero())
}

func TestClamp(t *testing.T) {
	lo := decimal.NewFromInt(30)
	hi := decimal.NewFromInt(100)
	assert.True(t, Clamp(decimal.NewFromInt(10), lo, hi).Equal(lo))
	assert.True(t, Clamp(decimal.NewFromInt(500), lo, hi).Equal(hi))
	assert.True(t, Clamp(decimal.NewFromInt(55), lo, hi).Equal(decimal.NewFromInt(55)))
}
