package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRound2HalfUp(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"2.505", "2.51"},
		{"2.504", "2.50"},
		{"2.501", "2.50"},
		{"10.005", "10.01"},
		{"0.00", "0.00"},
	}
	for _, tt := range tests {
		got := Round2(decimal.RequireFromString(tt.in))
		assert.Equal(t, tt.want, got.StringFixed(2), "Round2(%s)", tt.in)
	}
}

func TestAddSub(t *testing.T) {
	a := decimal.RequireFromString("10.10")
	b := decimal.RequireFromString("0.25")
	assert.Equal(t, "10.35", Format(Add(a, b)))
	assert.Equal(t, "9.85", Format(Sub(a, b)))
}

func TestClampFloor(t *testing.T) {
	assert.True(t, ClampFloor(decimal.RequireFromString("-5.00")).IsZero())
	positive := decimal.RequireFromString("5.00")
	assert.True(t, ClampFloor(positive).Equal(positive))
}

func TestParse(t *testing.T) {
	d, err := Parse("19.99")
	require.NoError(t, err)
	assert.Equal(t, "19.99", Format(d))

	_, err = Parse("19.999")
	require.Error(t, err)

	_, err = Parse("not-money")
	require.Error(t, err)
}

func TestValidAmount(t *testing.T) {
	assert.True(t, ValidAmount(decimal.RequireFromString("0.01")))
	assert.False(t, ValidAmount(decimal.Zero))
	assert.False(t, ValidAmount(decimal.RequireFromString("-1.00")))
	assert.False(t, ValidAmount(decimal.RequireFromString("1.001")))
}
