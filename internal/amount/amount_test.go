package amount

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	v, err := StringToAmount("12.34", 100)
	require.NoError(t, err)
	assert.Equal(t, int64(1234), v)
	assert.Equal(t, "12.34", AmountToString(v, 100, 2))
}

func TestStringToAmount(t *testing.T) {
	tests := []struct {
		in      string
		divisor float64
		want    int64
	}{
		{"0", 100, 0},
		{" 1.005 ", 100, 101},
		{"-2.5", 1, -3},
		{"3", 0.01, 0},
		{"1e3", 1, 1000},
		{"99999999999999999999999", 1, math.MaxInt64},
		{"-99999999999999999999999", 1, math.MinInt64},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := StringToAmount(tt.in, tt.divisor)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStringToAmount_Invalid(t *testing.T) {
	for _, in := range []string{"", "abc", "1,5"} {
		_, err := StringToAmount(in, 100)
		assert.ErrorIs(t, err, ErrInvalidAmount, in)
	}
	_, err := StringToAmount("1", 0)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestAmountToString(t *testing.T) {
	assert.Equal(t, "0.00", AmountToString(0, 100, 2))
	assert.Equal(t, "-1.50", AmountToString(-150, 100, 2))
	assert.Equal(t, "1235", AmountToString(123456, 100, 0))
	assert.Equal(t, "7", AmountToString(7, 0, -3))
	assert.Equal(t, "0.333", AmountToString(1, 3, 3))
}
