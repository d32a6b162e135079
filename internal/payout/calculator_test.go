package payout

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/provably-fair-dice/internal/fairness"
	"github.com/radieske/provably-fair-dice/internal/shared/apperr"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestComputeWinAndLoss(t *testing.T) {
	c := Calculator{HouseEdge: 100} // 1%

	won, pay, err := c.Compute(d("10"), 5000, fairness.Outcome(4999), 8)
	require.NoError(t, err)
	assert.True(t, won)
	assert.True(t, pay.Equal(d("19.8")), "got %s", pay)

	won, pay, err = c.Compute(d("10"), 5000, fairness.Outcome(5000), 8)
	require.NoError(t, err)
	assert.False(t, won)
	assert.True(t, pay.IsZero())

	won, _, err = c.Compute(d("10"), 5000, fairness.Outcome(0), 8)
	require.NoError(t, err)
	assert.True(t, won)
}

func TestPayoutRoundsDownToMinimumUnit(t *testing.T) {
	c := Calculator{HouseEdge: 100}

	tests := []struct {
		name      string
		wager     string
		winChance uint32
		decimals  int32
		want      string
	}{
		{"exact", "10", 5000, 2, "19.8"},
		// 1 * 9900 / 3333 = 2.970297029...
		{"cents floor", "1", 3333, 2, "2.97"},
		{"satoshi floor", "0.00000001", 9999, 8, "0"},
		{"satoshi floor two", "0.00000003", 4000, 8, "0.00000007"},
		{"high chance", "100", 9800, 2, "101.02"},
		{"low chance", "1", 1, 2, "9900"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Payout(d(tt.wager), tt.winChance, tt.decimals)
			assert.True(t, got.Equal(d(tt.want)), "got %s want %s", got, tt.want)
		})
	}
}

func TestZeroHouseEdgeIsFair(t *testing.T) {
	c := Calculator{}
	got := c.Payout(d("25"), 2500, 8)
	assert.True(t, got.Equal(d("100")), "got %s", got)
}

func TestComputeRejectsInvalidInput(t *testing.T) {
	c := Calculator{HouseEdge: 100}

	tests := []struct {
		name      string
		wager     string
		winChance uint32
	}{
		{"zero chance", "10", 0},
		{"full chance", "10", 10000},
		{"above range", "10", 12000},
		{"zero wager", "0", 5000},
		{"negative wager", "-1", 5000},
		{"too many decimals", "0.001", 5000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := c.Compute(d(tt.wager), tt.winChance, 0, 2)
			require.Error(t, err)
			assert.Equal(t, apperr.InvalidArgument, apperr.KindOf(err))
		})
	}
}

func TestMultiplier(t *testing.T) {
	c := Calculator{HouseEdge: 100}
	assert.True(t, c.Multiplier(5000).Equal(d("1.98")))
	assert.True(t, c.Multiplier(0).IsZero())
}

func TestChanceFromPercent(t *testing.T) {
	h, err := ChanceFromPercent(d("50"))
	require.NoError(t, err)
	assert.Equal(t, uint32(5000), h)

	h, err = ChanceFromPercent(d("0.01"))
	require.NoError(t, err)
	assert.Equal(t, uint32(1), h)

	h, err = ChanceFromPercent(d("99.99"))
	require.NoError(t, err)
	assert.Equal(t, uint32(9999), h)

	for _, bad := range []string{"0", "100", "-5", "12.345", "150"} {
		_, err := ChanceFromPercent(d(bad))
		assert.Equal(t, apperr.InvalidArgument, apperr.KindOf(err), bad)
	}
}
