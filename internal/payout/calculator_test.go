package payout

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompute(t *testing.T) {
	breakdown := Compute(5000, 10)

	assert.Equal(t, 5000.0, breakdown.PayoutAmount, "payout equals the contribution amount")
	assert.Equal(t, 500.0, breakdown.AdminFee)
}

func TestComputeDefaultsFeePercentage(t *testing.T) {
	breakdown := Compute(2000, 0)

	assert.Equal(t, 2000.0, breakdown.PayoutAmount)
	assert.Equal(t, 300.0, breakdown.AdminFee, "zero config falls back to the default percentage")

	negative := Compute(2000, -5)
	assert.Equal(t, breakdown, negative)
}

func TestComputeIsDeterministic(t *testing.T) {
	first := Compute(1234.56, 12.5)
	second := Compute(1234.56, 12.5)

	assert.Equal(t, first, second)
}
