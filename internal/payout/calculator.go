// Package payout derives the payout amount and admin-fee split from the
// community fee configuration at approval time.
package payout

// DefaultAdminFeePercentage is used when a community has no explicit fee
// percentage configured. The per-community admin_fee_percentage field is
// the single source of truth when set.
const DefaultAdminFeePercentage = 15.0

// Breakdown is the computed payout split for an approved report.
type Breakdown struct {
	PayoutAmount float64 `json:"payout_amount"`
	AdminFee     float64 `json:"admin_fee"`
}

// Compute derives the payout breakdown. Pure and deterministic: the payout
// equals the community contribution amount, and the admin fee is taken as a
// percentage of it.
func Compute(contributionAmount, adminFeePercentage float64) Breakdown {
	pct := adminFeePercentage
	if pct <= 0 {
		pct = DefaultAdminFeePercentage
	}
	return Breakdown{
		PayoutAmount: contributionAmount,
		AdminFee:     contributionAmount * pct / 100,
	}
}
