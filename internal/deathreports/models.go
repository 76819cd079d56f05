package deathreports

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Status represents the lifecycle state of a death report
type Status string

const (
	StatusPending     Status = "pending"
	StatusUnderReview Status = "under-review"
	StatusApproved    Status = "approved"
	StatusRejected    Status = "rejected"
	StatusPaid        Status = "paid"
)

// Voting and payout windows are fixed at report creation and never extended.
const (
	VotingWindow = 24 * time.Hour
	PayoutWindow = 48 * time.Hour

	// BeneficiaryAgeLimit is the maximum beneficiary age covered by the plan.
	BeneficiaryAgeLimit = 25
)

// Vote is one section member's determination on a report. Votes are
// append-only; a voter never revises or retracts a cast vote.
type Vote struct {
	VoterID  primitive.ObjectID `bson:"voter_id" json:"voter_id"`
	Approved bool               `bson:"approved" json:"approved"`
	Comment  string             `bson:"comment,omitempty" json:"comment,omitempty"`
	CastAt   time.Time          `bson:"cast_at" json:"cast_at"`
}

// BankDetails is the payout destination, immutable after submission.
type BankDetails struct {
	AccountName   string `bson:"account_name" json:"account_name"`
	AccountNumber string `bson:"account_number" json:"account_number"`
	BankName      string `bson:"bank_name" json:"bank_name"`
	BranchCode    string `bson:"branch_code,omitempty" json:"branch_code,omitempty"`
}

// ParseBankDetails accepts the raw request value for bank details. Older
// clients send the details as a JSON-encoded string, newer ones as an
// object; both are normalized into a validated BankDetails here so the
// lifecycle core only ever sees the typed form.
func ParseBankDetails(raw json.RawMessage) (BankDetails, error) {
	var details BankDetails
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return details, fmt.Errorf("bank_details is required")
	}
	if trimmed[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return details, fmt.Errorf("invalid bank_details: %w", err)
		}
		if err := json.Unmarshal([]byte(inner), &details); err != nil {
			return details, fmt.Errorf("invalid bank_details: %w", err)
		}
	} else if err := json.Unmarshal(raw, &details); err != nil {
		return details, fmt.Errorf("invalid bank_details: %w", err)
	}
	return details, details.Validate()
}

// Validate checks the required payout destination fields.
func (b BankDetails) Validate() error {
	if b.AccountName == "" {
		return fmt.Errorf("bank_details.account_name is required")
	}
	if b.AccountNumber == "" {
		return fmt.Errorf("bank_details.account_number is required")
	}
	if b.BankName == "" {
		return fmt.Errorf("bank_details.bank_name is required")
	}
	return nil
}

// DeathReport is the central lifecycle aggregate. One document per report,
// with the vote ledger embedded. Reports are never deleted; rejected and
// paid are terminal and the record stays behind as an audit trail.
type DeathReport struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	BeneficiaryID primitive.ObjectID `bson:"beneficiary_id" json:"beneficiary_id"`
	ReporterID    primitive.ObjectID `bson:"reporter_id" json:"reporter_id"`
	SectionID     primitive.ObjectID `bson:"section_id" json:"section_id"`
	CommunityID   primitive.ObjectID `bson:"community_id" json:"community_id"`
	DocumentRef   string             `bson:"document_ref" json:"document_ref"`
	BankDetails   BankDetails        `bson:"bank_details" json:"bank_details"`
	Status        Status             `bson:"status" json:"status"`
	Votes         []Vote             `bson:"votes" json:"votes"`

	AdminApproved bool                `bson:"admin_approved" json:"admin_approved"`
	AdminComments string              `bson:"admin_comments,omitempty" json:"admin_comments,omitempty"`
	ReviewedBy    *primitive.ObjectID `bson:"reviewed_by,omitempty" json:"reviewed_by,omitempty"`

	PayoutAmount   float64    `bson:"payout_amount,omitempty" json:"payout_amount,omitempty"`
	AdminFee       float64    `bson:"admin_fee,omitempty" json:"admin_fee,omitempty"`
	PayoutRef      string     `bson:"payout_ref,omitempty" json:"payout_ref,omitempty"`
	PayoutDate     *time.Time `bson:"payout_date,omitempty" json:"payout_date,omitempty"`
	PayoutDeadline time.Time  `bson:"payout_deadline" json:"payout_deadline"`
	VotingDeadline time.Time  `bson:"voting_deadline" json:"voting_deadline"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// ApprovalCount tallies approving votes.
func (r *DeathReport) ApprovalCount() int {
	count := 0
	for _, v := range r.Votes {
		if v.Approved {
			count++
		}
	}
	return count
}

// HasVoted reports whether the member already appears in the vote ledger.
func (r *DeathReport) HasVoted(voterID primitive.ObjectID) bool {
	for _, v := range r.Votes {
		if v.VoterID == voterID {
			return true
		}
	}
	return false
}

// ActiveStatuses are the non-terminal states; a beneficiary may be
// referenced by at most one report in these states.
func ActiveStatuses() []Status {
	return []Status{StatusPending, StatusUnderReview, StatusApproved}
}
