package members

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemberStatus represents a member's standing in their community
type MemberStatus string

const (
	MemberActive    MemberStatus = "active"
	MemberSuspended MemberStatus = "suspended"
)

// MaxStrikes is the number of late-contribution strikes before suspension.
const MaxStrikes = 3

// Member is an account holder belonging to a section of a community.
type Member struct {
	ID                 primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	FullName           string             `bson:"full_name" json:"full_name"`
	Email              string             `bson:"email" json:"email"`
	Phone              string             `bson:"phone,omitempty" json:"phone,omitempty"`
	SectionID          primitive.ObjectID `bson:"section_id" json:"section_id"`
	CommunityID        primitive.ObjectID `bson:"community_id" json:"community_id"`
	Status             MemberStatus       `bson:"status" json:"status"`
	Strikes            int                `bson:"strikes" json:"strikes"`
	LastContributionAt time.Time          `bson:"last_contribution_at" json:"last_contribution_at"`
	CreatedAt          time.Time          `bson:"created_at" json:"created_at"`
}

// Relationship of a beneficiary to the account holder
type Relationship string

const (
	RelationshipChild  Relationship = "child"
	RelationshipSpouse Relationship = "spouse"
)

// Beneficiary is a registered dependent of an account holder. IsAlive flips
// to false exactly once, when a death report referencing it is created.
type Beneficiary struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	AccountID     primitive.ObjectID `bson:"account_id" json:"account_id"`
	FirstName     string             `bson:"first_name" json:"first_name"`
	LastName      string             `bson:"last_name" json:"last_name"`
	DateOfBirth   time.Time          `bson:"date_of_birth" json:"date_of_birth"`
	Relationship  Relationship       `bson:"relationship" json:"relationship"`
	IsAlive       bool               `bson:"is_alive" json:"is_alive"`
	CreatedAt     time.Time          `bson:"created_at" json:"created_at"`
}

// AgeAt returns the beneficiary's age in whole years at the given time.
func (b *Beneficiary) AgeAt(t time.Time) int {
	age := t.Year() - b.DateOfBirth.Year()
	anniversary := b.DateOfBirth.AddDate(age, 0, 0)
	if anniversary.After(t) {
		age--
	}
	return age
}

// CommunityConfig is the per-community fee configuration consumed by the
// payout calculator.
type CommunityConfig struct {
	CommunityID        primitive.ObjectID `bson:"_id" json:"community_id"`
	ContributionAmount float64            `bson:"contribution_amount" json:"contribution_amount"`
	AdminFeePercentage float64            `bson:"admin_fee_percentage,omitempty" json:"admin_fee_percentage,omitempty"`
	BillingCycleDays   int                `bson:"billing_cycle_days" json:"billing_cycle_days"`
}
