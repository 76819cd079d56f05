package members

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrMemberNotFound      = errors.New("member not found")
	ErrBeneficiaryNotFound = errors.New("beneficiary not found")
	ErrBeneficiaryDeceased = errors.New("beneficiary is already recorded as deceased")
	ErrConfigNotFound      = errors.New("community configuration not found")
)

// Registry is the member/section registry consumed by the lifecycle core
// and the scheduler. Membership CRUD itself lives outside this service;
// only the narrow surface the lifecycle needs is exposed here.
type Registry interface {
	GetMember(ctx context.Context, id primitive.ObjectID) (*Member, error)
	GetSectionMembers(ctx context.Context, sectionID primitive.ObjectID) ([]Member, error)
	GetCommunityConfig(ctx context.Context, communityID primitive.ObjectID) (*CommunityConfig, error)

	GetBeneficiary(ctx context.Context, id primitive.ObjectID) (*Beneficiary, error)
	// MarkDeceased flips is_alive to false, exactly once. A second call
	// returns ErrBeneficiaryDeceased; the flip is the serialization point
	// for concurrent report submissions against the same beneficiary.
	MarkDeceased(ctx context.Context, id primitive.ObjectID) error
	// MarkAlive reverts the flip when report creation fails after it.
	MarkAlive(ctx context.Context, id primitive.ObjectID) error

	// AdjustBalance applies a signed delta to the section's balance within
	// its community.
	AdjustBalance(ctx context.Context, sectionID, communityID primitive.ObjectID, delta float64) error

	// Late-contribution maintenance, driven by the scheduler sweep.
	ListOverdueContributors(ctx context.Context, now time.Time) ([]Member, error)
	RecordStrike(ctx context.Context, memberID primitive.ObjectID) (int, error)
	Suspend(ctx context.Context, memberID primitive.ObjectID) error
}

const (
	membersCollection       = "members"
	beneficiariesCollection = "beneficiaries"
	communitiesCollection   = "communities"
	sectionsCollection      = "sections"
)

// MongoRegistry implements Registry on the shared MongoDB database.
type MongoRegistry struct {
	members       *mongo.Collection
	beneficiaries *mongo.Collection
	communities   *mongo.Collection
	sections      *mongo.Collection
}

// NewMongoRegistry creates a Mongo-backed member registry.
func NewMongoRegistry(db *mongo.Database) *MongoRegistry {
	return &MongoRegistry{
		members:       db.Collection(membersCollection),
		beneficiaries: db.Collection(beneficiariesCollection),
		communities:   db.Collection(communitiesCollection),
		sections:      db.Collection(sectionsCollection),
	}
}

func (r *MongoRegistry) GetMember(ctx context.Context, id primitive.ObjectID) (*Member, error) {
	var member Member
	err := r.members.FindOne(ctx, bson.M{"_id": id}).Decode(&member)
	if err == mongo.ErrNoDocuments {
		return nil, ErrMemberNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch member: %w", err)
	}
	return &member, nil
}

func (r *MongoRegistry) GetSectionMembers(ctx context.Context, sectionID primitive.ObjectID) ([]Member, error) {
	cursor, err := r.members.Find(ctx, bson.M{"section_id": sectionID})
	if err != nil {
		return nil, fmt.Errorf("failed to list section members: %w", err)
	}
	var result []Member
	if err := cursor.All(ctx, &result); err != nil {
		return nil, fmt.Errorf("failed to decode section members: %w", err)
	}
	return result, nil
}

func (r *MongoRegistry) GetCommunityConfig(ctx context.Context, communityID primitive.ObjectID) (*CommunityConfig, error) {
	var config CommunityConfig
	err := r.communities.FindOne(ctx, bson.M{"_id": communityID}).Decode(&config)
	if err == mongo.ErrNoDocuments {
		return nil, ErrConfigNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch community config: %w", err)
	}
	return &config, nil
}

func (r *MongoRegistry) GetBeneficiary(ctx context.Context, id primitive.ObjectID) (*Beneficiary, error) {
	var beneficiary Beneficiary
	err := r.beneficiaries.FindOne(ctx, bson.M{"_id": id}).Decode(&beneficiary)
	if err == mongo.ErrNoDocuments {
		return nil, ErrBeneficiaryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch beneficiary: %w", err)
	}
	return &beneficiary, nil
}

func (r *MongoRegistry) MarkDeceased(ctx context.Context, id primitive.ObjectID) error {
	result, err := r.beneficiaries.UpdateOne(ctx,
		bson.M{"_id": id, "is_alive": true},
		bson.M{"$set": bson.M{"is_alive": false}},
	)
	if err != nil {
		return fmt.Errorf("failed to mark beneficiary deceased: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrBeneficiaryDeceased
	}
	return nil
}

func (r *MongoRegistry) MarkAlive(ctx context.Context, id primitive.ObjectID) error {
	// Compensation path; an already-alive beneficiary is a no-op.
	_, err := r.beneficiaries.UpdateOne(ctx,
		bson.M{"_id": id, "is_alive": false},
		bson.M{"$set": bson.M{"is_alive": true}},
	)
	if err != nil {
		return fmt.Errorf("failed to mark beneficiary alive: %w", err)
	}
	return nil
}

func (r *MongoRegistry) AdjustBalance(ctx context.Context, sectionID, communityID primitive.ObjectID, delta float64) error {
	_, err := r.sections.UpdateOne(ctx,
		bson.M{"_id": sectionID, "community_id": communityID},
		bson.M{"$inc": bson.M{"balance": delta}},
	)
	if err != nil {
		return fmt.Errorf("failed to adjust section balance: %w", err)
	}
	return nil
}

func (r *MongoRegistry) ListOverdueContributors(ctx context.Context, now time.Time) ([]Member, error) {
	// One billing cycle overdue. Communities without an explicit cycle are
	// billed monthly.
	cursor, err := r.members.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"status": MemberActive}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         communitiesCollection,
			"localField":   "community_id",
			"foreignField": "_id",
			"as":           "community",
		}}},
		{{Key: "$unwind", Value: "$community"}},
		{{Key: "$addFields", Value: bson.M{
			"cycle_days": bson.M{"$ifNull": bson.A{"$community.billing_cycle_days", 30}},
		}}},
		{{Key: "$match", Value: bson.M{
			"$expr": bson.M{"$lt": bson.A{
				"$last_contribution_at",
				bson.M{"$dateSubtract": bson.M{
					"startDate": now,
					"unit":      "day",
					"amount":    "$cycle_days",
				}},
			}},
		}}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list overdue contributors: %w", err)
	}
	var result []Member
	if err := cursor.All(ctx, &result); err != nil {
		return nil, fmt.Errorf("failed to decode overdue contributors: %w", err)
	}
	return result, nil
}

func (r *MongoRegistry) RecordStrike(ctx context.Context, memberID primitive.ObjectID) (int, error) {
	var updated Member
	err := r.members.FindOneAndUpdate(ctx,
		bson.M{"_id": memberID, "status": MemberActive},
		bson.M{"$inc": bson.M{"strikes": 1}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if err == mongo.ErrNoDocuments {
		return 0, ErrMemberNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to record strike: %w", err)
	}
	return updated.Strikes, nil
}

func (r *MongoRegistry) Suspend(ctx context.Context, memberID primitive.ObjectID) error {
	result, err := r.members.UpdateOne(ctx,
		bson.M{"_id": memberID, "status": MemberActive},
		bson.M{"$set": bson.M{"status": MemberSuspended}},
	)
	if err != nil {
		return fmt.Errorf("failed to suspend member: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrMemberNotFound
	}
	return nil
}
