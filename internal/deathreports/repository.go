package deathreports

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

// Repository defines data access for death report aggregates. Every
// mutating method is a conditional update keyed on the report's current
// state, so concurrent writers (voters, admins, the scheduler) can never
// clobber each other or apply a transition twice.
type Repository interface {
	Create(ctx context.Context, report *DeathReport) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*DeathReport, error)
	ListBySection(ctx context.Context, sectionID primitive.ObjectID) ([]DeathReport, error)
	HasActiveForBeneficiary(ctx context.Context, beneficiaryID primitive.ObjectID) (bool, error)

	// AppendVote atomically appends a vote, guarded on status=pending and
	// the voter not already appearing in the ledger. Returns the updated
	// report, or ErrConditionFailed when the guard did not match.
	AppendVote(ctx context.Context, id primitive.ObjectID, vote Vote) (*DeathReport, error)

	// Transition atomically moves a report from one status to another,
	// applying the extra field updates in the same write. Returns
	// ErrConditionFailed when the report is not in the expected state.
	Transition(ctx context.Context, id primitive.ObjectID, from, to Status, set bson.M) (*DeathReport, error)

	// SetPayoutRef records the payment handle on an approved, unpaid report.
	SetPayoutRef(ctx context.Context, id primitive.ObjectID, ref string) error
	// ClearPayoutRef drops a failed payment handle so the next sweep retries.
	ClearPayoutRef(ctx context.Context, id primitive.ObjectID) error
	// MarkPaid completes the approved → paid transition, guarded on the
	// payout date still being unset.
	MarkPaid(ctx context.Context, id primitive.ObjectID, paidAt time.Time) (*DeathReport, error)

	ListExpiredPending(ctx context.Context, now time.Time) ([]DeathReport, error)
	ListApprovedUnpaid(ctx context.Context) ([]DeathReport, error)
}

// ErrConditionFailed is returned by conditional updates whose guard did not
// match any document. The service re-reads the report to surface the
// precise conflict to the caller.
var ErrConditionFailed = errors.New("conditional update matched no document")

const reportsCollection = "death_reports"

// MongoRepository implements Repository on a MongoDB collection.
type MongoRepository struct {
	collection *mongo.Collection
}

// NewMongoRepository creates a Mongo-backed report repository.
func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{collection: db.Collection(reportsCollection)}
}

func (r *MongoRepository) Create(ctx context.Context, report *DeathReport) error {
	if report.ID.IsZero() {
		report.ID = primitive.NewObjectID()
	}
	if report.Votes == nil {
		report.Votes = []Vote{}
	}
	if _, err := r.collection.InsertOne(ctx, report); err != nil {
		return fmt.Errorf("failed to insert death report: %w", err)
	}
	return nil
}

func (r *MongoRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*DeathReport, error) {
	var report DeathReport
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&report)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch death report: %w", err)
	}
	return &report, nil
}

func (r *MongoRepository) ListBySection(ctx context.Context, sectionID primitive.ObjectID) ([]DeathReport, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.M{"section_id": sectionID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list section reports: %w", err)
	}
	var reports []DeathReport
	if err := cursor.All(ctx, &reports); err != nil {
		return nil, fmt.Errorf("failed to decode section reports: %w", err)
	}
	return reports, nil
}

func (r *MongoRepository) HasActiveForBeneficiary(ctx context.Context, beneficiaryID primitive.ObjectID) (bool, error) {
	count, err := r.collection.CountDocuments(ctx, bson.M{
		"beneficiary_id": beneficiaryID,
		"status":         bson.M{"$in": ActiveStatuses()},
	})
	if err != nil {
		return false, fmt.Errorf("failed to check active reports: %w", err)
	}
	return count > 0, nil
}

func (r *MongoRepository) AppendVote(ctx context.Context, id primitive.ObjectID, vote Vote) (*DeathReport, error) {
	filter := bson.M{
		"_id":            id,
		"status":         StatusPending,
		"votes.voter_id": bson.M{"$ne": vote.VoterID},
	}
	update := bson.M{
		"$push": bson.M{"votes": vote},
		"$set":  bson.M{"updated_at": vote.CastAt},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated DeathReport
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&updated)
	if err == mongo.ErrNoDocuments {
		return nil, ErrConditionFailed
	}
	if err != nil {
		return nil, fmt.Errorf("failed to append vote: %w", err)
	}
	return &updated, nil
}

func (r *MongoRepository) Transition(ctx context.Context, id primitive.ObjectID, from, to Status, set bson.M) (*DeathReport, error) {
	if set == nil {
		set = bson.M{}
	}
	set["status"] = to
	set["updated_at"] = time.Now()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated DeathReport
	err := r.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "status": from},
		bson.M{"$set": set},
		opts,
	).Decode(&updated)
	if err == mongo.ErrNoDocuments {
		return nil, ErrConditionFailed
	}
	if err != nil {
		return nil, fmt.Errorf("failed to transition report %s to %s: %w", id.Hex(), to, err)
	}
	return &updated, nil
}

func (r *MongoRepository) SetPayoutRef(ctx context.Context, id primitive.ObjectID, ref string) error {
	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "status": StatusApproved, "payout_date": nil},
		bson.M{"$set": bson.M{"payout_ref": ref, "updated_at": time.Now()}},
	)
	if err != nil {
		return fmt.Errorf("failed to set payout ref: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrConditionFailed
	}
	return nil
}

func (r *MongoRepository) ClearPayoutRef(ctx context.Context, id primitive.ObjectID) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "status": StatusApproved, "payout_date": nil},
		bson.M{"$unset": bson.M{"payout_ref": ""}, "$set": bson.M{"updated_at": time.Now()}},
	)
	if err != nil {
		return fmt.Errorf("failed to clear payout ref: %w", err)
	}
	return nil
}

func (r *MongoRepository) MarkPaid(ctx context.Context, id primitive.ObjectID, paidAt time.Time) (*DeathReport, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated DeathReport
	err := r.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "status": StatusApproved, "payout_date": nil},
		bson.M{"$set": bson.M{
			"status":      StatusPaid,
			"payout_date": paidAt,
			"updated_at":  paidAt,
		}},
		opts,
	).Decode(&updated)
	if err == mongo.ErrNoDocuments {
		return nil, ErrConditionFailed
	}
	if err != nil {
		return nil, fmt.Errorf("failed to mark report paid: %w", err)
	}
	return &updated, nil
}

func (r *MongoRepository) ListExpiredPending(ctx context.Context, now time.Time) ([]DeathReport, error) {
	cursor, err := r.collection.Find(ctx, bson.M{
		"status":          StatusPending,
		"voting_deadline": bson.M{"$lt": now},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list expired pending reports: %w", err)
	}
	var reports []DeathReport
	if err := cursor.All(ctx, &reports); err != nil {
		return nil, fmt.Errorf("failed to decode expired pending reports: %w", err)
	}
	return reports, nil
}

func (r *MongoRepository) ListApprovedUnpaid(ctx context.Context) ([]DeathReport, error) {
	cursor, err := r.collection.Find(ctx, bson.M{
		"status":      StatusApproved,
		"payout_date": nil,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list approved unpaid reports: %w", err)
	}
	var reports []DeathReport
	if err := cursor.All(ctx, &reports); err != nil {
		return nil, fmt.Errorf("failed to decode approved unpaid reports: %w", err)
	}
	return reports, nil
}
