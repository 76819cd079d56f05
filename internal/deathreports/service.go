package deathreports

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"harambee/mutual-aid/mutual-aid-backend/internal/documents"
	"harambee/mutual-aid/mutual-aid-backend/internal/members"
	"harambee/mutual-aid/mutual-aid-backend/internal/notifications"
	"harambee/mutual-aid/mutual-aid-backend/internal/payments"
	"harambee/mutual-aid/mutual-aid-backend/internal/payout"
	"harambee/mutual-aid/mutual-aid-backend/pkg/workflows"
)

// DefaultApprovalThreshold is the number of approving votes that advance a
// pending report into admin review. Kept as a single configuration value;
// historically parts of the product assumed 1 while admin copy referenced
// 10, so the value is configurable per deployment rather than hardcoded
// at call sites.
const DefaultApprovalThreshold = 1

// MemberRegistry is the slice of the member registry the lifecycle needs.
type MemberRegistry interface {
	GetBeneficiary(ctx context.Context, id primitive.ObjectID) (*members.Beneficiary, error)
	MarkDeceased(ctx context.Context, id primitive.ObjectID) error
	MarkAlive(ctx context.Context, id primitive.ObjectID) error
	GetCommunityConfig(ctx context.Context, communityID primitive.ObjectID) (*members.CommunityConfig, error)
	AdjustBalance(ctx context.Context, sectionID, communityID primitive.ObjectID, delta float64) error
}

// Notifier publishes lifecycle events; delivery is best-effort.
type Notifier interface {
	Publish(event notifications.Event)
}

// Service owns the report lifecycle: submission, the vote ledger, admin
// review resolution, and payout settlement. All state changes go through
// conditional repository updates so every transition applies exactly once.
type Service struct {
	repo       Repository
	registry   MemberRegistry
	payments   payments.Channel
	statements documents.Store
	bus        Notifier
	machine    *workflows.StateMachine
	logger     *zap.Logger
	threshold  int
	now        func() time.Time
}

// NewService creates the lifecycle service. A non-positive threshold falls
// back to DefaultApprovalThreshold.
func NewService(
	repo Repository,
	registry MemberRegistry,
	channel payments.Channel,
	statements documents.Store,
	bus Notifier,
	logger *zap.Logger,
	approvalThreshold int,
) *Service {
	if approvalThreshold <= 0 {
		approvalThreshold = DefaultApprovalThreshold
	}
	return &Service{
		repo:       repo,
		registry:   registry,
		payments:   channel,
		statements: statements,
		bus:        bus,
		machine:    workflows.NewReportStateMachine(),
		logger:     logger,
		threshold:  approvalThreshold,
		now:        time.Now,
	}
}

// SubmitInput carries a validated report submission.
type SubmitInput struct {
	ReporterID    primitive.ObjectID
	SectionID     primitive.ObjectID
	CommunityID   primitive.ObjectID
	BeneficiaryID primitive.ObjectID
	DocumentRef   string
	BankDetails   BankDetails
}

// SubmitReport creates a death report in the pending state. The
// beneficiary's is_alive flag flips to false in the same logical
// operation; the conditional flip doubles as the serialization point for
// concurrent submissions against the same beneficiary.
func (s *Service) SubmitReport(ctx context.Context, in SubmitInput) (*DeathReport, error) {
	if in.DocumentRef == "" {
		return nil, fmt.Errorf("a death certificate document is required")
	}
	if err := in.BankDetails.Validate(); err != nil {
		return nil, err
	}

	active, err := s.repo.HasActiveForBeneficiary(ctx, in.BeneficiaryID)
	if err != nil {
		return nil, err
	}
	if active {
		return nil, ErrDuplicateReport
	}

	beneficiary, err := s.registry.GetBeneficiary(ctx, in.BeneficiaryID)
	if err != nil {
		if errors.Is(err, members.ErrBeneficiaryNotFound) {
			return nil, fmt.Errorf("%w: beneficiary does not exist", ErrBeneficiaryIneligible)
		}
		return nil, err
	}

	now := s.now()
	if beneficiary.AgeAt(now) > BeneficiaryAgeLimit {
		return nil, fmt.Errorf("%w: beneficiary is over the plan age limit of %d",
			ErrBeneficiaryIneligible, BeneficiaryAgeLimit)
	}

	if err := s.registry.MarkDeceased(ctx, in.BeneficiaryID); err != nil {
		if errors.Is(err, members.ErrBeneficiaryDeceased) {
			return nil, ErrDuplicateReport
		}
		return nil, err
	}

	report := &DeathReport{
		BeneficiaryID:  in.BeneficiaryID,
		ReporterID:     in.ReporterID,
		SectionID:      in.SectionID,
		CommunityID:    in.CommunityID,
		DocumentRef:    in.DocumentRef,
		BankDetails:    in.BankDetails,
		Status:         StatusPending,
		Votes:          []Vote{},
		VotingDeadline: now.Add(VotingWindow),
		PayoutDeadline: now.Add(PayoutWindow),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.Create(ctx, report); err != nil {
		// Revert the flip or the beneficiary is locked out of resubmission.
		if rerr := s.registry.MarkAlive(ctx, in.BeneficiaryID); rerr != nil {
			s.logger.Error("failed to revert beneficiary deceased flag after insert failure",
				zap.String("beneficiary_id", in.BeneficiaryID.Hex()), zap.Error(rerr))
		}
		return nil, err
	}

	event := notifications.NewEvent(notifications.EventReportSubmitted)
	event.SectionID = report.SectionID
	event.ReportID = report.ID
	event.Payload["beneficiary_name"] = beneficiary.FirstName + " " + beneficiary.LastName
	event.Payload["voting_deadline"] = report.VotingDeadline.Format(time.RFC3339)
	s.bus.Publish(event)

	return report, nil
}

// CastVote validates and records one section member's vote on a pending
// report. Voting is section-scoped: only members of the report's section
// may vote. When the approving tally reaches the threshold, the report
// advances to under-review as part of the same logical operation.
func (s *Service) CastVote(ctx context.Context, reportID, voterID, voterSectionID primitive.ObjectID, approved bool, comment string) (*DeathReport, error) {
	report, err := s.repo.GetByID(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if report.SectionID != voterSectionID {
		return nil, ErrNotAuthorized
	}
	if report.Status != StatusPending {
		return nil, ErrInvalidState
	}
	now := s.now()
	if now.After(report.VotingDeadline) {
		return nil, ErrDeadlineExpired
	}
	if report.HasVoted(voterID) {
		return nil, ErrAlreadyVoted
	}

	vote := Vote{VoterID: voterID, Approved: approved, Comment: comment, CastAt: now}
	updated, err := s.repo.AppendVote(ctx, reportID, vote)
	if errors.Is(err, ErrConditionFailed) {
		// Lost a race since the read above; re-read for the precise conflict.
		fresh, ferr := s.repo.GetByID(ctx, reportID)
		if ferr != nil {
			return nil, ferr
		}
		if fresh.HasVoted(voterID) {
			return nil, ErrAlreadyVoted
		}
		return nil, ErrInvalidState
	}
	if err != nil {
		return nil, err
	}

	if updated.ApprovalCount() >= s.threshold {
		advanced, terr := s.transition(ctx, reportID, StatusPending, StatusUnderReview, nil)
		switch {
		case terr == nil:
			updated = advanced
		case errors.Is(terr, ErrConditionFailed):
			// A concurrent vote already triggered the transition.
		default:
			s.logger.Error("failed to advance report to review",
				zap.String("report_id", reportID.Hex()), zap.Error(terr))
		}
	}

	event := notifications.NewEvent(notifications.EventVoteCast)
	event.SectionID = updated.SectionID
	event.ReportID = updated.ID
	event.Payload["approval_count"] = updated.ApprovalCount()
	event.Payload["status"] = string(updated.Status)
	s.bus.Publish(event)

	return updated, nil
}

// ResolveReview applies an admin's decision to a report under review. The
// operation is idempotent under retry: a second call finds the report
// outside under-review and fails with ErrInvalidState without recomputing
// the payout.
func (s *Service) ResolveReview(ctx context.Context, reportID, adminID primitive.ObjectID, approved bool, comments string) (*DeathReport, error) {
	report, err := s.repo.GetByID(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if report.Status != StatusUnderReview {
		return nil, ErrInvalidState
	}

	if !approved {
		updated, err := s.transition(ctx, reportID, StatusUnderReview, StatusRejected,
			bson.M{"admin_comments": comments, "reviewed_by": adminID})
		if errors.Is(err, ErrConditionFailed) {
			return nil, ErrInvalidState
		}
		if err != nil {
			return nil, err
		}

		event := notifications.NewEvent(notifications.EventReportRejected)
		event.RecipientID = updated.ReporterID
		event.ReportID = updated.ID
		event.Payload["comments"] = comments
		s.bus.Publish(event)
		return updated, nil
	}

	config, err := s.registry.GetCommunityConfig(ctx, report.CommunityID)
	if err != nil {
		return nil, err
	}
	breakdown := payout.Compute(config.ContributionAmount, config.AdminFeePercentage)

	now := s.now()
	updated, err := s.transition(ctx, reportID, StatusUnderReview, StatusApproved, bson.M{
		"admin_approved":  true,
		"admin_comments":  comments,
		"reviewed_by":     adminID,
		"payout_amount":   breakdown.PayoutAmount,
		"admin_fee":       breakdown.AdminFee,
		"payout_deadline": now.Add(PayoutWindow),
	})
	if errors.Is(err, ErrConditionFailed) {
		return nil, ErrInvalidState
	}
	if err != nil {
		return nil, err
	}

	// The transition is committed; everything below is best-effort and must
	// not roll it back.
	if err := s.registry.AdjustBalance(ctx, updated.SectionID, updated.CommunityID, -breakdown.PayoutAmount); err != nil {
		s.logger.Error("failed to adjust section balance after approval",
			zap.String("report_id", reportID.Hex()), zap.Error(err))
	}
	s.storeStatement(ctx, updated)

	event := notifications.NewEvent(notifications.EventReportApproved)
	event.RecipientID = updated.ReporterID
	event.ReportID = updated.ID
	event.Payload["payout_amount"] = breakdown.PayoutAmount
	s.bus.Publish(event)

	return updated, nil
}

// ExpirePending force-resolves a pending report whose voting deadline has
// passed: to under-review if the tally met the threshold, to rejected
// otherwise. Safe to call repeatedly; a report that already moved on is a
// no-op.
func (s *Service) ExpirePending(ctx context.Context, report DeathReport) (Status, error) {
	if report.ApprovalCount() >= s.threshold {
		updated, err := s.transition(ctx, report.ID, StatusPending, StatusUnderReview, nil)
		if errors.Is(err, ErrConditionFailed) {
			return report.Status, nil
		}
		if err != nil {
			return report.Status, err
		}
		return updated.Status, nil
	}

	updated, err := s.transition(ctx, report.ID, StatusPending, StatusRejected,
		bson.M{"admin_comments": "voting deadline passed without enough approvals"})
	if errors.Is(err, ErrConditionFailed) {
		return report.Status, nil
	}
	if err != nil {
		return report.Status, err
	}

	event := notifications.NewEvent(notifications.EventReportExpired)
	event.RecipientID = updated.ReporterID
	event.ReportID = updated.ID
	event.Payload["approval_count"] = updated.ApprovalCount()
	s.bus.Publish(event)

	return updated.Status, nil
}

// SettlePayout drives one approved report through the payment channel.
// Returns true once the report has been marked paid. A failed transfer
// clears the payment handle so the next sweep starts over; no report state
// changes until the gateway confirms completion.
func (s *Service) SettlePayout(ctx context.Context, reportID primitive.ObjectID) (bool, error) {
	report, err := s.repo.GetByID(ctx, reportID)
	if err != nil {
		return false, err
	}
	if report.Status != StatusApproved || report.PayoutDate != nil {
		return false, nil
	}

	handle := report.PayoutRef
	if handle == "" {
		account := payments.BankAccount{
			AccountName:   report.BankDetails.AccountName,
			AccountNumber: report.BankDetails.AccountNumber,
			BankName:      report.BankDetails.BankName,
			BranchCode:    report.BankDetails.BranchCode,
		}
		handle, err = s.payments.InitiatePayout(ctx, account, report.PayoutAmount)
		if err != nil {
			return false, fmt.Errorf("failed to initiate payout: %w", err)
		}
		if err := s.repo.SetPayoutRef(ctx, reportID, handle); err != nil {
			if errors.Is(err, ErrConditionFailed) {
				return false, nil
			}
			return false, err
		}
	}

	status, err := s.payments.ConfirmPayoutStatus(ctx, handle)
	if err != nil {
		return false, fmt.Errorf("failed to confirm payout status: %w", err)
	}

	switch status {
	case payments.PayoutCompleted:
		updated, err := s.repo.MarkPaid(ctx, reportID, s.now())
		if errors.Is(err, ErrConditionFailed) {
			return false, nil
		}
		if err != nil {
			return false, err
		}

		event := notifications.NewEvent(notifications.EventPayoutCompleted)
		event.RecipientID = updated.ReporterID
		event.ReportID = updated.ID
		event.Payload["payout_amount"] = updated.PayoutAmount
		s.bus.Publish(event)
		return true, nil
	case payments.PayoutFailed:
		if err := s.repo.ClearPayoutRef(ctx, reportID); err != nil {
			s.logger.Error("failed to clear payout ref after gateway failure",
				zap.String("report_id", reportID.Hex()), zap.Error(err))
		}
		return false, fmt.Errorf("payment gateway reported the transfer failed")
	default:
		return false, nil
	}
}

// ListExpiredPending returns pending reports whose voting deadline passed.
func (s *Service) ListExpiredPending(ctx context.Context, now time.Time) ([]DeathReport, error) {
	return s.repo.ListExpiredPending(ctx, now)
}

// ListApprovedUnpaid returns approved reports awaiting settlement.
func (s *Service) ListApprovedUnpaid(ctx context.Context) ([]DeathReport, error) {
	return s.repo.ListApprovedUnpaid(ctx)
}

// GetReport returns a report if the viewer is its reporter, a section
// peer, or an admin.
func (s *Service) GetReport(ctx context.Context, reportID, viewerID, viewerSectionID primitive.ObjectID, isAdmin bool) (*DeathReport, error) {
	report, err := s.repo.GetByID(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if !isAdmin && report.ReporterID != viewerID && report.SectionID != viewerSectionID {
		return nil, ErrNotAuthorized
	}
	return report, nil
}

// ListSectionReports returns all reports filed in a section, newest first.
func (s *Service) ListSectionReports(ctx context.Context, sectionID primitive.ObjectID) ([]DeathReport, error) {
	return s.repo.ListBySection(ctx, sectionID)
}

// transition consults the state machine before handing the edge to the
// repository's conditional update.
func (s *Service) transition(ctx context.Context, id primitive.ObjectID, from, to Status, set bson.M) (*DeathReport, error) {
	if !s.machine.CanTransition(string(from), string(to)) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidState, from, to)
	}
	return s.repo.Transition(ctx, id, from, to, set)
}

func (s *Service) storeStatement(ctx context.Context, report *DeathReport) {
	if s.statements == nil {
		return
	}

	beneficiaryName := report.BeneficiaryID.Hex()
	if beneficiary, err := s.registry.GetBeneficiary(ctx, report.BeneficiaryID); err == nil {
		beneficiaryName = beneficiary.FirstName + " " + beneficiary.LastName
	}

	pdf, err := documents.BuildPayoutStatement(documents.PayoutStatement{
		ReportID:        report.ID.Hex(),
		BeneficiaryName: beneficiaryName,
		AccountName:     report.BankDetails.AccountName,
		AccountNumber:   report.BankDetails.AccountNumber,
		BankName:        report.BankDetails.BankName,
		PayoutAmount:    report.PayoutAmount,
		AdminFee:        report.AdminFee,
		ApprovedAt:      report.UpdatedAt,
		PayoutDeadline:  report.PayoutDeadline,
	})
	if err != nil {
		s.logger.Error("failed to build payout statement",
			zap.String("report_id", report.ID.Hex()), zap.Error(err))
		return
	}

	fileName := fmt.Sprintf("statement-%s.pdf", report.ID.Hex())
	if _, err := s.statements.Store(ctx, "statements", fileName, bytes.NewReader(pdf)); err != nil {
		s.logger.Error("failed to store payout statement",
			zap.String("report_id", report.ID.Hex()), zap.Error(err))
	}
}
