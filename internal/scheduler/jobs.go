// Package scheduler runs the periodic sweep that enforces time-based
// lifecycle transitions no single request triggers: voting-deadline
// expiry, payout settlement, and late-contribution strikes.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"harambee/mutual-aid/mutual-aid-backend/internal/deathreports"
	"harambee/mutual-aid/mutual-aid-backend/internal/members"
	"harambee/mutual-aid/mutual-aid-backend/internal/notifications"
)

// ReportLifecycle is the slice of the lifecycle service the sweep drives.
type ReportLifecycle interface {
	ListExpiredPending(ctx context.Context, now time.Time) ([]deathreports.DeathReport, error)
	ExpirePending(ctx context.Context, report deathreports.DeathReport) (deathreports.Status, error)
	ListApprovedUnpaid(ctx context.Context) ([]deathreports.DeathReport, error)
	SettlePayout(ctx context.Context, reportID primitive.ObjectID) (bool, error)
}

// MemberRegistry is the slice of the member registry the sweep maintains.
type MemberRegistry interface {
	ListOverdueContributors(ctx context.Context, now time.Time) ([]members.Member, error)
	RecordStrike(ctx context.Context, memberID primitive.ObjectID) (int, error)
	Suspend(ctx context.Context, memberID primitive.ObjectID) error
}

// Notifier publishes lifecycle events; delivery is best-effort.
type Notifier interface {
	Publish(event notifications.Event)
}

// SweepReport aggregates what one sweep accomplished. Individual record
// failures are collected here instead of aborting the batch.
type SweepReport struct {
	ExpiredToReview  int
	ExpiredRejected  int
	PayoutsSettled   int
	PayoutsPending   int
	StrikesRecorded  int
	MembersSuspended int
	Errors           []error
}

// Sweeper holds the sweep's collaborators.
type Sweeper struct {
	lifecycle ReportLifecycle
	registry  MemberRegistry
	bus       Notifier
	logger    *zap.Logger
	now       func() time.Time
}

// NewSweeper creates a sweeper.
func NewSweeper(lifecycle ReportLifecycle, registry MemberRegistry, bus Notifier, logger *zap.Logger) *Sweeper {
	return &Sweeper{
		lifecycle: lifecycle,
		registry:  registry,
		bus:       bus,
		logger:    logger,
		now:       time.Now,
	}
}

// Sweep runs the three maintenance steps in fixed order. Every step is
// idempotent and safe to re-run at any cadence; one record's failure never
// prevents processing the rest.
func (s *Sweeper) Sweep(ctx context.Context) SweepReport {
	var report SweepReport
	now := s.now()

	s.expireStalePending(ctx, now, &report)
	s.processApprovedPayouts(ctx, &report)
	s.enforceLateContributions(ctx, now, &report)

	s.logger.Info("sweep finished",
		zap.Int("expired_to_review", report.ExpiredToReview),
		zap.Int("expired_rejected", report.ExpiredRejected),
		zap.Int("payouts_settled", report.PayoutsSettled),
		zap.Int("payouts_pending", report.PayoutsPending),
		zap.Int("strikes_recorded", report.StrikesRecorded),
		zap.Int("members_suspended", report.MembersSuspended),
		zap.Int("errors", len(report.Errors)))

	return report
}

func (s *Sweeper) expireStalePending(ctx context.Context, now time.Time, report *SweepReport) {
	stale, err := s.lifecycle.ListExpiredPending(ctx, now)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Errorf("list expired pending: %w", err))
		return
	}

	for _, r := range stale {
		status, err := s.lifecycle.ExpirePending(ctx, r)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Errorf("expire report %s: %w", r.ID.Hex(), err))
			continue
		}
		switch status {
		case deathreports.StatusUnderReview:
			report.ExpiredToReview++
		case deathreports.StatusRejected:
			report.ExpiredRejected++
		}
	}
}

func (s *Sweeper) processApprovedPayouts(ctx context.Context, report *SweepReport) {
	unpaid, err := s.lifecycle.ListApprovedUnpaid(ctx)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Errorf("list approved unpaid: %w", err))
		return
	}

	for _, r := range unpaid {
		settled, err := s.lifecycle.SettlePayout(ctx, r.ID)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Errorf("settle payout for %s: %w", r.ID.Hex(), err))
			continue
		}
		if settled {
			report.PayoutsSettled++
		} else {
			report.PayoutsPending++
		}
	}
}

func (s *Sweeper) enforceLateContributions(ctx context.Context, now time.Time, report *SweepReport) {
	overdue, err := s.registry.ListOverdueContributors(ctx, now)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Errorf("list overdue contributors: %w", err))
		return
	}

	for _, member := range overdue {
		strikes, err := s.registry.RecordStrike(ctx, member.ID)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Errorf("record strike for %s: %w", member.ID.Hex(), err))
			continue
		}
		report.StrikesRecorded++

		if strikes < members.MaxStrikes {
			continue
		}
		if err := s.registry.Suspend(ctx, member.ID); err != nil {
			report.Errors = append(report.Errors, fmt.Errorf("suspend member %s: %w", member.ID.Hex(), err))
			continue
		}
		report.MembersSuspended++

		event := notifications.NewEvent(notifications.EventMemberSuspended)
		event.RecipientID = member.ID
		event.SectionID = member.SectionID
		s.bus.Publish(event)
	}
}
