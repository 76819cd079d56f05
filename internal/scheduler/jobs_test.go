package scheduler

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"harambee/mutual-aid/mutual-aid-backend/internal/deathreports"
	"harambee/mutual-aid/mutual-aid-backend/internal/members"
	"harambee/mutual-aid/mutual-aid-backend/internal/notifications"
)

type mockLifecycle struct {
	mock.Mock
}

func (m *mockLifecycle) ListExpiredPending(ctx context.Context, now time.Time) ([]deathreports.DeathReport, error) {
	args := m.Called(ctx, now)
	return args.Get(0).([]deathreports.DeathReport), args.Error(1)
}

func (m *mockLifecycle) ExpirePending(ctx context.Context, report deathreports.DeathReport) (deathreports.Status, error) {
	args := m.Called(ctx, report)
	return args.Get(0).(deathreports.Status), args.Error(1)
}

func (m *mockLifecycle) ListApprovedUnpaid(ctx context.Context) ([]deathreports.DeathReport, error) {
	args := m.Called(ctx)
	return args.Get(0).([]deathreports.DeathReport), args.Error(1)
}

func (m *mockLifecycle) SettlePayout(ctx context.Context, reportID primitive.ObjectID) (bool, error) {
	args := m.Called(ctx, reportID)
	return args.Bool(0), args.Error(1)
}

type mockRegistry struct {
	mock.Mock
}

func (m *mockRegistry) ListOverdueContributors(ctx context.Context, now time.Time) ([]members.Member, error) {
	args := m.Called(ctx, now)
	return args.Get(0).([]members.Member), args.Error(1)
}

func (m *mockRegistry) RecordStrike(ctx context.Context, memberID primitive.ObjectID) (int, error) {
	args := m.Called(ctx, memberID)
	return args.Int(0), args.Error(1)
}

func (m *mockRegistry) Suspend(ctx context.Context, memberID primitive.ObjectID) error {
	args := m.Called(ctx, memberID)
	return args.Error(0)
}

type capturingBus struct {
	mu     sync.Mutex
	events []notifications.Event
}

func (b *capturingBus) Publish(event notifications.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
}

func newTestSweeper(lifecycle *mockLifecycle, registry *mockRegistry, bus *capturingBus) *Sweeper {
	return NewSweeper(lifecycle, registry, bus, zap.NewNop())
}

func pendingReport() deathreports.DeathReport {
	return deathreports.DeathReport{
		ID:     primitive.NewObjectID(),
		Status: deathreports.StatusPending,
	}
}

func TestSweepExpiresStaleReports(t *testing.T) {
	lifecycle := new(mockLifecycle)
	registry := new(mockRegistry)
	bus := &capturingBus{}

	toReview := pendingReport()
	toReject := pendingReport()

	lifecycle.On("ListExpiredPending", mock.Anything, mock.Anything).
		Return([]deathreports.DeathReport{toReview, toReject}, nil)
	lifecycle.On("ExpirePending", mock.Anything, toReview).
		Return(deathreports.StatusUnderReview, nil)
	lifecycle.On("ExpirePending", mock.Anything, toReject).
		Return(deathreports.StatusRejected, nil)
	lifecycle.On("ListApprovedUnpaid", mock.Anything).
		Return([]deathreports.DeathReport{}, nil)
	registry.On("ListOverdueContributors", mock.Anything, mock.Anything).
		Return([]members.Member{}, nil)

	report := newTestSweeper(lifecycle, registry, bus).Sweep(context.Background())

	assert.Equal(t, 1, report.ExpiredToReview)
	assert.Equal(t, 1, report.ExpiredRejected)
	assert.Empty(t, report.Errors)
	lifecycle.AssertExpectations(t)
}

func TestSweepSettlesPayouts(t *testing.T) {
	lifecycle := new(mockLifecycle)
	registry := new(mockRegistry)
	bus := &capturingBus{}

	settled := pendingReport()
	waiting := pendingReport()

	lifecycle.On("ListExpiredPending", mock.Anything, mock.Anything).
		Return([]deathreports.DeathReport{}, nil)
	lifecycle.On("ListApprovedUnpaid", mock.Anything).
		Return([]deathreports.DeathReport{settled, waiting}, nil)
	lifecycle.On("SettlePayout", mock.Anything, settled.ID).Return(true, nil)
	lifecycle.On("SettlePayout", mock.Anything, waiting.ID).Return(false, nil)
	registry.On("ListOverdueContributors", mock.Anything, mock.Anything).
		Return([]members.Member{}, nil)

	report := newTestSweeper(lifecycle, registry, bus).Sweep(context.Background())

	assert.Equal(t, 1, report.PayoutsSettled)
	assert.Equal(t, 1, report.PayoutsPending)
	assert.Empty(t, report.Errors)
	lifecycle.AssertExpectations(t)
}

func TestSweepContainsPerRecordFailures(t *testing.T) {
	lifecycle := new(mockLifecycle)
	registry := new(mockRegistry)
	bus := &capturingBus{}

	broken := pendingReport()
	healthy := pendingReport()

	lifecycle.On("ListExpiredPending", mock.Anything, mock.Anything).
		Return([]deathreports.DeathReport{broken, healthy}, nil)
	lifecycle.On("ExpirePending", mock.Anything, broken).
		Return(deathreports.Status(""), fmt.Errorf("datastore unavailable"))
	lifecycle.On("ExpirePending", mock.Anything, healthy).
		Return(deathreports.StatusRejected, nil)
	lifecycle.On("ListApprovedUnpaid", mock.Anything).
		Return([]deathreports.DeathReport{}, nil)
	registry.On("ListOverdueContributors", mock.Anything, mock.Anything).
		Return([]members.Member{}, nil)

	report := newTestSweeper(lifecycle, registry, bus).Sweep(context.Background())

	assert.Equal(t, 1, report.ExpiredRejected, "one record's failure must not stop the batch")
	assert.Len(t, report.Errors, 1)
	lifecycle.AssertExpectations(t)
}

func TestSweepRecordsStrikesAndSuspends(t *testing.T) {
	lifecycle := new(mockLifecycle)
	registry := new(mockRegistry)
	bus := &capturingBus{}

	firstOffense := members.Member{ID: primitive.NewObjectID(), SectionID: primitive.NewObjectID()}
	finalOffense := members.Member{ID: primitive.NewObjectID(), SectionID: primitive.NewObjectID()}

	lifecycle.On("ListExpiredPending", mock.Anything, mock.Anything).
		Return([]deathreports.DeathReport{}, nil)
	lifecycle.On("ListApprovedUnpaid", mock.Anything).
		Return([]deathreports.DeathReport{}, nil)
	registry.On("ListOverdueContributors", mock.Anything, mock.Anything).
		Return([]members.Member{firstOffense, finalOffense}, nil)
	registry.On("RecordStrike", mock.Anything, firstOffense.ID).Return(1, nil)
	registry.On("RecordStrike", mock.Anything, finalOffense.ID).Return(members.MaxStrikes, nil)
	registry.On("Suspend", mock.Anything, finalOffense.ID).Return(nil)

	report := newTestSweeper(lifecycle, registry, bus).Sweep(context.Background())

	assert.Equal(t, 2, report.StrikesRecorded)
	assert.Equal(t, 1, report.MembersSuspended)
	registry.AssertExpectations(t)
	registry.AssertNotCalled(t, "Suspend", mock.Anything, firstOffense.ID)

	bus.mu.Lock()
	defer bus.mu.Unlock()
	assert.Len(t, bus.events, 1)
	assert.Equal(t, notifications.EventMemberSuspended, bus.events[0].Type)
	assert.Equal(t, finalOffense.ID, bus.events[0].RecipientID)
}

func TestSweepSurvivesListFailures(t *testing.T) {
	lifecycle := new(mockLifecycle)
	registry := new(mockRegistry)
	bus := &capturingBus{}

	lifecycle.On("ListExpiredPending", mock.Anything, mock.Anything).
		Return([]deathreports.DeathReport{}, fmt.Errorf("datastore unavailable"))
	lifecycle.On("ListApprovedUnpaid", mock.Anything).
		Return([]deathreports.DeathReport{}, nil)
	registry.On("ListOverdueContributors", mock.Anything, mock.Anything).
		Return([]members.Member{}, nil)

	report := newTestSweeper(lifecycle, registry, bus).Sweep(context.Background())

	assert.Len(t, report.Errors, 1)
	lifecycle.AssertCalled(t, "ListApprovedUnpaid", mock.Anything)
	registry.AssertCalled(t, "ListOverdueContributors", mock.Anything, mock.Anything)
}
