package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type recordingSubscriber struct {
	name      string
	err       error
	mu        sync.Mutex
	delivered []Event
	signal    chan struct{}
}

func newRecordingSubscriber(name string, err error) *recordingSubscriber {
	return &recordingSubscriber{name: name, err: err, signal: make(chan struct{}, 16)}
}

func (r *recordingSubscriber) Name() string { return r.name }

func (r *recordingSubscriber) Deliver(ctx context.Context, event Event) error {
	r.mu.Lock()
	r.delivered = append(r.delivered, event)
	r.mu.Unlock()
	r.signal <- struct{}{}
	return r.err
}

func (r *recordingSubscriber) waitForDelivery(t *testing.T) {
	t.Helper()
	select {
	case <-r.signal:
	case <-time.After(2 * time.Second):
		t.Fatalf("subscriber %s never received the event", r.name)
	}
}

func TestPublishFansOutToAllSubscribers(t *testing.T) {
	bus := NewBus(zap.NewNop())
	first := newRecordingSubscriber("first", nil)
	second := newRecordingSubscriber("second", nil)
	bus.Subscribe(first)
	bus.Subscribe(second)

	event := NewEvent(EventReportSubmitted)
	bus.Publish(event)

	first.waitForDelivery(t)
	second.waitForDelivery(t)

	first.mu.Lock()
	defer first.mu.Unlock()
	require.Len(t, first.delivered, 1)
	assert.Equal(t, event.ID, first.delivered[0].ID)
}

func TestPublishSurvivesFailingSubscriber(t *testing.T) {
	bus := NewBus(zap.NewNop())
	failing := newRecordingSubscriber("failing", fmt.Errorf("transport down"))
	healthy := newRecordingSubscriber("healthy", nil)
	bus.Subscribe(failing)
	bus.Subscribe(healthy)

	bus.Publish(NewEvent(EventVoteCast))

	failing.waitForDelivery(t)
	healthy.waitForDelivery(t)

	healthy.mu.Lock()
	defer healthy.mu.Unlock()
	assert.Len(t, healthy.delivered, 1, "one subscriber's failure must not affect the others")
}

func TestPublishWithNoSubscribersIsNoOp(t *testing.T) {
	bus := NewBus(zap.NewNop())
	assert.NotPanics(t, func() { bus.Publish(NewEvent(EventReportApproved)) })
}

func TestEventMarshalOmitsUnsetIDs(t *testing.T) {
	event := NewEvent(EventVoteCast)
	event.SectionID = primitive.NewObjectID()

	data, err := json.Marshal(event)
	require.NoError(t, err)

	assert.NotContains(t, string(data), "recipient_id", "section-wide events carry no recipient")
	assert.NotContains(t, string(data), "000000000000000000000000")
	assert.Contains(t, string(data), event.SectionID.Hex())

	event.RecipientID = primitive.NewObjectID()
	data, err = json.Marshal(event)
	require.NoError(t, err)
	assert.Contains(t, string(data), event.RecipientID.Hex())
}

func TestRenderMessage(t *testing.T) {
	event := NewEvent(EventReportApproved)
	event.Payload["payout_amount"] = 5000.0

	subject, body := RenderMessage(event)
	assert.Equal(t, "Death report approved", subject)
	assert.Contains(t, body, "5000")

	rejected := NewEvent(EventReportRejected)
	rejected.Payload["comments"] = "certificate illegible"
	_, body = RenderMessage(rejected)
	assert.Contains(t, body, "certificate illegible")

	unknown := NewEvent(EventType("something-new"))
	subject, _ = RenderMessage(unknown)
	assert.True(t, strings.HasPrefix(subject, "Mutual aid"))
}
