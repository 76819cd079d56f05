package notifications

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// EventType identifies a lifecycle event emitted by the core.
type EventType string

const (
	EventReportSubmitted EventType = "report-submitted"
	EventVoteCast        EventType = "vote-cast"
	EventReportApproved  EventType = "report-approved"
	EventReportRejected  EventType = "report-rejected"
	EventReportExpired   EventType = "report-expired"
	EventPayoutCompleted EventType = "payout-completed"
	EventMemberSuspended EventType = "member-suspended"
)

// Event is a typed lifecycle notification. The core publishes events onto
// the bus and never depends on any particular delivery transport.
type Event struct {
	ID          uuid.UUID
	Type        EventType
	RecipientID primitive.ObjectID
	SectionID   primitive.ObjectID
	ReportID    primitive.ObjectID
	Payload     map[string]any
	OccurredAt  time.Time
}

// MarshalJSON renders ids as hex strings and drops the unset ones;
// omitempty never omits a zero ObjectID, it is an array type.
func (e Event) MarshalJSON() ([]byte, error) {
	out := struct {
		ID          string         `json:"id"`
		Type        EventType      `json:"type"`
		RecipientID string         `json:"recipient_id,omitempty"`
		SectionID   string         `json:"section_id,omitempty"`
		ReportID    string         `json:"report_id,omitempty"`
		Payload     map[string]any `json:"payload,omitempty"`
		OccurredAt  time.Time      `json:"occurred_at"`
	}{
		ID:         e.ID.String(),
		Type:       e.Type,
		Payload:    e.Payload,
		OccurredAt: e.OccurredAt,
	}
	if !e.RecipientID.IsZero() {
		out.RecipientID = e.RecipientID.Hex()
	}
	if !e.SectionID.IsZero() {
		out.SectionID = e.SectionID.Hex()
	}
	if !e.ReportID.IsZero() {
		out.ReportID = e.ReportID.Hex()
	}
	return json.Marshal(out)
}

// NewEvent builds an event with a fresh id and timestamp.
func NewEvent(eventType EventType) Event {
	return Event{
		ID:         uuid.New(),
		Type:       eventType,
		Payload:    map[string]any{},
		OccurredAt: time.Now(),
	}
}
