package notifications

import "fmt"

// RenderMessage produces the human-readable subject and body for an event.
// Payload keys are set by the emitting service; missing keys degrade to a
// generic line rather than failing delivery.
func RenderMessage(event Event) (subject, body string) {
	switch event.Type {
	case EventReportSubmitted:
		return "Death report submitted",
			fmt.Sprintf("A death report for %v has been submitted in your section. Voting closes at %v.",
				event.Payload["beneficiary_name"], event.Payload["voting_deadline"])
	case EventVoteCast:
		return "New vote on death report",
			fmt.Sprintf("A section member voted on report %s (%v of the required approvals so far).",
				event.ReportID.Hex(), event.Payload["approval_count"])
	case EventReportApproved:
		return "Death report approved",
			fmt.Sprintf("Your death report has been approved. A payout of %v will be made to the account on file.",
				event.Payload["payout_amount"])
	case EventReportRejected:
		return "Death report rejected",
			fmt.Sprintf("Your death report was rejected. Comments: %v", event.Payload["comments"])
	case EventReportExpired:
		return "Death report voting closed",
			fmt.Sprintf("Voting on your death report has closed with %v approvals.",
				event.Payload["approval_count"])
	case EventPayoutCompleted:
		return "Payout completed",
			fmt.Sprintf("The payout of %v for your death report has been completed.",
				event.Payload["payout_amount"])
	case EventMemberSuspended:
		return "Membership suspended",
			"Your membership has been suspended after repeated missed contributions. Contact your section administrator."
	default:
		return "Mutual aid notification", fmt.Sprintf("Event: %s", event.Type)
	}
}
