package deathreports

import "errors"

// Sentinel errors for the report lifecycle. Handlers map these to HTTP
// status codes; callers discriminate with errors.Is.
var (
	ErrNotFound              = errors.New("death report not found")
	ErrDuplicateReport       = errors.New("an active death report already references this beneficiary")
	ErrBeneficiaryIneligible = errors.New("beneficiary is not eligible for a death report")
	ErrAlreadyVoted          = errors.New("member has already voted on this report")
	ErrDeadlineExpired       = errors.New("voting deadline has passed")
	ErrInvalidState          = errors.New("operation not allowed in the report's current state")
	ErrNotAuthorized         = errors.New("not authorized to view this report")
)
