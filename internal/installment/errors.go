package installment

import "errors"

var (
	// ErrTotalExceeds blocks a submission whose installments and down
	// payments add up to more than 100%.
	ErrTotalExceeds = errors.New("the total cannot exceed 100, please adjust your inputs")

	// ErrInputLocked is returned for an edit to an input that is locked
	// because the total already reached 100%.
	ErrInputLocked = errors.New("input is locked")

	// ErrReadOnly is returned for an edit while editing is not permitted.
	ErrReadOnly = errors.New("plan is read-only")

	// ErrInvalidIndex is returned for an installment index outside the schedule.
	ErrInvalidIndex = errors.New("installment index out of range")

	// ErrInvalidTenor is returned for a negative tenor or one above the project maximum.
	ErrInvalidTenor = errors.New("invalid tenor")

	// ErrUnknownFrequency is returned for an unsupported payment frequency.
	ErrUnknownFrequency = errors.New("unknown payment frequency")

	// ErrUnknownOffer is returned for a special offer the project does not have.
	ErrUnknownOffer = errors.New("unknown special offer")

	// ErrInvalidPercentage is returned for an entered percentage outside [0, 100].
	ErrInvalidPercentage = errors.New("percentage must be between 0 and 100")

	// ErrInvalidDate is returned for a contract date that cannot be parsed.
	ErrInvalidDate = errors.New("invalid contract date")

	// ErrEmptySchedule is returned when there is no schedule to submit.
	ErrEmptySchedule = errors.New("schedule is empty")

	// ErrUnknownEdit is returned for an edit kind the plan does not support.
	ErrUnknownEdit = errors.New("unknown edit")

	// ErrMalformedResponse is returned when the backend response lacks
	// required fields.
	ErrMalformedResponse = errors.New("malformed recalculation response")

	// ErrTenorRejected is returned when the backend rejects the tenor.
	ErrTenorRejected = errors.New("tenor rejected by backend")

	// ErrForcedLogout is returned when the backend ends the session.
	ErrForcedLogout = errors.New("session ended by backend")

	// ErrStaleResponse is returned for a response superseded by a newer submission.
	ErrStaleResponse = errors.New("stale recalculation response")
)
