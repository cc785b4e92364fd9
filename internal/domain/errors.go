package domain

import "errors"

var (
	// ErrInvalidInput signals malformed job or candidate data, rejected before a run starts.
	ErrInvalidInput = errors.New("invalid input")
	// ErrJobNotFound signals a missing job posting.
	ErrJobNotFound = errors.New("job not found")
	// ErrCandidateNotFound signals a missing candidate profile.
	ErrCandidateNotFound = errors.New("candidate not found")
	// ErrRunNotFound signals a missing matching run.
	ErrRunNotFound = errors.New("matching run not found")
	// ErrTaskNotFound signals a missing notification task.
	ErrTaskNotFound = errors.New("notification task not found")

	// ErrRunActive signals a duplicate run attempt for a job with a
	// non-terminal run. Callers resolve it as a no-op, not a failure.
	ErrRunActive = errors.New("matching run already active for job")
	// ErrRunTerminal signals a state transition attempted on a finished run.
	ErrRunTerminal = errors.New("matching run is terminal")

	// ErrProviderUnavailable signals a transport-level failure of the
	// embedding or channel provider. Retryable per backoff policy.
	ErrProviderUnavailable = errors.New("provider unavailable")
	// ErrPermanentDelivery signals an unretryable delivery failure
	// (invalid address, unsubscribed recipient, malformed message).
	ErrPermanentDelivery = errors.New("permanent delivery failure")
)
