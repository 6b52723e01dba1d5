package repair

import "errors"

// Lifecycle errors. All of them are recoverable: the caller re-reads the
// request and retries with corrected input.
var (
	ErrNotFound                = errors.New("not found")
	ErrInvalidState            = errors.New("invalid state")
	ErrInvalidTransition       = errors.New("invalid status transition")
	ErrUnauthorized            = errors.New("actor is not a participant of the request")
	ErrAlreadyAssigned         = errors.New("request already assigned to a professional")
	ErrNoPendingRequest        = errors.New("no pending call request")
	ErrSelfApproval            = errors.New("call cannot be approved by the party that requested it")
	ErrTerminalRequest         = errors.New("completed requests cannot be deleted")
	ErrProfessionalUnavailable = errors.New("professional is not available")
	ErrProfessionalExists      = errors.New("application already exists")
	ErrNotApproved             = errors.New("professional application is not approved")
	ErrInvalidReview           = errors.New("review decision must be approved or rejected")
	ErrEmptyMessage            = errors.New("message text is empty")
	ErrInvalidInput            = errors.New("invalid input")
	ErrInvalidRating           = errors.New("rating must be between 1 and 5")
	ErrAlreadyRated            = errors.New("request already rated")

	// ErrConflict is returned when optimistic retries are exhausted.
	ErrConflict = errors.New("concurrent modification, retry")
)
