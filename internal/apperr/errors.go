package apperr

import "errors"

// Sentinel errors for the attempt runtime. Services wrap these with %w so
// controllers can classify failures with errors.Is while still logging the
// full chain.
var (
	// ErrAttemptAlreadyFinished is returned for any mutation against a
	// closed attempt. Fatal to the calling operation, never retried.
	ErrAttemptAlreadyFinished = errors.New("attempt already finished")

	// ErrAttemptNotFound indicates client/server state divergence, e.g. a
	// stale cache referencing an archived attempt.
	ErrAttemptNotFound = errors.New("attempt not found")

	// ErrRaceLost means a conditional "only if still open" update affected
	// zero rows. Callers treat it exactly like ErrAttemptAlreadyFinished.
	ErrRaceLost = errors.New("lost race against concurrent finish")

	// ErrAnswerLocked is the tutor-mode lock: a submitted selection is
	// immutable for the rest of the attempt.
	ErrAnswerLocked = errors.New("answer is locked in tutor mode")

	ErrTestNotFound         = errors.New("test definition not found")
	ErrQuestionNotInAttempt = errors.New("question is not part of this attempt")
)

// IsConflict reports whether err belongs to the closed-attempt family that
// maps to HTTP 409 and must block further interaction on the client.
func IsConflict(err error) bool {
	return errors.Is(err, ErrAttemptAlreadyFinished) ||
		errors.Is(err, ErrRaceLost) ||
		errors.Is(err, ErrAnswerLocked)
}

// IsNotFound reports whether err is one of the missing-entity errors.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAttemptNotFound) ||
		errors.Is(err, ErrTestNotFound) ||
		errors.Is(err, ErrQuestionNotInAttempt)
}
