package workflows

import "errors"

var (
	// ErrInvalidRequest is returned when the run request fails validation.
	ErrInvalidRequest = errors.New("invalid run request")

	// ErrVerificationFailed is returned when the post-substitution diff
	// check finds content drift beyond the expected URL changes. Always
	// fatal, never retried: the cause is presumed external and
	// non-deterministic, and a blind retry risks compounding corruption.
	ErrVerificationFailed = errors.New("post-substitution verification failed")

	// ErrSubmitRejected is returned when the editing surface reports no
	// success state change on submit.
	ErrSubmitRejected = errors.New("submit not accepted by editing surface")
)
