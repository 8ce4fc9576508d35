package models

import "fmt"

// Status is the processing state of a video.
type Status string

const (
	// StatusPending means the video is known but no attempt has started.
	StatusPending Status = "pending"
	// StatusProcessing marks an in-flight attempt. It is transient: nothing
	// may read it as a terminal outcome.
	StatusProcessing Status = "processing"
	// StatusSuccess means a transcript is stored.
	StatusSuccess Status = "success"
	// StatusFailed means the last attempt failed with a non-rate-limit error.
	// Retried only by explicit operator request.
	StatusFailed Status = "failed"
	// StatusRateLimited means the last attempt hit a rate-limit signal.
	// Expected to be retried by an operator-triggered sweep.
	StatusRateLimited Status = "rate_limited"
)

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusSuccess, StatusFailed, StatusRateLimited:
		return true
	}
	return false
}

// Terminal reports whether s is a terminal status: no automatic transition
// leaves it without an explicit new request.
func (s Status) Terminal() bool {
	switch s {
	case StatusSuccess, StatusFailed, StatusRateLimited:
		return true
	}
	return false
}

// Retryable reports whether an explicit operator request may move s back
// into processing.
func (s Status) Retryable() bool {
	return s == StatusFailed || s == StatusRateLimited
}

// CanTransition reports whether the state machine allows moving from s to
// next. Every attempt passes through processing; success is final.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusProcessing
	case StatusProcessing:
		return next == StatusSuccess || next == StatusFailed || next == StatusRateLimited ||
			next == StatusPending // reconciler reclaiming an orphaned attempt
	case StatusFailed, StatusRateLimited:
		return next == StatusProcessing
	case StatusSuccess:
		return false
	}
	return false
}

// ParseStatus converts a stored string to a Status.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown status %q", s)
	}
	return st, nil
}
