package domain

import (
	"errors"
	"fmt"
)

// RejectReason classifies why a profile file was skipped.
type RejectReason string

const (
	RejectBadStation  RejectReason = "bad_station"
	RejectBadPosition RejectReason = "bad_position"
	RejectBadTime     RejectReason = "bad_time"
	RejectMalformed   RejectReason = "malformed"
)

// RejectionError reports a profile that could not be accepted. It is an
// expected outcome, converted into statistics at the file boundary.
type RejectionError struct {
	Reason RejectReason
	Err    error
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("%s: %v", e.Reason, e.Err)
}

func (e *RejectionError) Unwrap() error {
	return e.Err
}

// Reject builds a RejectionError with a formatted cause.
func Reject(reason RejectReason, format string, args ...any) *RejectionError {
	return &RejectionError{Reason: reason, Err: fmt.Errorf(format, args...)}
}

// RejectionReason extracts the reason from err, if it wraps a RejectionError.
func RejectionReason(err error) (RejectReason, bool) {
	var rej *RejectionError
	if errors.As(err, &rej) {
		return rej.Reason, true
	}
	return "", false
}
