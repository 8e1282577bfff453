package jukebox

import (
	"errors"
)

// Failure categories surfaced to the requester. Lower layers wrap these with
// fmt.Errorf("%w: %w", ErrX, cause) so errors.Is works on both.
var (
	ErrRateLimited       = errors.New("rate limited")
	ErrResolutionFailed  = errors.New("resolution failed")
	ErrInvalidInput      = errors.New("invalid input")
	ErrAcquisitionFailed = errors.New("acquisition failed")
	ErrInvalidDuration   = errors.New("invalid duration")
	ErrNothingPlaying    = errors.New("nothing playing")
)

// UserError carries the human-readable reason shown to the requester.
type UserError struct {
	Err    error
	Reason string
}

func (e *UserError) Error() string {
	return e.Err.Error()
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// WithReason wraps err with a reason for the requester.
func WithReason(err error, reason string) error {
	return &UserError{Err: err, Reason: reason}
}

// Reason returns the message a requester should see for err.
func Reason(err error) string {
	if err == nil {
		return ""
	}

	var userErr *UserError
	if errors.As(err, &userErr) && userErr.Reason != "" {
		return userErr.Reason
	}

	switch {
	case errors.Is(err, ErrRateLimited):
		return "Please wait a moment before trying again."
	case errors.Is(err, ErrInvalidInput):
		return "That request is not valid."
	case errors.Is(err, ErrResolutionFailed):
		return "Could not search for songs right now."
	case errors.Is(err, ErrAcquisitionFailed):
		return "Could not download that song."
	case errors.Is(err, ErrInvalidDuration):
		return "That song has no usable duration."
	case errors.Is(err, ErrNothingPlaying):
		return "Nothing is playing."
	}
	return "Something went wrong."
}

// Known reports whether err belongs to one of the categories above.
func Known(err error) bool {
	for _, target := range []error{
		ErrRateLimited, ErrResolutionFailed, ErrInvalidInput,
		ErrAcquisitionFailed, ErrInvalidDuration, ErrNothingPlaying,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
