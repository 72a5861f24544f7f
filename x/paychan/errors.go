package paychan

import (
	"github.com/iov-one/microchan/errors"
)

// paychan takes 1021-1039
var (
	ErrDuplicateChannel          = errors.Register(1021, "duplicate channel")
	ErrInvalidDeposit            = errors.Register(1022, "invalid deposit")
	ErrInvalidDuration           = errors.Register(1023, "invalid duration")
	ErrChannelNotActive          = errors.Register(1024, "channel not active")
	ErrChannelExpired            = errors.Register(1025, "channel expired")
	ErrInvalidAmount             = errors.Register(1026, "invalid amount")
	ErrInsufficientBalance       = errors.Register(1027, "insufficient channel balance")
	ErrInvalidSignature          = errors.Register(1028, "invalid signature")
	ErrInvalidSequence           = errors.Register(1029, "invalid sequence")
	ErrInvalidBalance            = errors.Register(1030, "invalid balance")
	ErrChannelNotCloseable       = errors.Register(1031, "channel not closeable")
	ErrNotInChallengePeriod      = errors.Register(1032, "not in challenge period")
	ErrChallengePeriodExpired    = errors.Register(1033, "challenge period expired")
	ErrChallengePeriodNotExpired = errors.Register(1034, "challenge period not expired")
	ErrDisputeNotOpen            = errors.Register(1036, "dispute not open")
)

// Class groups errors by what the caller should do about them.
type Class int

const (
	// Internal errors are not caused by the request.
	Internal Class = iota
	// Validation errors report malformed input. The request can be
	// retried with corrected input.
	Validation
	// StateConflict errors mean the caller's view of the channel is out
	// of date. The caller must fetch the channel and decide again.
	StateConflict
	// Authorization errors are never retried with the same input.
	Authorization
	// NotFound is returned for unknown channels, payments and disputes.
	NotFound
)

func (c Class) String() string {
	switch c {
	case Validation:
		return "validation"
	case StateConflict:
		return "state_conflict"
	case Authorization:
		return "authorization"
	case NotFound:
		return "not_found"
	default:
		return "internal"
	}
}

var classes = []struct {
	class Class
	errs  []*errors.Error
}{
	{Authorization, []*errors.Error{ErrInvalidSignature, errors.ErrUnauthorized}},
	{NotFound, []*errors.Error{errors.ErrNotFound}},
	{StateConflict, []*errors.Error{
		ErrDuplicateChannel, ErrChannelNotActive, ErrChannelExpired,
		ErrInsufficientBalance, ErrInvalidSequence, ErrChannelNotCloseable,
		ErrNotInChallengePeriod, ErrChallengePeriodExpired,
		ErrChallengePeriodNotExpired,
		ErrDisputeNotOpen, errors.ErrInsufficientAmount, errors.ErrDuplicate,
	}},
	{Validation, []*errors.Error{
		ErrInvalidDeposit, ErrInvalidDuration, ErrInvalidAmount,
		ErrInvalidBalance, errors.ErrInput, errors.ErrMsg, errors.ErrEmpty,
		errors.ErrAmount, errors.ErrType,
	}},
}

// Classify returns the class of err. Unknown errors are Internal.
func Classify(err error) Class {
	if err == nil {
		return Internal
	}
	for _, c := range classes {
		for _, e := range c.errs {
			if e.Is(err) {
				return c.class
			}
		}
	}
	return Internal
}
