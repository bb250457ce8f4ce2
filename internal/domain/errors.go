package domain

import "errors"

// SQLSTATE codes mapped by the repositories.
const (
	ErrUniqueViolation     = "23505"
	ErrForeignKeyViolation = "23503"
)

var (
	ErrPickupNotFound     = errors.New("pickup event not found")
	ErrPickupExists       = errors.New("pickup event already exists")
	ErrUnknownReference   = errors.New("referenced store, worker, staff or hotel does not exist")
	ErrAlreadySent        = errors.New("notification already sent")
	ErrChannelDisabled    = errors.New("channel disabled")
	ErrMissingCredentials = errors.New("missing credentials")
	ErrNoRecipient        = errors.New("recipient not set")
	ErrUnknownChannel     = errors.New("unknown channel")
	ErrUnknownProvider    = errors.New("unknown chat provider")

	ErrStoreEmpty      = errors.New("store id must be set")
	ErrStartTimeEmpty  = errors.New("start time must be set")
	ErrCourseMinutes   = errors.New("course minutes must be positive")
	ErrNegativeMinutes = errors.New("minutes must not be negative")
	ErrExitBeforeStart = errors.New("exit time is before start time")
)
