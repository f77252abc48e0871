package piazza_errors

import "errors"

// Common errors
var (
	ErrUnauthorized    = errors.New("unauthorized")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrInvalidInput    = errors.New("invalid input")
	ErrTooLarge        = errors.New("file too large")
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrTooManyFiles    = errors.New("too many files")
	ErrAlreadyExists   = errors.New("already exists")
	ErrRateLimited     = errors.New("rate limited")
)

// Chat engine errors
var (
	ErrPendingMessage = errors.New("message not yet confirmed")
	ErrNotAuthor      = errors.New("not the message author")
	ErrReadOnlyTopic  = errors.New("topic is read-only for this member")
	ErrClosed         = errors.New("closed")
)

// Voice capture errors
var (
	ErrMicDenied     = errors.New("microphone permission denied")
	ErrMicBusy       = errors.New("microphone already in use")
	ErrTooShort      = errors.New("recording below minimum duration")
	ErrBadTransition = errors.New("invalid recording state transition")
)
