package models

import "errors"

var (
	// ErrNotFound is returned when an operation targets a post that does
	// not exist (including a second delete of the same id).
	ErrNotFound = errors.New("post not found")

	// ErrConflict is returned when a storage-level uniqueness constraint
	// fires on a racing insert (two requests introducing the same new tag
	// name, or the same username). Retryable by the caller.
	ErrConflict = errors.New("conflicting concurrent write")

	// ErrInvalidCredentials is the opaque login failure; it does not reveal
	// whether the username exists.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUsernameTaken is returned when registration hits an existing
	// username (case-sensitive exact match).
	ErrUsernameTaken = errors.New("username already taken")
)

// ValidationError reports a missing or oversized required field. Form
// echoes the submitted values verbatim so the caller can redisplay the
// form without losing user input.
type ValidationError struct {
	Reason string   `json:"reason"`
	Form   PostForm `json:"post"`
}

func (e *ValidationError) Error() string {
	return e.Reason
}
