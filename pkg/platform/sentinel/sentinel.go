// Package sentinel holds infrastructure facts returned by stores and media.
// Services translate them into domain errors; transports never see them.
package sentinel

import "errors"

var (
	// ErrNotFound: the record or token does not exist in the store.
	ErrNotFound = errors.New("not found")
	// ErrExpired: the record exists but its deadline has passed.
	ErrExpired = errors.New("expired")
	// ErrInvalidState: the record is in the wrong state for the mutation.
	ErrInvalidState = errors.New("invalid state")
	// ErrMalformed: a stored payload could not be decoded.
	ErrMalformed = errors.New("malformed payload")
	// ErrUnavailable: the backing medium is not reachable.
	ErrUnavailable = errors.New("unavailable")
)
