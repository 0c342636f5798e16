// Package apperr defines sentinel errors shared across layers.
package apperr

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrConflict       = errors.New("conflict")
	ErrAlreadyExists  = errors.New("already exists")
	ErrInvalidRequest = errors.New("invalid request")

	// ErrUnsupported marks a document the fetcher will not read (type or size).
	ErrUnsupported = errors.New("unsupported document")

	// ErrEmptyContent marks a document whose extraction produced no text.
	ErrEmptyContent = errors.New("document appears to be empty or content could not be extracted")

	// ErrReconnectRequired means stored OAuth credentials are missing or cannot be refreshed.
	ErrReconnectRequired = errors.New("google drive connection lost, reconnect required")

	// ErrUpstream marks a failed language-model call.
	ErrUpstream = errors.New("upstream model error")
)
