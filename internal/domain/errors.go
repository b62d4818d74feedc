package domain

import "errors"

var (
	// ErrInvalidInput indicates the caller supplied no usable content:
	// empty or whitespace-only text, or a vision request without image bytes
	ErrInvalidInput = errors.New("invalid input: no usable content")

	// ErrNotInitialized indicates the orchestrator has not been configured
	// with upstream credentials yet
	ErrNotInitialized = errors.New("service not initialized")

	// ErrNoContent indicates request assembly produced nothing to send
	ErrNoContent = errors.New("no content to send")

	// ErrMalformedResponse indicates the upstream response decoded but the
	// expected text field was absent
	ErrMalformedResponse = errors.New("malformed upstream response: text field absent")

	// ErrEmptyResponse indicates the upstream text field was present but
	// blank after trimming
	ErrEmptyResponse = errors.New("empty upstream response")
)
