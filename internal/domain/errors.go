package domain

import "errors"

// Realtime core failures.
var (
	// ErrAdmission means a socket presented no usable identity and was left
	// out of presence.
	ErrAdmission = errors.New("admission denied")
	// ErrTransport means a push could not be handed to a connection.
	ErrTransport = errors.New("transport failure")
	// ErrPersistence means a message could not be stored; nothing was pushed.
	ErrPersistence = errors.New("persistence failure")
)

// Request validation and auth failures.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrWeakPassword       = errors.New("password must be at least 8 characters and contain at least 3 of: digit, lowercase, uppercase, special character")
	ErrPasswordTooLong    = errors.New("password must be at most 72 bytes")
	ErrMissingFields      = errors.New("all fields are required")
	ErrEmptyMessage       = errors.New("message must contain text or an image")
	ErrInvalidImage       = errors.New("image must be a base64 data URL")
	ErrImageTooLarge      = errors.New("image exceeds size limit")
	ErrMediaUnavailable   = errors.New("media storage is not configured")
	ErrSelfMessage        = errors.New("cannot send a message to yourself")
	ErrInvalidCursor      = errors.New("invalid cursor")
	ErrMessageTooLong     = errors.New("message text is too long")
)
