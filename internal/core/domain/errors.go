package domain

import "errors"

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates the resource already exists
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidCategory indicates the category is not one of the known categories
	ErrInvalidCategory = errors.New("invalid category")

	// ErrContentTooShort indicates uploaded content is below the minimum length
	ErrContentTooShort = errors.New("content too short")

	// ErrInvalidRecord indicates a stored chunk record could not be decoded
	ErrInvalidRecord = errors.New("invalid chunk record")

	// ErrServiceUnavailable indicates an external service could not be reached
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrPartialWrite indicates only some chunks of a document were stored
	ErrPartialWrite = errors.New("partial write")

	// ErrGroupBusy indicates another writer holds the chunk group
	ErrGroupBusy = errors.New("chunk group busy")

	// ErrUnauthorized indicates authentication failed or missing
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidCredentials indicates wrong username/password combination
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrTokenExpired indicates the auth token has expired
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenInvalid indicates the auth token is malformed or invalid
	ErrTokenInvalid = errors.New("token invalid")

	// ErrInvalidProvider indicates an unknown AI provider was specified
	ErrInvalidProvider = errors.New("invalid provider")
)
