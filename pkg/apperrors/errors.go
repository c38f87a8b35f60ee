package apperrors

import "errors"

// Request validation failures. Handlers translate these into client messages.
var (
	ErrInvalidJSON    = errors.New("invalid JSON request body")
	ErrBodyTooLarge   = errors.New("request body too large")
	ErrMissingQuery   = errors.New("missing required parameter: query")
	ErrQueryNotString = errors.New("query must be a string")
	ErrEmptyQuery     = errors.New("query cannot be empty")
	ErrQueryTooLong   = errors.New("query exceeds maximum allowed length")
	ErrParamsNotArray = errors.New("parameters must be an array")
)
