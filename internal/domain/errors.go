package domain

import "errors"

// Sentinel errors used across service boundaries.
var (
	ErrNotFound       = errors.New("not found")
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenMalformed = errors.New("token malformed")
	ErrTokenInvalid   = errors.New("token invalid")
)

// ErrorResponse is the JSON error envelope returned to clients. Bodies
// stay generic: policy reasons and validator failures are logged
// server-side only.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
