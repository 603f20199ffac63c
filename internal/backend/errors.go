package backend

import (
	"errors"
	"net/http"
)

// Error is the error shape returned by the backend.
type Error struct {
	Code    int    `json:"code"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	if e.Message == "" {
		return http.StatusText(e.Code)
	}
	return e.Message
}

// StatusCode returns the HTTP status associated with the error.
func (e *Error) StatusCode() int {
	return e.Code
}

// Error types used by the embedded backend, matching the hosted service.
const (
	TypeGeneralArgumentInvalid = "general_argument_invalid"
	TypeRateLimitExceeded      = "general_rate_limit_exceeded"
	TypeUserUnauthorized       = "user_unauthorized"
	TypeUserInvalidCredentials = "user_invalid_credentials"
	TypeUserAlreadyExists      = "user_already_exists"
	TypeUserNotFound           = "user_not_found"
	TypeUserInvalidToken       = "user_invalid_token"
	TypeDocumentNotFound       = "document_not_found"
	TypeStorageFileNotFound    = "storage_file_not_found"
	TypeStorageInvalidFileSize = "storage_invalid_file_size"
)

// IsNotFound reports whether err is a backend 404.
func IsNotFound(err error) bool {
	return StatusOf(err) == http.StatusNotFound
}

// IsUnauthorized reports whether err is a backend 401.
func IsUnauthorized(err error) bool {
	return StatusOf(err) == http.StatusUnauthorized
}

// StatusOf returns the backend status code carried by err, or 0.
func StatusOf(err error) int {
	var backendErr *Error
	if errors.As(err, &backendErr) {
		return backendErr.Code
	}
	return 0
}
