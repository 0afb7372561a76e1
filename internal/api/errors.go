package api

import (
	"errors"
	"fmt"
	"net/http"

	"cliptide/internal/storage"
)

// ErrorCode is the machine-readable error class carried in every error body.
type ErrorCode string

const (
	CodeValidation      ErrorCode = "VALIDATION"
	CodeBadRequest      ErrorCode = "BAD_REQUEST"
	CodeUnauthenticated ErrorCode = "UNAUTHENTICATED"
	CodeNotFound        ErrorCode = "NOT_FOUND"
	CodeRateLimited     ErrorCode = "RATE_LIMITED"
	CodeInternal        ErrorCode = "INTERNAL"
)

// RequestError pairs an HTTP status with a stable code and a safe message.
type RequestError struct {
	Status  int
	Code    ErrorCode
	Message string
}

func (e *RequestError) Error() string { return e.Message }

func validationError(format string, args ...any) *RequestError {
	return &RequestError{Status: http.StatusBadRequest, Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

func badRequestError(format string, args ...any) *RequestError {
	return &RequestError{Status: http.StatusBadRequest, Code: CodeBadRequest, Message: fmt.Sprintf(format, args...)}
}

func unauthenticatedError() *RequestError {
	return &RequestError{Status: http.StatusUnauthorized, Code: CodeUnauthenticated, Message: "authentication required"}
}

func notFoundError(resource string) *RequestError {
	return &RequestError{Status: http.StatusNotFound, Code: CodeNotFound, Message: resource + " not found"}
}

func methodNotAllowed(allow string) *RequestError {
	return &RequestError{Status: http.StatusMethodNotAllowed, Code: CodeBadRequest, Message: "method not allowed, use " + allow}
}

// RateLimitedError is written by the rate limit middleware.
func RateLimitedError() *RequestError {
	return &RequestError{Status: http.StatusTooManyRequests, Code: CodeRateLimited, Message: "too many requests"}
}

// mapError normalizes any error into a RequestError: storage sentinels get
// their canonical status, everything else becomes an opaque 500.
func mapError(err error, resource string) *RequestError {
	var reqErr *RequestError
	switch {
	case errors.As(err, &reqErr):
		return reqErr
	case errors.Is(err, storage.ErrNotFound):
		return notFoundError(resource)
	case errors.Is(err, storage.ErrSelfSubscription):
		return badRequestError("cannot subscribe to yourself")
	case errors.Is(err, storage.ErrReplyDepth):
		return badRequestError("cannot reply to a reply")
	case errors.Is(err, storage.ErrParentMismatch):
		return badRequestError("parent comment belongs to a different video")
	case errors.Is(err, storage.ErrUnknownCategory):
		return badRequestError("unknown category")
	default:
		return &RequestError{Status: http.StatusInternalServerError, Code: CodeInternal, Message: "internal error"}
	}
}

type errorBody struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// WriteRequestError writes the canonical error body. Middleware outside this
// package uses it so every error on the wire has the same shape.
func WriteRequestError(w http.ResponseWriter, reqErr *RequestError) {
	writeJSON(w, reqErr.Status, map[string]errorBody{"error": {Code: reqErr.Code, Message: reqErr.Message}})
}

func writeError(w http.ResponseWriter, err error, resource string) {
	WriteRequestError(w, mapError(err, resource))
}
