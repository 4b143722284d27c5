package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorType represents different types of errors that can occur
type ErrorType string

const (
	// Extraction
	ErrorTypePlatformNotSupported ErrorType = "platform_not_supported"
	ErrorTypeFeedPage             ErrorType = "feed_page"
	ErrorTypePageNotReady         ErrorType = "page_not_ready"
	ErrorTypeStrategyFailure      ErrorType = "strategy_failure"

	// Download, transient
	ErrorTypeNetwork     ErrorType = "network"
	ErrorTypeTimeout     ErrorType = "timeout"
	ErrorTypeRateLimit   ErrorType = "rate_limit"
	ErrorTypeServerError ErrorType = "server_error"

	// Download, permanent
	ErrorTypeInvalidURL ErrorType = "invalid_url"
	ErrorTypePermission ErrorType = "permission"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeStorage    ErrorType = "storage"

	ErrorTypeCancelled ErrorType = "cancelled"
	ErrorTypeUnknown   ErrorType = "unknown"
)

// Error is a typed error carrying an optional status code and cause
type Error struct {
	Type    ErrorType
	Message string
	Code    int
	Err     error
}

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a typed error
func New(t ErrorType, format string, args ...interface{}) *Error {
	return &Error{Type: t, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a typed error around a cause
func Wrap(t ErrorType, err error, message string) *Error {
	msg := message
	if err != nil {
		msg = fmt.Sprintf("%s: %v", message, err)
	}
	return &Error{Type: t, Message: msg, Err: err}
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeTimeout, ErrorTypeRateLimit, ErrorTypeServerError:
		return true
	default:
		return false
	}
}

// TypeOf returns the ErrorType of err, or ErrorTypeUnknown
func TypeOf(err error) ErrorType {
	var typed *Error
	if stderrors.As(err, &typed) {
		return typed.Type
	}
	return ErrorTypeUnknown
}

// Is reports whether err carries the given type anywhere in its chain
func Is(err error, t ErrorType) bool {
	return err != nil && TypeOf(err) == t
}

// IsTransient reports whether err is worth retrying. Untyped errors are
// treated as permanent so unknown failures are never retried blindly.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	return IsRetryable(TypeOf(err))
}

// ClassifyStatus maps an HTTP status code to an error type
func ClassifyStatus(statusCode int) ErrorType {
	switch {
	case statusCode == 0:
		return ErrorTypeNetwork
	case statusCode == http.StatusTooManyRequests:
		return ErrorTypeRateLimit
	case statusCode == http.StatusRequestTimeout:
		return ErrorTypeTimeout
	case statusCode == http.StatusUnauthorized, statusCode == http.StatusForbidden:
		return ErrorTypePermission
	case statusCode == http.StatusNotFound, statusCode == http.StatusGone:
		return ErrorTypeNotFound
	case statusCode >= 500:
		return ErrorTypeServerError
	case statusCode >= 400:
		return ErrorTypeInvalidURL
	default:
		return ErrorTypeUnknown
	}
}

// UserMessage returns a short explanation suitable for end users
func UserMessage(err error) string {
	switch TypeOf(err) {
	case ErrorTypePlatformNotSupported:
		return "This page is not supported. Open a single Threads, Instagram or Facebook post and try again."
	case ErrorTypeFeedPage:
		return "This looks like a feed or home page. Open a single post to extract its images."
	case ErrorTypePageNotReady:
		return "The post has not finished loading. Reload the page and try again."
	case ErrorTypeNetwork, ErrorTypeTimeout, ErrorTypeRateLimit, ErrorTypeServerError:
		return "Download failed because of a temporary problem. Please retry."
	case ErrorTypeCancelled:
		return "The operation was cancelled."
	default:
		if err == nil {
			return ""
		}
		return err.Error()
	}
}
