package core

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ErrorBadInput             = "WEBHOOK_BAD_INPUT"
	ErrorTransportFailed      = "WEBHOOK_TRANSPORT_FAILED"
	ErrorRegistrationRejected = "WEBHOOK_REGISTRATION_REJECTED"
	ErrorRemoteRejected       = "WEBHOOK_REMOTE_REJECTED"
	ErrorUnknownEventType     = "WEBHOOK_UNKNOWN_EVENT_TYPE"
	ErrorHandlerFailed        = "WEBHOOK_HANDLER_FAILED"
	ErrorNotReady             = "WEBHOOK_NOT_READY"
	ErrorInternal             = "WEBHOOK_INTERNAL_ERROR"
)

// NewError builds a categorised error carrying an HTTP code and text code.
func NewError(message string, category goerrors.Category, textCode string, metadata map[string]any) *goerrors.Error {
	err := goerrors.New(message, category).
		WithCode(HTTPStatusForCategory(category)).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

// WrapError wraps source with a category, message and text code. A nil source
// yields a fresh error.
func WrapError(source error, category goerrors.Category, message string, textCode string, metadata map[string]any) *goerrors.Error {
	if source == nil {
		return NewError(message, category, textCode, metadata)
	}
	err := goerrors.Wrap(source, category, message).
		WithCode(HTTPStatusForCategory(category)).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func BadInputError(message string, metadata map[string]any) *goerrors.Error {
	return NewError(message, goerrors.CategoryBadInput, ErrorBadInput, metadata)
}

func InternalError(message string, metadata map[string]any) *goerrors.Error {
	return NewError(message, goerrors.CategoryInternal, ErrorInternal, metadata)
}

func TextCode(err error) string {
	if err == nil {
		return ""
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr != nil {
		return strings.TrimSpace(richErr.TextCode)
	}
	return ""
}

func IsTransportError(err error) bool {
	return TextCode(err) == ErrorTransportFailed
}

func IsRegistrationRejected(err error) bool {
	return TextCode(err) == ErrorRegistrationRejected
}

// IsRemoteRejected reports an application-level error payload returned by the
// remote source, outside of registration.
func IsRemoteRejected(err error) bool {
	return TextCode(err) == ErrorRemoteRejected
}

func IsUnknownEventType(err error) bool {
	return TextCode(err) == ErrorUnknownEventType
}

func IsBadInput(err error) bool {
	return TextCode(err) == ErrorBadInput
}

func HTTPStatusForCategory(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
