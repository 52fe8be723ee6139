package transport

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-webhook-endpoint/core"
)

func transportError(
	message string,
	category goerrors.Category,
	code int,
	metadata map[string]any,
) error {
	err := goerrors.New(message, category).
		WithCode(code).
		WithTextCode(transportTextCode(category))
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func transportWrapError(
	source error,
	category goerrors.Category,
	message string,
	code int,
	metadata map[string]any,
) error {
	if source == nil {
		return transportError(message, category, code, metadata)
	}
	err := goerrors.Wrap(source, category, message).
		WithCode(code).
		WithTextCode(transportTextCode(category))
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func transportTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return core.ErrorBadInput
	case goerrors.CategoryExternal, goerrors.CategoryAuth, goerrors.CategoryAuthz, goerrors.CategoryRateLimit:
		return core.ErrorTransportFailed
	default:
		return core.ErrorInternal
	}
}

// remoteRejectedError carries the error payload the API returned so the
// caller can report it verbatim.
func remoteRejectedError(operation string, statusCode int, detail string, metadata map[string]any) error {
	fields := core.CloneFields(metadata)
	fields["operation"] = operation
	fields["status_code"] = statusCode
	if detail != "" {
		fields["remote_errors"] = detail
	}
	message := fmt.Sprintf("transport: %s rejected by remote source", operation)
	if detail != "" {
		message += ": " + detail
	}
	return goerrors.New(message, goerrors.CategoryOperation).
		WithCode(http.StatusUnprocessableEntity).
		WithTextCode(core.ErrorRemoteRejected).
		WithMetadata(fields)
}

// classifyResponse turns a completed HTTP exchange into an error when the
// API did not succeed. A 2xx body carrying "errors" is still a failure.
func classifyResponse(operation string, res Response, metadata map[string]any) error {
	if detail, ok := errorPayload(res.Body); ok {
		if res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden {
			return authError(operation, res.StatusCode, metadata)
		}
		return remoteRejectedError(operation, res.StatusCode, detail, metadata)
	}
	switch {
	case res.StatusCode >= 200 && res.StatusCode < 300:
		return nil
	case res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden:
		return authError(operation, res.StatusCode, metadata)
	case res.StatusCode == http.StatusTooManyRequests:
		return transportError(
			fmt.Sprintf("transport: %s rate limited by remote source", operation),
			goerrors.CategoryRateLimit,
			http.StatusTooManyRequests,
			withStatus(metadata, operation, res.StatusCode),
		)
	case res.StatusCode >= 500:
		return transportError(
			fmt.Sprintf("transport: %s failed with remote status %d", operation, res.StatusCode),
			goerrors.CategoryExternal,
			http.StatusBadGateway,
			withStatus(metadata, operation, res.StatusCode),
		)
	default:
		return remoteRejectedError(operation, res.StatusCode, strings.TrimSpace(string(res.Body)), metadata)
	}
}

func authError(operation string, statusCode int, metadata map[string]any) error {
	return transportError(
		fmt.Sprintf("transport: %s not authorized by remote source (status %d)", operation, statusCode),
		goerrors.CategoryAuth,
		statusCode,
		withStatus(metadata, operation, statusCode),
	)
}

func withStatus(metadata map[string]any, operation string, statusCode int) map[string]any {
	fields := core.CloneFields(metadata)
	fields["operation"] = operation
	fields["status_code"] = statusCode
	return fields
}

// errorPayload extracts a non-empty top level "errors" member.
func errorPayload(body []byte) (string, bool) {
	trimmed := strings.TrimSpace(string(body))
	if !strings.HasPrefix(trimmed, "{") {
		return "", false
	}
	var envelope struct {
		Errors json.RawMessage `json:"errors"`
	}
	if err := json.Unmarshal([]byte(trimmed), &envelope); err != nil {
		return "", false
	}
	detail := strings.TrimSpace(string(envelope.Errors))
	switch detail {
	case "", "null", "{}", "[]", "false":
		return "", false
	}
	return detail, true
}
