package inbound

import (
	"fmt"
	"net/http"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-webhook-endpoint/core"
)

func inboundError(
	message string,
	category goerrors.Category,
	textCode string,
	metadata map[string]any,
) error {
	err := goerrors.New(message, category).
		WithCode(http.StatusInternalServerError).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

// unknownEventTypeError reports a type with no registered handler. It maps to
// a server error: the registration and the registry have diverged.
func unknownEventTypeError(event core.Envelope) error {
	return inboundError(
		fmt.Sprintf("inbound: unable to handle %s event", displayType(event.Type)),
		goerrors.CategoryNotFound,
		core.ErrorUnknownEventType,
		eventMetadata(event),
	)
}

func inboundBadInput(message string, metadata map[string]any) error {
	return core.BadInputError(message, metadata)
}

func inboundInternal(message string, metadata map[string]any) error {
	return core.InternalError(message, metadata)
}
