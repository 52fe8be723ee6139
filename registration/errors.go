package registration

import (
	"fmt"
	"net/http"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-webhook-endpoint/core"
)

// rejectedError marks a registration the remote source refused. The remote
// detail travels in the wrapped source.
func rejectedError(source error, message string, metadata map[string]any) error {
	var err *goerrors.Error
	if source != nil {
		err = goerrors.Wrap(source, goerrors.CategoryOperation, message)
	} else {
		err = goerrors.New(message, goerrors.CategoryOperation)
	}
	err = err.WithCode(http.StatusUnprocessableEntity).
		WithTextCode(core.ErrorRegistrationRejected)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func missingIDError(alias string, operation string) error {
	return rejectedError(
		nil,
		fmt.Sprintf("registration: %s for %q returned no subscription id", operation, alias),
		map[string]any{"alias": alias, "operation": operation},
	)
}

func registrationDependencyError(message string) error {
	return core.InternalError(message, nil)
}

// classify converts a remote application error into a registration
// rejection. Transport and input errors pass through unchanged.
func classify(err error, alias string, operation string) error {
	if err == nil {
		return nil
	}
	if core.IsRemoteRejected(err) {
		return rejectedError(
			err,
			fmt.Sprintf("registration: unable to register webhook %q", alias),
			map[string]any{"alias": alias, "operation": operation},
		)
	}
	return err
}
