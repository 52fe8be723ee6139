package inbound

import (
	"context"
	"net/http"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-webhook-endpoint/core"
)

func TestUnknownEventType_ReturnsRichError(t *testing.T) {
	dispatcher, err := NewDispatcher(MustRegistry(On("webhook.test", noopHandler())))
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}
	err = dispatcher.Dispatch(context.Background(), core.Envelope{Type: "no.such.event", Model: "orders"})

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryNotFound {
		t.Fatalf("expected not_found category, got %q", rich.Category)
	}
	if rich.TextCode != core.ErrorUnknownEventType {
		t.Fatalf("expected %q text code, got %q", core.ErrorUnknownEventType, rich.TextCode)
	}
	if rich.Code != http.StatusInternalServerError {
		t.Fatalf("expected %d code, got %d", http.StatusInternalServerError, rich.Code)
	}
}

func TestRegistryErrors_AreBadInput(t *testing.T) {
	_, err := NewRegistry(On("", noopHandler()))

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.TextCode != core.ErrorBadInput {
		t.Fatalf("expected %q text code, got %q", core.ErrorBadInput, rich.TextCode)
	}
	if rich.Code != http.StatusBadRequest {
		t.Fatalf("expected %d code, got %d", http.StatusBadRequest, rich.Code)
	}
}
