package core

import (
	"reflect"
	"testing"
)

func TestDesiredSubscription_NormalizedTrimsAndDedupes(t *testing.T) {
	desired := DesiredSubscription{
		Alias:  "  acme ",
		URL:    " https://hooks.example.test/ ",
		Events: []string{"webhook.test", " order.submitted ", "", "webhook.test"},
	}
	got := desired.Normalized()
	if got.Alias != "acme" || got.URL != "https://hooks.example.test/" {
		t.Fatalf("unexpected normalized subscription %+v", got)
	}
	if !reflect.DeepEqual(got.Events, []string{"webhook.test", "order.submitted"}) {
		t.Fatalf("unexpected events %v", got.Events)
	}
}

func TestDesiredSubscription_Validate(t *testing.T) {
	if err := (DesiredSubscription{Events: []string{"webhook.test"}}).Validate(); !IsBadInput(err) {
		t.Fatalf("expected missing alias to be bad input, got %v", err)
	}
	if err := (DesiredSubscription{Alias: "acme", Events: []string{" "}}).Validate(); !IsBadInput(err) {
		t.Fatalf("expected empty events to be bad input, got %v", err)
	}
	if err := (DesiredSubscription{Alias: "acme", Events: []string{"webhook.test"}}).Validate(); err != nil {
		t.Fatalf("expected url to pass through unvalidated, got %v", err)
	}
}

func TestDesiredSubscription_FieldsCopiesEvents(t *testing.T) {
	desired := DesiredSubscription{Alias: "acme", Events: []string{"a"}, Enabled: true}
	fields := desired.Fields()
	fields.Events[0] = "b"
	if desired.Events[0] != "a" {
		t.Fatalf("expected fields to own their event slice")
	}
	if !fields.Enabled || fields.Alias != "acme" {
		t.Fatalf("unexpected fields %+v", fields)
	}
}

func TestResourceID(t *testing.T) {
	if (Resource{"id": "p_1"}).ID() != "p_1" {
		t.Fatalf("expected p_1")
	}
	if (Resource{}).ID() != "" {
		t.Fatalf("expected empty id")
	}
}
