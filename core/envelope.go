package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// Envelope is one inbound event notification. Model and the data id are
// diagnostic only and may be absent.
type Envelope struct {
	Type  string         `json:"type"`
	Model string         `json:"model,omitempty"`
	Data  map[string]any `json:"data,omitempty"`
	// Raw holds the request body as received, extra source fields included.
	Raw []byte `json:"-"`
}

// ParseEnvelope decodes an inbound body. Only type is required.
func ParseEnvelope(body []byte) (Envelope, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return Envelope{}, BadInputError("core: event body is empty", nil)
	}
	var raw struct {
		Type  any `json:"type"`
		Model any `json:"model"`
		Data  any `json:"data"`
	}
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return Envelope{}, WrapError(err, goerrors.CategoryBadInput, "core: event body is not a json object", ErrorBadInput, nil)
	}
	eventType := stringValue(raw.Type)
	if eventType == "" {
		return Envelope{}, BadInputError("core: event type is required", nil)
	}
	envelope := Envelope{
		Type:  eventType,
		Model: stringValue(raw.Model),
		Raw:   append([]byte(nil), trimmed...),
	}
	if data, ok := raw.Data.(map[string]any); ok {
		envelope.Data = data
	}
	return envelope, nil
}

// ResourceID returns data.id, or "" when absent.
func (e Envelope) ResourceID() string {
	if e.Data == nil {
		return ""
	}
	return stringValue(e.Data["id"])
}

// Target renders "/<model>/<id>" for log lines, using "-" for missing parts.
func (e Envelope) Target() string {
	model := strings.TrimSpace(e.Model)
	if model == "" {
		model = "-"
	}
	id := e.ResourceID()
	if id == "" {
		id = "-"
	}
	return "/" + model + "/" + id
}

// Payload returns the received body for logging, re-encoding when Raw is empty.
func (e Envelope) Payload() string {
	if len(e.Raw) > 0 {
		return string(e.Raw)
	}
	encoded, err := json.Marshal(e)
	if err != nil {
		return ""
	}
	return string(encoded)
}

func stringValue(value any) string {
	switch typed := value.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(typed)
	case json.Number:
		return typed.String()
	case float64:
		return strings.TrimSpace(fmt.Sprintf("%v", typed))
	default:
		return strings.TrimSpace(fmt.Sprint(typed))
	}
}
