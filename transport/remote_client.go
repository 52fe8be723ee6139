package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-webhook-endpoint/core"
)

const (
	pathWebhooks     = "/:webhooks"
	pathLastWebhook  = "/:webhooks/:last"
	pathEvents       = "/events"
	operationFind    = "find_subscription"
	operationCreate  = "create_subscription"
	operationUpdate  = "update_subscription"
	operationEmit    = "emit_event"
	operationFetch   = "fetch_resource"
	updateSetOperand = "$set"
)

// Client implements core.RemoteClient against the event source REST API.
type Client struct {
	rest *RESTAdapter
}

func NewClient(cfg core.RemoteConfig, doer HTTPDoer) *Client {
	if doer == nil {
		timeout := cfg.Timeout()
		if timeout <= 0 {
			timeout = defaultRESTClientTimeout
		}
		doer = &http.Client{Timeout: timeout}
	}
	rest := NewRESTAdapter(doer, cfg.BaseURL).WithBasicAuth(cfg.ClientID, cfg.ClientKey)
	return &Client{rest: rest}
}

// NewClientWithAdapter wraps an already configured adapter.
func NewClientWithAdapter(rest *RESTAdapter) *Client {
	return &Client{rest: rest}
}

func (c *Client) FindSubscription(ctx context.Context, alias string) (core.Subscription, bool, error) {
	alias = strings.TrimSpace(alias)
	if alias == "" {
		return core.Subscription{}, false, core.BadInputError("transport: subscription alias is required", nil)
	}
	metadata := map[string]any{"alias": alias}
	res, err := c.do(ctx, Request{
		Method: http.MethodGet,
		Path:   pathLastWebhook,
		Query:  map[string]string{"alias": alias},
	})
	if err != nil {
		return core.Subscription{}, false, err
	}
	if res.StatusCode == http.StatusNotFound {
		if _, rejected := errorPayload(res.Body); !rejected {
			return core.Subscription{}, false, nil
		}
	}
	if err := classifyResponse(operationFind, res, metadata); err != nil {
		return core.Subscription{}, false, err
	}
	if isEmptyBody(res.Body) {
		return core.Subscription{}, false, nil
	}
	sub, err := decodeSubscription(operationFind, res, metadata)
	if err != nil {
		return core.Subscription{}, false, err
	}
	if sub.ID == "" {
		return core.Subscription{}, false, nil
	}
	return sub, true, nil
}

func (c *Client) CreateSubscription(ctx context.Context, fields core.SubscriptionFields) (core.Subscription, error) {
	metadata := map[string]any{"alias": fields.Alias}
	res, err := c.do(ctx, Request{
		Method: http.MethodPost,
		Path:   pathWebhooks,
		Body: map[string]any{
			"alias":   fields.Alias,
			"url":     fields.URL,
			"events":  eventList(fields.Events),
			"enabled": fields.Enabled,
		},
	})
	if err != nil {
		return core.Subscription{}, err
	}
	if err := classifyResponse(operationCreate, res, metadata); err != nil {
		return core.Subscription{}, err
	}
	return decodeSubscription(operationCreate, res, metadata)
}

// UpdateSubscription replaces the remote event set with fields.Events.
func (c *Client) UpdateSubscription(ctx context.Context, id string, fields core.SubscriptionFields) (core.Subscription, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return core.Subscription{}, core.BadInputError("transport: subscription id is required", map[string]any{
			"alias": fields.Alias,
		})
	}
	metadata := map[string]any{"alias": fields.Alias, "subscription_id": id}
	res, err := c.do(ctx, Request{
		Method: http.MethodPut,
		Path:   pathWebhooks + "/" + url.PathEscape(id),
		Body: map[string]any{
			"id":      id,
			"url":     fields.URL,
			"events":  map[string]any{updateSetOperand: eventList(fields.Events)},
			"enabled": fields.Enabled,
		},
	})
	if err != nil {
		return core.Subscription{}, err
	}
	if err := classifyResponse(operationUpdate, res, metadata); err != nil {
		return core.Subscription{}, err
	}
	return decodeSubscription(operationUpdate, res, metadata)
}

func (c *Client) EmitEvent(ctx context.Context, req core.EventRequest) error {
	eventType := strings.TrimSpace(req.Type)
	if eventType == "" {
		return core.BadInputError("transport: event type is required", nil)
	}
	data := req.Data
	if data == nil {
		data = map[string]any{}
	}
	metadata := map[string]any{"event_type": eventType, "model": req.Model}
	res, err := c.do(ctx, Request{
		Method: http.MethodPost,
		Path:   pathEvents,
		Body: map[string]any{
			"model": req.Model,
			"type":  eventType,
			"data":  data,
		},
	})
	if err != nil {
		return err
	}
	return classifyResponse(operationEmit, res, metadata)
}

func (c *Client) FetchResource(ctx context.Context, collection string, id string) (core.Resource, error) {
	collection = strings.Trim(strings.TrimSpace(collection), "/")
	id = strings.TrimSpace(id)
	if collection == "" || id == "" {
		return nil, core.BadInputError("transport: collection and id are required", map[string]any{
			"collection": collection,
			"id":         id,
		})
	}
	metadata := map[string]any{"collection": collection, "resource_id": id}
	res, err := c.do(ctx, Request{
		Method: http.MethodGet,
		Path:   "/" + url.PathEscape(collection) + "/" + url.PathEscape(id),
	})
	if err != nil {
		return nil, err
	}
	if err := classifyResponse(operationFetch, res, metadata); err != nil {
		return nil, err
	}
	if isEmptyBody(res.Body) {
		return nil, transportError(
			fmt.Sprintf("transport: %s/%s not found on remote source", collection, id),
			goerrors.CategoryNotFound,
			http.StatusNotFound,
			metadata,
		)
	}
	resource := core.Resource{}
	if err := json.Unmarshal(res.Body, &resource); err != nil {
		return nil, transportWrapError(
			err,
			goerrors.CategoryExternal,
			"transport: decode fetched resource",
			http.StatusBadGateway,
			withStatus(metadata, operationFetch, res.StatusCode),
		)
	}
	return resource, nil
}

func (c *Client) do(ctx context.Context, req Request) (Response, error) {
	if c == nil || c.rest == nil {
		return Response{}, transportError(
			"transport: remote client is not configured",
			goerrors.CategoryInternal,
			http.StatusInternalServerError,
			nil,
		)
	}
	return c.rest.Do(ctx, req)
}

// wireSubscription tolerates numeric ids and missing fields.
type wireSubscription struct {
	ID          any      `json:"id"`
	Alias       string   `json:"alias"`
	URL         string   `json:"url"`
	Events      []string `json:"events"`
	Enabled     bool     `json:"enabled"`
	DateCreated string   `json:"date_created"`
	DateUpdated string   `json:"date_updated"`
}

func decodeSubscription(operation string, res Response, metadata map[string]any) (core.Subscription, error) {
	if isEmptyBody(res.Body) {
		return core.Subscription{}, nil
	}
	var wire wireSubscription
	decoder := json.NewDecoder(bytes.NewReader(res.Body))
	decoder.UseNumber()
	if err := decoder.Decode(&wire); err != nil {
		return core.Subscription{}, transportWrapError(
			err,
			goerrors.CategoryExternal,
			"transport: decode subscription response",
			http.StatusBadGateway,
			withStatus(metadata, operation, res.StatusCode),
		)
	}
	return core.Subscription{
		ID:          idString(wire.ID),
		Alias:       wire.Alias,
		URL:         wire.URL,
		Events:      wire.Events,
		Enabled:     wire.Enabled,
		DateCreated: wire.DateCreated,
		DateUpdated: wire.DateUpdated,
	}, nil
}

func idString(value any) string {
	switch typed := value.(type) {
	case string:
		return strings.TrimSpace(typed)
	case json.Number:
		return typed.String()
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	default:
		return ""
	}
}

func isEmptyBody(body []byte) bool {
	trimmed := strings.TrimSpace(string(body))
	return trimmed == "" || trimmed == "null"
}

func eventList(events []string) []string {
	if events == nil {
		return []string{}
	}
	return append([]string(nil), events...)
}

var _ core.RemoteClient = (*Client)(nil)
