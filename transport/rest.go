package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const (
	defaultRESTClientTimeout           = 30 * time.Second
	defaultRESTResponseBodyLimit int64 = 10 << 20 // 10 MiB
	defaultUserAgent                   = "go-webhook-endpoint"
	contentTypeJSON                    = "application/json"
)

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Request is one JSON call against the API. Body is JSON encoded when set.
type Request struct {
	Method string
	Path   string
	Query  map[string]string
	Body   any
}

type Response struct {
	StatusCode int
	Body       []byte
	Duration   time.Duration
}

// RESTAdapter issues authenticated JSON requests relative to BaseURL.
type RESTAdapter struct {
	Client               HTTPDoer
	BaseURL              string
	Username             string
	Password             string
	DefaultHeaders       map[string]string
	MaxResponseBodyBytes int64
}

func NewRESTAdapter(client HTTPDoer, baseURL string) *RESTAdapter {
	if client == nil {
		client = &http.Client{Timeout: defaultRESTClientTimeout}
	}
	return &RESTAdapter{
		Client:  client,
		BaseURL: strings.TrimSpace(baseURL),
		DefaultHeaders: map[string]string{
			"Accept":     contentTypeJSON,
			"User-Agent": defaultUserAgent,
		},
		MaxResponseBodyBytes: defaultRESTResponseBodyLimit,
	}
}

func (a *RESTAdapter) WithBasicAuth(username, password string) *RESTAdapter {
	if a == nil {
		return nil
	}
	a.Username = strings.TrimSpace(username)
	a.Password = strings.TrimSpace(password)
	return a
}

func (a *RESTAdapter) Do(ctx context.Context, req Request) (Response, error) {
	if a == nil || a.Client == nil {
		return Response{}, transportError(
			"transport: rest adapter requires an http client",
			goerrors.CategoryInternal,
			http.StatusInternalServerError,
			nil,
		)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	method := strings.TrimSpace(strings.ToUpper(req.Method))
	if method == "" {
		method = http.MethodGet
	}
	target, err := a.resolveURL(req.Path, req.Query)
	if err != nil {
		return Response{}, err
	}

	var body io.Reader
	if req.Body != nil {
		encoded, err := json.Marshal(req.Body)
		if err != nil {
			return Response{}, transportWrapError(
				err,
				goerrors.CategoryBadInput,
				"transport: encode request body",
				http.StatusBadRequest,
				map[string]any{"method": method, "path": req.Path},
			)
		}
		body = bytes.NewReader(encoded)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return Response{}, transportWrapError(
			err,
			goerrors.CategoryBadInput,
			"transport: create http request",
			http.StatusBadRequest,
			map[string]any{"method": method, "url": target},
		)
	}
	for key, value := range a.DefaultHeaders {
		if strings.TrimSpace(key) == "" {
			continue
		}
		httpReq.Header.Set(strings.TrimSpace(key), strings.TrimSpace(value))
	}
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", contentTypeJSON)
	}
	if a.Username != "" || a.Password != "" {
		httpReq.SetBasicAuth(a.Username, a.Password)
	}

	startedAt := time.Now()
	httpRes, err := a.Client.Do(httpReq)
	if err != nil {
		return Response{}, transportWrapError(
			err,
			goerrors.CategoryExternal,
			"transport: execute http request",
			http.StatusBadGateway,
			map[string]any{"method": method, "url": target},
		)
	}
	defer httpRes.Body.Close()

	maxBodyBytes := a.MaxResponseBodyBytes
	if maxBodyBytes <= 0 {
		maxBodyBytes = defaultRESTResponseBodyLimit
	}
	payload, err := io.ReadAll(io.LimitReader(httpRes.Body, maxBodyBytes+1))
	if err != nil {
		return Response{}, transportWrapError(
			err,
			goerrors.CategoryExternal,
			"transport: read response body",
			http.StatusBadGateway,
			map[string]any{"method": method, "url": target, "status_code": httpRes.StatusCode},
		)
	}
	if int64(len(payload)) > maxBodyBytes {
		return Response{}, transportError(
			fmt.Sprintf("transport: response body exceeds limit of %d bytes", maxBodyBytes),
			goerrors.CategoryExternal,
			http.StatusBadGateway,
			map[string]any{
				"method":           method,
				"url":              target,
				"status_code":      httpRes.StatusCode,
				"response_limit_b": maxBodyBytes,
			},
		)
	}

	return Response{
		StatusCode: httpRes.StatusCode,
		Body:       payload,
		Duration:   time.Since(startedAt),
	}, nil
}

func (a *RESTAdapter) resolveURL(path string, query map[string]string) (string, error) {
	base, err := url.Parse(strings.TrimRight(strings.TrimSpace(a.BaseURL), "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return "", transportError(
			fmt.Sprintf("transport: invalid base url %q", a.BaseURL),
			goerrors.CategoryBadInput,
			http.StatusBadRequest,
			nil,
		)
	}
	path = "/" + strings.TrimLeft(strings.TrimSpace(path), "/")
	// Paths such as "/:webhooks/:last" are literal; join without re-parsing.
	target := *base
	target.Path = base.Path + path
	target.RawPath = ""
	values := target.Query()
	for key, value := range query {
		if strings.TrimSpace(key) == "" {
			continue
		}
		values.Set(strings.TrimSpace(key), strings.TrimSpace(value))
	}
	target.RawQuery = values.Encode()
	return target.String(), nil
}
