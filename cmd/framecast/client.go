package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"syscall"
	"time"

	"framecast/internal/api"
	"framecast/internal/config"
	"framecast/internal/logging"
	"framecast/internal/pipeline"
)

const (
	remoteTimeout    = 2 * time.Minute
	maxResponseBytes = 32 << 20
)

// reply is an encoded api response, whichever transport produced it.
type reply struct {
	Status int
	Body   []byte
}

func (r reply) failed() bool { return r.Status >= http.StatusBadRequest }

func (r reply) accepted() bool { return r.Status == http.StatusAccepted }

func (r reply) decode(out any) error {
	if err := json.Unmarshal(r.Body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// responseError is a failed reply surfaced as a Go error.
type responseError struct {
	Status int
	api.ErrorResponse
}

func (e *responseError) Error() string {
	var b strings.Builder
	kind := e.ErrorKind
	if kind == "" {
		kind = http.StatusText(e.Status)
	}
	fmt.Fprintf(&b, "%s: %s", kind, e.Message)
	for _, issue := range e.Issues {
		fmt.Fprintf(&b, "\n  - %s", issue)
	}
	for _, v := range e.Violations {
		fmt.Fprintf(&b, "\n  - %s", v.String())
	}
	return b.String()
}

func (r reply) err() error {
	out := &responseError{Status: r.Status}
	if err := json.Unmarshal(r.Body, &out.ErrorResponse); err != nil || out.Message == "" {
		out.Message = strings.TrimSpace(string(r.Body))
	}
	return out
}

type invoker interface {
	Invoke(ctx context.Context, method, operation string, body any) (reply, error)
	Close() error
}

// localInvoker serves requests from an in-process runtime.
type localInvoker struct {
	runtime *pipeline.Runtime
	service *api.Service
}

func openLocalInvoker(ctx context.Context, cfg *config.Config) (*localInvoker, error) {
	logger, err := cliLogger()
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	rt, err := pipeline.Open(ctx, cfg, nil, logger)
	if err != nil {
		return nil, fmt.Errorf("open runtime: %w", err)
	}
	if err := rt.Start(ctx); err != nil {
		_ = rt.Close()
		return nil, fmt.Errorf("start runtime: %w", err)
	}
	return &localInvoker{
		runtime: rt,
		service: api.FromRuntime(rt, version, logger),
	}, nil
}

// cliLogger keeps in-process runs quiet: only warnings and errors reach the
// terminal. The daemon is where full logs live.
func cliLogger() (*slog.Logger, error) {
	return logging.New(logging.Options{
		Level:   "warn",
		Format:  "console",
		Outputs: []string{"stderr"},
	})
}

func (l *localInvoker) Invoke(ctx context.Context, method, operation string, body any) (reply, error) {
	raw, err := encodeBody(body)
	if err != nil {
		return reply{}, err
	}
	resp := l.service.Handle(ctx, api.Request{Method: method, Operation: operation, Body: raw})
	data, err := json.Marshal(resp.Body)
	if err != nil {
		return reply{}, fmt.Errorf("encode %s response: %w", operation, err)
	}
	return reply{Status: resp.Status, Body: data}, nil
}

func (l *localInvoker) Close() error {
	return l.runtime.Close()
}

// remoteInvoker sends requests to a daemon's HTTP API.
type remoteInvoker struct {
	base   *url.URL
	token  string
	client *http.Client
}

func newRemoteInvoker(rawURL, token string) (*remoteInvoker, error) {
	if !strings.Contains(rawURL, "://") {
		rawURL = "http://" + rawURL
	}
	base, err := url.Parse(rawURL)
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("invalid --remote %q", rawURL)
	}
	return &remoteInvoker{
		base:   base,
		token:  token,
		client: &http.Client{Timeout: remoteTimeout},
	}, nil
}

func (r *remoteInvoker) Invoke(ctx context.Context, method, operation string, body any) (reply, error) {
	fields, err := bodyFields(body)
	if err != nil {
		return reply{}, err
	}

	target := *r.base
	target.Path = strings.TrimRight(target.Path, "/")
	switch operation {
	case api.OpHealth:
		target.Path += "/v1/health"
	case api.OpOperationStatus:
		id, _ := fields["operationId"].(string)
		target.Path += "/v1/operations/" + url.PathEscape(id)
	default:
		target.Path += "/v1/" + operation
	}

	var payload io.Reader
	if method == http.MethodGet {
		if operation != api.OpOperationStatus {
			target.RawQuery = queryValues(fields).Encode()
		}
	} else {
		raw, err := encodeBody(body)
		if err != nil {
			return reply{}, err
		}
		payload = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), payload)
	if err != nil {
		return reply{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return reply{}, wrapDialError(err, r.base.String())
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return reply{}, fmt.Errorf("read response: %w", err)
	}
	return reply{Status: resp.StatusCode, Body: data}, nil
}

func (r *remoteInvoker) Close() error {
	r.client.CloseIdleConnections()
	return nil
}

func wrapDialError(err error, base string) error {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return fmt.Errorf("connect to daemon: %s refused the connection; start it with `framecast serve`", base)
	}
	return fmt.Errorf("connect to daemon: %w", err)
}

func encodeBody(body any) (json.RawMessage, error) {
	if body == nil {
		return nil, nil
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	return raw, nil
}

func bodyFields(body any) (map[string]any, error) {
	raw, err := encodeBody(body)
	if err != nil || raw == nil {
		return map[string]any{}, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("request body must be an object: %w", err)
	}
	return fields, nil
}

// queryValues flattens a request body into the query form the daemon's GET
// routes accept: lists are comma-joined, scalars are formatted as text.
func queryValues(fields map[string]any) url.Values {
	values := url.Values{}
	for key, value := range fields {
		switch v := value.(type) {
		case nil:
		case string:
			if v != "" {
				values.Set(key, v)
			}
		case bool:
			values.Set(key, strconv.FormatBool(v))
		case json.Number:
			values.Set(key, v.String())
		case []any:
			parts := make([]string, 0, len(v))
			for _, item := range v {
				parts = append(parts, fmt.Sprint(item))
			}
			if len(parts) > 0 {
				values.Set(key, strings.Join(parts, ","))
			}
		default:
			values.Set(key, fmt.Sprint(v))
		}
	}
	return values
}
