package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const maxErrorBody = 512

// Fetcher is the remote fetch port: it returns decoded-ready JSON bodies or a
// typed error. Implementations must be safe for concurrent calls.
type Fetcher interface {
	Get(ctx context.Context, resource string) ([]byte, error)
	Post(ctx context.Context, resource string, body any) ([]byte, error)
}

// Client talks to the bot backend REST API.
type Client struct {
	client  *http.Client
	baseURL string
	tracer  trace.Tracer
	limiter *RateLimiter
}

// NewClient builds a backend client. Requests share one rate limiter.
func NewClient(tracer trace.Tracer, baseURL string, timeout time.Duration, perSecond int) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		tracer:  tracer,
		limiter: NewPerSecondLimiter(perSecond),
	}
}

// Get fetches resource, e.g. "status?symbol=BTCUSDT".
func (c *Client) Get(ctx context.Context, resource string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, resource, nil)
}

// Post sends body as JSON to resource.
func (c *Client) Post(ctx context.Context, resource string, body any) ([]byte, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode %s body: %w", resource, err)
	}
	return c.do(ctx, http.MethodPost, resource, data)
}

func (c *Client) do(ctx context.Context, method, resource string, payload []byte) ([]byte, error) {
	ctx, span := c.tracer.Start(ctx, "backend."+strings.ToLower(method))
	defer span.End()
	span.SetAttributes(attribute.String("resource", resource))

	body, err := c.roundTrip(ctx, method, resource, payload)
	if err != nil && !IsNotFound(err) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return body, err
}

func (c *Client) roundTrip(ctx context.Context, method, resource string, payload []byte) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &TransportError{Resource: resource, Err: fmt.Errorf("rate limit wait: %w", err)}
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/"+strings.TrimLeft(resource, "/"), reader)
	if err != nil {
		return nil, &TransportError{Resource: resource, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &TransportError{Resource: resource, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Resource: resource, StatusCode: resp.StatusCode, Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, &NotFoundError{Resource: resource}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, &TransportError{Resource: resource, StatusCode: resp.StatusCode, Err: errors.New(truncate(body))}
	}

	if len(bytes.TrimSpace(body)) == 0 {
		return []byte("null"), nil
	}
	if !gjson.ValidBytes(body) {
		return nil, &MalformedResponseError{Resource: resource, Reason: "invalid JSON"}
	}
	return body, nil
}

func truncate(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBody {
		s = s[:maxErrorBody] + "..."
	}
	if s == "" {
		s = "empty body"
	}
	return s
}
