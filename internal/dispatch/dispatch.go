package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// emptySSEDeadline bounds how long the dispatcher waits for the first byte
// of an SSE response before classifying it empty.
const emptySSEDeadline = 150 * time.Millisecond

// Response is a resolved upstream response: either a parsed JSON body or a
// still-open SSE stream (mutually exclusive).
type Response struct {
	StatusCode int
	JSON       map[string]interface{}
	SSE        io.ReadCloser
	URL        string
	Variant    string
}

// Error is a dispatch failure carrying the upstream status/body needed to
// build the client error envelope.
type Error struct {
	StatusCode int
	Body       string
	// Retryable marks a failure the caller should try the next variant
	// for regardless of StatusCode — set on the persistent-empty-stream
	// case, which is synthesized locally rather than reflecting an
	// upstream 4xx/5xx.
	Retryable bool
}

func (e *Error) Error() string { return e.Body }

// HTTPClient is the collaborator issuing upstream requests; tests inject a
// fake transport.
var HTTPClient = &http.Client{Timeout: 120 * time.Second}

var tracer = otel.Tracer("github.com/goclaw/router/internal/dispatch")

// Dispatch tries each URL in order, for each variant in order, POSTing;
// classifies empty SSE streams and retryable statuses, returning the first
// successful response or the first observed error.
func Dispatch(ctx context.Context, urls []string, headers map[string]string, variants []Variant, stream bool) (*Response, error) {
	var firstErr *Error
	breaker := defaultBreaker

	for _, url := range urls {
		if breaker.isOpen(url) {
			continue
		}
		urlFailed := false

		for _, variant := range variants {
			resp, err := attempt(ctx, url, headers, variant, stream)
			if err == nil {
				breaker.recordSuccess(url)
				return resp, nil
			}

			derr, ok := err.(*Error)
			if !ok {
				return nil, err
			}
			if firstErr == nil {
				firstErr = derr
			}
			if !isVariantRetryable(derr) {
				urlFailed = true
				break
			}
		}

		if urlFailed {
			breaker.recordFailure(url)
		}
	}

	if firstErr != nil {
		return nil, firstErr
	}
	return nil, &Error{StatusCode: 502, Body: "no upstream URL produced a response"}
}

func attempt(ctx context.Context, url string, headers map[string]string, variant Variant, stream bool) (*Response, error) {
	ctx, span := tracer.Start(ctx, "dispatch.attempt", trace.WithAttributes(
		attribute.String("url", url),
		attribute.String("variant", variant.Label),
	))
	defer span.End()

	resp, err := post(ctx, url, headers, variant.Body)
	if err != nil {
		span.RecordError(err)
		return nil, &Error{StatusCode: 502, Body: err.Error()}
	}
	span.SetAttributes(attribute.Int("status_code", resp.StatusCode))

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		resp.Body.Close()
		return nil, &Error{StatusCode: resp.StatusCode, Body: string(body)}
	}

	contentType := resp.Header.Get("Content-Type")
	if stream && strings.Contains(contentType, "text/event-stream") {
		first, rest, empty := peekSSE(resp.Body, emptySSEDeadline)
		if empty {
			resp.Body.Close()
			return retryEmptyStreamAsJSON(ctx, url, headers, variant.Body)
		}
		return &Response{StatusCode: resp.StatusCode, SSE: newPrependReader(first, rest, resp.Body), URL: url, Variant: variant.Label}, nil
	}

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, &Error{StatusCode: 502, Body: err.Error()}
	}
	var parsed map[string]interface{}
	if len(body) > 0 {
		_ = json.Unmarshal(body, &parsed)
	}
	return &Response{StatusCode: resp.StatusCode, JSON: parsed, URL: url, Variant: variant.Label}, nil
}

func post(ctx context.Context, url string, headers map[string]string, body map[string]interface{}) (*http.Response, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return HTTPClient.Do(req)
}

// retryEmptyStreamAsJSON implements the two-stage fallback for an SSE
// response that produced no bytes: retry the same body as plain JSON, first
// with stream:false, then again with stream omitted entirely (some upstreams
// only honor the field's complete absence). If both retries still come back
// empty or fail outright, the result is marked Retryable so Dispatch's loop
// tries the next variant on this same URL instead of giving up on it.
func retryEmptyStreamAsJSON(ctx context.Context, url string, headers map[string]string, body map[string]interface{}) (*Response, error) {
	if resp, err := retryAsJSON(ctx, url, headers, body, false); err == nil {
		return resp, nil
	}

	resp, err := retryAsJSON(ctx, url, headers, body, true)
	if err == nil {
		return resp, nil
	}
	if derr, ok := err.(*Error); ok {
		derr.Retryable = true
		return nil, derr
	}
	return nil, &Error{StatusCode: 502, Body: err.Error(), Retryable: true}
}

// retryAsJSON re-POSTs the same body with Accept: application/json, either
// with stream explicitly set false or, when dropStream is set, with the
// stream key removed entirely.
func retryAsJSON(ctx context.Context, url string, headers map[string]string, body map[string]interface{}, dropStream bool) (*Response, error) {
	retryBody := cloneMap(body)
	if dropStream {
		delete(retryBody, "stream")
	} else {
		retryBody["stream"] = false
	}
	retryHeaders := make(map[string]string, len(headers)+1)
	for k, v := range headers {
		retryHeaders[k] = v
	}
	retryHeaders["Accept"] = "application/json"

	resp, err := post(ctx, url, retryHeaders, retryBody)
	if err != nil {
		return nil, &Error{StatusCode: 502, Body: err.Error()}
	}
	defer resp.Body.Close()
	body2, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{StatusCode: 502, Body: err.Error()}
	}
	if resp.StatusCode >= 400 {
		return nil, &Error{StatusCode: resp.StatusCode, Body: string(body2)}
	}
	var parsed map[string]interface{}
	if len(body2) > 0 {
		_ = json.Unmarshal(body2, &parsed)
	}
	if len(parsed) == 0 {
		return nil, &Error{StatusCode: 502, Body: "empty JSON fallback"}
	}
	return &Response{StatusCode: resp.StatusCode, JSON: parsed, URL: url}, nil
}

var nonRetryablePatterns = []string{
	"not found", "unauthorized", "invalid api key", "model_not_found", "does not exist",
}

// isVariantRetryable classifies which error statuses are worth retrying
// with the next request-body variant.
func isVariantRetryable(err *Error) bool {
	if err.Retryable {
		return true
	}
	switch err.StatusCode {
	case 400, 422:
		lower := strings.ToLower(err.Body)
		for _, pat := range nonRetryablePatterns {
			if strings.Contains(lower, pat) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// --- circuit breaker ---

type breakerState struct {
	mu        sync.Mutex
	failures  map[string]int
	openUntil map[string]time.Time
	threshold int
	cooldown  time.Duration
}

var defaultBreaker = &breakerState{
	failures:  map[string]int{},
	openUntil: map[string]time.Time{},
	threshold: 5,
	cooldown:  30 * time.Second,
}

func (b *breakerState) isOpen(url string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	until, ok := b.openUntil[url]
	if !ok {
		return false
	}
	if time.Now().After(until) {
		delete(b.openUntil, url)
		b.failures[url] = 0
		return false
	}
	return true
}

func (b *breakerState) recordFailure(url string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[url]++
	if b.failures[url] >= b.threshold {
		b.openUntil[url] = time.Now().Add(b.cooldown)
	}
}

func (b *breakerState) recordSuccess(url string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[url] = 0
	delete(b.openUntil, url)
}
