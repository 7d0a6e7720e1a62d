package dispatch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func jsonServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDispatch_ReturnsFirstSuccessfulVariant(t *testing.T) {
	srv := jsonServer(t, 200, `{"id":"chatcmpl_1"}`)
	resp, err := Dispatch(context.Background(), []string{srv.URL}, nil, []Variant{{Label: "base", Body: map[string]interface{}{}}}, false)
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if resp.JSON["id"] != "chatcmpl_1" {
		t.Errorf("got %+v", resp.JSON)
	}
	if resp.URL != srv.URL {
		t.Errorf("URL = %q, want %q", resp.URL, srv.URL)
	}
}

func TestDispatch_FallsBackToNextVariantOnRetryableStatus(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		if n == 1 {
			w.WriteHeader(400)
			w.Write([]byte(`{"error":"bad request shape"}`))
			return
		}
		w.WriteHeader(200)
		w.Write([]byte(`{"id":"ok"}`))
	}))
	t.Cleanup(srv.Close)

	variants := []Variant{{Label: "first", Body: map[string]interface{}{}}, {Label: "second", Body: map[string]interface{}{}}}
	resp, err := Dispatch(context.Background(), []string{srv.URL}, nil, variants, false)
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if resp.JSON["id"] != "ok" {
		t.Errorf("got %+v, want the second variant's response", resp.JSON)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestDispatch_NonRetryableStatusStopsVariantLoop(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(401)
		w.Write([]byte(`unauthorized`))
	}))
	t.Cleanup(srv.Close)

	variants := []Variant{{Label: "first", Body: map[string]interface{}{}}, {Label: "second", Body: map[string]interface{}{}}}
	_, err := Dispatch(context.Background(), []string{srv.URL}, nil, variants, false)
	if err == nil {
		t.Fatal("Dispatch() error = nil, want the upstream error surfaced")
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("calls = %d, want 1 (401 isn't in the retryable status set at all)", calls)
	}
}

func TestDispatch_SkipsURLWithOpenBreaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("server should not have been called for a URL with an open breaker")
	}))
	t.Cleanup(srv.Close)

	defaultBreaker.mu.Lock()
	defaultBreaker.failures[srv.URL] = 0
	defaultBreaker.openUntil[srv.URL] = time.Now().Add(time.Minute)
	defaultBreaker.mu.Unlock()
	t.Cleanup(func() {
		defaultBreaker.mu.Lock()
		delete(defaultBreaker.openUntil, srv.URL)
		delete(defaultBreaker.failures, srv.URL)
		defaultBreaker.mu.Unlock()
	})

	_, err := Dispatch(context.Background(), []string{srv.URL}, nil, []Variant{{Label: "base", Body: map[string]interface{}{}}}, false)
	if err == nil {
		t.Fatal("Dispatch() error = nil, want no-upstream-produced-a-response")
	}
}

func TestIsVariantRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want bool
	}{
		{"400 generic", &Error{StatusCode: 400, Body: "malformed field"}, true},
		{"422 generic", &Error{StatusCode: 422, Body: "validation failed"}, true},
		{"400 invalid api key", &Error{StatusCode: 400, Body: "Invalid API Key provided"}, false},
		{"400 model not found", &Error{StatusCode: 400, Body: "model_not_found"}, false},
		{"401 unauthorized", &Error{StatusCode: 401, Body: "nope"}, false},
		{"500 server error", &Error{StatusCode: 500, Body: "boom"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isVariantRetryable(tt.err); got != tt.want {
				t.Errorf("isVariantRetryable(%+v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestPeekSSE_ClassifiesSlowStreamAsEmpty(t *testing.T) {
	pr, pw := io.Pipe()
	t.Cleanup(func() { pw.Close() })
	_, _, empty := peekSSE(pr, 20*time.Millisecond)
	if !empty {
		t.Error("peekSSE() empty = false, want true when nothing arrives before the deadline")
	}
}

func TestPeekSSE_ReturnsAlreadyReadBytesForPrepend(t *testing.T) {
	r := strings.NewReader("data: hello\n")
	first, rest, empty := peekSSE(r, 50*time.Millisecond)
	if empty {
		t.Fatal("peekSSE() empty = true, want false when bytes are immediately available")
	}
	if string(first) != "data: hello\n" {
		t.Errorf("first = %q", first)
	}
	prepended := newPrependReader(first, rest, io.NopCloser(nil))
	buf := make([]byte, 64)
	n, _ := prepended.Read(buf)
	if string(buf[:n]) != "data: hello\n" {
		t.Errorf("prependReader replayed %q, want the prefix back first", buf[:n])
	}
}

func TestBuildResponsesVariants_NoAxesAppliesYieldsOnlyBase(t *testing.T) {
	base := map[string]interface{}{"model": "gpt-5", "input": "hi"}
	variants := BuildResponsesVariants(base)
	if len(variants) != 1 || variants[0].Label != "base" {
		t.Errorf("got %+v, want exactly [base]", variants)
	}
}

func TestBuildResponsesVariants_MaxTokensAlias(t *testing.T) {
	base := map[string]interface{}{"max_output_tokens": float64(512)}
	variants := BuildResponsesVariants(base)
	var found bool
	for _, v := range variants {
		if v.Label == "max_tokens_alias" {
			found = true
			if _, ok := v.Body["max_output_tokens"]; ok {
				t.Error("max_tokens_alias variant still carries max_output_tokens")
			}
			if v.Body["max_tokens"] != float64(512) {
				t.Errorf("max_tokens = %v, want 512", v.Body["max_tokens"])
			}
		}
	}
	if !found {
		t.Error("no max_tokens_alias variant produced")
	}
}

func TestBuildResponsesVariants_DedupesRepeatedBodies(t *testing.T) {
	base := map[string]interface{}{"prompt_cache_retention": "24h"}
	variants := BuildResponsesVariants(base)
	seen := map[string]bool{}
	for _, v := range variants {
		key := stableJSON(v.Body)
		if seen[key] {
			t.Errorf("variant %q duplicates an earlier body", v.Label)
		}
		seen[key] = true
	}
}

func emptySSEServer(t *testing.T, onBody func(map[string]interface{}) (status int, body string)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var parsed map[string]interface{}
		_ = json.Unmarshal(raw, &parsed)

		if _, hasStream := parsed["stream"]; hasStream && r.Header.Get("Accept") != "application/json" {
			w.Header().Set("Content-Type", "text/event-stream")
			w.WriteHeader(200)
			return
		}

		status, body := onBody(parsed)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestAttempt_EmptySSE_FirstStageStreamFalseSucceeds(t *testing.T) {
	srv := emptySSEServer(t, func(parsed map[string]interface{}) (int, string) {
		if v, ok := parsed["stream"]; ok && v == false {
			return 200, `{"id":"recovered"}`
		}
		return 200, `{}`
	})

	resp, err := attempt(context.Background(), srv.URL, nil, Variant{Label: "base", Body: map[string]interface{}{"stream": true}}, true)
	if err != nil {
		t.Fatalf("attempt() error = %v", err)
	}
	if resp.JSON["id"] != "recovered" {
		t.Errorf("got %+v, want the stream:false retry body", resp.JSON)
	}
}

func TestAttempt_EmptySSE_SecondStageStreamAbsentSucceeds(t *testing.T) {
	srv := emptySSEServer(t, func(parsed map[string]interface{}) (int, string) {
		if _, ok := parsed["stream"]; !ok {
			return 200, `{"id":"recovered-absent"}`
		}
		return 200, `{}`
	})

	resp, err := attempt(context.Background(), srv.URL, nil, Variant{Label: "base", Body: map[string]interface{}{"stream": true}}, true)
	if err != nil {
		t.Fatalf("attempt() error = %v", err)
	}
	if resp.JSON["id"] != "recovered-absent" {
		t.Errorf("got %+v, want the stream-omitted retry body", resp.JSON)
	}
}

func TestRetryEmptyStreamAsJSON_BothStagesEmpty_MarksRetryable(t *testing.T) {
	srv := emptySSEServer(t, func(map[string]interface{}) (int, string) {
		return 200, `{}`
	})

	_, err := retryEmptyStreamAsJSON(context.Background(), srv.URL, nil, map[string]interface{}{"stream": true})
	if err == nil {
		t.Fatal("retryEmptyStreamAsJSON() error = nil, want both-stages-empty error")
	}
	derr, ok := err.(*Error)
	if !ok {
		t.Fatalf("err = %T, want *Error", err)
	}
	if !derr.Retryable {
		t.Error("Retryable = false, want true so the caller tries the next variant")
	}
}

func TestDispatch_PersistentEmptySSE_ContinuesToNextVariantOnSameURL(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var parsed map[string]interface{}
		_ = json.Unmarshal(raw, &parsed)

		if _, hasStream := parsed["stream"]; hasStream && r.Header.Get("Accept") != "application/json" {
			atomic.AddInt32(&calls, 1)
			w.Header().Set("Content-Type", "text/event-stream")
			w.WriteHeader(200)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(200)
		w.Write([]byte(`{}`))
	}))
	t.Cleanup(srv.Close)

	variants := []Variant{
		{Label: "first", Body: map[string]interface{}{"stream": true}},
		{Label: "second", Body: map[string]interface{}{"stream": true}},
	}
	_, err := Dispatch(context.Background(), []string{srv.URL}, nil, variants, true)
	if err == nil {
		t.Fatal("Dispatch() error = nil, want both variants to exhaust their empty-stream retries")
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Errorf("initial SSE attempts = %d, want 2 (one per variant, no URL-level abort after the first variant's retries fail)", calls)
	}
}

func TestDispatchGemini_ReturnsBaseResponseWhenCandidatesPresent(t *testing.T) {
	srv := jsonServer(t, 200, `{"candidates":[{"content":{"parts":[{"text":"hi"}]}}]}`)
	resp, err := DispatchGemini(context.Background(), []string{srv.URL}, nil, nil, map[string]interface{}{})
	if err != nil {
		t.Fatalf("DispatchGemini() error = %v", err)
	}
	if !hasGeminiCandidates(resp.JSON) {
		t.Errorf("got %+v, want candidates present", resp.JSON)
	}
}

func TestDispatchGemini_FallsBackToSSEAfterEmptyCandidates(t *testing.T) {
	jsonSrv := jsonServer(t, 200, `{"candidates":[]}`)
	sseSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(200)
		w.Write([]byte("data: {\"type\":\"ping\"}\n\n"))
	}))
	t.Cleanup(sseSrv.Close)

	resp, err := DispatchGemini(context.Background(), []string{jsonSrv.URL}, []string{sseSrv.URL}, nil, map[string]interface{}{
		"generationConfig": map[string]interface{}{"maxOutputTokens": float64(8192), "thinkingConfig": map[string]interface{}{}},
	})
	if err != nil {
		t.Fatalf("DispatchGemini() error = %v", err)
	}
	if resp.SSE == nil {
		t.Error("got a JSON response, want the SSE fallback stream")
	}
}
