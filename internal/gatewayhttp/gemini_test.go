package gatewayhttp

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goclaw/router/internal/gwconfig"
)

func serverWithGeminiProvider(srv *httptest.Server) *Server {
	return NewServer(Config{Initial: &gwconfig.GatewayConfig{
		Version: 1,
		Providers: []gwconfig.ProviderConfig{
			{ID: "google", Type: "gemini", BaseURL: srv.URL, Key: "sk-1", Models: []gwconfig.ModelConfig{{ID: "gemini-pro"}}},
		},
	}})
}

func TestSplitModelAndMethod_GenerateContent(t *testing.T) {
	model, stream, ok := splitModelAndMethod("gemini-pro:generateContent")
	if !ok || model != "gemini-pro" || stream {
		t.Errorf("got model=%q stream=%v ok=%v", model, stream, ok)
	}
}

func TestSplitModelAndMethod_StreamGenerateContent(t *testing.T) {
	model, stream, ok := splitModelAndMethod("gemini-pro:streamGenerateContent")
	if !ok || model != "gemini-pro" || !stream {
		t.Errorf("got model=%q stream=%v ok=%v", model, stream, ok)
	}
}

func TestSplitModelAndMethod_UnknownMethodFails(t *testing.T) {
	if _, _, ok := splitModelAndMethod("gemini-pro:countTokens"); ok {
		t.Error("got ok=true for an unrecognized method")
	}
}

func TestSplitModelAndMethod_MissingColonFails(t *testing.T) {
	if _, _, ok := splitModelAndMethod("gemini-pro"); ok {
		t.Error("got ok=true for a segment with no colon")
	}
}

func TestHandleGeminiGenerate_NonStreamSuccess(t *testing.T) {
	srv := chatUpstreamServer(t, `{"candidates":[{"content":{"parts":[{"text":"hi from gemini"}]},"finishReason":"STOP"}]}`)
	s := serverWithGeminiProvider(srv)

	r := httptest.NewRequest("POST", "/gemini/v1beta/models/gemini-pro:generateContent", strings.NewReader(`{"contents":[{"role":"user","parts":[{"text":"hello"}]}]}`))
	r.SetPathValue("modelAndMethod", "gemini-pro:generateContent")
	w := httptest.NewRecorder()
	s.handleGeminiGenerate(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var out map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &out)
	candidates := out["candidates"].([]interface{})
	content := candidates[0].(map[string]interface{})["content"].(map[string]interface{})
	parts := content["parts"].([]interface{})
	if parts[0].(map[string]interface{})["text"] != "hi from gemini" {
		t.Errorf("got %+v", out)
	}
}

func TestHandleGeminiGenerate_UnknownMethodIsBadRequest(t *testing.T) {
	s := serverWithGeminiProvider(chatUpstreamServer(t, `{}`))
	r := httptest.NewRequest("POST", "/gemini/v1beta/models/gemini-pro:countTokens", strings.NewReader(`{"contents":[]}`))
	r.SetPathValue("modelAndMethod", "gemini-pro:countTokens")
	w := httptest.NewRecorder()
	s.handleGeminiGenerate(w, r)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestHandleGeminiGenerate_StreamingWritesSSEFrames(t *testing.T) {
	srv := chatUpstreamServer(t, `{"candidates":[{"content":{"parts":[{"text":"streamed"}]},"finishReason":"STOP"}]}`)
	s := serverWithGeminiProvider(srv)

	r := httptest.NewRequest("POST", "/gemini/v1beta/models/gemini-pro:streamGenerateContent", strings.NewReader(`{"contents":[{"role":"user","parts":[{"text":"hi"}]}]}`))
	r.SetPathValue("modelAndMethod", "gemini-pro:streamGenerateContent")
	w := httptest.NewRecorder()
	s.handleGeminiGenerate(w, r)

	if !strings.Contains(w.Body.String(), "data: ") {
		t.Fatalf("got %q, want SSE-framed data lines", w.Body.String())
	}
}

func TestHandleGeminiGenerate_ThoughtSignatureSurvivesAcrossTurns(t *testing.T) {
	var secondBody string
	var call int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		call++
		if call == 2 {
			raw, _ := io.ReadAll(r.Body)
			secondBody = string(raw)
		}
		w.Header().Set("Content-Type", "application/json")
		if call == 1 {
			w.Write([]byte(`{"candidates":[{"content":{"parts":[{"functionCall":{"id":"call_abc","name":"lookup","args":{}}},{"thoughtSignature":"sig-xyz"}]},"finishReason":"STOP"}]}`))
			return
		}
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"done"}]},"finishReason":"STOP"}]}`))
	}))
	t.Cleanup(srv.Close)
	s := serverWithGeminiProvider(srv)

	r1 := httptest.NewRequest("POST", "/gemini/v1beta/models/gemini-pro:generateContent", strings.NewReader(`{"contents":[{"role":"user","parts":[{"text":"call the tool"}]}]}`))
	r1.SetPathValue("modelAndMethod", "gemini-pro:generateContent")
	r1.Header.Set("x-session-id", "sess-thought-sig")
	w1 := httptest.NewRecorder()
	s.handleGeminiGenerate(w1, r1)
	if w1.Code != http.StatusOK {
		t.Fatalf("first turn status = %d, body = %s", w1.Code, w1.Body.String())
	}

	secondReq := `{"contents":[
		{"role":"user","parts":[{"text":"call the tool"}]},
		{"role":"model","parts":[{"functionCall":{"id":"call_abc","name":"lookup","args":{}}}]},
		{"role":"user","parts":[{"functionResponse":{"id":"call_abc","response":{"result":"ok"}}}]}
	]}`
	r2 := httptest.NewRequest("POST", "/gemini/v1beta/models/gemini-pro:generateContent", strings.NewReader(secondReq))
	r2.SetPathValue("modelAndMethod", "gemini-pro:generateContent")
	r2.Header.Set("x-session-id", "sess-thought-sig")
	w2 := httptest.NewRecorder()
	s.handleGeminiGenerate(w2, r2)
	if w2.Code != http.StatusOK {
		t.Fatalf("second turn status = %d, body = %s", w2.Code, w2.Body.String())
	}

	if !strings.Contains(secondBody, "sig-xyz") {
		t.Errorf("second upstream request = %q, want the cached thoughtSignature re-attached", secondBody)
	}
}
