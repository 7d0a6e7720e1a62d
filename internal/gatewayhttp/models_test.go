package gatewayhttp

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/goclaw/router/internal/gwconfig"
)

func testConfig() *gwconfig.GatewayConfig {
	return &gwconfig.GatewayConfig{
		Version: 1,
		Providers: []gwconfig.ProviderConfig{
			{ID: "openai", Models: []gwconfig.ModelConfig{{ID: "gpt-5"}, {ID: "shared-name"}}},
			{ID: "other", Models: []gwconfig.ModelConfig{{ID: "shared-name"}}},
		},
	}
}

func TestDedupedModelIDs(t *testing.T) {
	s := NewServer(Config{Initial: testConfig()})
	ids := s.dedupedModelIDs()

	want := map[string]bool{"gpt-5": true, "openai.shared-name": true, "other.shared-name": true}
	if len(ids) != len(want) {
		t.Fatalf("got %v, want %d entries", ids, len(want))
	}
	for _, id := range ids {
		if !want[id] {
			t.Errorf("unexpected id %q", id)
		}
	}
}

func TestHandleModels_ListsDedupedIDs(t *testing.T) {
	s := NewServer(Config{Initial: testConfig()})
	r := httptest.NewRequest("GET", "/v1/models", nil)
	w := httptest.NewRecorder()
	s.handleModels(w, r)

	var out map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	data := out["data"].([]interface{})
	if len(data) != 3 {
		t.Fatalf("got %d models, want 3", len(data))
	}
}

func TestHandleGeminiModels_PrefixesNameWithModels(t *testing.T) {
	s := NewServer(Config{Initial: testConfig()})
	r := httptest.NewRequest("GET", "/gemini/v1beta/models", nil)
	w := httptest.NewRecorder()
	s.handleGeminiModels(w, r)

	var out map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	models := out["models"].([]interface{})
	found := false
	for _, m := range models {
		name := m.(map[string]interface{})["name"].(string)
		if name == "models/gpt-5" {
			found = true
		}
	}
	if !found {
		t.Errorf("got %+v, want a models/gpt-5 entry", models)
	}
}
