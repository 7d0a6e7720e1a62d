package gatewayhttp

import (
	"net/http"
	"sort"
)

// modelEntry is one resolved (id, providerId) pair before dedup.
type modelEntry struct {
	id         string
	providerID string
}

// dedupedModelIDs lists a bare model name if it is unique across the whole
// registry, else "providerId.modelName".
func (s *Server) dedupedModelIDs() []string {
	cfg := s.Config()
	counts := map[string]int{}
	var entries []modelEntry
	for _, p := range cfg.Providers {
		for _, m := range p.Models {
			counts[m.ID]++
			entries = append(entries, modelEntry{id: m.ID, providerID: p.ID})
		}
	}
	var ids []string
	for _, e := range entries {
		if counts[e.id] == 1 {
			ids = append(ids, e.id)
		} else {
			ids = append(ids, e.providerID+"."+e.id)
		}
	}
	sort.Strings(ids)
	return ids
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	ids := s.dedupedModelIDs()
	data := make([]map[string]interface{}, 0, len(ids))
	for _, id := range ids {
		data = append(data, map[string]interface{}{
			"id": id, "object": "model", "created": 0, "owned_by": "goclaw-router",
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"object": "list", "data": data})
}

func (s *Server) handleGeminiModels(w http.ResponseWriter, r *http.Request) {
	ids := s.dedupedModelIDs()
	models := make([]map[string]interface{}, 0, len(ids))
	for _, id := range ids {
		models = append(models, map[string]interface{}{
			"name":                       "models/" + id,
			"supportedGenerationMethods": []string{"generateContent", "streamGenerateContent"},
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"models": models})
}
