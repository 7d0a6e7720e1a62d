// Package gwconfig loads and validates the gateway's provider registry from
// a JSONC string, using the same struct-and-tags shape as the rest of the
// codebase's config layer, with its own JSONC stripping and validation rules.
package gwconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// ProviderQuirks records upstream behavioral limitations that the
// translation layer must work around. A quirk set at the model level
// overrides the provider-level value for that model only.
type ProviderQuirks struct {
	// NoInstructions is set for upstreams that reject a top-level
	// instructions field; the translator hoists it into a leading input
	// item instead.
	NoInstructions bool `json:"noInstructions,omitempty"`
	// NoPreviousResponseID is set for upstreams that reject
	// previous_response_id entirely, forcing every turn to resend full
	// history.
	NoPreviousResponseID bool `json:"noPreviousResponseId,omitempty"`
}

// merge overrides q's fields with any true value set in override.
func (q ProviderQuirks) merge(override ProviderQuirks) ProviderQuirks {
	if override.NoInstructions {
		q.NoInstructions = true
	}
	if override.NoPreviousResponseID {
		q.NoPreviousResponseID = true
	}
	return q
}

// Endpoints overrides the default per-dialect URL suffixes synthesized
// from a provider's baseURLs.
type Endpoints struct {
	ResponsesPath       string `json:"responsesPath,omitempty"`
	ChatCompletionsPath string `json:"chatCompletionsPath,omitempty"`
	MessagesPath        string `json:"messagesPath,omitempty"`
}

// ProviderConfig describes one upstream LLM provider.
type ProviderConfig struct {
	ID      string `json:"id"`
	Type    string `json:"type"` // apiMode: openai-chat-completions | openai-responses | claude | gemini
	OwnedBy string `json:"ownedBy,omitempty"`

	// BaseURLs is the ordered list of absolute base URLs to try, in
	// order, for this provider. BaseURL is the legacy single-URL (or
	// comma-separated) form; validate folds it into BaseURLs and keeps
	// it in sync afterward so existing consumers that still read the
	// comma-joined string keep working.
	BaseURLs []string `json:"baseURLs,omitempty"`
	BaseURL  string   `json:"baseURL,omitempty"`

	Key       string `json:"key,omitempty"`
	APIKeyEnv string `json:"apiKeyEnv,omitempty"`

	// Options carries free-form per-provider settings that have no
	// dedicated field.
	Options map[string]interface{} `json:"options,omitempty"`

	// ResponsesPath is kept for backward compatibility; new configs
	// should nest path overrides under endpoints instead.
	ResponsesPath string    `json:"responsesPath,omitempty"`
	Endpoints     Endpoints `json:"endpoints,omitempty"`

	Quirks ProviderQuirks `json:"quirks,omitempty"`

	Models []ModelConfig `json:"models"`
}

// ModelConfig is one model a provider exposes.
type ModelConfig struct {
	ID            string `json:"id"`
	UpstreamModel string `json:"upstreamModel,omitempty"`

	// Options carries model-specific settings. ReasoningEffort,
	// MaxInstructionsChars, and MaxTokens are promoted to typed fields
	// below because the gateway itself acts on them; anything else
	// passes through Options untouched.
	Options map[string]interface{} `json:"options,omitempty"`

	ReasoningEffort      string `json:"reasoningEffort,omitempty"`
	MaxInstructionsChars int    `json:"maxInstructionsChars,omitempty"`
	MaxTokens            int    `json:"maxTokens,omitempty"`

	Quirks ProviderQuirks `json:"quirks,omitempty"`
}

// EffectiveQuirks merges a provider's quirks with its model's, model wins.
func EffectiveQuirks(p *ProviderConfig, m *ModelConfig) ProviderQuirks {
	q := p.Quirks
	if m != nil {
		q = q.merge(m.Quirks)
	}
	return q
}

// GatewayConfig is the parsed, validated provider registry.
type GatewayConfig struct {
	Version   int              `json:"version"`
	Providers []ProviderConfig `json:"providers"`
}

// ProviderByID returns the provider with the given id, or nil.
func (c *GatewayConfig) ProviderByID(id string) *ProviderConfig {
	for i := range c.Providers {
		if c.Providers[i].ID == id {
			return &c.Providers[i]
		}
	}
	return nil
}

// ModelByID returns the model with the given id within this provider, or nil.
func (p *ProviderConfig) ModelByID(id string) *ModelConfig {
	for i := range p.Models {
		if p.Models[i].ID == id {
			return &p.Models[i]
		}
	}
	return nil
}

// Parse strips JSONC decoration from raw, unmarshals it, and validates the
// result. All failures collapse to a single human-readable error string; no
// partially-built GatewayConfig is ever returned.
func Parse(raw string) (*GatewayConfig, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("config: empty input")
	}

	stripped := StripJSONC(raw)

	var cfg GatewayConfig
	if err := json.Unmarshal([]byte(stripped), &cfg); err != nil {
		return nil, fmt.Errorf("config: invalid JSON: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validate(cfg *GatewayConfig) error {
	if cfg.Version != 1 {
		return fmt.Errorf("config: unsupported version %d, expected 1", cfg.Version)
	}
	if len(cfg.Providers) == 0 {
		return fmt.Errorf("config: missing providers")
	}
	for i := range cfg.Providers {
		p := &cfg.Providers[i]
		if p.ID == "" || p.Type == "" || len(p.Models) == 0 {
			return fmt.Errorf("config: provider %q missing type or models", p.ID)
		}
		if strings.Contains(p.ID, ".") {
			return fmt.Errorf("config: provider id %q may not contain '.'", p.ID)
		}

		bases := p.BaseURLs
		if p.BaseURL != "" {
			bases = append(bases, strings.Split(p.BaseURL, ",")...)
		}
		if len(bases) == 0 {
			return fmt.Errorf("config: provider %q missing baseURL or baseURLs", p.ID)
		}
		normalized := make([]string, 0, len(bases))
		for _, raw := range bases {
			raw = strings.TrimSpace(raw)
			if raw == "" {
				continue
			}
			n, ok := normalizeBaseURL(raw)
			if !ok {
				return fmt.Errorf("config: provider %q has invalid baseURL %q", p.ID, raw)
			}
			normalized = append(normalized, n)
		}
		if len(normalized) == 0 {
			return fmt.Errorf("config: provider %q missing baseURL or baseURLs", p.ID)
		}
		p.BaseURLs = normalized
		p.BaseURL = strings.Join(normalized, ",")

		if p.Key == "" && p.APIKeyEnv != "" {
			p.Key = os.Getenv(p.APIKeyEnv)
		}
		if p.Key == "" {
			return fmt.Errorf("config: provider %q missing key or apiKeyEnv", p.ID)
		}

		// responsesPath is the legacy spelling of endpoints.responsesPath.
		if p.Endpoints.ResponsesPath == "" {
			p.Endpoints.ResponsesPath = p.ResponsesPath
		} else {
			p.ResponsesPath = p.Endpoints.ResponsesPath
		}
	}
	return nil
}

// normalizeBaseURL keeps a baseURL as-is if it already has a scheme, else
// prefixes https://; the bare scheme tokens alone are rejected rather than
// silently accepted.
func normalizeBaseURL(raw string) (string, bool) {
	switch raw {
	case "http", "https", "http:", "https:":
		return "", false
	}
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		return raw, true
	}
	return "https://" + raw, true
}
