// Package resolver implements model/provider resolution over a gwconfig
// registry, generalizing a multi-provider lookup-by-name pattern to the
// dotted-model / provider-hint decision order the gateway needs.
package resolver

import (
	"fmt"
	"strings"

	"github.com/goclaw/router/internal/gwconfig"
)

// Result is a successful resolution.
type Result struct {
	Provider *gwconfig.ProviderConfig
	Model    *gwconfig.ModelConfig
}

// Resolve walks the model/provider decision order: exact model id match,
// dotted providerId.modelName disambiguation, then the optional provider
// hint.
func Resolve(cfg *gwconfig.GatewayConfig, modelID, providerHint string) (*Result, error) {
	if modelID == "" || strings.Contains(modelID, ":") {
		return nil, fmt.Errorf("invalid model id %q", modelID)
	}

	if dot := strings.Index(modelID, "."); dot >= 0 {
		prefix, rest := modelID[:dot], modelID[dot+1:]
		if p := findProviderByIDOrOwner(cfg, prefix); p != nil {
			if m := p.ModelByID(rest); m != nil {
				return &Result{Provider: p, Model: m}, nil
			}
			return nil, fmt.Errorf("unknown model: %s", modelID)
		}
		// no provider matches the prefix — fall through, many legitimate
		// model names contain '.' (e.g. gemini-1.5-pro).
	}

	if providerHint != "" {
		p := findProviderByIDOrOwner(cfg, providerHint)
		if p == nil {
			return nil, fmt.Errorf("unknown provider hint: %s", providerHint)
		}
		if m := p.ModelByID(modelID); m != nil {
			return &Result{Provider: p, Model: m}, nil
		}
		return nil, fmt.Errorf("unknown model: %s", modelID)
	}

	var matches []*Result
	for i := range cfg.Providers {
		p := &cfg.Providers[i]
		if m := p.ModelByID(modelID); m != nil {
			matches = append(matches, &Result{Provider: p, Model: m})
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("Unknown model: %s", modelID)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("Ambiguous model: %s", modelID)
	}
}

// findProviderByIDOrOwner matches id first against provider id, then
// against ownedBy case-insensitively; an ownedBy match that is not unique
// is treated as no match (caller falls through).
func findProviderByIDOrOwner(cfg *gwconfig.GatewayConfig, id string) *gwconfig.ProviderConfig {
	if p := cfg.ProviderByID(id); p != nil {
		return p
	}
	var owned []*gwconfig.ProviderConfig
	for i := range cfg.Providers {
		p := &cfg.Providers[i]
		if p.OwnedBy != "" && strings.EqualFold(p.OwnedBy, id) {
			owned = append(owned, p)
		}
	}
	if len(owned) == 1 {
		return owned[0]
	}
	return nil
}
