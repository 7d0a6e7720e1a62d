package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/goclaw/router/internal/gwconfig"
)

// loadConfigSource resolves the JSONC provider registry text from
// --config-file, falling back to the RSP4COPILOT_CONFIG environment variable.
func loadConfigSource() (string, error) {
	if cfgFile != "" {
		raw, err := os.ReadFile(cfgFile)
		if err != nil {
			return "", fmt.Errorf("reading --config-file: %w", err)
		}
		return string(raw), nil
	}
	raw := os.Getenv("RSP4COPILOT_CONFIG")
	if raw == "" {
		return "", fmt.Errorf("no config source: pass --config-file or set RSP4COPILOT_CONFIG")
	}
	return raw, nil
}

func loadConfig() (*gwconfig.GatewayConfig, error) {
	raw, err := loadConfigSource()
	if err != nil {
		return nil, err
	}
	return gwconfig.Parse(raw)
}

// authKeysFromEnv collects the inbound bearer-token set from
// WORKER_AUTH_KEY and comma-separated WORKER_AUTH_KEYS.
func authKeysFromEnv() []string {
	var keys []string
	if v := os.Getenv("WORKER_AUTH_KEY"); v != "" {
		keys = append(keys, v)
	}
	if v := os.Getenv("WORKER_AUTH_KEYS"); v != "" {
		for _, k := range strings.Split(v, ",") {
			if k = strings.TrimSpace(k); k != "" {
				keys = append(keys, k)
			}
		}
	}
	return keys
}
