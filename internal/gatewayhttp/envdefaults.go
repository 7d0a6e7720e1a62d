package gatewayhttp

import (
	"os"
	"strconv"
	"strings"

	"github.com/goclaw/router/internal/trimmer"
)

// envDefaults bundles the runtime defaults this gateway reads from the
// process environment once at startup, rather than hardcoding them.
type envDefaults struct {
	trimLimits trimmer.Limits

	// reasoningEffort defaults Sampling.ReasoningEffort when a request
	// omits it and the resolved model doesn't set its own. "off", "false",
	// and "0" all mean "no default" rather than a literal effort value.
	reasoningEffort string

	// geminiMaxOutputTokens defaults a Gemini request's maxOutputTokens
	// when neither the request nor the resolved model sets one.
	geminiMaxOutputTokens int

	claudeDefaultModel string
	geminiDefaultModel string
}

// loadEnvDefaults reads RSP4COPILOT_MAX_TURNS/MAX_MESSAGES/MAX_INPUT_CHARS,
// RESP_REASONING_EFFORT, GEMINI_DEFAULT_MAX_OUTPUT_TOKENS /
// GEMINI_MAX_OUTPUT_TOKENS / GEMINI_MAX_TOKENS (tried in that order), and
// CLAUDE_DEFAULT_MODEL / GEMINI_DEFAULT_MODEL, falling back to
// trimmer.Defaults() and zero values for anything unset or malformed.
func loadEnvDefaults() envDefaults {
	limits := trimmer.Defaults()
	if v := envInt("RSP4COPILOT_MAX_TURNS"); v > 0 {
		limits.MaxTurns = v
	}
	if v := envInt("RSP4COPILOT_MAX_MESSAGES"); v > 0 {
		limits.MaxMessages = v
	}
	if v := envInt("RSP4COPILOT_MAX_INPUT_CHARS"); v > 0 {
		limits.MaxInputChars = v
	}

	effort := os.Getenv("RESP_REASONING_EFFORT")
	switch strings.ToLower(strings.TrimSpace(effort)) {
	case "off", "false", "0":
		effort = ""
	}

	geminiMax := 0
	for _, name := range []string{"GEMINI_DEFAULT_MAX_OUTPUT_TOKENS", "GEMINI_MAX_OUTPUT_TOKENS", "GEMINI_MAX_TOKENS"} {
		if v := envInt(name); v > 0 {
			geminiMax = v
			break
		}
	}

	return envDefaults{
		trimLimits:            limits,
		reasoningEffort:       effort,
		geminiMaxOutputTokens: geminiMax,
		claudeDefaultModel:    os.Getenv("CLAUDE_DEFAULT_MODEL"),
		geminiDefaultModel:    os.Getenv("GEMINI_DEFAULT_MODEL"),
	}
}

func envInt(name string) int {
	v, err := strconv.Atoi(os.Getenv(name))
	if err != nil {
		return 0
	}
	return v
}
