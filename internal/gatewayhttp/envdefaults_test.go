package gatewayhttp

import "testing"

func TestLoadEnvDefaults_FallsBackToTrimmerDefaults(t *testing.T) {
	env := loadEnvDefaults()
	if env.trimLimits.MaxTurns != 40 || env.trimLimits.MaxMessages != 200 || env.trimLimits.MaxInputChars != 300000 {
		t.Errorf("got %+v, want trimmer.Defaults()", env.trimLimits)
	}
	if env.reasoningEffort != "" || env.geminiMaxOutputTokens != 0 {
		t.Errorf("got %+v, want zero values with nothing set", env)
	}
}

func TestLoadEnvDefaults_OverridesTrimLimits(t *testing.T) {
	t.Setenv("RSP4COPILOT_MAX_TURNS", "5")
	t.Setenv("RSP4COPILOT_MAX_MESSAGES", "10")
	t.Setenv("RSP4COPILOT_MAX_INPUT_CHARS", "1000")

	env := loadEnvDefaults()
	if env.trimLimits.MaxTurns != 5 || env.trimLimits.MaxMessages != 10 || env.trimLimits.MaxInputChars != 1000 {
		t.Errorf("got %+v, want the overridden limits", env.trimLimits)
	}
}

func TestLoadEnvDefaults_ReasoningEffortOffMeansNoDefault(t *testing.T) {
	t.Setenv("RESP_REASONING_EFFORT", "off")
	if env := loadEnvDefaults(); env.reasoningEffort != "" {
		t.Errorf("reasoningEffort = %q, want empty for off", env.reasoningEffort)
	}

	t.Setenv("RESP_REASONING_EFFORT", "high")
	if env := loadEnvDefaults(); env.reasoningEffort != "high" {
		t.Errorf("reasoningEffort = %q, want high", env.reasoningEffort)
	}
}

func TestLoadEnvDefaults_GeminiMaxOutputTokensPriorityOrder(t *testing.T) {
	t.Setenv("GEMINI_MAX_TOKENS", "111")
	if env := loadEnvDefaults(); env.geminiMaxOutputTokens != 111 {
		t.Errorf("got %d, want 111 from GEMINI_MAX_TOKENS alone", env.geminiMaxOutputTokens)
	}

	t.Setenv("GEMINI_MAX_OUTPUT_TOKENS", "222")
	if env := loadEnvDefaults(); env.geminiMaxOutputTokens != 222 {
		t.Errorf("got %d, want 222 to take priority over GEMINI_MAX_TOKENS", env.geminiMaxOutputTokens)
	}

	t.Setenv("GEMINI_DEFAULT_MAX_OUTPUT_TOKENS", "333")
	if env := loadEnvDefaults(); env.geminiMaxOutputTokens != 333 {
		t.Errorf("got %d, want 333 to take top priority", env.geminiMaxOutputTokens)
	}
}

func TestLoadEnvDefaults_DefaultModels(t *testing.T) {
	t.Setenv("CLAUDE_DEFAULT_MODEL", "claude-opus")
	t.Setenv("GEMINI_DEFAULT_MODEL", "gemini-pro")
	env := loadEnvDefaults()
	if env.claudeDefaultModel != "claude-opus" || env.geminiDefaultModel != "gemini-pro" {
		t.Errorf("got %+v", env)
	}
}

func TestEnvInt_InvalidReturnsZero(t *testing.T) {
	t.Setenv("GOCLAW_TEST_ENV_INT", "not-a-number")
	if got := envInt("GOCLAW_TEST_ENV_INT"); got != 0 {
		t.Errorf("envInt() = %d, want 0 for an unparsable value", got)
	}
}
