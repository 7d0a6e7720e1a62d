package urlsynth

import (
	"reflect"
	"testing"
)

func TestSynthesize_OpenAIResponses(t *testing.T) {
	tests := []struct {
		name string
		base string
		want []string
	}{
		{"bare base", "https://api.openai.com", []string{"https://api.openai.com/v1/responses", "https://api.openai.com/responses"}},
		{"ends in v1", "https://api.openai.com/v1", []string{"https://api.openai.com/v1/responses"}},
		{"already suffixed", "https://api.openai.com/v1/responses", []string{"https://api.openai.com/v1/responses"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Synthesize(tt.base, DialectOpenAIResponses, PathOverrides{}, "", false)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Synthesize() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSynthesize_OpenAIResponses_ExplicitPath(t *testing.T) {
	got := Synthesize("https://api.openai.com", DialectOpenAIResponses, PathOverrides{ResponsesPath: "custom/v2/responses"}, "", false)
	want := []string{"https://api.openai.com/custom/v2/responses"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Synthesize() = %v, want %v", got, want)
	}
}

func TestSynthesize_CommaSeparatedBases(t *testing.T) {
	got := Synthesize("https://a.com, https://b.com/v1", DialectOpenAIChat, PathOverrides{}, "", false)
	want := []string{
		"https://a.com/v1/chat/completions", "https://a.com/chat/completions",
		"https://b.com/v1/chat/completions",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Synthesize() = %v, want %v", got, want)
	}
}

func TestSynthesize_Claude(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{"https://api.anthropic.com", "https://api.anthropic.com/v1/messages"},
		{"https://api.anthropic.com/v1", "https://api.anthropic.com/v1/messages"},
		{"https://api.anthropic.com/v1/messages", "https://api.anthropic.com/v1/messages"},
	}
	for _, tt := range tests {
		t.Run(tt.base, func(t *testing.T) {
			got := Synthesize(tt.base, DialectClaude, PathOverrides{}, "", false)
			if len(got) != 1 || got[0] != tt.want {
				t.Errorf("Synthesize(%q) = %v, want [%q]", tt.base, got, tt.want)
			}
		})
	}
}

func TestSynthesize_Claude_ExplicitMessagesPath(t *testing.T) {
	got := Synthesize("https://api.anthropic.com", DialectClaude, PathOverrides{MessagesPath: "custom/v2/messages"}, "", false)
	want := []string{"https://api.anthropic.com/custom/v2/messages"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Synthesize() = %v, want %v", got, want)
	}
}

func TestSynthesize_Gemini(t *testing.T) {
	got := Synthesize("https://generativelanguage.googleapis.com", DialectGemini, PathOverrides{}, "gemini-2.5-pro", false)
	want := "https://generativelanguage.googleapis.com/v1beta/models/gemini-2.5-pro:generateContent"
	if len(got) != 1 || got[0] != want {
		t.Errorf("Synthesize() = %v, want [%q]", got, want)
	}
}

func TestSynthesize_GeminiStreamAddsSSEQuery(t *testing.T) {
	got := Synthesize("https://generativelanguage.googleapis.com", DialectGemini, PathOverrides{}, "gemini-2.5-pro", true)
	want := "https://generativelanguage.googleapis.com/v1beta/models/gemini-2.5-pro:streamGenerateContent?alt=sse"
	if len(got) != 1 || got[0] != want {
		t.Errorf("Synthesize() = %v, want [%q]", got, want)
	}
}

func TestSynthesize_DropsQueryAndFragment(t *testing.T) {
	got := Synthesize("https://api.openai.com?foo=bar#frag", DialectOpenAIChat, PathOverrides{}, "", false)
	want := []string{"https://api.openai.com/v1/chat/completions", "https://api.openai.com/chat/completions"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Synthesize() = %v, want %v", got, want)
	}
}

func TestCollapseV1(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://x.com/v1/v1/responses", "https://x.com/v1/responses"},
		{"https://x.com/v1/v1", "https://x.com/v1"},
		{"https://x.com/v1/responses", "https://x.com/v1/responses"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := collapseV1(tt.in); got != tt.want {
				t.Errorf("collapseV1(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
