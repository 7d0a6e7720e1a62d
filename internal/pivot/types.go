// Package pivot defines the canonical request representation that every
// inbound dialect is decoded into and every upstream dialect is re-encoded
// from. It is the pivot of the translation substrate: translators never
// convert directly between two wire dialects, they always go through this
// shape.
package pivot

// Role is a canonical message role.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// PartType tags the kind of content carried by a Part.
type PartType string

const (
	PartText  PartType = "text"
	PartImage PartType = "image"
)

// ImageData is an inlined image: either sourced from a data: URL or fetched
// and re-encoded from a remote http(s) URL.
type ImageData struct {
	MimeType string
	Data     string // base64, no "data:" prefix
}

// Part is one piece of a message's content. Exactly one of Text/Image is set
// according to Type.
type Part struct {
	Type  PartType
	Text  string
	Image *ImageData
}

// ToolCall is a single function invocation requested by the assistant.
type ToolCall struct {
	CallID    string
	Name      string
	Arguments string // always a JSON string, never a map
	// Thought and ThoughtSignature round-trip Gemini "thinking" call metadata;
	// empty for dialects that don't carry them.
	Thought          string
	ThoughtSignature string
}

// ToolResult is the output of a previously requested tool call, supplied by
// the caller on a later turn.
type ToolResult struct {
	CallID string
	Output string
}

// Message is one turn of the canonical conversation.
type Message struct {
	Role Role
	// Parts holds content for system/user/assistant text+image turns.
	Parts []Part
	// ToolCalls is set on assistant messages that invoked tools.
	ToolCalls []ToolCall
	// ToolResult is set on tool-role messages answering a prior ToolCall.
	ToolResult *ToolResult
	// ReasoningContent carries any "thinking"/reasoning text attached to an
	// assistant message, surfaced separately from Parts.
	ReasoningContent string
}

// ToolDefinition is one function schema offered to the model.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]interface{} // JSON Schema
}

// ToolChoice controls whether/which tool the model must call. Exactly one of
// the fields is meaningful; Mode covers "auto"/"none"/"required", Name is set
// when Mode == ToolChoiceNamed.
type ToolChoiceMode string

const (
	ToolChoiceAuto     ToolChoiceMode = "auto"
	ToolChoiceNone     ToolChoiceMode = "none"
	ToolChoiceRequired ToolChoiceMode = "required"
	ToolChoiceNamed    ToolChoiceMode = "named"
)

type ToolChoice struct {
	Mode ToolChoiceMode
	Name string
}

// Sampling bundles the sampling knobs common to all four upstream dialects.
// Pointers distinguish "absent" from "explicit zero".
type Sampling struct {
	Temperature     *float64
	TopP            *float64
	ReasoningEffort string // "", "low", "medium", "high" — Responses/Chat o-series
	IncludeThoughts *bool  // Gemini thinkingConfig.includeThoughts
}

// Request is the canonical pivot request. Lifecycle: created per inbound
// HTTP request, owned by the dispatcher, discarded once a response (or
// terminal stream chunk) has been sent.
type Request struct {
	Model           string
	UpstreamModel   string
	Messages        []Message
	Tools           []ToolDefinition
	ToolChoice      *ToolChoice
	Sampling        Sampling
	Stream          bool
	MaxOutputTokens int

	// PreviousResponseID threads OpenAI Responses multi-turn linkage through
	// the pivot so translators and the dispatcher can both see it.
	PreviousResponseID string
	// SessionKey is attached by the HTTP layer before translation so that
	// downstream stages (dispatcher, session cache) don't need to recompute it.
	SessionKey string

	// NoInstructions and NoPreviousResponseID mirror the resolved
	// provider/model's quirks; translators consult them to work around
	// upstreams that reject those fields.
	NoInstructions       bool
	NoPreviousResponseID bool
	// MaxInstructionsChars truncates the rendered instructions/system text
	// when positive; 0 means unbounded.
	MaxInstructionsChars int
}

// Usage is token accounting, normalized across dialects.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// FinishReason is the canonical completion reason, normalized to the OpenAI
// vocabulary (stop/length/content_filter/tool_calls) regardless of which
// upstream dialect produced it.
type FinishReason string

const (
	FinishStop          FinishReason = "stop"
	FinishLength        FinishReason = "length"
	FinishContentFilter FinishReason = "content_filter"
	FinishToolCalls     FinishReason = "tool_calls"
)

// Response is the canonical non-streaming pivot response.
type Response struct {
	ID               string
	Model            string
	Content          string
	ReasoningContent string
	ToolCalls        []ToolCall
	FinishReason     FinishReason
	Usage            *Usage
}
