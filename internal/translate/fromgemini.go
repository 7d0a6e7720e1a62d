package translate

import (
	"context"

	"github.com/goclaw/router/internal/content"
	"github.com/goclaw/router/internal/pivot"
)

// GeminiRequest is the Gemini generateContent inbound shape.
type GeminiRequest struct {
	Model             string                   `json:"-"`
	Contents          []map[string]interface{} `json:"contents"`
	SystemInstruction map[string]interface{}   `json:"systemInstruction"`
	Tools             []map[string]interface{} `json:"tools"`
	GenerationConfig  map[string]interface{}   `json:"generationConfig"`
	Stream            bool                     `json:"-"`
}

// FromGemini converts an inbound Gemini generateContent request to the
// canonical pivot. functionCall/functionResponse turns are paired back into
// assistant-tool_calls / tool-role-results the same way OpenAI Chat →
// Gemini pairs them on the way out, since Gemini's own inbound shape is
// symmetric with its outbound one.
func FromGemini(ctx context.Context, req *GeminiRequest) (*pivot.Request, error) {
	out := &pivot.Request{
		Model:  req.Model,
		Stream: req.Stream,
	}

	if cfg := req.GenerationConfig; cfg != nil {
		if v, ok := cfg["temperature"].(float64); ok {
			out.Sampling.Temperature = &v
		}
		if v, ok := cfg["topP"].(float64); ok {
			out.Sampling.TopP = &v
		}
		if v, ok := cfg["maxOutputTokens"].(float64); ok {
			out.MaxOutputTokens = int(v)
		}
		if tc, ok := cfg["thinkingConfig"].(map[string]interface{}); ok {
			if v, ok := tc["includeThoughts"].(bool); ok {
				out.Sampling.IncludeThoughts = &v
			}
		}
	}

	if req.SystemInstruction != nil {
		if parts, ok := req.SystemInstruction["parts"].([]interface{}); ok {
			out.Messages = append(out.Messages, pivot.Message{
				Role:  pivot.RoleSystem,
				Parts: partsFromText(content.TextFromAny(parts)),
			})
		}
	}

	for _, c := range req.Contents {
		role, _ := c["role"].(string)
		pivotRole := pivot.RoleUser
		if role == "model" {
			pivotRole = pivot.RoleAssistant
		}
		parts, _ := c["parts"].([]interface{})

		var pendingSig string
		msg := pivot.Message{Role: pivotRole}
		var funcResponses []pivot.Message

		for _, p := range parts {
			pm, ok := p.(map[string]interface{})
			if !ok {
				continue
			}
			switch {
			case pm["text"] != nil:
				text, _ := pm["text"].(string)
				if isThought, _ := pm["thought"].(bool); isThought {
					msg.ReasoningContent += text
				} else {
					msg.Parts = append(msg.Parts, pivot.Part{Type: pivot.PartText, Text: text})
				}
			case pm["inlineData"] != nil:
				id, _ := pm["inlineData"].(map[string]interface{})
				mime, _ := id["mimeType"].(string)
				data, _ := id["data"].(string)
				msg.Parts = append(msg.Parts, pivot.Part{Type: pivot.PartImage, Image: &pivot.ImageData{MimeType: mime, Data: data}})
			case pm["functionCall"] != nil:
				fc, _ := pm["functionCall"].(map[string]interface{})
				name, _ := fc["name"].(string)
				id, _ := fc["id"].(string)
				if id == "" {
					id = NewToolCallID()
				}
				tc := pivot.ToolCall{CallID: id, Name: name, Arguments: ArgumentsToJSON(fc["args"])}
				if sig, ok := pm["thoughtSignature"].(string); ok {
					tc.ThoughtSignature = sig
				} else if pendingSig != "" {
					tc.ThoughtSignature = pendingSig
				}
				msg.ToolCalls = append(msg.ToolCalls, tc)
				pendingSig = ""
			case pm["thoughtSignature"] != nil:
				sig, _ := pm["thoughtSignature"].(string)
				if n := len(msg.ToolCalls); n > 0 && msg.ToolCalls[n-1].ThoughtSignature == "" {
					msg.ToolCalls[n-1].ThoughtSignature = sig
				} else {
					pendingSig = sig
				}
			case pm["functionResponse"] != nil:
				fr, _ := pm["functionResponse"].(map[string]interface{})
				id, _ := fr["id"].(string)
				resp := fr["response"]
				output := content.TextFromAny(resp)
				if rm, ok := resp.(map[string]interface{}); ok {
					if s, ok := rm["output"].(string); ok {
						output = s
					}
				}
				funcResponses = append(funcResponses, pivot.Message{
					Role:       pivot.RoleTool,
					ToolResult: &pivot.ToolResult{CallID: id, Output: output},
				})
			}
		}

		if len(msg.Parts) > 0 || len(msg.ToolCalls) > 0 || msg.ReasoningContent != "" {
			out.Messages = append(out.Messages, msg)
		}
		out.Messages = append(out.Messages, funcResponses...)
	}

	for _, t := range req.Tools {
		decls, _ := t["functionDeclarations"].([]interface{})
		for _, d := range decls {
			dm, ok := d.(map[string]interface{})
			if !ok {
				continue
			}
			name, _ := dm["name"].(string)
			desc, _ := dm["description"].(string)
			params, _ := dm["parameters"].(map[string]interface{})
			out.Tools = append(out.Tools, pivot.ToolDefinition{Name: name, Description: desc, Parameters: params})
		}
	}

	return out, nil
}
