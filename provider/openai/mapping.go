package openai

import (
	"encoding/json"

	"github.com/kokoro-ai/kokoro/provider"
)

// --- Wire types (unexported, serialization only) ---

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Tools    []chatTool    `json:"tools,omitempty"`
	Stream   bool          `json:"stream,omitempty"`
}

// chatMessage is an outbound message. Tool result messages carry the
// originating call id in both snake_case and camelCase fields because
// OpenAI-compatible gateways disagree on the spelling.
type chatMessage struct {
	Role           string         `json:"role"`
	Content        string         `json:"content"`
	Name           string         `json:"name,omitempty"`
	ToolCallID     string         `json:"tool_call_id,omitempty"`
	ToolCallIDCaml string         `json:"toolCallId,omitempty"`
	ToolCalls      []chatToolCall `json:"tool_calls,omitempty"`
}

type chatTool struct {
	Type     string       `json:"type"`
	Function chatFunction `json:"function"`
}

type chatFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

type chatToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function chatFunctionCall `json:"function"`
}

type chatFunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
}

type chatChoice struct {
	Message      *chatRespMessage `json:"message"`
	FinishReason *string          `json:"finish_reason"`
}

// chatRespMessage tolerates both spellings of the tool-call list.
type chatRespMessage struct {
	Role          string         `json:"role"`
	Content       string         `json:"content"`
	ToolCalls     []chatToolCall `json:"tool_calls"`
	ToolCallsCaml []chatToolCall `json:"toolCalls"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// --- Converter functions ---

// toMessages converts core messages to the wire format.
func toMessages(msgs []provider.Message) []chatMessage {
	out := make([]chatMessage, len(msgs))
	for i, m := range msgs {
		cm := chatMessage{
			Role:    string(m.Role),
			Content: m.Content,
			Name:    m.Name,
		}
		if m.Role == provider.MessageRoleTool && m.ToolID != "" {
			cm.ToolCallID = m.ToolID
			cm.ToolCallIDCaml = m.ToolID
		}
		if len(m.ToolCalls) > 0 {
			cm.ToolCalls = make([]chatToolCall, len(m.ToolCalls))
			for j, tc := range m.ToolCalls {
				cm.ToolCalls[j] = chatToolCall{
					ID:   tc.ID,
					Type: "function",
					Function: chatFunctionCall{
						Name:      tc.Name,
						Arguments: string(tc.Arguments),
					},
				}
			}
		}
		out[i] = cm
	}
	return out
}

// toTools converts core tool definitions to the wire format.
func toTools(tools []provider.ToolDefinition) []chatTool {
	out := make([]chatTool, len(tools))
	for i, t := range tools {
		out[i] = chatTool{
			Type: "function",
			Function: chatFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		}
	}
	return out
}

// fromResponse converts a wire response to a core CompletionResponse.
// A response without an assistant message is a protocol violation and
// is reported by the caller, not here.
func fromResponse(resp *chatResponse, raw []byte) provider.CompletionResponse {
	var cr provider.CompletionResponse
	cr.Raw = raw
	if len(resp.Choices) == 0 || resp.Choices[0].Message == nil {
		return cr
	}
	choice := resp.Choices[0]
	cr.Content = choice.Message.Content
	cr.FinishReason = mapFinishReason(choice.FinishReason)

	calls := choice.Message.ToolCalls
	if len(calls) == 0 {
		calls = choice.Message.ToolCallsCaml
	}
	cr.ToolCalls = fromToolCalls(calls)
	return cr
}

// fromToolCalls converts wire tool calls to core ToolCalls.
func fromToolCalls(calls []chatToolCall) []provider.ToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]provider.ToolCall, len(calls))
	for i, c := range calls {
		out[i] = provider.ToolCall{
			ID:        c.ID,
			Name:      c.Function.Name,
			Arguments: json.RawMessage(c.Function.Arguments),
		}
	}
	return out
}

// mapFinishReason converts a wire finish_reason to a core FinishReason.
func mapFinishReason(reason *string) provider.FinishReason {
	if reason == nil {
		return ""
	}
	switch *reason {
	case "stop":
		return provider.FinishReasonStop
	case "length":
		return provider.FinishReasonLength
	case "tool_calls":
		return provider.FinishReasonToolUse
	case "content_filter":
		return provider.FinishReasonFiltering
	default:
		return provider.FinishReason(*reason)
	}
}
