// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package llm talks to an OpenAI-compatible inference endpoint. It exposes
// a provider-neutral message model, a streaming Endpoint interface, and the
// Accumulator that folds streamed deltas into complete tool calls.
package llm

import "encoding/json"

// Role is the author of a Message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a fully accumulated request from the model to run a tool.
// Arguments is the raw JSON text exactly as streamed; it may be invalid.
type ToolCall struct {
	Index     int    `json:"index"`
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Message is one entry of a conversation history.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`

	// ToolCalls is set on assistant messages that requested tools.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolCallID links a tool message to the call it answers.
	ToolCallID string `json:"tool_call_id,omitempty"`

	// Name is the tool name on tool messages.
	Name string `json:"name,omitempty"`
}

// SystemMessage returns a system message.
func SystemMessage(content string) Message { return Message{Role: RoleSystem, Content: content} }

// UserMessage returns a user message.
func UserMessage(content string) Message { return Message{Role: RoleUser, Content: content} }

// AssistantMessage returns an assistant message with optional tool calls.
func AssistantMessage(content string, calls ...ToolCall) Message {
	return Message{Role: RoleAssistant, Content: content, ToolCalls: calls}
}

// ToolMessage returns the result of the given call.
func ToolMessage(call ToolCall, content string) Message {
	return Message{Role: RoleTool, Content: content, ToolCallID: call.ID, Name: call.Name}
}

// ToolSpec describes a callable tool to the model.
type ToolSpec struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// JSONSchema constrains a completion to a JSON document.
type JSONSchema struct {
	Name   string
	Schema json.RawMessage
}

// Request is one completion request.
//
// Temperature zero means deterministic decoding. MaxTokens zero leaves the
// limit to the server.
type Request struct {
	Messages []Message
	Tools    []ToolSpec

	Temperature      float32
	MaxTokens        int
	FrequencyPenalty float32
	PresencePenalty  float32

	// Format, when set, requests output matching the schema.
	Format *JSONSchema
}
