// Package llm provides the LLM client for the Anthropic Messages API.
package llm

import (
	"log/slog"
	"strings"
)

// LevelTrace is below Debug, used for wire-level payload logging.
const LevelTrace = slog.Level(-8)

// Message roles. The Messages API only knows user and assistant; tool
// results travel inside a user message.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Block content types. One constructor per kind of content block the
// wire protocol defines.
const (
	BlockText       = "text"
	BlockToolUse    = "tool_use"
	BlockToolResult = "tool_result"
	BlockImage      = "image"
)

// Stop reasons reported by the model.
const (
	StopEndTurn   = "end_turn"
	StopToolUse   = "tool_use"
	StopMaxTokens = "max_tokens"
)

// Block is one unit of message content. It is a closed tagged union over
// Type; only the fields for the active kind are populated. The JSON shape
// is exactly the Anthropic wire shape, so blocks round-trip between the
// conversation store and the API without conversion.
type Block struct {
	Type string `json:"type"`

	// Text is set for text blocks.
	Text string `json:"text,omitempty"`

	// ID, Name and Input are set for tool_use blocks. The ID is assigned
	// by the model and must be echoed on the matching tool_result.
	ID    string         `json:"id,omitempty"`
	Name  string         `json:"name,omitempty"`
	Input map[string]any `json:"input,omitempty"`

	// ToolUseID and Content are set for tool_result blocks.
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`

	// Source is set for image blocks.
	Source *ImageSource `json:"source,omitempty"`
}

// ImageSource carries inline image data for an image block.
type ImageSource struct {
	Type      string `json:"type"` // "base64"
	MediaType string `json:"media_type,omitempty"`
	Data      string `json:"data,omitempty"`
}

// TextBlock builds a text content block.
func TextBlock(text string) Block {
	return Block{Type: BlockText, Text: text}
}

// ToolUseBlock builds a tool invocation request block.
func ToolUseBlock(id, name string, input map[string]any) Block {
	if input == nil {
		input = map[string]any{}
	}
	return Block{Type: BlockToolUse, ID: id, Name: name, Input: input}
}

// ToolResultBlock builds a tool result block answering the given tool_use id.
func ToolResultBlock(toolUseID, content string) Block {
	return Block{Type: BlockToolResult, ToolUseID: toolUseID, Content: content}
}

// ImageBlock builds an inline base64 image block.
func ImageBlock(mediaType, data string) Block {
	return Block{Type: BlockImage, Source: &ImageSource{
		Type:      "base64",
		MediaType: mediaType,
		Data:      data,
	}}
}

// Message is one entry in a conversation: a role plus ordered content blocks.
type Message struct {
	Role    string  `json:"role"`
	Content []Block `json:"content"`
}

// UserText builds a plain-text user message.
func UserText(text string) Message {
	return Message{Role: RoleUser, Content: []Block{TextBlock(text)}}
}

// AssistantText builds a plain-text assistant message.
func AssistantText(text string) Message {
	return Message{Role: RoleAssistant, Content: []Block{TextBlock(text)}}
}

// Text returns the concatenation of all text blocks in the message.
func (m Message) Text() string {
	var sb strings.Builder
	for _, b := range m.Content {
		if b.Type == BlockText {
			sb.WriteString(b.Text)
		}
	}
	return sb.String()
}

// ToolUses returns the tool_use blocks in the message, in order.
func (m Message) ToolUses() []Block {
	var uses []Block
	for _, b := range m.Content {
		if b.Type == BlockToolUse {
			uses = append(uses, b)
		}
	}
	return uses
}

// ToolDef describes one callable tool as handed to the model. Name,
// description and schema are part of the model-facing contract: wording
// changes model behavior.
type ToolDef struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema"`
}

// Request is one chat completion request.
type Request struct {
	Model     string
	System    string
	Messages  []Message
	Tools     []ToolDef
	MaxTokens int
}

// Response is the model's reply to a Request.
type Response struct {
	Model      string
	StopReason string
	Content    []Block

	InputTokens  int
	OutputTokens int
}

// Text returns the concatenation of all text blocks in the response.
func (r *Response) Text() string {
	var sb strings.Builder
	for _, b := range r.Content {
		if b.Type == BlockText {
			sb.WriteString(b.Text)
		}
	}
	return sb.String()
}

// ToolUses returns the tool_use blocks in the response, in order.
func (r *Response) ToolUses() []Block {
	var uses []Block
	for _, b := range r.Content {
		if b.Type == BlockToolUse {
			uses = append(uses, b)
		}
	}
	return uses
}

// AssistantMessage converts the response content into a history message.
func (r *Response) AssistantMessage() Message {
	return Message{Role: RoleAssistant, Content: r.Content}
}
