package inference

import "context"

// Roles used in chat-style requests to the inference proxy.
const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// Part is one element of a multimodal message content list.
type Part struct {
	Type string `json:"type"`           // "text" | "image"
	Text string `json:"text,omitempty"` // set when Type == "text"
	Data string `json:"data,omitempty"` // base64 data URL, set when Type == "image"
}

// Message is one role-tagged entry in the conversation. Content is either a
// plain string or a []Part for multimodal messages; the proxy accepts both.
type Message struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

func TextMessage(role, text string) Message {
	return Message{Role: role, Content: text}
}

func PartsMessage(role string, parts []Part) Message {
	return Message{Role: role, Content: parts}
}

func TextPart(text string) Part {
	return Part{Type: "text", Text: text}
}

func ImagePart(dataURL string) Part {
	return Part{Type: "image", Data: dataURL}
}

// Request is one logical "ask the model" operation.
type Request struct {
	Model          string         `json:"model"`
	Messages       []Message      `json:"messages"`
	ResponseFormat map[string]any `json:"response_format,omitempty"`
	MaxTokens      int            `json:"max_tokens,omitempty"`
}

// proxyEnvelope is the wire shape the inference proxy answers with.
type proxyEnvelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Data    struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	} `json:"data"`
}

// ChatClient is the interface the OCR and classification layers depend on.
// Send returns the assistant's message content.
type ChatClient interface {
	Send(ctx context.Context, req Request) (string, error)
}
