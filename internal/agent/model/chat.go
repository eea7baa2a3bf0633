package model

import "time"

// Channels a chat request can arrive on.
const (
	ChannelHTTP      = "http"
	ChannelWebSocket = "websocket"
	ChannelCLI       = "cli"
)

type ChatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"`
	Channel        string `json:"-"`
}

// ChatResponse has the same shape on every channel.
type ChatResponse struct {
	Message        string         `json:"message"`
	Timestamp      time.Time      `json:"timestamp"`
	ConversationID string         `json:"conversation_id"`
	Agent          string         `json:"agent,omitempty"`
	Agents         []string       `json:"agents,omitempty"`
	OutOfScope     bool           `json:"out_of_scope"`
	Error          bool           `json:"error"`
	MultiAgent     bool           `json:"multi_agent"`
	Guardrail      *GuardrailInfo `json:"guardrail,omitempty"`
}
