package domain

// TimestampLayout is the ISO-8601 layout used on the wire (millisecond precision, UTC).
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// ChatRequestConfig carries the per-request overrides a widget may send.
type ChatRequestConfig struct {
	SystemPrompt string `json:"systemPrompt,omitempty"`
}

// ChatRequest is the body of a chat submission.
type ChatRequest struct {
	Message        string             `json:"message"`
	ConversationID string             `json:"conversationId"`
	Config         *ChatRequestConfig `json:"config,omitempty"`
}

// ChatResponse is returned for a successful chat submission.
type ChatResponse struct {
	Response       string `json:"response"`
	ConversationID string `json:"conversationId"`
	Timestamp      string `json:"timestamp"`
}

// HistoryResponse is returned by the conversation lookup.
type HistoryResponse struct {
	Conversation []Turn `json:"conversation"`
}

// HealthResponse is returned by the health probe.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Mode      string `json:"mode,omitempty"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}
