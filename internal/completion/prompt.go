package completion

import (
	"strings"

	"chat-widget/internal/domain"
)

// DefaultSystemPrompt is used when neither the request nor the configuration supplies one.
const DefaultSystemPrompt = "You are a helpful customer service assistant."

// BuildPrompt renders the system instruction and the chronological history into
// a single text prompt ending with an assistant cue.
func BuildPrompt(systemPrompt string, history []domain.Turn) string {
	var b strings.Builder
	b.WriteString(systemPrompt)
	b.WriteString("\n\nConversation:\n")
	for i, t := range history {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(speaker(t.Role))
		b.WriteString(": ")
		b.WriteString(t.Content)
	}
	b.WriteString("\n\nAssistant:")
	return b.String()
}

func speaker(role domain.Role) string {
	if role == domain.RoleUser {
		return "User"
	}
	return "Assistant"
}
