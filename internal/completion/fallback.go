package completion

var defaultFallbacks = []string{
	"Hello! I'm here to help you. How can I assist you today?",
	"That's a great question! Let me help you with that.",
	"I understand your concern. Here's what I can suggest...",
	"Thanks for reaching out! I'm happy to help you with this.",
	"That's an interesting point. Let me provide some guidance on that.",
}

// Fallbacks returns a copy of the canned replies used in fallback mode.
func Fallbacks() []string {
	out := make([]string, len(defaultFallbacks))
	copy(out, defaultFallbacks)
	return out
}
