package llm

// Message roles understood by every Provider.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a single message in an LLM conversation history.
type Message struct {
	// Role is one of RoleSystem, RoleUser, or RoleAssistant.
	Role string

	// Content is the text content of the message.
	Content string
}

// System returns a RoleSystem message with the given content.
func System(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// User returns a RoleUser message with the given content.
func User(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// Assistant returns a RoleAssistant message with the given content.
func Assistant(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// ModelCapabilities describes the static properties of an LLM model.
type ModelCapabilities struct {
	// ContextWindow is the maximum total tokens (prompt + completion) the
	// model accepts.
	ContextWindow int

	// MaxOutputTokens is the maximum completion length the model can
	// generate in a single response.
	MaxOutputTokens int

	// SupportsJSONMode reports whether the backend honours a native
	// strict-JSON output mode for this model. When false, CompleteJSON
	// falls back to prompt instruction plus extraction.
	SupportsJSONMode bool

	// SupportsStreaming reports whether StreamCompletion delivers
	// incremental chunks. Providers without streaming may emit the whole
	// completion as a single chunk.
	SupportsStreaming bool
}
