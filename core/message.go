package core

// Role identifies the author of a Message.
type Role string

const (
	// RoleSystem marks the preamble installed once per thread.
	RoleSystem Role = "system"
	// RoleUser marks end-user utterances.
	RoleUser Role = "user"
	// RoleAssistant marks replies produced by capability handlers.
	RoleAssistant Role = "assistant"
)

// String returns the wire name of the role.
func (r Role) String() string { return string(r) }

// Message is a role-tagged piece of text. It is a value type; once created it
// must be treated as immutable.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// SystemMessage creates a system-role message.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// UserMessage creates a user-role message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage creates an assistant-role message.
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// CloneMessages returns an independent copy of msgs.
func CloneMessages(msgs []Message) []Message {
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out
}
