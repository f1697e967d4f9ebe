package history

import "fmt"

// Role identifies who authored a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Valid reports whether the role is one of the three known values.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant || r == RoleSystem
}

// Message is a single conversational message. Messages are immutable once
// constructed and live for the duration of one request.
type Message struct {
	Role      Role   `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp,omitempty"`
}

// ParseMessage builds a Message from a raw role/content pair, defaulting
// blank roles to user the way the inbound widget sends them.
func ParseMessage(role, content, timestamp string) (Message, error) {
	r := Role(role)
	if role == "" {
		r = RoleUser
	}
	if !r.Valid() {
		return Message{}, fmt.Errorf("unknown message role %q", role)
	}
	return Message{Role: r, Content: content, Timestamp: timestamp}, nil
}
