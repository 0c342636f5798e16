package models

// Role of a chat message author.
type Role string

// Chat roles.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Citation names a source that contributed content to an answer.
type Citation struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Message is one chat turn. Messages are not persisted.
type Message struct {
	Role    Role       `json:"role"`
	Content string     `json:"content"`
	Sources []Citation `json:"sources,omitempty"`
}
