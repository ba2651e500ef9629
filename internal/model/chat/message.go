package chat

// Role tags a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one turn of a conversation. Order within a slice is the dialogue order.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Request is the body accepted by the chat endpoints.
type Request struct {
	BotID    string    `json:"botId"`
	Messages []Message `json:"messages"`
}

// MultiRequest fans one conversation out to several experts.
type MultiRequest struct {
	BotIDs   []string  `json:"botIds"`
	Messages []Message `json:"messages"`
}

// Response is the success body of the chat endpoint.
type Response struct {
	Text string `json:"text"`
}

// ExpertAnswer is one expert's result in a fan-out.
type ExpertAnswer struct {
	BotID string `json:"botId"`
	Text  string `json:"text"`
	Error bool   `json:"error"`
}
