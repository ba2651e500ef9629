package rag

import (
	"strings"

	"github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/model/chat"
	"github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/model/expert"
)

// LastUserMessage returns the content of the last user turn by position.
func LastUserMessage(messages []chat.Message) (string, error) {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == chat.RoleUser {
			return messages[i].Content, nil
		}
	}
	return "", ErrNoUserMessage
}

// ResolveExpert looks up id in store, using expert.DefaultID when id is blank.
func ResolveExpert(store expert.Store, id string) (expert.Expert, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		id = expert.DefaultID
	}
	if store == nil {
		return expert.Expert{}, ErrUnknownExpert
	}
	found, ok := store.FindByID(id)
	if !ok {
		return expert.Expert{}, ErrUnknownExpert
	}
	return found, nil
}
