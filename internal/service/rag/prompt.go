package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/model/chat"
	"github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/model/expert"
)

const (
	ContextStartMarker = "START CONTEXT BLOCK"
	ContextEndMarker   = "END OF CONTEXT BLOCK"
)

// FormattingRules asks the model for Markdown the web client can render.
const FormattingRules = "Format your responses using Markdown syntax for better readability:\n" +
	"- Use **bold** for emphasis\n" +
	"- Use *italic* for subtle emphasis\n" +
	"- Use `code` for technical terms or code snippets\n" +
	"- Use ```language\n  code block\n  ``` for multi-line code examples\n" +
	"- Use bullet points and numbered lists where appropriate\n" +
	"- Use headings (## and ###) to organize longer responses"

const systemTemplate = "Your name is {name}\n" +
	"{persona}\n\n" +
	ContextStartMarker + "\n" +
	"{context}\n" +
	ContextEndMarker + "\n\n" +
	"{formatting}"

// PromptBuilder renders the grounded system message and prepends it to the conversation.
type PromptBuilder struct {
	template prompt.ChatTemplate
}

// NewPromptBuilder compiles the system prompt template.
func NewPromptBuilder() *PromptBuilder {
	return &PromptBuilder{
		template: prompt.FromMessages(
			schema.FString,
			schema.SystemMessage(systemTemplate),
			schema.MessagesPlaceholder("history", true),
		),
	}
}

// Build returns the completion request: the system message first, then the
// user and assistant turns in their original order.
func (b *PromptBuilder) Build(ctx context.Context, e expert.Expert, contextText string, messages []chat.Message) ([]*schema.Message, error) {
	persona := e.SystemPrompt
	if strings.TrimSpace(persona) == "" {
		persona = expert.DefaultSystemPrompt
	}

	out, err := b.template.Format(ctx, map[string]any{
		"name":       scrubMarkers(e.Name),
		"persona":    scrubMarkers(persona),
		"context":    scrubMarkers(contextText),
		"formatting": FormattingRules,
		"history":    history(messages),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render prompt: %w", err)
	}
	return out, nil
}

func history(messages []chat.Message) []*schema.Message {
	out := make([]*schema.Message, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case chat.RoleUser:
			out = append(out, schema.UserMessage(msg.Content))
		case chat.RoleAssistant:
			out = append(out, schema.AssistantMessage(msg.Content, nil))
		}
	}
	return out
}

var markerReplacer = strings.NewReplacer(
	ContextStartMarker, "START CONTEXT",
	ContextEndMarker, "END OF CONTEXT",
)

// scrubMarkers removes marker text from interpolated values until none is left,
// since one replacement can splice a new marker together.
func scrubMarkers(s string) string {
	for strings.Contains(s, ContextStartMarker) || strings.Contains(s, ContextEndMarker) {
		s = markerReplacer.Replace(s)
	}
	return s
}
