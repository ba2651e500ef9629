package rag

import (
	"strings"

	"github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/service/retrieval"
)

// NoContextFallback stands in for the context block when nothing was retrieved.
const NoContextFallback = "No specific information available for this query."

// AssembleContext joins the non-empty chunk texts with a blank line, in the given order.
func AssembleContext(chunks []retrieval.Chunk) string {
	texts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		if strings.TrimSpace(c.Text) == "" {
			continue
		}
		texts = append(texts, c.Text)
	}
	if len(texts) == 0 {
		return NoContextFallback
	}
	return strings.Join(texts, "\n\n")
}
