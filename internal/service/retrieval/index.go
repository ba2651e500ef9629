package retrieval

import "context"

// MetadataText is the vector metadata key holding the chunk passage.
const MetadataText = "text"

// Match is one nearest-neighbour hit.
type Match struct {
	ID       string
	Score    float64
	Metadata map[string]any
}

// Text returns the passage stored under MetadataText, or "".
func (m Match) Text() string {
	if m.Metadata == nil {
		return ""
	}
	text, _ := m.Metadata[MetadataText].(string)
	return text
}

// Record is a vector to store.
type Record struct {
	ID       string
	Values   []float32
	Metadata map[string]any
}

// Index is a namespaced vector index.
type Index interface {
	Query(ctx context.Context, namespace string, vector []float32, topK int) ([]Match, error)
	Upsert(ctx context.Context, namespace string, records []Record) error
	Delete(ctx context.Context, namespace string, ids []string) error
	DeleteNamespace(ctx context.Context, namespace string) error
}
