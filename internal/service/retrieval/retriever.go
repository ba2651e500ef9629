package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/embedding"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	embedclient "github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/clients/embedding"
	"github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/logger"
)

// DefaultTopK is the number of chunks fetched when the caller does not say.
const DefaultTopK = 3

var tracer = otel.Tracer("github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/service/retrieval")

// Chunk is a retrieved passage and its similarity score.
type Chunk struct {
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

// Options tune a Retriever.
type Options struct {
	TopK    int
	Timeout time.Duration
}

// Retriever embeds a query and looks up the nearest chunks in an expert's namespace.
// It never fails: every error is logged and turned into an empty result.
type Retriever struct {
	log      *logger.Logger
	embedder embedding.Embedder
	index    Index
	topK     int
	timeout  time.Duration
}

// NewRetriever builds a Retriever. A nil embedder or index is allowed and yields empty results.
func NewRetriever(log *logger.Logger, embedder embedding.Embedder, index Index, opts Options) *Retriever {
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	return &Retriever{
		log:      log.With("service", "Retriever"),
		embedder: embedder,
		index:    index,
		topK:     opts.TopK,
		timeout:  opts.Timeout,
	}
}

// Retrieve returns up to the configured number of chunks, highest score first.
func (r *Retriever) Retrieve(ctx context.Context, query, namespace string) []Chunk {
	return r.RetrieveTopK(ctx, query, namespace, r.topK)
}

// RetrieveTopK is Retrieve with an explicit result bound.
func (r *Retriever) RetrieveTopK(ctx context.Context, query, namespace string, topK int) (chunks []Chunk) {
	if strings.TrimSpace(query) == "" {
		r.log.Warn("skipping retrieval: empty query", "namespace", namespace)
		return []Chunk{}
	}
	if strings.TrimSpace(namespace) == "" {
		r.log.Warn("skipping retrieval: empty namespace")
		return []Chunk{}
	}
	if topK <= 0 {
		topK = r.topK
	}

	ctx, span := tracer.Start(ctx, "rag.retrieve")
	span.SetAttributes(attribute.String("namespace", namespace), attribute.Int("top_k", topK))
	defer span.End()

	defer func() {
		if rec := recover(); rec != nil {
			err := fmt.Errorf("panic during retrieval: %v", rec)
			span.RecordError(err)
			span.SetStatus(codes.Error, "retrieval panicked")
			r.log.Error("retrieval panicked", "namespace", namespace, "error", err)
			chunks = []Chunk{}
		}
	}()

	chunks, err := r.retrieve(ctx, query, namespace, topK)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "retrieval failed")
		r.log.Warn("retrieval failed, continuing without context", "namespace", namespace, "error", err)
		return []Chunk{}
	}
	span.SetAttributes(attribute.Int("chunks", len(chunks)))
	return chunks
}

func (r *Retriever) retrieve(ctx context.Context, query, namespace string, topK int) ([]Chunk, error) {
	if r.embedder == nil || r.index == nil {
		return nil, fmt.Errorf("retrieval not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	vectors, err := r.embedder.EmbedStrings(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("generate embeddings: %w", err)
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, fmt.Errorf("generate embeddings: empty vector")
	}

	matches, err := r.index.Query(ctx, namespace, embedclient.ToFloat32(vectors[0]), topK)
	if err != nil {
		return nil, fmt.Errorf("query vector index: %w", err)
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > topK {
		matches = matches[:topK]
	}

	out := make([]Chunk, 0, len(matches))
	for _, m := range matches {
		out = append(out, Chunk{Text: m.Text(), Score: m.Score})
	}
	return out, nil
}
