package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/clients/pinecone"
	"github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/logger"
)

// PineconeIndex implements Index against one Pinecone index.
type PineconeIndex struct {
	log  *logger.Logger
	pc   pinecone.Client
	host string
}

// NewPineconeIndex binds to an index. When host is empty it is resolved with describe_index.
func NewPineconeIndex(ctx context.Context, log *logger.Logger, pc pinecone.Client, indexName, host string) (*PineconeIndex, error) {
	if pc == nil {
		return nil, fmt.Errorf("pinecone client required")
	}

	host = strings.TrimSpace(host)
	if host == "" {
		if strings.TrimSpace(indexName) == "" {
			return nil, fmt.Errorf("missing PINECONE_INDEX")
		}
		desc, err := pc.DescribeIndex(ctx, indexName)
		if err != nil {
			return nil, err
		}
		host = desc.Host
		log.Warn("PINECONE_INDEX_HOST not set; resolved via describe_index",
			"index_name", indexName,
			"index_host", host,
		)
	}

	return &PineconeIndex{
		log:  log.With("service", "PineconeIndex"),
		pc:   pc,
		host: host,
	}, nil
}

func (p *PineconeIndex) Query(ctx context.Context, namespace string, vector []float32, topK int) ([]Match, error) {
	resp, err := p.pc.Query(ctx, p.host, pinecone.QueryRequest{
		Namespace:       namespace,
		Vector:          vector,
		TopK:            topK,
		IncludeMetadata: true,
		IncludeValues:   false,
	})
	if err != nil {
		return nil, err
	}

	out := make([]Match, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		out = append(out, Match{ID: m.ID, Score: m.Score, Metadata: m.Metadata})
	}
	return out, nil
}

func (p *PineconeIndex) Upsert(ctx context.Context, namespace string, records []Record) error {
	vectors := make([]pinecone.Vector, 0, len(records))
	for _, r := range records {
		vectors = append(vectors, pinecone.Vector{ID: r.ID, Values: r.Values, Metadata: r.Metadata})
	}
	resp, err := p.pc.UpsertVectors(ctx, p.host, pinecone.UpsertRequest{Namespace: namespace, Vectors: vectors})
	if err != nil {
		return err
	}
	p.log.Debug("upserted vectors", "namespace", namespace, "count", resp.UpsertedCount)
	return nil
}

func (p *PineconeIndex) Delete(ctx context.Context, namespace string, ids []string) error {
	return p.pc.DeleteVectors(ctx, p.host, pinecone.DeleteRequest{Namespace: namespace, IDs: ids})
}

func (p *PineconeIndex) DeleteNamespace(ctx context.Context, namespace string) error {
	if strings.TrimSpace(namespace) == "" {
		return fmt.Errorf("namespace required")
	}
	return p.pc.DeleteVectors(ctx, p.host, pinecone.DeleteRequest{Namespace: namespace, DeleteAll: true})
}
