package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudwego/eino/components/embedding"

	embedclient "github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/clients/embedding"
	"github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/logger"
	"github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/service/retrieval"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 100
	DefaultBatchSize    = 32

	MetadataEpisodeID = "episodeId"
	MetadataTitle     = "title"
)

// ErrUnavailable is returned when no embedder or vector index is configured.
var ErrUnavailable = errors.New("ingestion is not configured")

// Episode is a transcript to index under an expert's namespace. Each edit of
// an episode is indexed under a new Revision so the previous vectors stay
// intact until the edit is committed.
type Episode struct {
	ID       string
	Revision int
	Title    string
	Content  string
}

// Options tune chunking and embedding batches.
type Options struct {
	ChunkSize    int
	ChunkOverlap int
	BatchSize    int
}

// Ingestor chunks transcripts, embeds the chunks and stores them in the vector index.
type Ingestor struct {
	log      *logger.Logger
	embedder embedding.Embedder
	index    retrieval.Index
	opts     Options
}

func NewIngestor(log *logger.Logger, embedder embedding.Embedder, index retrieval.Index, opts Options) *Ingestor {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.ChunkOverlap < 0 || opts.ChunkOverlap >= opts.ChunkSize {
		opts.ChunkOverlap = 0
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	return &Ingestor{
		log:      log.With("service", "Ingestor"),
		embedder: embedder,
		index:    index,
		opts:     opts,
	}
}

// Available reports whether episodes can be indexed.
func (i *Ingestor) Available() bool {
	return i != nil && i.embedder != nil && i.index != nil
}

// IngestEpisode indexes ep under namespace and returns the number of chunks stored.
// On failure the chunks already upserted are removed again and 0 is returned.
func (i *Ingestor) IngestEpisode(ctx context.Context, namespace string, ep Episode) (int, error) {
	if !i.Available() {
		return 0, ErrUnavailable
	}

	chunks := SplitTranscript(ep.Content, i.opts.ChunkSize, i.opts.ChunkOverlap)
	for start := 0; start < len(chunks); start += i.opts.BatchSize {
		end := min(start+i.opts.BatchSize, len(chunks))

		vectors, err := i.embedder.EmbedStrings(ctx, chunks[start:end])
		if err != nil {
			i.rollback(ctx, namespace, ep, start)
			return 0, fmt.Errorf("embed episode %s: %w", ep.ID, err)
		}
		if len(vectors) != end-start {
			i.rollback(ctx, namespace, ep, start)
			return 0, fmt.Errorf("embed episode %s: expected %d vectors, got %d", ep.ID, end-start, len(vectors))
		}

		records := make([]retrieval.Record, 0, len(vectors))
		for j, vec := range vectors {
			records = append(records, retrieval.Record{
				ID:     ChunkID(ep.ID, ep.Revision, start+j),
				Values: embedclient.ToFloat32(vec),
				Metadata: map[string]any{
					retrieval.MetadataText: chunks[start+j],
					MetadataEpisodeID:      ep.ID,
					MetadataTitle:          ep.Title,
				},
			})
		}
		if err := i.index.Upsert(ctx, namespace, records); err != nil {
			// The failed batch may be partially written.
			i.rollback(ctx, namespace, ep, end)
			return 0, fmt.Errorf("upsert episode %s: %w", ep.ID, err)
		}
	}

	i.log.Info("episode ingested", "namespace", namespace, "episode_id", ep.ID, "revision", ep.Revision, "chunks", len(chunks))
	return len(chunks), nil
}

func (i *Ingestor) rollback(ctx context.Context, namespace string, ep Episode, upserted int) {
	if upserted == 0 {
		return
	}
	if err := i.DeleteEpisode(context.WithoutCancel(ctx), namespace, ep.ID, ep.Revision, upserted); err != nil {
		i.log.Warn("failed to remove partially ingested episode", "namespace", namespace, "episode_id", ep.ID, "chunks", upserted, "error", err)
	}
}

// DeleteEpisode removes the vectors of one episode revision.
func (i *Ingestor) DeleteEpisode(ctx context.Context, namespace, episodeID string, revision, chunkCount int) error {
	if chunkCount <= 0 {
		return nil
	}
	if i == nil || i.index == nil {
		return ErrUnavailable
	}
	if err := i.index.Delete(ctx, namespace, ChunkIDs(episodeID, revision, chunkCount)); err != nil {
		return fmt.Errorf("delete episode %s: %w", episodeID, err)
	}
	return nil
}

// DeleteNamespace removes every vector of an expert.
func (i *Ingestor) DeleteNamespace(ctx context.Context, namespace string) error {
	if i == nil || i.index == nil {
		return ErrUnavailable
	}
	if err := i.index.DeleteNamespace(ctx, namespace); err != nil {
		return fmt.Errorf("delete namespace %s: %w", namespace, err)
	}
	return nil
}
