package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/logger"
	"github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/model/expert"
	"github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/service/ingest"
	"github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/storage"
)

const (
	maxNameLength  = 120
	maxTitleLength = 200
)

var (
	ErrExpertNotFound  = errors.New("expert not found")
	ErrEpisodeNotFound = errors.New("episode not found")
	ErrBuiltIn         = errors.New("built-in experts cannot be modified")
)

// ValidationError reports bad user input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Ingestor indexes episode transcripts.
type Ingestor interface {
	IngestEpisode(ctx context.Context, namespace string, ep ingest.Episode) (int, error)
	DeleteEpisode(ctx context.Context, namespace, episodeID string, revision, chunkCount int) error
	DeleteNamespace(ctx context.Context, namespace string) error
}

// NewEpisode is the payload for creating or replacing an episode.
type NewEpisode struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// NewExpert is the payload for creating an expert.
type NewExpert struct {
	Name         string       `json:"name"`
	Description  string       `json:"description"`
	SystemPrompt string       `json:"systemPrompt"`
	Episodes     []NewEpisode `json:"episodes"`
}

// Service manages user-created experts. It keeps the in-memory catalog used by
// the chat pipeline in step with the database.
type Service struct {
	log      *logger.Logger
	store    *expert.MemoryStore
	repo     storage.ExpertRepo
	ingestor Ingestor
}

func NewService(log *logger.Logger, store *expert.MemoryStore, repo storage.ExpertRepo, ingestor Ingestor) *Service {
	return &Service{
		log:      log.With("service", "Catalog"),
		store:    store,
		repo:     repo,
		ingestor: ingestor,
	}
}

// Load merges persisted experts into the catalog. Built-in ids win on conflict.
func (s *Service) Load(ctx context.Context) error {
	rows, err := s.repo.ListExperts(ctx)
	if err != nil {
		return fmt.Errorf("load experts: %w", err)
	}
	loaded := 0
	for _, row := range rows {
		if existing, ok := s.store.FindByID(row.ID); ok && existing.BuiltIn {
			s.log.Warn("persisted expert shadows a built-in id, skipping", "expert_id", row.ID)
			continue
		}
		s.store.Put(row.ToExpert())
		loaded++
	}
	s.log.Info("experts loaded", "persisted", loaded, "total", len(s.store.List()))
	return nil
}

// List returns every expert in catalog order.
func (s *Service) List() []expert.Expert {
	return s.store.List()
}

// Get returns one expert.
func (s *Service) Get(id string) (expert.Expert, error) {
	e, ok := s.store.FindByID(id)
	if !ok {
		return expert.Expert{}, ErrExpertNotFound
	}
	return e, nil
}

// CreateExpert stores a new expert and indexes its episodes.
func (s *Service) CreateExpert(ctx context.Context, in NewExpert) (expert.Expert, []storage.EpisodeRecord, error) {
	name := strings.TrimSpace(in.Name)
	if err := checkLength("name", name, maxNameLength); err != nil {
		return expert.Expert{}, nil, err
	}
	for i, ep := range in.Episodes {
		if err := validateEpisode(ep); err != nil {
			return expert.Expert{}, nil, &ValidationError{Message: fmt.Sprintf("episode %d: %s", i+1, err.Error())}
		}
	}

	id := uuid.NewString()
	rec := &storage.ExpertRecord{
		ID:           id,
		Name:         name,
		Description:  strings.TrimSpace(in.Description),
		Namespace:    id,
		SystemPrompt: strings.TrimSpace(in.SystemPrompt),
	}

	episodes := make([]*storage.EpisodeRecord, 0, len(in.Episodes))
	for _, ep := range in.Episodes {
		epRec := &storage.EpisodeRecord{
			ID:       uuid.NewString(),
			ExpertID: id,
			Title:    strings.TrimSpace(ep.Title),
			Content:  ep.Content,
		}
		n, err := s.ingestor.IngestEpisode(ctx, rec.Namespace, toIngest(epRec))
		if err != nil {
			s.cleanupNamespace(rec.Namespace)
			return expert.Expert{}, nil, fmt.Errorf("ingest episode %q: %w", epRec.Title, err)
		}
		epRec.ChunkCount = n
		episodes = append(episodes, epRec)
	}

	if err := s.repo.CreateExpert(ctx, rec, episodes); err != nil {
		s.cleanupNamespace(rec.Namespace)
		return expert.Expert{}, nil, fmt.Errorf("save expert: %w", err)
	}

	created := rec.ToExpert()
	s.store.Put(created)
	s.log.Info("expert created", "expert_id", id, "episodes", len(episodes))

	out := make([]storage.EpisodeRecord, 0, len(episodes))
	for _, ep := range episodes {
		out = append(out, *ep)
	}
	return created, out, nil
}

// DeleteExpert removes a user-created expert with its episodes and vectors.
func (s *Service) DeleteExpert(ctx context.Context, id string) error {
	e, err := s.managed(id)
	if err != nil {
		return err
	}

	if err := s.repo.DeleteExpert(ctx, id); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("delete expert: %w", err)
	}
	s.store.Remove(id)

	if err := s.ingestor.DeleteNamespace(ctx, e.Namespace); err != nil {
		s.log.Warn("failed to delete expert vectors", "expert_id", id, "namespace", e.Namespace, "error", err)
	}
	s.log.Info("expert deleted", "expert_id", id)
	return nil
}

// ListEpisodes returns the episodes of an expert. Built-in experts have none.
func (s *Service) ListEpisodes(ctx context.Context, expertID string) ([]storage.EpisodeRecord, error) {
	e, err := s.Get(expertID)
	if err != nil {
		return nil, err
	}
	if e.BuiltIn {
		return []storage.EpisodeRecord{}, nil
	}
	rows, err := s.repo.ListEpisodes(ctx, expertID)
	if err != nil {
		return nil, fmt.Errorf("list episodes: %w", err)
	}
	return rows, nil
}

// AddEpisode stores and indexes a new episode.
func (s *Service) AddEpisode(ctx context.Context, expertID string, in NewEpisode) (*storage.EpisodeRecord, error) {
	e, err := s.managed(expertID)
	if err != nil {
		return nil, err
	}
	if err := validateEpisode(in); err != nil {
		return nil, err
	}

	rec := &storage.EpisodeRecord{
		ID:       uuid.NewString(),
		ExpertID: expertID,
		Title:    strings.TrimSpace(in.Title),
		Content:  in.Content,
	}
	n, err := s.ingestor.IngestEpisode(ctx, e.Namespace, toIngest(rec))
	if err != nil {
		return nil, fmt.Errorf("ingest episode: %w", err)
	}
	rec.ChunkCount = n

	if err := s.repo.CreateEpisode(ctx, rec); err != nil {
		if delErr := s.ingestor.DeleteEpisode(context.WithoutCancel(ctx), e.Namespace, rec.ID, rec.Revision, n); delErr != nil {
			s.log.Warn("failed to roll back episode vectors", "episode_id", rec.ID, "error", delErr)
		}
		return nil, fmt.Errorf("save episode: %w", err)
	}
	return rec, nil
}

// UpdateEpisode replaces an episode's title and transcript and re-indexes it.
// The new text is indexed under the next revision before the row changes, and
// the old revision's vectors are dropped only once the row is saved.
func (s *Service) UpdateEpisode(ctx context.Context, expertID, episodeID string, in NewEpisode) (*storage.EpisodeRecord, error) {
	e, err := s.managed(expertID)
	if err != nil {
		return nil, err
	}
	if err := validateEpisode(in); err != nil {
		return nil, err
	}

	current, err := s.episode(ctx, expertID, episodeID)
	if err != nil {
		return nil, err
	}

	next := *current
	next.Title = strings.TrimSpace(in.Title)
	next.Content = in.Content
	next.Revision = current.Revision + 1

	n, err := s.ingestor.IngestEpisode(ctx, e.Namespace, toIngest(&next))
	if err != nil {
		return nil, fmt.Errorf("re-ingest episode: %w", err)
	}
	next.ChunkCount = n

	if err := s.repo.UpdateEpisode(ctx, &next); err != nil {
		if delErr := s.ingestor.DeleteEpisode(context.WithoutCancel(ctx), e.Namespace, next.ID, next.Revision, n); delErr != nil {
			s.log.Warn("failed to roll back episode revision", "episode_id", next.ID, "revision", next.Revision, "error", delErr)
		}
		return nil, fmt.Errorf("save episode: %w", err)
	}

	if err := s.ingestor.DeleteEpisode(ctx, e.Namespace, current.ID, current.Revision, current.ChunkCount); err != nil {
		s.log.Warn("failed to delete previous episode revision", "episode_id", current.ID, "revision", current.Revision, "error", err)
	}
	return &next, nil
}

// DeleteEpisode removes an episode and its vectors.
func (s *Service) DeleteEpisode(ctx context.Context, expertID, episodeID string) error {
	e, err := s.managed(expertID)
	if err != nil {
		return err
	}
	rec, err := s.episode(ctx, expertID, episodeID)
	if err != nil {
		return err
	}

	if err := s.repo.DeleteEpisode(ctx, expertID, episodeID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrEpisodeNotFound
		}
		return fmt.Errorf("delete episode: %w", err)
	}
	if err := s.ingestor.DeleteEpisode(ctx, e.Namespace, episodeID, rec.Revision, rec.ChunkCount); err != nil {
		s.log.Warn("failed to delete episode vectors", "episode_id", episodeID, "error", err)
	}
	return nil
}

func (s *Service) managed(id string) (expert.Expert, error) {
	e, err := s.Get(id)
	if err != nil {
		return expert.Expert{}, err
	}
	if e.BuiltIn {
		return expert.Expert{}, ErrBuiltIn
	}
	return e, nil
}

func (s *Service) episode(ctx context.Context, expertID, episodeID string) (*storage.EpisodeRecord, error) {
	rec, err := s.repo.GetEpisode(ctx, expertID, episodeID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrEpisodeNotFound
		}
		return nil, fmt.Errorf("load episode: %w", err)
	}
	return rec, nil
}

func (s *Service) cleanupNamespace(namespace string) {
	if err := s.ingestor.DeleteNamespace(context.Background(), namespace); err != nil && !errors.Is(err, ingest.ErrUnavailable) {
		s.log.Warn("failed to clean up namespace", "namespace", namespace, "error", err)
	}
}

func toIngest(rec *storage.EpisodeRecord) ingest.Episode {
	return ingest.Episode{ID: rec.ID, Revision: rec.Revision, Title: rec.Title, Content: rec.Content}
}

func validateEpisode(ep NewEpisode) error {
	if err := checkLength("title", strings.TrimSpace(ep.Title), maxTitleLength); err != nil {
		return err
	}
	if strings.TrimSpace(ep.Content) == "" {
		return &ValidationError{Message: "content is required"}
	}
	return nil
}

func checkLength(field, value string, max int) error {
	n := utf8.RuneCountInString(value)
	if n == 0 {
		return &ValidationError{Message: field + " is required"}
	}
	if n > max {
		return &ValidationError{Message: fmt.Sprintf("%s must be at most %d characters", field, max)}
	}
	return nil
}
