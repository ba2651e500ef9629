package storage

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/logger"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("record not found")

// ExpertRepo persists experts and their episodes.
type ExpertRepo interface {
	ListExperts(ctx context.Context) ([]ExpertRecord, error)
	CreateExpert(ctx context.Context, rec *ExpertRecord, episodes []*EpisodeRecord) error
	DeleteExpert(ctx context.Context, id string) error

	ListEpisodes(ctx context.Context, expertID string) ([]EpisodeRecord, error)
	GetEpisode(ctx context.Context, expertID, episodeID string) (*EpisodeRecord, error)
	CreateEpisode(ctx context.Context, ep *EpisodeRecord) error
	UpdateEpisode(ctx context.Context, ep *EpisodeRecord) error
	DeleteEpisode(ctx context.Context, expertID, episodeID string) error
}

type expertRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewExpertRepo(db *gorm.DB, baseLog *logger.Logger) ExpertRepo {
	return &expertRepo{db: db, log: baseLog.With("repo", "ExpertRepo")}
}

func (r *expertRepo) ListExperts(ctx context.Context) ([]ExpertRecord, error) {
	var rows []ExpertRecord
	if err := r.db.WithContext(ctx).Order("created_at asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *expertRepo) CreateExpert(ctx context.Context, rec *ExpertRecord, episodes []*EpisodeRecord) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(rec).Error; err != nil {
			return err
		}
		for _, ep := range episodes {
			ep.ExpertID = rec.ID
			if err := tx.Create(ep).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *expertRepo) DeleteExpert(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("expert_id = ?", id).Delete(&EpisodeRecord{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&ExpertRecord{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (r *expertRepo) ListEpisodes(ctx context.Context, expertID string) ([]EpisodeRecord, error) {
	var rows []EpisodeRecord
	err := r.db.WithContext(ctx).
		Where("expert_id = ?", expertID).
		Order("created_at asc").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *expertRepo) GetEpisode(ctx context.Context, expertID, episodeID string) (*EpisodeRecord, error) {
	var row EpisodeRecord
	err := r.db.WithContext(ctx).
		Where("expert_id = ? AND id = ?", expertID, episodeID).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &row, nil
}

func (r *expertRepo) CreateEpisode(ctx context.Context, ep *EpisodeRecord) error {
	return r.db.WithContext(ctx).Create(ep).Error
}

func (r *expertRepo) UpdateEpisode(ctx context.Context, ep *EpisodeRecord) error {
	res := r.db.WithContext(ctx).
		Model(&EpisodeRecord{}).
		Where("expert_id = ? AND id = ?", ep.ExpertID, ep.ID).
		Updates(map[string]any{
			"title":       ep.Title,
			"content":     ep.Content,
			"chunk_count": ep.ChunkCount,
			"revision":    ep.Revision,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *expertRepo) DeleteEpisode(ctx context.Context, expertID, episodeID string) error {
	res := r.db.WithContext(ctx).
		Where("expert_id = ? AND id = ?", expertID, episodeID).
		Delete(&EpisodeRecord{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
