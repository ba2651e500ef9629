package storage

import (
	"time"

	"github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/model/expert"
)

// ExpertRecord is an expert created through the management API.
type ExpertRecord struct {
	ID           string `gorm:"primaryKey;size:64"`
	Name         string `gorm:"size:120;not null"`
	Description  string
	Namespace    string `gorm:"size:128;not null"`
	SystemPrompt string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (ExpertRecord) TableName() string { return "experts" }

// ToExpert converts the row into the catalog type.
func (r ExpertRecord) ToExpert() expert.Expert {
	return expert.Expert{
		ID:           r.ID,
		Name:         r.Name,
		Description:  r.Description,
		Namespace:    r.Namespace,
		SystemPrompt: r.SystemPrompt,
	}
}

// EpisodeRecord is a transcript attached to an expert.
type EpisodeRecord struct {
	ID         string    `gorm:"primaryKey;size:64" json:"id"`
	ExpertID   string    `gorm:"index;size:64;not null" json:"expertId"`
	Title      string    `gorm:"size:200;not null" json:"title"`
	Content    string    `gorm:"not null" json:"content"`
	ChunkCount int       `json:"chunkCount"`
	Revision   int       `gorm:"not null;default:0" json:"revision"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func (EpisodeRecord) TableName() string { return "episodes" }
