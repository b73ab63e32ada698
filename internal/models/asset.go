package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Asset represents an uploaded binary (image or audio) owned by a project.
// Hash is recomputed from the payload on every upload/update and is read-only
// to clients; bundle paths are derived from it, so a stale hash would corrupt
// the publish pipeline.
type Asset struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ProjectID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_asset_project_name" json:"project_id"`
	Name      string    `gorm:"size:100;not null;uniqueIndex:idx_asset_project_name" json:"name"`
	Hash      string    `gorm:"size:64" json:"hash"`
	Key       string    `gorm:"size:512;uniqueIndex" json:"-"` // storage path
	Filename  string    `gorm:"size:255" json:"filename"`
	SizeBytes int64     `json:"size_bytes"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (a *Asset) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
