package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Project is the tenant boundary: tours, assets and the published bundle
// all hang off exactly one project.
type Project struct {
	ID   uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name string    `gorm:"size:200;not null" json:"name"`

	// PublishedBundle is the storage key of the current bundle archive,
	// nil while the project is unpublished.
	PublishedBundle *string    `gorm:"size:512" json:"published_bundle,omitempty"`
	PublishedAt     *time.Time `json:"published_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p *Project) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

type ProjectMember struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_member_user_project" json:"user_id"`
	ProjectID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_member_user_project" json:"project_id"`
	Admin     bool      `gorm:"default:false" json:"admin"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	User User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (m *ProjectMember) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
