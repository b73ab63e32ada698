package services

import (
	"errors"
	"log"

	"github.com/google/uuid"
	"github.com/tourforge/backend/internal/models"
	"gorm.io/gorm"
)

type ProjectService struct {
	db      *gorm.DB
	storage *StorageService
}

func NewProjectService(db *gorm.DB, storage *StorageService) *ProjectService {
	return &ProjectService{db: db, storage: storage}
}

// Create creates a project and makes the creator an admin member
func (s *ProjectService) Create(name string, ownerID uuid.UUID) (*models.Project, error) {
	project := &models.Project{Name: name}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(project).Error; err != nil {
			return err
		}
		member := &models.ProjectMember{
			UserID:    ownerID,
			ProjectID: project.ID,
			Admin:     true,
		}
		return tx.Create(member).Error
	})
	if err != nil {
		return nil, err
	}
	return project, nil
}

// GetByID retrieves a project
func (s *ProjectService) GetByID(projectID uuid.UUID) (*models.Project, error) {
	var project models.Project
	if err := s.db.First(&project, "id = ?", projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &project, nil
}

// ListForUser returns the projects the user is a member of
func (s *ProjectService) ListForUser(userID uuid.UUID) ([]models.Project, error) {
	var projects []models.Project
	err := s.db.
		Joins("JOIN project_members ON project_members.project_id = projects.id").
		Where("project_members.user_id = ?", userID).
		Order("projects.created_at").
		Find(&projects).Error
	if err != nil {
		return nil, err
	}
	return projects, nil
}

// UpdateName renames a project
func (s *ProjectService) UpdateName(projectID uuid.UUID, name string) (*models.Project, error) {
	project, err := s.GetByID(projectID)
	if err != nil {
		return nil, err
	}
	if err := s.db.Model(project).Update("name", name).Error; err != nil {
		return nil, err
	}
	return project, nil
}

// Delete removes a project and everything it owns: members, tours, asset
// records and the published bundle reference in one transaction, then the
// backing bytes best-effort. A failed byte deletion is logged, never
// surfaced; the records are already gone.
func (s *ProjectService) Delete(projectID uuid.UUID) error {
	project, err := s.GetByID(projectID)
	if err != nil {
		return err
	}

	var assets []models.Asset
	if err := s.db.Where("project_id = ?", projectID).Find(&assets).Error; err != nil {
		return err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("project_id = ?", projectID).Delete(&models.ProjectMember{}).Error; err != nil {
			return err
		}
		if err := tx.Where("project_id = ?", projectID).Delete(&models.Tour{}).Error; err != nil {
			return err
		}
		if err := tx.Where("project_id = ?", projectID).Delete(&models.Asset{}).Error; err != nil {
			return err
		}
		return tx.Delete(project).Error
	})
	if err != nil {
		return err
	}

	for _, asset := range assets {
		if err := s.storage.DeleteAsset(asset.Key); err != nil {
			log.Printf("WARN: failed to delete payload %s: %v", asset.Key, err)
		}
	}
	if err := s.storage.RemoveBundle(projectID); err != nil {
		log.Printf("WARN: failed to delete bundle for project %s: %v", projectID, err)
	}

	return nil
}

// IsMember reports whether the user belongs to the project
func (s *ProjectService) IsMember(userID, projectID uuid.UUID) bool {
	var count int64
	s.db.Model(&models.ProjectMember{}).
		Where("user_id = ? AND project_id = ?", userID, projectID).
		Count(&count)
	return count > 0
}

// IsAdmin reports whether the user is an admin member of the project
func (s *ProjectService) IsAdmin(userID, projectID uuid.UUID) bool {
	var count int64
	s.db.Model(&models.ProjectMember{}).
		Where("user_id = ? AND project_id = ? AND admin = ?", userID, projectID, true).
		Count(&count)
	return count > 0
}

// ListMembers returns a project's members with their users preloaded
func (s *ProjectService) ListMembers(projectID uuid.UUID) ([]models.ProjectMember, error) {
	var members []models.ProjectMember
	err := s.db.Preload("User").
		Where("project_id = ?", projectID).
		Order("created_at").
		Find(&members).Error
	if err != nil {
		return nil, err
	}
	return members, nil
}

// AddMember adds a user to a project; duplicates fail with ErrAlreadyMember
func (s *ProjectService) AddMember(projectID, userID uuid.UUID, admin bool) (*models.ProjectMember, error) {
	var existing models.ProjectMember
	err := s.db.Where("user_id = ? AND project_id = ?", userID, projectID).First(&existing).Error
	if err == nil {
		return nil, ErrAlreadyMember
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	member := &models.ProjectMember{
		UserID:    userID,
		ProjectID: projectID,
		Admin:     admin,
	}
	if err := s.db.Create(member).Error; err != nil {
		return nil, err
	}
	if err := s.db.Preload("User").First(member, "id = ?", member.ID).Error; err != nil {
		return nil, err
	}
	return member, nil
}

// GetMember retrieves a membership scoped to its project
func (s *ProjectService) GetMember(projectID, memberID uuid.UUID) (*models.ProjectMember, error) {
	var member models.ProjectMember
	err := s.db.Preload("User").
		Where("project_id = ? AND id = ?", projectID, memberID).
		First(&member).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &member, nil
}

// UpdateMember changes a member's admin flag
func (s *ProjectService) UpdateMember(projectID, memberID uuid.UUID, admin bool) (*models.ProjectMember, error) {
	member, err := s.GetMember(projectID, memberID)
	if err != nil {
		return nil, err
	}
	if err := s.db.Model(member).Update("admin", admin).Error; err != nil {
		return nil, err
	}
	return member, nil
}

// RemoveMember removes a membership
func (s *ProjectService) RemoveMember(projectID, memberID uuid.UUID) error {
	member, err := s.GetMember(projectID, memberID)
	if err != nil {
		return err
	}
	return s.db.Delete(member).Error
}
