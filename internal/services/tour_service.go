package services

import (
	"errors"

	"github.com/google/uuid"
	"github.com/tourforge/backend/internal/models"
	"gorm.io/gorm"
)

type TourService struct {
	db *gorm.DB
}

func NewTourService(db *gorm.DB) *TourService {
	return &TourService{db: db}
}

// List returns a project's tours
func (s *TourService) List(projectID uuid.UUID) ([]models.Tour, error) {
	var tours []models.Tour
	if err := s.db.Where("project_id = ?", projectID).Order("created_at").Find(&tours).Error; err != nil {
		return nil, err
	}
	return tours, nil
}

// GetByID retrieves a tour scoped to its project
func (s *TourService) GetByID(projectID, tourID uuid.UUID) (*models.Tour, error) {
	var tour models.Tour
	if err := s.db.Where("project_id = ? AND id = ?", projectID, tourID).First(&tour).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &tour, nil
}

// Create adds a tour to a project
func (s *TourService) Create(projectID uuid.UUID, title string, content models.JSONMap) (*models.Tour, error) {
	if content == nil {
		content = models.JSONMap{}
	}
	tour := &models.Tour{
		ProjectID: projectID,
		Title:     title,
		Content:   content,
	}
	if err := s.db.Create(tour).Error; err != nil {
		return nil, err
	}
	return tour, nil
}

// Update replaces a tour's title and content document
func (s *TourService) Update(projectID, tourID uuid.UUID, title string, content models.JSONMap) (*models.Tour, error) {
	tour, err := s.GetByID(projectID, tourID)
	if err != nil {
		return nil, err
	}
	updates := map[string]interface{}{
		"title":   title,
		"content": content,
	}
	if err := s.db.Model(tour).Updates(updates).Error; err != nil {
		return nil, err
	}
	tour.Title = title
	tour.Content = content
	return tour, nil
}

// Delete removes a tour
func (s *TourService) Delete(projectID, tourID uuid.UUID) error {
	tour, err := s.GetByID(projectID, tourID)
	if err != nil {
		return err
	}
	return s.db.Delete(tour).Error
}
