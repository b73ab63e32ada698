package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/tourforge/backend/internal/models"
	"github.com/tourforge/backend/internal/services"
)

type TourHandler struct {
	tourService    *services.TourService
	projectService *services.ProjectService
}

func NewTourHandler(tourService *services.TourService, projectService *services.ProjectService) *TourHandler {
	return &TourHandler{tourService: tourService, projectService: projectService}
}

func (h *TourHandler) project(c *gin.Context) (uuid.UUID, bool) {
	projectID, ok := projectParam(c)
	if !ok {
		return uuid.Nil, false
	}
	if _, ok := requireMember(c, h.projectService, projectID); !ok {
		return uuid.Nil, false
	}
	return projectID, true
}

// List returns a project's tours
func (h *TourHandler) List(c *gin.Context) {
	projectID, ok := h.project(c)
	if !ok {
		return
	}

	tours, err := h.tourService.List(projectID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list tours"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"tours": tours})
}

// Create adds a tour to a project
func (h *TourHandler) Create(c *gin.Context) {
	projectID, ok := h.project(c)
	if !ok {
		return
	}

	var req struct {
		Title   string         `json:"title" binding:"required,min=1,max=200"`
		Content models.JSONMap `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tour, err := h.tourService.Create(projectID, req.Title, req.Content)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create tour"})
		return
	}

	c.JSON(http.StatusCreated, tour)
}

// Get returns a single tour
func (h *TourHandler) Get(c *gin.Context) {
	projectID, ok := h.project(c)
	if !ok {
		return
	}

	tourID, err := uuid.Parse(c.Param("tour_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid tour ID"})
		return
	}

	tour, err := h.tourService.GetByID(projectID, tourID)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Tour not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load tour"})
		return
	}

	c.JSON(http.StatusOK, tour)
}

// Update replaces a tour's title and content
func (h *TourHandler) Update(c *gin.Context) {
	projectID, ok := h.project(c)
	if !ok {
		return
	}

	tourID, err := uuid.Parse(c.Param("tour_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid tour ID"})
		return
	}

	var req struct {
		Title   string         `json:"title" binding:"required,min=1,max=200"`
		Content models.JSONMap `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tour, err := h.tourService.Update(projectID, tourID, req.Title, req.Content)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Tour not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update tour"})
		return
	}

	c.JSON(http.StatusOK, tour)
}

// Delete removes a tour
func (h *TourHandler) Delete(c *gin.Context) {
	projectID, ok := h.project(c)
	if !ok {
		return
	}

	tourID, err := uuid.Parse(c.Param("tour_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid tour ID"})
		return
	}

	if err := h.tourService.Delete(projectID, tourID); err != nil {
		if errors.Is(err, services.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Tour not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete tour"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Tour deleted"})
}
