package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/tourforge/backend/internal/services"
)

// BundleHandler serves the contents of published bundles to tour viewers.
// These routes are public: publishing a project is what makes its content
// world-readable.
type BundleHandler struct {
	bundleService *services.BundleService
}

func NewBundleHandler(bundleService *services.BundleService) *BundleHandler {
	return &BundleHandler{bundleService: bundleService}
}

// GetFile streams a single file out of a project's published bundle
func (h *BundleHandler) GetFile(c *gin.Context) {
	projectID, err := uuid.Parse(c.Param("project_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid project ID"})
		return
	}

	path := strings.TrimPrefix(c.Param("path"), "/")
	if path == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return
	}

	reader, size, err := h.bundleService.OpenFile(projectID, path)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read bundle"})
		return
	}
	defer reader.Close()

	c.DataFromReader(http.StatusOK, size, bundleContentType(path), reader, nil)
}

// GetArchive sends the whole published bundle as a zip download
func (h *BundleHandler) GetArchive(c *gin.Context) {
	projectID, err := uuid.Parse(c.Param("project_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid project ID"})
		return
	}

	absPath, err := h.bundleService.ArchivePath(projectID)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read bundle"})
		return
	}

	c.FileAttachment(absPath, fmt.Sprintf("%s.zip", projectID))
}

// bundleContentType picks a content type for a bundle entry. Tour documents
// and the index are JSON; asset entries fall back to extension sniffing.
func bundleContentType(path string) string {
	if strings.HasSuffix(path, ".json") {
		return "application/json"
	}
	return services.ContentType(path)
}
