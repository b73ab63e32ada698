package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/tourforge/backend/internal/config"
	"github.com/tourforge/backend/internal/models"
	"github.com/tourforge/backend/internal/services"
	"github.com/tourforge/backend/pkg/urlsign"
	"github.com/tourforge/backend/pkg/validation"
)

type AssetHandler struct {
	assetService   *services.AssetService
	projectService *services.ProjectService
	storageService *services.StorageService
	signer         *urlsign.Signer
	cfg            *config.Config
}

func NewAssetHandler(assetService *services.AssetService, projectService *services.ProjectService, storageService *services.StorageService, signer *urlsign.Signer, cfg *config.Config) *AssetHandler {
	return &AssetHandler{
		assetService:   assetService,
		projectService: projectService,
		storageService: storageService,
		signer:         signer,
		cfg:            cfg,
	}
}

func (h *AssetHandler) assetResponse(a *models.Asset) gin.H {
	return gin.H{
		"id":           a.ID,
		"name":         a.Name,
		"filename":     a.Filename,
		"hash":         a.Hash,
		"size_bytes":   a.SizeBytes,
		"created_at":   a.CreatedAt,
		"updated_at":   a.UpdatedAt,
		"download_url": h.assetService.SignedDownloadURL(a, time.Now()),
	}
}

// List returns a project's assets, filtered by ?type=image|audio
func (h *AssetHandler) List(c *gin.Context) {
	projectID, ok := projectParam(c)
	if !ok {
		return
	}
	if _, ok := requireMember(c, h.projectService, projectID); !ok {
		return
	}

	assets, err := h.assetService.List(projectID, c.Query("type"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list assets"})
		return
	}

	out := make([]gin.H, 0, len(assets))
	for i := range assets {
		out = append(out, h.assetResponse(&assets[i]))
	}
	c.JSON(http.StatusOK, gin.H{"assets": out})
}

// Upload stores a new asset from a multipart form (fields: name, file)
func (h *AssetHandler) Upload(c *gin.Context) {
	projectID, ok := projectParam(c)
	if !ok {
		return
	}
	if _, ok := requireMember(c, h.projectService, projectID); !ok {
		return
	}

	name := c.PostForm("name")
	if !validation.ValidateAssetName(name) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid asset name"})
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File is required"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read file"})
		return
	}
	defer file.Close()

	asset, err := h.assetService.Create(projectID, name, fileHeader.Filename, file)
	if err != nil {
		if errors.Is(err, services.ErrNameTaken) {
			c.JSON(http.StatusConflict, gin.H{"error": "An asset with this name already exists"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store asset"})
		return
	}

	c.JSON(http.StatusCreated, h.assetResponse(asset))
}

// Get returns a single asset record with a fresh signed download URL
func (h *AssetHandler) Get(c *gin.Context) {
	projectID, ok := projectParam(c)
	if !ok {
		return
	}
	if _, ok := requireMember(c, h.projectService, projectID); !ok {
		return
	}

	assetID, err := uuid.Parse(c.Param("asset_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid asset ID"})
		return
	}

	asset, err := h.assetService.GetByID(projectID, assetID)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Asset not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load asset"})
		return
	}

	c.JSON(http.StatusOK, h.assetResponse(asset))
}

// Update replaces an asset's payload, and optionally renames it
func (h *AssetHandler) Update(c *gin.Context) {
	projectID, ok := projectParam(c)
	if !ok {
		return
	}
	if _, ok := requireMember(c, h.projectService, projectID); !ok {
		return
	}

	assetID, err := uuid.Parse(c.Param("asset_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid asset ID"})
		return
	}

	name := c.PostForm("name")
	if name != "" && !validation.ValidateAssetName(name) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid asset name"})
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File is required"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read file"})
		return
	}
	defer file.Close()

	asset, err := h.assetService.Update(projectID, assetID, name, fileHeader.Filename, file)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Asset not found"})
		case errors.Is(err, services.ErrNameTaken):
			c.JSON(http.StatusConflict, gin.H{"error": "An asset with this name already exists"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update asset"})
		}
		return
	}

	c.JSON(http.StatusOK, h.assetResponse(asset))
}

// Delete removes an asset
func (h *AssetHandler) Delete(c *gin.Context) {
	projectID, ok := projectParam(c)
	if !ok {
		return
	}
	if _, ok := requireMember(c, h.projectService, projectID); !ok {
		return
	}

	assetID, err := uuid.Parse(c.Param("asset_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid asset ID"})
		return
	}

	if err := h.assetService.Delete(projectID, assetID); err != nil {
		if errors.Is(err, services.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Asset not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete asset"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Asset deleted"})
}

// Download streams an asset payload. No session is required: the request URL
// itself must carry a valid, unexpired signature. Every verification failure
// looks the same to the caller.
func (h *AssetHandler) Download(c *gin.Context) {
	fullURL := h.cfg.APIUrl + c.Request.URL.RequestURI()
	if !h.signer.Verify(fullURL, time.Now()) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Invalid or expired download link"})
		return
	}

	projectID, err := uuid.Parse(c.Param("project_id"))
	if err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "Invalid or expired download link"})
		return
	}
	assetID, err := uuid.Parse(c.Param("asset_id"))
	if err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "Invalid or expired download link"})
		return
	}

	asset, err := h.assetService.GetByID(projectID, assetID)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Asset not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load asset"})
		return
	}

	file, info, err := h.storageService.OpenAsset(asset.Key)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Asset payload not found"})
		return
	}
	defer file.Close()

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", asset.Filename))
	c.DataFromReader(http.StatusOK, info.Size(), services.ContentType(asset.Filename), file, nil)
}
