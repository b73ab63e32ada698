package services

import (
	"errors"
	"fmt"
	"io"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tourforge/backend/internal/config"
	"github.com/tourforge/backend/internal/models"
	"github.com/tourforge/backend/pkg/urlsign"
	"gorm.io/gorm"
)

type AssetService struct {
	db      *gorm.DB
	cfg     *config.Config
	storage *StorageService
	signer  *urlsign.Signer
}

func NewAssetService(db *gorm.DB, cfg *config.Config, storage *StorageService, signer *urlsign.Signer) *AssetService {
	return &AssetService{db: db, cfg: cfg, storage: storage, signer: signer}
}

var extensionRegex = regexp.MustCompile(`^.*(\.[a-zA-Z0-9-]+)$`)

// ResolveExtension derives a file suffix from the trailing ".ext" of the
// original filename, empty string if there is none.
func ResolveExtension(filename string) string {
	if m := extensionRegex.FindStringSubmatch(filename); m != nil {
		return m[1]
	}
	return ""
}

// Create stores a new asset: the payload is written first (hash computed
// during the same copy; a read failure aborts the upload), then the record.
// A duplicate name within the project fails with ErrNameTaken.
func (s *AssetService) Create(projectID uuid.UUID, name, filename string, r io.Reader) (*models.Asset, error) {
	var existing models.Asset
	if err := s.db.Where("project_id = ? AND name = ?", projectID, name).First(&existing).Error; err == nil {
		return nil, ErrNameTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	asset := &models.Asset{
		ID:        uuid.New(),
		ProjectID: projectID,
		Name:      name,
		Filename:  filename,
	}
	asset.Key = fmt.Sprintf("%s/%s%s", projectID, asset.ID, ResolveExtension(filename))

	size, hash, err := s.storage.SaveAsset(asset.Key, r)
	if err != nil {
		return nil, fmt.Errorf("failed to store asset payload: %w", err)
	}
	asset.SizeBytes = size
	asset.Hash = hash

	if err := s.db.Create(asset).Error; err != nil {
		// roll back the stored bytes; the record never existed
		_ = s.storage.DeleteAsset(asset.Key)
		if isUniqueViolation(err) {
			return nil, ErrNameTaken
		}
		return nil, err
	}

	return asset, nil
}

// Update replaces an asset's payload (and optionally its name). The hash is
// recomputed from the new bytes. Every update writes to a fresh storage key:
// the record flips to the new key atomically, the previous payload is deleted
// only after the record update commits, and a failed record update deletes the
// fresh payload and leaves the old key untouched. No path through here can
// orphan bytes or leave a record whose hash does not match its payload.
func (s *AssetService) Update(projectID, assetID uuid.UUID, name, filename string, r io.Reader) (*models.Asset, error) {
	asset, err := s.GetByID(projectID, assetID)
	if err != nil {
		return nil, err
	}

	if name != "" && name != asset.Name {
		var existing models.Asset
		err := s.db.Where("project_id = ? AND name = ? AND id <> ?", projectID, name, assetID).First(&existing).Error
		if err == nil {
			return nil, ErrNameTaken
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		asset.Name = name
	}

	oldKey := asset.Key
	newKey := fmt.Sprintf("%s/%s%s", projectID, uuid.New(), ResolveExtension(filename))

	size, hash, err := s.storage.SaveAsset(newKey, r)
	if err != nil {
		return nil, fmt.Errorf("failed to store asset payload: %w", err)
	}

	updates := map[string]interface{}{
		"name":       asset.Name,
		"filename":   filename,
		"key":        newKey,
		"hash":       hash,
		"size_bytes": size,
	}
	if err := s.db.Model(asset).Updates(updates).Error; err != nil {
		// the record still points at oldKey; drop the bytes nothing references
		_ = s.storage.DeleteAsset(newKey)
		return nil, err
	}
	asset.Filename = filename
	asset.Key = newKey
	asset.Hash = hash
	asset.SizeBytes = size

	if err := s.storage.DeleteAsset(oldKey); err != nil {
		log.Printf("WARN: failed to delete previous payload %s: %v", oldKey, err)
	}

	return asset, nil
}

// GetByID retrieves an asset scoped to its project
func (s *AssetService) GetByID(projectID, assetID uuid.UUID) (*models.Asset, error) {
	var asset models.Asset
	if err := s.db.Where("project_id = ? AND id = ?", projectID, assetID).First(&asset).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &asset, nil
}

// List returns a project's assets, optionally filtered by kind
// ("image" or "audio", matched on the original filename's extension).
func (s *AssetService) List(projectID uuid.UUID, kind string) ([]models.Asset, error) {
	query := s.db.Where("project_id = ?", projectID).Order("name")

	switch kind {
	case "image":
		query = query.Where("filename LIKE ? OR filename LIKE ? OR filename LIKE ?", "%.png", "%.jpg", "%.jpeg")
	case "audio":
		query = query.Where("filename LIKE ?", "%.mp3")
	}

	var assets []models.Asset
	if err := query.Find(&assets).Error; err != nil {
		return nil, err
	}
	return assets, nil
}

// Delete removes the record and then the backing bytes. Byte deletion is
// best-effort: the record deletion stands even when the file is already gone.
func (s *AssetService) Delete(projectID, assetID uuid.UUID) error {
	asset, err := s.GetByID(projectID, assetID)
	if err != nil {
		return err
	}

	if err := s.db.Delete(asset).Error; err != nil {
		return err
	}

	if err := s.storage.DeleteAsset(asset.Key); err != nil {
		log.Printf("WARN: failed to delete payload %s: %v", asset.Key, err)
	}
	return nil
}

// SignedDownloadURL issues the time-limited URL that authorizes an
// unauthenticated download of the asset's live payload.
func (s *AssetService) SignedDownloadURL(asset *models.Asset, now time.Time) string {
	rawURL := fmt.Sprintf("%s/api/v1/projects/%s/assets/%s/download", s.cfg.APIUrl, asset.ProjectID, asset.ID)
	return s.signer.Sign(rawURL, now, s.cfg.DownloadURLLease)
}

// ContentType infers a download content type from a filename extension
func ContentType(filename string) string {
	switch strings.ToLower(ResolveExtension(filename)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".mp3":
		return "audio/mpeg"
	default:
		return "application/octet-stream"
	}
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique")
}
