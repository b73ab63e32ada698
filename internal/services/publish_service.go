package services

import (
	"archive/zip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/tourforge/backend/internal/config"
	"github.com/tourforge/backend/internal/models"
	"gorm.io/gorm"
)

// PublishService builds and swaps a project's published bundle: one
// `<hash>.json` per tour with asset references rewritten to dedup paths, an
// `index.json` summary, and each referenced asset's bytes exactly once under
// `assets/<hash><ext>`.
type PublishService struct {
	db      *gorm.DB
	cfg     *config.Config
	storage *StorageService
	redis   *redis.Client
	s3      *S3Service // nil when no bundle mirror is configured
}

func NewPublishService(db *gorm.DB, cfg *config.Config, storage *StorageService, redisClient *redis.Client, s3 *S3Service) *PublishService {
	return &PublishService{db: db, cfg: cfg, storage: storage, redis: redisClient, s3: s3}
}

// Publish rebuilds the project's bundle from its current tours and assets and
// atomically replaces the previous one. Publishes for the same project are
// serialized by an advisory lock in redis; any failure before the final swap
// leaves the previously published bundle untouched.
func (s *PublishService) Publish(ctx context.Context, projectID uuid.UUID) error {
	unlock, err := s.acquireLock(ctx, projectID)
	if err != nil {
		return err
	}
	defer unlock()

	var project models.Project
	if err := s.db.First(&project, "id = ?", projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}

	var tours []models.Tour
	if err := s.db.Where("project_id = ?", projectID).Order("created_at").Find(&tours).Error; err != nil {
		return err
	}

	tmp, err := s.storage.CreateBundleTemp(projectID)
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	swapped := false
	defer func() {
		if !swapped {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := s.writeBundle(tmp, projectID, tours); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	key, err := s.storage.SwapBundle(tmpPath, projectID)
	if err != nil {
		return err
	}
	swapped = true

	now := time.Now().UTC()
	updates := map[string]interface{}{
		"published_bundle": key,
		"published_at":     now,
	}
	if err := s.db.Model(&project).Updates(updates).Error; err != nil {
		return err
	}

	if s.s3 != nil {
		if err := s.mirrorBundle(ctx, key); err != nil {
			log.Printf("WARN: failed to mirror bundle %s: %v", key, err)
		}
	}

	log.Printf("Published project %s (%d tours)", projectID, len(tours))
	return nil
}

// writeBundle emits every archive entry and finalizes the zip before
// returning; the caller never swaps in an archive that was not fully written.
func (s *PublishService) writeBundle(w io.Writer, projectID uuid.UUID, tours []models.Tour) error {
	walker := newContentWalker(s.resolveAsset(projectID))
	zw := zip.NewWriter(w)

	rewritten := make([]models.JSONMap, 0, len(tours))
	for _, tour := range tours {
		content := make(models.JSONMap, len(tour.Content)+1)
		for k, v := range tour.Content {
			content[k] = v
		}
		content["title"] = tour.Title

		doc := walker.Rewrite(content)
		rewritten = append(rewritten, doc)

		data, err := json.Marshal(doc)
		if err != nil {
			return err
		}
		sum := sha256.Sum256(data)
		entry, err := zw.Create(hex.EncodeToString(sum[:]) + ".json")
		if err != nil {
			return err
		}
		if _, err := entry.Write(data); err != nil {
			return err
		}
	}

	indexData, err := json.Marshal(buildIndex(rewritten))
	if err != nil {
		return err
	}
	entry, err := zw.Create("index.json")
	if err != nil {
		return err
	}
	if _, err := entry.Write(indexData); err != nil {
		return err
	}

	paths := make([]string, 0, len(walker.visited))
	for path := range walker.visited {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	for _, path := range paths {
		asset := walker.visited[path]
		f, _, err := s.storage.OpenAsset(asset.Key)
		if err != nil {
			return fmt.Errorf("failed to open asset %s: %w", asset.ID, err)
		}
		entry, err := zw.Create(path)
		if err != nil {
			f.Close()
			return err
		}
		if _, err := io.Copy(entry, f); err != nil {
			f.Close()
			return err
		}
		f.Close()
	}

	return zw.Close()
}

// buildIndex summarizes the rewritten tours: title, first gallery entry as a
// thumbnail (null if none), the content's type field, and the count of route
// entries whose type is "stop" (zero when there is no route).
func buildIndex(tours []models.JSONMap) map[string]interface{} {
	entries := make([]map[string]interface{}, 0, len(tours))
	for _, tour := range tours {
		entry := map[string]interface{}{
			"title":     tour["title"],
			"thumbnail": nil,
			"type":      tour["type"],
			"stops":     countStops(tour["route"]),
		}
		if gallery, ok := tour["gallery"].([]interface{}); ok && len(gallery) > 0 {
			entry["thumbnail"] = gallery[0]
		}
		entries = append(entries, entry)
	}
	return map[string]interface{}{"tours": entries}
}

func countStops(route interface{}) int {
	entries, ok := route.([]interface{})
	if !ok {
		return 0
	}
	stops := 0
	for _, e := range entries {
		if m, ok := e.(map[string]interface{}); ok && m["type"] == "stop" {
			stops++
		}
	}
	return stops
}

// resolveAsset scopes reference resolution to the published project, so a
// tour can never pull another tenant's bytes into its bundle.
func (s *PublishService) resolveAsset(projectID uuid.UUID) assetResolver {
	return func(id string) *models.Asset {
		assetID, err := uuid.Parse(id)
		if err != nil {
			return nil
		}
		var asset models.Asset
		if err := s.db.Where("project_id = ? AND id = ?", projectID, assetID).First(&asset).Error; err != nil {
			return nil
		}
		return &asset
	}
}

// Unpublish deletes the current bundle and clears the project's reference.
// Unpublishing a project with no published bundle is a no-op.
func (s *PublishService) Unpublish(ctx context.Context, projectID uuid.UUID) error {
	var project models.Project
	if err := s.db.First(&project, "id = ?", projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}

	if project.PublishedBundle == nil {
		return nil
	}

	key := *project.PublishedBundle
	updates := map[string]interface{}{
		"published_bundle": nil,
		"published_at":     nil,
	}
	if err := s.db.Model(&project).Updates(updates).Error; err != nil {
		return err
	}

	if err := s.storage.RemoveBundle(projectID); err != nil {
		log.Printf("WARN: failed to delete bundle for project %s: %v", projectID, err)
	}
	if s.s3 != nil {
		if err := s.s3.DeleteBundle(ctx, key); err != nil {
			log.Printf("WARN: failed to delete mirrored bundle %s: %v", key, err)
		}
	}

	return nil
}

// acquireLock serializes publishes per project. A concurrent publish for the
// same project is rejected rather than queued.
func (s *PublishService) acquireLock(ctx context.Context, projectID uuid.UUID) (func(), error) {
	key := fmt.Sprintf("publish_lock:%s", projectID)
	ok, err := s.redis.SetNX(ctx, key, 1, s.cfg.PublishLockTTL).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire publish lock: %w", err)
	}
	if !ok {
		return nil, ErrPublishInProgress
	}
	return func() {
		if err := s.redis.Del(context.Background(), key).Err(); err != nil {
			log.Printf("WARN: failed to release publish lock %s: %v", key, err)
		}
	}, nil
}

func (s *PublishService) mirrorBundle(ctx context.Context, key string) error {
	f, err := os.Open(s.storage.BundleAbsPath(key))
	if err != nil {
		return err
	}
	defer f.Close()
	return s.s3.UploadBundle(ctx, key, f)
}
