package services

import (
	"archive/zip"
	"errors"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/tourforge/backend/internal/models"
	"gorm.io/gorm"
)

// BundleService reads published bundle archives. It never touches the live
// tour or asset tables beyond looking up the project's bundle reference, so
// serving keeps working for content that has since been edited or deleted.
type BundleService struct {
	db      *gorm.DB
	storage *StorageService
}

func NewBundleService(db *gorm.DB, storage *StorageService) *BundleService {
	return &BundleService{db: db, storage: storage}
}

// bundleEntry streams a single archive entry and releases the archive handle
// on close.
type bundleEntry struct {
	rc io.ReadCloser
	zr *zip.ReadCloser
}

func (e *bundleEntry) Read(p []byte) (int, error) { return e.rc.Read(p) }

func (e *bundleEntry) Close() error {
	err := e.rc.Close()
	if zerr := e.zr.Close(); err == nil {
		err = zerr
	}
	return err
}

// OpenFile opens the archive entry at path inside the project's published
// bundle. ErrNotFound covers an unpublished project, a missing archive and a
// missing entry alike.
func (s *BundleService) OpenFile(projectID uuid.UUID, path string) (io.ReadCloser, int64, error) {
	archivePath, err := s.ArchivePath(projectID)
	if err != nil {
		return nil, 0, err
	}

	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, ErrNotFound
		}
		return nil, 0, err
	}

	for _, f := range zr.File {
		if f.Name != path {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			zr.Close()
			return nil, 0, err
		}
		return &bundleEntry{rc: rc, zr: zr}, int64(f.UncompressedSize64), nil
	}

	zr.Close()
	return nil, 0, ErrNotFound
}

// ArchivePath returns the absolute path of the project's published bundle
// for raw serving, ErrNotFound when nothing is published.
func (s *BundleService) ArchivePath(projectID uuid.UUID) (string, error) {
	var project models.Project
	if err := s.db.First(&project, "id = ?", projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrNotFound
		}
		return "", err
	}
	if project.PublishedBundle == nil {
		return "", ErrNotFound
	}
	return s.storage.BundleAbsPath(*project.PublishedBundle), nil
}
