package services

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/tourforge/backend/internal/config"
)

// StorageService is the local object store backing asset payloads and
// published bundle archives. Layout under the storage root:
//
//	assets/<project_id>/<asset_id><ext>
//	bundles/<project_id>.zip
type StorageService struct {
	cfg *config.Config
}

func NewStorageService(cfg *config.Config) *StorageService {
	_ = os.MkdirAll(filepath.Join(cfg.StoragePath, "assets"), 0o755)
	_ = os.MkdirAll(filepath.Join(cfg.StoragePath, "bundles"), 0o755)
	return &StorageService{cfg: cfg}
}

// HashReader computes the sha256 hex digest of a stream, reading it in
// chunks so large files never have to fit in memory.
func HashReader(r io.Reader) (string, error) {
	hasher := sha256.New()
	if _, err := io.Copy(hasher, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// AssetAbsPath resolves a storage key to an absolute path
func (s *StorageService) AssetAbsPath(key string) string {
	return filepath.Join(s.cfg.StoragePath, "assets", filepath.FromSlash(key))
}

// SaveAsset writes an incoming stream under key and returns size and sha256
// checksum. The write goes to a private scratch file that is renamed into
// place only after a successful copy and sync, so a failed upload (including
// a hashing failure) persists nothing and never leaves a record-visible
// partial file. Each call gets its own scratch file, so concurrent writers
// racing on the same key cannot write through each other: whichever rename
// lands last owns the key, and its returned hash matches the bytes on disk.
func (s *StorageService) SaveAsset(key string, r io.Reader) (int64, string, error) {
	absPath := s.AssetAbsPath(key)
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return 0, "", err
	}

	f, err := os.CreateTemp(filepath.Dir(absPath), filepath.Base(absPath)+".*.part")
	if err != nil {
		return 0, "", err
	}
	tmp := f.Name()
	defer f.Close()

	hasher := sha256.New()
	n, err := io.Copy(io.MultiWriter(f, hasher), r)
	if err != nil {
		_ = os.Remove(tmp)
		return 0, "", err
	}

	if err := f.Sync(); err != nil {
		_ = os.Remove(tmp)
		return 0, "", err
	}

	if err := os.Rename(tmp, absPath); err != nil {
		_ = os.Remove(tmp)
		return 0, "", err
	}

	return n, hex.EncodeToString(hasher.Sum(nil)), nil
}

// OpenAsset opens a stored payload for reading
func (s *StorageService) OpenAsset(key string) (*os.File, os.FileInfo, error) {
	f, err := os.Open(s.AssetAbsPath(key))
	if err != nil {
		return nil, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return f, info, nil
}

// DeleteAsset removes a stored payload; a missing file is not an error
func (s *StorageService) DeleteAsset(key string) error {
	err := os.Remove(s.AssetAbsPath(key))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// BundleKey is the storage key of a project's published bundle
func (s *StorageService) BundleKey(projectID uuid.UUID) string {
	return fmt.Sprintf("bundles/%s.zip", projectID)
}

// BundleAbsPath resolves a bundle storage key to an absolute path
func (s *StorageService) BundleAbsPath(key string) string {
	return filepath.Join(s.cfg.StoragePath, filepath.FromSlash(key))
}

// CreateBundleTemp creates a scratch file for a bundle build. It lives in the
// bundles directory so the final rename stays on one filesystem.
func (s *StorageService) CreateBundleTemp(projectID uuid.UUID) (*os.File, error) {
	return os.CreateTemp(filepath.Join(s.cfg.StoragePath, "bundles"), fmt.Sprintf("%s-*.zip.part", projectID))
}

// SwapBundle atomically replaces a project's published bundle with the
// finalized archive at tmpPath. Readers either see the complete old archive
// or the complete new one, never a gap or a partial file.
func (s *StorageService) SwapBundle(tmpPath string, projectID uuid.UUID) (string, error) {
	key := s.BundleKey(projectID)
	if err := os.Rename(tmpPath, s.BundleAbsPath(key)); err != nil {
		return "", err
	}
	return key, nil
}

// RemoveBundle deletes a project's published bundle; missing is not an error
func (s *StorageService) RemoveBundle(projectID uuid.UUID) error {
	err := os.Remove(s.BundleAbsPath(s.BundleKey(projectID)))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
