package services

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tourforge/backend/internal/models"
	"github.com/tourforge/backend/pkg/urlsign"
	"gorm.io/gorm"
)

func newAssetFixture(t *testing.T) (*AssetService, *StorageService, uuid.UUID) {
	t.Helper()
	db := newTestDB(t)
	cfg := newTestConfig(t)
	storage := NewStorageService(cfg)
	signer := urlsign.New(cfg.DownloadURLSecret)

	project := &models.Project{Name: "Test Project"}
	require.NoError(t, db.Create(project).Error)

	return NewAssetService(db, cfg, storage, signer), storage, project.ID
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func TestResolveExtension(t *testing.T) {
	assert.Equal(t, ".jpg", ResolveExtension("photo.jpg"))
	assert.Equal(t, ".JPG", ResolveExtension("PHOTO.JPG"))
	assert.Equal(t, ".gz", ResolveExtension("archive.tar.gz"))
	assert.Equal(t, "", ResolveExtension("no-extension"))
	assert.Equal(t, "", ResolveExtension("bad.ext!"))
}

func TestAssetServiceCreate(t *testing.T) {
	svc, storage, projectID := newAssetFixture(t)

	t.Run("stores payload and computes hash", func(t *testing.T) {
		payload := []byte("jpeg bytes")
		asset, err := svc.Create(projectID, "cover", "cover.jpg", strings.NewReader(string(payload)))
		require.NoError(t, err)

		assert.Equal(t, sha256Hex(payload), asset.Hash)
		assert.Equal(t, int64(len(payload)), asset.SizeBytes)
		assert.Equal(t, ".jpg", ResolveExtension(asset.Filename))

		stored, err := os.ReadFile(storage.AssetAbsPath(asset.Key))
		require.NoError(t, err)
		assert.Equal(t, payload, stored)
	})

	t.Run("identical bytes hash identically across assets", func(t *testing.T) {
		a, err := svc.Create(projectID, "copy-one", "one.png", strings.NewReader("same bytes"))
		require.NoError(t, err)
		b, err := svc.Create(projectID, "copy-two", "two.png", strings.NewReader("same bytes"))
		require.NoError(t, err)

		assert.Equal(t, a.Hash, b.Hash)
		assert.NotEqual(t, a.Key, b.Key)
	})

	t.Run("duplicate name in project is rejected", func(t *testing.T) {
		_, err := svc.Create(projectID, "dupe", "a.png", strings.NewReader("a"))
		require.NoError(t, err)

		_, err = svc.Create(projectID, "dupe", "b.png", strings.NewReader("b"))
		assert.ErrorIs(t, err, ErrNameTaken)
	})

	t.Run("same name is fine in another project", func(t *testing.T) {
		_, err := svc.Create(projectID, "shared-name", "a.png", strings.NewReader("a"))
		require.NoError(t, err)

		other := &models.Project{Name: "Other"}
		require.NoError(t, svc.db.Create(other).Error)
		_, err = svc.Create(other.ID, "shared-name", "b.png", strings.NewReader("b"))
		assert.NoError(t, err)
	})
}

func TestAssetServiceUpdate(t *testing.T) {
	svc, storage, projectID := newAssetFixture(t)

	t.Run("recomputes hash from new payload", func(t *testing.T) {
		asset, err := svc.Create(projectID, "audio", "v1.mp3", strings.NewReader("first"))
		require.NoError(t, err)
		firstHash := asset.Hash

		updated, err := svc.Update(projectID, asset.ID, "", "v2.mp3", strings.NewReader("second"))
		require.NoError(t, err)

		assert.NotEqual(t, firstHash, updated.Hash)
		assert.Equal(t, sha256Hex([]byte("second")), updated.Hash)
		assert.Equal(t, "v2.mp3", updated.Filename)
	})

	t.Run("deletes previous payload even when the extension is unchanged", func(t *testing.T) {
		asset, err := svc.Create(projectID, "stable-ext", "take1.mp3", strings.NewReader("take one"))
		require.NoError(t, err)
		oldPath := storage.AssetAbsPath(asset.Key)

		updated, err := svc.Update(projectID, asset.ID, "", "take2.mp3", strings.NewReader("take two"))
		require.NoError(t, err)

		assert.NotEqual(t, asset.Key, updated.Key)
		_, err = os.Stat(oldPath)
		assert.True(t, os.IsNotExist(err))

		stored, err := os.ReadFile(storage.AssetAbsPath(updated.Key))
		require.NoError(t, err)
		assert.Equal(t, "take two", string(stored))
	})

	t.Run("deletes previous payload when the extension changes", func(t *testing.T) {
		asset, err := svc.Create(projectID, "morph", "pic.png", strings.NewReader("png bytes"))
		require.NoError(t, err)
		oldPath := storage.AssetAbsPath(asset.Key)

		updated, err := svc.Update(projectID, asset.ID, "", "pic.jpg", strings.NewReader("jpg bytes"))
		require.NoError(t, err)

		_, err = os.Stat(oldPath)
		assert.True(t, os.IsNotExist(err))
		_, err = os.Stat(storage.AssetAbsPath(updated.Key))
		assert.NoError(t, err)
	})

	t.Run("rename onto an existing name is rejected", func(t *testing.T) {
		_, err := svc.Create(projectID, "taken", "a.png", strings.NewReader("a"))
		require.NoError(t, err)
		asset, err := svc.Create(projectID, "renameme", "b.png", strings.NewReader("b"))
		require.NoError(t, err)

		_, err = svc.Update(projectID, asset.ID, "taken", "b.png", strings.NewReader("b"))
		assert.ErrorIs(t, err, ErrNameTaken)
	})

	t.Run("unknown asset is not found", func(t *testing.T) {
		_, err := svc.Update(projectID, uuid.New(), "", "x.png", strings.NewReader("x"))
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestAssetServiceUpdateFailureCleanup(t *testing.T) {
	svc, storage, projectID := newAssetFixture(t)

	asset, err := svc.Create(projectID, "resilient", "v1.mp3", strings.NewReader("first"))
	require.NoError(t, err)
	oldPath := storage.AssetAbsPath(asset.Key)

	require.NoError(t, svc.db.Callback().Update().Before("gorm:update").Register("forced_update_failure", func(tx *gorm.DB) {
		_ = tx.AddError(errors.New("forced update failure"))
	}))
	defer svc.db.Callback().Update().Remove("forced_update_failure")

	_, err = svc.Update(projectID, asset.ID, "", "v2.mp3", strings.NewReader("second"))
	require.Error(t, err)

	// the record is untouched and still matches its live payload
	got, err := svc.GetByID(projectID, asset.ID)
	require.NoError(t, err)
	assert.Equal(t, asset.Key, got.Key)
	assert.Equal(t, sha256Hex([]byte("first")), got.Hash)

	stored, err := os.ReadFile(oldPath)
	require.NoError(t, err)
	assert.Equal(t, "first", string(stored))

	// the payload written for the failed update is gone
	entries, err := os.ReadDir(filepath.Dir(oldPath))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, filepath.Base(oldPath), entries[0].Name())
}

func TestAssetServiceList(t *testing.T) {
	svc, _, projectID := newAssetFixture(t)

	_, err := svc.Create(projectID, "a-photo", "photo.jpg", strings.NewReader("1"))
	require.NoError(t, err)
	_, err = svc.Create(projectID, "b-image", "image.png", strings.NewReader("2"))
	require.NoError(t, err)
	_, err = svc.Create(projectID, "c-sound", "sound.mp3", strings.NewReader("3"))
	require.NoError(t, err)

	t.Run("all assets ordered by name", func(t *testing.T) {
		assets, err := svc.List(projectID, "")
		require.NoError(t, err)
		require.Len(t, assets, 3)
		assert.Equal(t, "a-photo", assets[0].Name)
		assert.Equal(t, "c-sound", assets[2].Name)
	})

	t.Run("kind filters on filename extension", func(t *testing.T) {
		images, err := svc.List(projectID, "image")
		require.NoError(t, err)
		assert.Len(t, images, 2)

		audio, err := svc.List(projectID, "audio")
		require.NoError(t, err)
		require.Len(t, audio, 1)
		assert.Equal(t, "c-sound", audio[0].Name)
	})
}

func TestAssetServiceDelete(t *testing.T) {
	svc, storage, projectID := newAssetFixture(t)

	t.Run("removes record and payload", func(t *testing.T) {
		asset, err := svc.Create(projectID, "doomed", "x.png", strings.NewReader("x"))
		require.NoError(t, err)

		require.NoError(t, svc.Delete(projectID, asset.ID))

		_, err = svc.GetByID(projectID, asset.ID)
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = os.Stat(storage.AssetAbsPath(asset.Key))
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("missing payload does not fail the delete", func(t *testing.T) {
		asset, err := svc.Create(projectID, "gone", "y.png", strings.NewReader("y"))
		require.NoError(t, err)
		require.NoError(t, os.Remove(storage.AssetAbsPath(asset.Key)))

		require.NoError(t, svc.Delete(projectID, asset.ID))
		_, err = svc.GetByID(projectID, asset.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestAssetServiceTenantIsolation(t *testing.T) {
	svc, _, projectID := newAssetFixture(t)

	asset, err := svc.Create(projectID, "private", "p.png", strings.NewReader("p"))
	require.NoError(t, err)

	other := &models.Project{Name: "Other"}
	require.NoError(t, svc.db.Create(other).Error)

	_, err = svc.GetByID(other.ID, asset.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, svc.Delete(other.ID, asset.ID), ErrNotFound)
}

func TestSignedDownloadURL(t *testing.T) {
	svc, _, projectID := newAssetFixture(t)

	asset, err := svc.Create(projectID, "signed", "s.png", strings.NewReader("s"))
	require.NoError(t, err)

	now := time.Now()
	url := svc.SignedDownloadURL(asset, now)
	assert.True(t, svc.signer.Verify(url, now))
	assert.True(t, svc.signer.Verify(url, now.Add(599*time.Second)))
	assert.False(t, svc.signer.Verify(url, now.Add(601*time.Second)))
	assert.Contains(t, url, asset.ID.String())
}
