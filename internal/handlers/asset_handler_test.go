package handlers

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tourforge/backend/internal/config"
	"github.com/tourforge/backend/internal/models"
	"github.com/tourforge/backend/internal/services"
	"github.com/tourforge/backend/pkg/urlsign"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type downloadFixture struct {
	router  *gin.Engine
	cfg     *config.Config
	signer  *urlsign.Signer
	assets  *services.AssetService
	project *models.Project
}

func newDownloadFixture(t *testing.T) *downloadFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, models.Migrate(db))

	cfg := &config.Config{
		APIUrl:            "http://localhost:8080",
		StoragePath:       t.TempDir(),
		DownloadURLSecret: "test-secret",
		DownloadURLLease:  600 * time.Second,
	}
	signer := urlsign.New(cfg.DownloadURLSecret)
	storage := services.NewStorageService(cfg)
	assets := services.NewAssetService(db, cfg, storage, signer)
	projects := services.NewProjectService(db, storage)

	project := &models.Project{Name: "Downloads"}
	require.NoError(t, db.Create(project).Error)

	handler := NewAssetHandler(assets, projects, storage, signer, cfg)
	router := gin.New()
	router.GET("/api/v1/projects/:project_id/assets/:asset_id/download", handler.Download)

	return &downloadFixture{
		router:  router,
		cfg:     cfg,
		signer:  signer,
		assets:  assets,
		project: project,
	}
}

// requestURI strips the configured API origin from a signed URL
func (f *downloadFixture) requestURI(t *testing.T, signedURL string) string {
	t.Helper()
	require.True(t, strings.HasPrefix(signedURL, f.cfg.APIUrl))
	return strings.TrimPrefix(signedURL, f.cfg.APIUrl)
}

func (f *downloadFixture) get(uri string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, uri, nil)
	f.router.ServeHTTP(w, req)
	return w
}

func TestAssetDownload(t *testing.T) {
	f := newDownloadFixture(t)
	asset, err := f.assets.Create(f.project.ID, "song", "song.mp3", strings.NewReader("mp3 payload"))
	require.NoError(t, err)

	t.Run("valid signed URL streams the payload", func(t *testing.T) {
		url := f.assets.SignedDownloadURL(asset, time.Now())
		w := f.get(f.requestURI(t, url))

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "mp3 payload", w.Body.String())
		assert.Equal(t, "audio/mpeg", w.Header().Get("Content-Type"))
		assert.Contains(t, w.Header().Get("Content-Disposition"), "song.mp3")
	})

	t.Run("unsigned URL is forbidden", func(t *testing.T) {
		uri := fmt.Sprintf("/api/v1/projects/%s/assets/%s/download", f.project.ID, asset.ID)
		w := f.get(uri)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("tampered signature is forbidden", func(t *testing.T) {
		url := f.assets.SignedDownloadURL(asset, time.Now())
		w := f.get(f.requestURI(t, url) + "x")
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("signature does not transfer to another path", func(t *testing.T) {
		url := f.assets.SignedDownloadURL(asset, time.Now())
		uri := strings.Replace(f.requestURI(t, url), asset.ID.String(), uuid.New().String(), 1)
		w := f.get(uri)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("expired URL is forbidden", func(t *testing.T) {
		url := f.assets.SignedDownloadURL(asset, time.Now().Add(-2*f.cfg.DownloadURLLease))
		w := f.get(f.requestURI(t, url))
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("valid signature for a deleted asset is not found", func(t *testing.T) {
		doomed, err := f.assets.Create(f.project.ID, "doomed", "d.png", strings.NewReader("d"))
		require.NoError(t, err)
		url := f.assets.SignedDownloadURL(doomed, time.Now())
		require.NoError(t, f.assets.Delete(f.project.ID, doomed.ID))

		w := f.get(f.requestURI(t, url))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
