package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tourforge/backend/internal/models"
)

func mapResolver(assets map[string]*models.Asset) assetResolver {
	return func(id string) *models.Asset {
		return assets[id]
	}
}

func TestContentWalkerRewrite(t *testing.T) {
	photo := &models.Asset{Hash: "aaa111", Filename: "photo.jpg"}
	song := &models.Asset{Hash: "bbb222", Filename: "narration.mp3"}
	tiles := &models.Asset{Hash: "ccc333", Filename: "tiles.png"}
	assets := map[string]*models.Asset{
		"photo": photo,
		"song":  song,
		"tiles": tiles,
	}

	t.Run("rewrites gallery and tiles references", func(t *testing.T) {
		w := newContentWalker(mapResolver(assets))
		doc := w.Rewrite(models.JSONMap{
			"gallery": []interface{}{"photo", "missing", "photo"},
			"tiles":   "tiles",
		})

		assert.Equal(t, []interface{}{"assets/aaa111.jpg", "assets/aaa111.jpg"}, doc["gallery"])
		assert.Equal(t, "assets/ccc333.png", doc["tiles"])
	})

	t.Run("same asset resolves to a single archive path", func(t *testing.T) {
		w := newContentWalker(mapResolver(assets))
		w.Rewrite(models.JSONMap{
			"gallery": []interface{}{"photo"},
			"waypoints": []interface{}{
				map[string]interface{}{"gallery": []interface{}{"photo"}},
			},
		})

		require.Len(t, w.visited, 1)
		assert.Same(t, photo, w.visited["assets/aaa111.jpg"])
	})

	t.Run("waypoint narration resolves, poi narration does not", func(t *testing.T) {
		w := newContentWalker(mapResolver(assets))
		doc := w.Rewrite(models.JSONMap{
			"waypoints": []interface{}{
				map[string]interface{}{"narration": "song"},
			},
			"pois": []interface{}{
				map[string]interface{}{"narration": "song"},
			},
		})

		waypoints := doc["waypoints"].([]interface{})
		assert.Equal(t, "assets/bbb222.mp3", waypoints[0].(map[string]interface{})["narration"])

		// narration is not a reference field on pois and passes through
		pois := doc["pois"].([]interface{})
		assert.Equal(t, "song", pois[0].(map[string]interface{})["narration"])
	})

	t.Run("each entry resolves its own gallery only", func(t *testing.T) {
		w := newContentWalker(mapResolver(assets))
		doc := w.Rewrite(models.JSONMap{
			"waypoints": []interface{}{
				map[string]interface{}{"gallery": []interface{}{"photo"}},
			},
			"pois": []interface{}{
				map[string]interface{}{"gallery": []interface{}{"tiles"}},
				map[string]interface{}{"name": "no gallery"},
			},
		})

		waypoints := doc["waypoints"].([]interface{})
		assert.Equal(t, []interface{}{"assets/aaa111.jpg"}, waypoints[0].(map[string]interface{})["gallery"])

		pois := doc["pois"].([]interface{})
		assert.Equal(t, []interface{}{"assets/ccc333.png"}, pois[0].(map[string]interface{})["gallery"])
		_, hasGallery := pois[1].(map[string]interface{})["gallery"]
		assert.False(t, hasGallery)
	})

	t.Run("unresolved single reference becomes null", func(t *testing.T) {
		w := newContentWalker(mapResolver(assets))
		doc := w.Rewrite(models.JSONMap{"tiles": "missing"})
		assert.Nil(t, doc["tiles"])
	})

	t.Run("unexpected shapes pass through", func(t *testing.T) {
		w := newContentWalker(mapResolver(assets))
		doc := w.Rewrite(models.JSONMap{
			"gallery":   "not-a-list",
			"waypoints": "not-a-list",
			"pois": []interface{}{
				"not-a-map",
			},
		})

		assert.Equal(t, "not-a-list", doc["gallery"])
		assert.Equal(t, "not-a-list", doc["waypoints"])
		assert.Equal(t, []interface{}{"not-a-map"}, doc["pois"])
	})

	t.Run("input document is not modified", func(t *testing.T) {
		w := newContentWalker(mapResolver(assets))
		entry := map[string]interface{}{"gallery": []interface{}{"photo"}}
		content := models.JSONMap{
			"gallery":   []interface{}{"photo"},
			"waypoints": []interface{}{entry},
		}
		w.Rewrite(content)

		assert.Equal(t, []interface{}{"photo"}, content["gallery"])
		assert.Equal(t, []interface{}{"photo"}, entry["gallery"])
	})

	t.Run("absent fields stay absent", func(t *testing.T) {
		w := newContentWalker(mapResolver(assets))
		doc := w.Rewrite(models.JSONMap{"title": "A Tour"})

		_, hasGallery := doc["gallery"]
		_, hasWaypoints := doc["waypoints"]
		assert.False(t, hasGallery)
		assert.False(t, hasWaypoints)
		assert.Equal(t, "A Tour", doc["title"])
	})
}

func TestArchivePath(t *testing.T) {
	assert.Equal(t, "assets/deadbeef.jpg", archivePath(&models.Asset{Hash: "deadbeef", Filename: "pic.jpg"}))
	assert.Equal(t, "assets/deadbeef", archivePath(&models.Asset{Hash: "deadbeef", Filename: "no-extension"}))
}
