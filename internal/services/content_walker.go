package services

import (
	"github.com/tourforge/backend/internal/models"
)

// assetResolver maps an asset reference id to its record, nil when unknown.
// Resolution is scoped to the project being published.
type assetResolver func(id string) *models.Asset

// contentWalker rewrites the known asset-reference fields of a tour's content
// document to hash-addressed archive paths, and remembers every asset it
// resolved together with its archive path. Paths are hash-derived, so two
// tours referencing the same asset agree on the path and the bytes land in
// the archive once.
//
// Unresolved references are dropped from lists and nulled for single
// references; that is tolerance, not validation. Fields that are absent or
// of an unexpected shape pass through unchanged.
type contentWalker struct {
	resolve assetResolver
	visited map[string]*models.Asset // archive path -> asset
}

func newContentWalker(resolve assetResolver) *contentWalker {
	return &contentWalker{
		resolve: resolve,
		visited: make(map[string]*models.Asset),
	}
}

// archivePath is the dedup path an asset occupies inside the bundle
func archivePath(a *models.Asset) string {
	return "assets/" + a.Hash + ResolveExtension(a.Filename)
}

// Rewrite returns a rewritten copy of content; the input document is not
// modified.
func (w *contentWalker) Rewrite(content models.JSONMap) models.JSONMap {
	doc := make(models.JSONMap, len(content))
	for k, v := range content {
		doc[k] = v
	}

	if refs, ok := doc["gallery"]; ok {
		doc["gallery"] = w.visitList(refs)
	}
	if ref, ok := doc["tiles"]; ok {
		doc["tiles"] = w.visitOne(ref)
	}
	if raw, ok := doc["waypoints"]; ok {
		doc["waypoints"] = w.rewriteEntries(raw, true)
	}
	if raw, ok := doc["pois"]; ok {
		doc["pois"] = w.rewriteEntries(raw, false)
	}

	return doc
}

// rewriteEntries applies the reference rules to each entry of a waypoint or
// POI list. Each entry's gallery (and narration, for waypoints) resolves
// against that entry's own fields only; the routine is shared precisely so
// no entry can accidentally read a sibling collection's references.
func (w *contentWalker) rewriteEntries(raw interface{}, withNarration bool) interface{} {
	entries, ok := raw.([]interface{})
	if !ok {
		return raw
	}

	out := make([]interface{}, len(entries))
	for i, e := range entries {
		m, ok := e.(map[string]interface{})
		if !ok {
			out[i] = e
			continue
		}

		entry := make(map[string]interface{}, len(m))
		for k, v := range m {
			entry[k] = v
		}
		if refs, ok := entry["gallery"]; ok {
			entry["gallery"] = w.visitList(refs)
		}
		if withNarration {
			if ref, ok := entry["narration"]; ok {
				entry["narration"] = w.visitOne(ref)
			}
		}
		out[i] = entry
	}
	return out
}

// visitList rewrites a list of references, preserving order and silently
// filtering references that do not resolve. Non-list values pass through.
func (w *contentWalker) visitList(raw interface{}) interface{} {
	refs, ok := raw.([]interface{})
	if !ok {
		return raw
	}

	out := make([]interface{}, 0, len(refs))
	for _, ref := range refs {
		if path := w.visitOne(ref); path != nil {
			out = append(out, path)
		}
	}
	return out
}

// visitOne resolves a single reference to its archive path, nil when the
// reference is not a string or the asset does not exist.
func (w *contentWalker) visitOne(ref interface{}) interface{} {
	id, ok := ref.(string)
	if !ok {
		return nil
	}
	asset := w.resolve(id)
	if asset == nil {
		return nil
	}
	path := archivePath(asset)
	w.visited[path] = asset
	return path
}
