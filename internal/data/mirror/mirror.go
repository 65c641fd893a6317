// Package mirror maintains the denormalized copy of the progress aggregate
// read by profile-centric screens. Patches are applied as flattened key paths
// so a write to one leaf never rewrites its siblings.
package mirror

import (
	"context"
	"sort"
	"strings"

	"github.com/yungbote/progressfacts/internal/data/docstore"
	"github.com/yungbote/progressfacts/internal/domain/progress"
)

// Mirror is a secondary location receiving every aggregate patch.
type Mirror interface {
	MergeFlat(ctx context.Context, ownerID string, patch docstore.Document) error
	// Load returns the mirrored aggregate, or docstore.ErrNotFound.
	Load(ctx context.Context, ownerID string) (docstore.Document, error)
}

// Flatten turns nested objects into dotted leaf paths. Arrays, transforms and
// empty objects are leaves.
func Flatten(doc docstore.Document) map[string]any {
	out := map[string]any{}
	flattenInto(out, "", doc)
	return out
}

func flattenInto(out map[string]any, prefix string, m map[string]any) {
	for k, v := range m {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		if child, ok := docstore.AsMap(v); ok && len(child) > 0 {
			flattenInto(out, path, child)
			continue
		}
		out[path] = v
	}
}

// Unflatten rebuilds a nested document from dotted paths. Deeper paths win
// over a shorter path that was later written as an object.
func Unflatten(flat map[string]any) docstore.Document {
	paths := make([]string, 0, len(flat))
	for p := range flat {
		paths = append(paths, p)
	}
	sort.Slice(paths, func(i, j int) bool {
		di, dj := strings.Count(paths[i], "."), strings.Count(paths[j], ".")
		if di != dj {
			return di < dj
		}
		return paths[i] < paths[j]
	})
	out := docstore.Document{}
	for _, p := range paths {
		parts := strings.Split(p, ".")
		cur := map[string]any(out)
		for _, part := range parts[:len(parts)-1] {
			next, ok := docstore.AsMap(cur[part])
			if !ok {
				next = map[string]any{}
				cur[part] = next
			}
			cur = next
		}
		cur[parts[len(parts)-1]] = flat[p]
	}
	return out
}

// Noop discards mirror writes.
type Noop struct{}

func (Noop) MergeFlat(context.Context, string, docstore.Document) error { return nil }

func (Noop) Load(context.Context, string) (docstore.Document, error) {
	return nil, docstore.ErrNotFound
}

// StoreMirror keeps the mirror under progressFacts on the owner's profile
// document in a Store.
type StoreMirror struct {
	store docstore.Store
}

func NewStoreMirror(store docstore.Store) *StoreMirror {
	return &StoreMirror{store: store}
}

func (m *StoreMirror) MergeFlat(ctx context.Context, ownerID string, patch docstore.Document) error {
	if len(patch) == 0 {
		return nil
	}
	return m.store.MergeSet(ctx, progress.CollectionProfiles, ownerID, docstore.Document{
		progress.MirrorField: Unflatten(Flatten(patch)),
	})
}

func (m *StoreMirror) Load(ctx context.Context, ownerID string) (docstore.Document, error) {
	doc, err := m.store.Get(ctx, progress.CollectionProfiles, ownerID)
	if err != nil {
		return nil, err
	}
	facts, ok := docstore.AsMap(doc[progress.MirrorField])
	if !ok {
		return nil, docstore.ErrNotFound
	}
	return docstore.Document(facts), nil
}
