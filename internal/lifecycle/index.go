package lifecycle

import (
	"slices"

	"github.com/jaennil/guide_helper/backend/tileengine/internal/entity"
)

// Index is the TileCacheIndex: at most one record per key. A key absent
// from the index is eligible for a fresh request.
type Index struct {
	records map[entity.TileKey]*entity.TileRecord
}

func NewIndex() *Index {
	return &Index{
		records: make(map[entity.TileKey]*entity.TileRecord),
	}
}

func (ix *Index) Get(k entity.TileKey) (*entity.TileRecord, bool) {
	r, ok := ix.records[k]
	return r, ok
}

// Insert adds r unless its key is already tracked.
func (ix *Index) Insert(r *entity.TileRecord) bool {
	if _, exists := ix.records[r.Key]; exists {
		return false
	}
	ix.records[r.Key] = r
	return true
}

func (ix *Index) Remove(k entity.TileKey) bool {
	if _, exists := ix.records[k]; !exists {
		return false
	}
	delete(ix.records, k)
	return true
}

func (ix *Index) Len() int {
	return len(ix.records)
}

// Sorted returns the records in key order, so every pass over the index is
// deterministic.
func (ix *Index) Sorted() []*entity.TileRecord {
	out := make([]*entity.TileRecord, 0, len(ix.records))
	for _, r := range ix.records {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b *entity.TileRecord) int {
		switch {
		case a.Key == b.Key:
			return 0
		case a.Key.Less(b.Key):
			return -1
		}
		return 1
	})
	return out
}

// RenderObjects counts records holding a render object.
func (ix *Index) RenderObjects() int {
	n := 0
	for _, r := range ix.records {
		if r.HasRenderObject {
			n++
		}
	}
	return n
}

func (ix *Index) CountByState() map[entity.State]int {
	out := make(map[entity.State]int)
	for _, r := range ix.records {
		out[r.State]++
	}
	return out
}
