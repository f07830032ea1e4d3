// internal/index/index.go

// Package index implements the inverted candidate-pruning index.
//
// Buckets map (field, canonical value) to a roaring bitmap of profile
// slots; a separate fallback bitmap holds the non-prunable profiles that
// must always be evaluated. Candidate selection unions the buckets of
// every attribute value present in an event with the fallback set.
//
// The index is an immutable value: Add and Remove return a derived index
// sharing untouched buckets with the original (copy-on-write of the
// touched field maps and bitmaps). Writers serialize externally; readers
// may use any index version freely. This makes the atomic
// snapshot-swap publication in the engine a plain pointer store.
//
// Slots are dense uint32 handles assigned per profile so roaring bitmaps
// stay compact regardless of the UUID profile identifier space.
package index

import (
	"github.com/RoaringBitmap/roaring/v2"

	"github.com/strixlabs/killwatch/internal/filter"
	"github.com/strixlabs/killwatch/internal/types"
)

// Index is one immutable version of the inverted index.
type Index struct {
	buckets  map[string]map[string]*roaring.Bitmap // field -> value key -> slots
	fallback *roaring.Bitmap                       // always-candidate slots

	slots    map[types.ProfileID]uint32
	bySlot   map[uint32]types.ProfileID
	nextSlot uint32
}

// New returns an empty index.
func New() *Index {
	return &Index{
		buckets:  make(map[string]map[string]*roaring.Bitmap),
		fallback: roaring.New(),
		slots:    make(map[types.ProfileID]uint32),
		bySlot:   make(map[uint32]types.ProfileID),
	}
}

// Add derives an index with the profile registered under its indexable
// leaves, and in the fallback set when it is not prunable. Re-adding a
// profile replaces its previous registration (edit = remove-then-add as one
// logical step on the derived value). Disabled profiles must not be added.
func (x *Index) Add(id types.ProfileID, leaves []filter.IndexableLeaf, prunable bool) *Index {
	next := x.Remove(id)

	slot, ok := next.slots[id]
	if !ok {
		slot = next.nextSlot
		next.nextSlot++
		next.slots[id] = slot
		next.bySlot[slot] = id
	}

	// Inner field maps may still be shared with the source index after the
	// clone inside Remove; copy each before the first mutation.
	copied := make(map[string]bool, len(leaves))
	for _, leaf := range leaves {
		field := next.buckets[leaf.Field]
		if field == nil {
			field = make(map[string]*roaring.Bitmap)
			next.buckets[leaf.Field] = field
			copied[leaf.Field] = true
		} else if !copied[leaf.Field] {
			fresh := make(map[string]*roaring.Bitmap, len(field)+1)
			for k, v := range field {
				fresh[k] = v
			}
			next.buckets[leaf.Field] = fresh
			field = fresh
			copied[leaf.Field] = true
		}
		bm := field[leaf.Key]
		if bm == nil {
			bm = roaring.New()
		} else {
			bm = bm.Clone()
		}
		bm.Add(slot)
		field[leaf.Key] = bm
	}

	if !prunable {
		next.fallback.Add(slot)
	}
	return next
}

// Remove derives an index without any entries for the profile. Removing an
// unregistered profile yields an equivalent index.
func (x *Index) Remove(id types.ProfileID) *Index {
	next := x.clone()

	slot, ok := next.slots[id]
	if !ok {
		return next
	}

	for fieldName, field := range next.buckets {
		var touched map[string]*roaring.Bitmap
		for key, bm := range field {
			if !bm.Contains(slot) {
				continue
			}
			if touched == nil {
				touched = make(map[string]*roaring.Bitmap, len(field))
				for k, v := range field {
					touched[k] = v
				}
				next.buckets[fieldName] = touched
			}
			pruned := bm.Clone()
			pruned.Remove(slot)
			if pruned.IsEmpty() {
				delete(touched, key)
			} else {
				touched[key] = pruned
			}
		}
	}
	next.fallback.Remove(slot)
	delete(next.slots, id)
	delete(next.bySlot, slot)
	return next
}

// Candidates returns the distinct profiles whose index entries match any
// (field, value) pair present in the event, unioned with the fallback set.
// List-valued attributes are expanded per element.
func (x *Index) Candidates(ev types.NormalizedEvent) []types.ProfileID {
	slots := x.fallback.Clone()

	for fieldName, value := range ev {
		field := x.buckets[fieldName]
		if field == nil {
			continue
		}
		for _, key := range eventKeys(value) {
			if bm := field[key]; bm != nil {
				slots.Or(bm)
			}
		}
	}

	out := make([]types.ProfileID, 0, slots.GetCardinality())
	it := slots.Iterator()
	for it.HasNext() {
		if id, ok := x.bySlot[it.Next()]; ok {
			out = append(out, id)
		}
	}
	return out
}

// Contains reports whether the profile is registered.
func (x *Index) Contains(id types.ProfileID) bool {
	_, ok := x.slots[id]
	return ok
}

// Len returns the number of registered profiles.
func (x *Index) Len() int {
	return len(x.slots)
}

// clone copies the mutable containers; bucket field maps and bitmaps are
// shared until touched.
func (x *Index) clone() *Index {
	next := &Index{
		buckets:  make(map[string]map[string]*roaring.Bitmap, len(x.buckets)),
		fallback: x.fallback.Clone(),
		slots:    make(map[types.ProfileID]uint32, len(x.slots)),
		bySlot:   make(map[uint32]types.ProfileID, len(x.bySlot)),
		nextSlot: x.nextSlot,
	}
	for field, m := range x.buckets {
		next.buckets[field] = m
	}
	for id, slot := range x.slots {
		next.slots[id] = slot
	}
	for slot, id := range x.bySlot {
		next.bySlot[slot] = id
	}
	return next
}

// eventKeys expands an event attribute into its canonical bucket keys.
func eventKeys(v any) []string {
	if key, ok := filter.CanonicalKey(v); ok {
		return []string{key}
	}
	elems, ok := filter.AsList(v)
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(elems))
	for _, e := range elems {
		if key, ok := filter.CanonicalKey(e); ok {
			keys = append(keys, key)
		}
	}
	return keys
}
