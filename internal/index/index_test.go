// internal/index/index_test.go
package index

import (
	"context"
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/strixlabs/killwatch/internal/filter"
	"github.com/strixlabs/killwatch/internal/types"
)

func containsID(ids []types.ProfileID, id types.ProfileID) bool {
	for _, got := range ids {
		if got == id {
			return true
		}
	}
	return false
}

func TestIndex_AddAndCandidates(t *testing.T) {
	x := New().
		Add("profile-a", []filter.IndexableLeaf{{Field: types.FieldShipTypeID, Key: "n:670"}}, true).
		Add("profile-b", []filter.IndexableLeaf{{Field: types.FieldShipTypeID, Key: "n:671"}}, true).
		Add("profile-c", nil, false) // non-prunable: fallback

	tests := []struct {
		name string
		ev   types.NormalizedEvent
		want []types.ProfileID
	}{
		{
			name: "matching bucket plus fallback",
			ev:   types.NormalizedEvent{types.FieldShipTypeID: float64(670)},
			want: []types.ProfileID{"profile-a", "profile-c"},
		},
		{
			name: "other bucket",
			ev:   types.NormalizedEvent{types.FieldShipTypeID: float64(671)},
			want: []types.ProfileID{"profile-b", "profile-c"},
		},
		{
			name: "no bucket still yields fallback",
			ev:   types.NormalizedEvent{types.FieldShipTypeID: float64(9)},
			want: []types.ProfileID{"profile-c"},
		},
		{
			name: "empty event yields fallback",
			ev:   types.NormalizedEvent{},
			want: []types.ProfileID{"profile-c"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := x.Candidates(tt.ev)
			if len(got) != len(tt.want) {
				t.Fatalf("Candidates() = %v, want %v", got, tt.want)
			}
			for _, id := range tt.want {
				if !containsID(got, id) {
					t.Errorf("Candidates() = %v, missing %v", got, id)
				}
			}
		})
	}
}

func TestIndex_ListAttributeExpansion(t *testing.T) {
	x := New().Add("tag-watch",
		[]filter.IndexableLeaf{{Field: types.FieldModuleTags, Key: "s:cyno"}}, true)

	ev := types.NormalizedEvent{types.FieldModuleTags: []any{"bridge", "cyno"}}
	if got := x.Candidates(ev); !containsID(got, "tag-watch") {
		t.Errorf("Candidates() = %v, want to contain tag-watch", got)
	}

	ev = types.NormalizedEvent{types.FieldModuleTags: []any{"bridge"}}
	if got := x.Candidates(ev); containsID(got, "tag-watch") {
		t.Errorf("Candidates() = %v, want empty", got)
	}
}

func TestIndex_NumericKeyCollapse(t *testing.T) {
	x := New().Add("ship-watch",
		[]filter.IndexableLeaf{{Field: types.FieldShipTypeID, Key: "n:670"}}, true)

	// The ingestion side may deliver int64 or float64 for the same value.
	for _, v := range []any{float64(670), int64(670), 670} {
		ev := types.NormalizedEvent{types.FieldShipTypeID: v}
		if got := x.Candidates(ev); !containsID(got, "ship-watch") {
			t.Errorf("Candidates(%T %v) = %v, want to contain ship-watch", v, v, got)
		}
	}
}

func TestIndex_Remove(t *testing.T) {
	base := New().
		Add("a", []filter.IndexableLeaf{{Field: types.FieldShipTypeID, Key: "n:670"}}, true).
		Add("b", []filter.IndexableLeaf{{Field: types.FieldShipTypeID, Key: "n:670"}}, true)

	removed := base.Remove("a")

	ev := types.NormalizedEvent{types.FieldShipTypeID: float64(670)}
	if got := removed.Candidates(ev); containsID(got, "a") || !containsID(got, "b") {
		t.Errorf("after remove: Candidates() = %v, want only b", got)
	}
	if removed.Contains("a") {
		t.Error("Contains(a) = true after remove")
	}
	if removed.Len() != 1 {
		t.Errorf("Len() = %d, want 1", removed.Len())
	}

	// Removing an unregistered profile derives an equivalent index.
	same := removed.Remove("missing")
	if same.Len() != 1 || !same.Contains("b") {
		t.Errorf("Remove(missing) changed the index: Len=%d", same.Len())
	}
}

func TestIndex_ReAddReplacesRegistration(t *testing.T) {
	x := New().Add("p", []filter.IndexableLeaf{{Field: types.FieldShipTypeID, Key: "n:670"}}, true)
	x = x.Add("p", []filter.IndexableLeaf{{Field: types.FieldShipTypeID, Key: "n:671"}}, true)

	if got := x.Candidates(types.NormalizedEvent{types.FieldShipTypeID: float64(670)}); containsID(got, "p") {
		t.Errorf("old registration still live: Candidates = %v", got)
	}
	if got := x.Candidates(types.NormalizedEvent{types.FieldShipTypeID: float64(671)}); !containsID(got, "p") {
		t.Errorf("new registration missing: Candidates = %v", got)
	}
	if x.Len() != 1 {
		t.Errorf("Len() = %d, want 1", x.Len())
	}
}

func TestIndex_FallbackTransition(t *testing.T) {
	// Re-adding a fallback profile as prunable must drop it from fallback.
	x := New().Add("p", nil, false)
	if got := x.Candidates(types.NormalizedEvent{}); !containsID(got, "p") {
		t.Fatalf("fallback profile not a candidate: %v", got)
	}

	x = x.Add("p", []filter.IndexableLeaf{{Field: types.FieldShipTypeID, Key: "n:670"}}, true)
	if got := x.Candidates(types.NormalizedEvent{}); containsID(got, "p") {
		t.Errorf("profile still in fallback after prunable re-add: %v", got)
	}
}

// Derived indexes must not mutate their source.
func TestIndex_Immutability(t *testing.T) {
	base := New().Add("a", []filter.IndexableLeaf{{Field: types.FieldShipTypeID, Key: "n:670"}}, true)

	_ = base.Add("b", []filter.IndexableLeaf{{Field: types.FieldShipTypeID, Key: "n:670"}}, true)
	_ = base.Remove("a")
	_ = base.Add("c", nil, false)

	ev := types.NormalizedEvent{types.FieldShipTypeID: float64(670)}
	got := base.Candidates(ev)
	if len(got) != 1 || got[0] != "a" {
		t.Errorf("base index mutated by derivations: Candidates = %v", got)
	}
	if base.Len() != 1 {
		t.Errorf("base Len() = %d, want 1", base.Len())
	}
}

// Pruning soundness: for profiles built from eq leaves, any profile whose
// matcher accepts an event must appear among the index candidates.
func TestIndex_PropertyPruningSound(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("matcher acceptance implies candidacy", prop.ForAll(
		func(profileVals []int, eventVal int) bool {
			x := New()
			compiled := make(map[types.ProfileID]*filter.Compiled, len(profileVals))

			for i, v := range profileVals {
				id := types.ProfileID(fmt.Sprintf("p-%d", i))
				node := types.Leaf(types.FieldShipTypeID, types.OpEq, float64(v))
				c, err := filter.Compile(node)
				if err != nil {
					return false
				}
				compiled[id] = c
				x = x.Add(id, c.IndexableLeaves, c.Prunable)
			}

			ev := types.NormalizedEvent{types.FieldShipTypeID: float64(eventVal)}
			candidates := x.Candidates(ev)

			for id, c := range compiled {
				ok, err := c.Matcher.Eval(context.Background(), ev)
				if err != nil {
					return false
				}
				if ok && !containsID(candidates, id) {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 8)),
		gen.IntRange(0, 8),
	))

	properties.TestingRun(t)
}

// Add then Remove must leave candidate selection as it was.
func TestIndex_PropertyRemoveUndoesAdd(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("remove after add restores selection", prop.ForAll(
		func(baseVals []int, addVal int, eventVal int) bool {
			x := New()
			for i, v := range baseVals {
				id := types.ProfileID(fmt.Sprintf("base-%d", i))
				x = x.Add(id, []filter.IndexableLeaf{
					{Field: types.FieldShipTypeID, Key: "n:" + fmt.Sprint(v)},
				}, true)
			}

			derived := x.Add("extra", []filter.IndexableLeaf{
				{Field: types.FieldShipTypeID, Key: "n:" + fmt.Sprint(addVal)},
			}, true).Remove("extra")

			ev := types.NormalizedEvent{types.FieldShipTypeID: float64(eventVal)}
			before := x.Candidates(ev)
			after := derived.Candidates(ev)

			if len(before) != len(after) {
				return false
			}
			for _, id := range before {
				if !containsID(after, id) {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 8)),
		gen.IntRange(0, 8),
		gen.IntRange(0, 8),
	))

	properties.TestingRun(t)
}
