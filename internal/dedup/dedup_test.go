package dedup

import (
	"testing"
	"time"

	"github.com/pauljones0/offnbuy-bot/internal/models"
)

func TestComputeID_StableUnderNormalization(t *testing.T) {
	tests := []struct {
		name string
		a    [2]string
		b    [2]string
	}{
		{"Case", [2]string{"Boat Airdopes 141", "Amazon"}, [2]string{"BOAT AIRDOPES 141", "amazon"}},
		{"Whitespace", [2]string{"  Boat   Airdopes 141 ", "Amazon"}, [2]string{"Boat Airdopes 141", " Amazon "}},
		{"Punctuation", [2]string{"Boat Airdopes-141!", "Amazon."}, [2]string{"Boat Airdopes141", "Amazon"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idA := ComputeID(tt.a[0], tt.a[1], "", false)
			idB := ComputeID(tt.b[0], tt.b[1], "", false)
			if idA == "" || idA != idB {
				t.Errorf("expected equal non-empty ids, got %q and %q", idA, idB)
			}
		})
	}
}

func TestComputeID_DifferentStoresDiffer(t *testing.T) {
	if ComputeID("Boat Airdopes", "Amazon", "", false) == ComputeID("Boat Airdopes", "Flipkart", "", false) {
		t.Error("listings from different stores should not collide")
	}
}

func TestComputeID_Empty(t *testing.T) {
	tests := []struct {
		name       string
		title      string
		store      string
		url        string
		includeURL bool
	}{
		{"Empty title", "", "Amazon", "", false},
		{"Punctuation-only title", "!!!", "Amazon", "", false},
		{"Empty store", "Phone", "   ", "", false},
		{"Empty URL when included", "Phone", "Amazon", "  ", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if id := ComputeID(tt.title, tt.store, tt.url, tt.includeURL); id != "" {
				t.Errorf("expected empty id, got %q", id)
			}
		})
	}
}

func TestComputeID_URLIgnoresQueryWhenIncluded(t *testing.T) {
	a := ComputeID("Phone", "Amazon", "https://amazon.in/dp/1?tag=x", true)
	b := ComputeID("Phone", "Amazon", "https://AMAZON.in/dp/1#top", true)
	if a == "" || a != b {
		t.Errorf("expected equal ids, got %q and %q", a, b)
	}
	if a == ComputeID("Phone", "Amazon", "", false) {
		t.Error("including the URL should change the id")
	}
}

func TestClassify_StalenessWindow(t *testing.T) {
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	id := ComputeID("Phone", "Amazon", "", false)
	snapshot := Snapshot{id: {ID: id, PostedAt: base}}

	tests := []struct {
		name  string
		delta time.Duration
		stale bool
	}{
		{"23h later is current", 23 * time.Hour, false},
		{"25h later is stale", 25 * time.Hour, true},
		{"25h earlier is stale", -25 * time.Hour, true},
		{"Exactly the window is current", 24 * time.Hour, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Classify([]models.Listing{{ID: id, PostedAt: base.Add(tt.delta)}}, snapshot, 24*time.Hour)
			if tt.stale && len(c.Stale) != 1 {
				t.Errorf("expected STALE, got %+v", c)
			}
			if !tt.stale && len(c.Current) != 1 {
				t.Errorf("expected CURRENT, got %+v", c)
			}
		})
	}
}

func TestClassify_PartitionsAreExhaustiveAndDisjoint(t *testing.T) {
	now := time.Now()
	snapshot := Snapshot{
		"a": {ID: "a", PostedAt: now.Add(-48 * time.Hour)},
		"b": {ID: "b", PostedAt: now.Add(-time.Hour)},
	}
	listings := []models.Listing{
		{ID: "a", PostedAt: now},
		{ID: "b", PostedAt: now},
		{ID: "c", PostedAt: now},
		{ID: "d", PostedAt: now},
		{ID: "", PostedAt: now},
	}

	c := Classify(listings, snapshot, 0)

	seen := make(map[string]int)
	for _, group := range [][]models.Listing{c.New, c.Stale, c.Current} {
		for _, l := range group {
			seen[l.ID]++
		}
	}
	for _, id := range []string{"a", "b", "c", "d"} {
		if seen[id] != 1 {
			t.Errorf("id %q appears %d times, want exactly once", id, seen[id])
		}
	}
	if seen[""] != 0 {
		t.Error("listing without id should not be classified")
	}
	if len(c.New) != 2 || len(c.Stale) != 1 || len(c.Current) != 1 {
		t.Errorf("unexpected partition sizes: new=%d stale=%d current=%d", len(c.New), len(c.Stale), len(c.Current))
	}
}

func TestSnapshotClone(t *testing.T) {
	s := Snapshot{"a": {ID: "a"}}
	c := s.Clone()
	c["b"] = models.Listing{ID: "b"}
	if _, ok := s["b"]; ok {
		t.Error("clone should not share the underlying map")
	}
}
