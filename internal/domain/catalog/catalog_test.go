package catalog

import (
	"encoding/json"
	"testing"
)

func TestRecord_Additive(t *testing.T) {
	c := New()
	c.Record("a.txt", []string{"a.txt#0", "a.txt#1"})
	c.Record("a.txt", []string{"a.txt#2"})

	ids, ok := c.Lookup("a.txt")
	if !ok {
		t.Fatal("expected entry")
	}
	if len(ids) != 3 || ids[2] != "a.txt#2" {
		t.Errorf("unexpected ids: %v", ids)
	}
	if c.Count("a.txt") != 3 {
		t.Errorf("expected count 3, got %d", c.Count("a.txt"))
	}
}

func TestLookup_ReturnsCopy(t *testing.T) {
	c := New()
	c.Record("a", []string{"a#0"})

	ids, _ := c.Lookup("a")
	ids[0] = "mutated"

	again, _ := c.Lookup("a")
	if again[0] != "a#0" {
		t.Errorf("lookup leaked internal slice: %v", again)
	}
}

func TestRemove(t *testing.T) {
	c := New()
	c.Record("a", []string{"a#0"})
	c.Record("b", []string{"b#0"})

	ids, ok := c.Remove("a")
	if !ok || len(ids) != 1 {
		t.Fatalf("unexpected remove result: %v %v", ids, ok)
	}
	if c.Contains("a") {
		t.Error("a should be gone")
	}
	if _, ok := c.Remove("a"); ok {
		t.Error("second remove should report not found")
	}
	if c.Len() != 1 {
		t.Errorf("expected 1 document, got %d", c.Len())
	}
}

func TestClone_Independent(t *testing.T) {
	c := New()
	c.Record("a", []string{"a#0"})

	cl := c.Clone()
	cl.Record("a", []string{"a#1"})
	cl.Record("b", []string{"b#0"})

	if c.Count("a") != 1 || c.Contains("b") {
		t.Error("clone mutation leaked into original")
	}
}

func TestDocuments_Sorted(t *testing.T) {
	c := New()
	c.Record("zeta", nil)
	c.Record("alpha", nil)
	c.Record("mid", nil)

	docs := c.Documents()
	want := []string{"alpha", "mid", "zeta"}
	for i := range want {
		if docs[i] != want[i] {
			t.Fatalf("docs = %v, want %v", docs, want)
		}
	}
}

func TestJSON_RoundTrip(t *testing.T) {
	c := New()
	c.Record("A", []string{"A#0", "A#1", "A#2"})
	c.Record("B", []string{"B#0", "B#1"})

	data, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	decoded := New()
	if err := json.Unmarshal(data, decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	counts := decoded.Counts()
	if counts["A"] != 3 || counts["B"] != 2 || len(counts) != 2 {
		t.Errorf("unexpected counts: %v", counts)
	}
}

func TestUnmarshal_RejectsSharedChunk(t *testing.T) {
	decoded := New()
	err := json.Unmarshal([]byte(`{"A":["x#0"],"B":["x#0"]}`), decoded)
	if err == nil {
		t.Fatal("expected error for chunk owned twice")
	}
}

func TestChunkIDs(t *testing.T) {
	c := New()
	c.Record("A", []string{"A#0", "A#1"})
	c.Record("B", []string{"B#0"})

	ids := c.ChunkIDs()
	if len(ids) != 3 {
		t.Fatalf("expected 3 ids, got %d", len(ids))
	}
	if ids["A#1"] != "A" || ids["B#0"] != "B" {
		t.Errorf("unexpected owners: %v", ids)
	}
}
