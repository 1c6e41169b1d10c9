// Package catalog maps document identities to the chunk identities they own.
//
// A Catalog is a plain value: it is not safe for concurrent mutation. The
// vector engine clones it for every write and swaps the clone in on commit.
package catalog

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Catalog is the document -> owned chunk ids mapping.
type Catalog struct {
	entries map[string][]string
}

// New creates an empty catalog.
func New() *Catalog {
	return &Catalog{entries: make(map[string][]string)}
}

// FromMap builds a catalog from a raw mapping, rejecting empty names and
// chunk ids claimed by more than one document.
func FromMap(m map[string][]string) (*Catalog, error) {
	c := New()
	seen := make(map[string]string)
	for doc, ids := range m {
		if doc == "" {
			return nil, fmt.Errorf("catalog: empty document name")
		}
		for _, id := range ids {
			if owner, dup := seen[id]; dup {
				return nil, fmt.Errorf("catalog: chunk %q owned by both %q and %q", id, owner, doc)
			}
			seen[id] = doc
		}
		c.entries[doc] = append([]string(nil), ids...)
	}
	return c, nil
}

// Record appends chunk ids to a document entry, creating it if needed.
func (c *Catalog) Record(doc string, ids []string) {
	c.entries[doc] = append(c.entries[doc], ids...)
}

// Lookup returns a copy of the chunk ids owned by doc.
func (c *Catalog) Lookup(doc string) ([]string, bool) {
	ids, ok := c.entries[doc]
	if !ok {
		return nil, false
	}
	return append([]string(nil), ids...), true
}

// Remove deletes the entry for doc and returns the ids it owned.
func (c *Catalog) Remove(doc string) ([]string, bool) {
	ids, ok := c.entries[doc]
	if !ok {
		return nil, false
	}
	delete(c.entries, doc)
	return ids, true
}

// Contains reports whether doc has an entry.
func (c *Catalog) Contains(doc string) bool {
	_, ok := c.entries[doc]
	return ok
}

// Count returns the number of chunks owned by doc.
func (c *Catalog) Count(doc string) int {
	return len(c.entries[doc])
}

// Len returns the number of documents.
func (c *Catalog) Len() int {
	return len(c.entries)
}

// Documents returns document names in sorted order.
func (c *Catalog) Documents() []string {
	docs := make([]string, 0, len(c.entries))
	for d := range c.entries {
		docs = append(docs, d)
	}
	sort.Strings(docs)
	return docs
}

// ChunkIDs returns the set of all owned chunk ids mapped to their owner.
func (c *Catalog) ChunkIDs() map[string]string {
	out := make(map[string]string)
	for doc, ids := range c.entries {
		for _, id := range ids {
			out[id] = doc
		}
	}
	return out
}

// Counts returns document -> chunk count.
func (c *Catalog) Counts() map[string]int {
	out := make(map[string]int, len(c.entries))
	for doc, ids := range c.entries {
		out[doc] = len(ids)
	}
	return out
}

// Clone returns a deep copy.
func (c *Catalog) Clone() *Catalog {
	out := &Catalog{entries: make(map[string][]string, len(c.entries))}
	for doc, ids := range c.entries {
		out.entries[doc] = append([]string(nil), ids...)
	}
	return out
}

// MarshalJSON encodes the catalog as {"doc": ["doc#0", ...]}.
func (c *Catalog) MarshalJSON() ([]byte, error) {
	//nolint:wrapcheck // plain encoding of the entry map
	return json.Marshal(c.entries)
}

// UnmarshalJSON decodes the {"doc": [ids]} form.
func (c *Catalog) UnmarshalJSON(data []byte) error {
	var raw map[string][]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode catalog: %w", err)
	}
	if raw == nil {
		raw = map[string][]string{}
	}
	decoded, err := FromMap(raw)
	if err != nil {
		return err
	}
	c.entries = decoded.entries
	return nil
}
