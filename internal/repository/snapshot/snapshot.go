// Package snapshot holds what the snapshot backends share: the vector wire
// encoding and load-time verification of a persisted snapshot.
package snapshot

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"github.com/kailas-cloud/ragdex/internal/domain"
	"github.com/kailas-cloud/ragdex/internal/domain/catalog"
)

// Empty returns a snapshot with no records and an empty catalog.
func Empty() domain.Snapshot {
	return domain.Snapshot{Catalog: catalog.New()}
}

// EncodeVector serializes a vector as little-endian float32, 4 bytes per value.
func EncodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// DecodeVector reverses EncodeVector.
func DecodeVector(b []byte) ([]float32, error) {
	if len(b) == 0 || len(b)%4 != 0 {
		return nil, fmt.Errorf("invalid vector blob length %d", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}

// Verify checks a freshly loaded snapshot: uniform dimensions, unique ids,
// and catalog/record agreement in both directions. Any failure is reported
// as an IndexCorruptionError for path. On success it fills Dimensions.
func Verify(path string, s *domain.Snapshot) error {
	corrupt := func(format string, args ...any) error {
		return &domain.IndexCorruptionError{Path: path, Err: fmt.Errorf(format, args...)}
	}
	if s.Catalog == nil {
		s.Catalog = catalog.New()
	}

	owners := s.Catalog.ChunkIDs()
	seen := make(map[string]struct{}, len(s.Records))
	dims := 0
	for _, r := range s.Records {
		if dims == 0 {
			dims = len(r.Vector)
		}
		if len(r.Vector) != dims {
			return corrupt("record %s has %d dimensions, expected %d", r.ID, len(r.Vector), dims)
		}
		if _, dup := seen[r.ID]; dup {
			return corrupt("duplicate record %s", r.ID)
		}
		seen[r.ID] = struct{}{}
		owner, ok := owners[r.ID]
		if !ok {
			return corrupt("record %s not in catalog", r.ID)
		}
		if owner != r.Document {
			return corrupt("record %s belongs to %q, catalog says %q", r.ID, r.Document, owner)
		}
	}

	var missing []string
	for id := range owners {
		if _, ok := seen[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return corrupt("catalog lists %d ids without records, first %s", len(missing), missing[0])
	}

	s.Dimensions = dims
	return nil
}
