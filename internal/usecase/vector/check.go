package vector

import (
	"context"
	"fmt"
	"slices"
	"sort"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/domain"
	"github.com/kailas-cloud/ragdex/internal/logger"
)

// Report is the outcome of a consistency check.
type Report struct {
	Documents      int
	Records        int
	CatalogChunks  int
	MissingRecords []string
	OrphanRecords  []string
	// Misowned lists records whose document differs from the catalog owner.
	Misowned []string
	// PersistedMatches is false when the committed snapshot differs from
	// the live state.
	PersistedMatches bool
	PersistedDetail  string
}

// Consistent reports whether no violation was found.
func (r Report) Consistent() bool {
	return len(r.MissingRecords) == 0 && len(r.OrphanRecords) == 0 &&
		len(r.Misowned) == 0 && r.PersistedMatches
}

// Check verifies the bidirectional catalog/index invariant on the live state
// and that the persisted snapshot equals it. A violation is returned as a
// *domain.ConsistencyViolationError together with the full report.
func (e *Engine) Check(ctx context.Context) (Report, error) {
	// Hold off writers so the persisted snapshot cannot move under us.
	if err := e.writers.Acquire(ctx, 1); err != nil {
		return Report{}, fmt.Errorf("acquire writer: %w", err)
	}
	defer e.writers.Release(1)

	cur, err := e.current()
	if err != nil {
		return Report{}, err
	}

	rep := Report{
		Documents: cur.catalog.Len(),
		Records:   cur.store.Len(),
	}
	owners := cur.catalog.ChunkIDs()
	rep.CatalogChunks = len(owners)

	records := cur.store.Records()
	present := make(map[string]struct{}, len(records))
	for _, r := range records {
		present[r.ID] = struct{}{}
		owner, ok := owners[r.ID]
		switch {
		case !ok:
			rep.OrphanRecords = append(rep.OrphanRecords, r.ID)
		case owner != r.Document:
			rep.Misowned = append(rep.Misowned, r.ID)
		}
	}
	for id := range owners {
		if _, ok := present[id]; !ok {
			rep.MissingRecords = append(rep.MissingRecords, id)
		}
	}
	sort.Strings(rep.MissingRecords)
	sort.Strings(rep.OrphanRecords)
	sort.Strings(rep.Misowned)

	persisted, err := e.repo.Load(ctx)
	if err != nil {
		return rep, fmt.Errorf("load persisted snapshot: %w", err)
	}
	rep.PersistedDetail = diffPersisted(cur, persisted)
	rep.PersistedMatches = rep.PersistedDetail == ""

	if rep.Consistent() {
		return rep, nil
	}

	viol := &domain.ConsistencyViolationError{
		MissingRecords: rep.MissingRecords,
		OrphanRecords:  rep.OrphanRecords,
		Detail:         rep.PersistedDetail,
	}
	if len(rep.Misowned) > 0 {
		viol.Detail = joinDetail(fmt.Sprintf("%d records owned by another document", len(rep.Misowned)), viol.Detail)
	}
	logger.FromContextOr(ctx, e.logger).Error("Consistency check failed",
		zap.Int("missing_records", len(rep.MissingRecords)),
		zap.Int("orphan_records", len(rep.OrphanRecords)),
		zap.Int("misowned", len(rep.Misowned)),
		zap.String("persisted", rep.PersistedDetail),
	)
	return rep, viol
}

// diffPersisted describes the first difference between the live state and
// a loaded snapshot, or returns "" when they hold the same records and
// catalog entries.
func diffPersisted(live *state, snap domain.Snapshot) string {
	if snap.Catalog == nil {
		return "persisted snapshot has no catalog"
	}
	liveDocs := live.catalog.Documents()
	if !slices.Equal(liveDocs, snap.Catalog.Documents()) {
		return fmt.Sprintf("persisted catalog has %d documents, live has %d", snap.Catalog.Len(), len(liveDocs))
	}
	for _, doc := range liveDocs {
		a, _ := live.catalog.Lookup(doc)
		b, _ := snap.Catalog.Lookup(doc)
		if !slices.Equal(a, b) {
			return fmt.Sprintf("catalog entry %q differs", doc)
		}
	}

	if len(snap.Records) != live.store.Len() {
		return fmt.Sprintf("persisted index has %d records, live has %d", len(snap.Records), live.store.Len())
	}
	for _, p := range snap.Records {
		r, ok := live.store.Get(p.ID)
		if !ok {
			return fmt.Sprintf("persisted record %s not live", p.ID)
		}
		if r.Document != p.Document || r.Seq != p.Seq || r.Text != p.Text || !slices.Equal(r.Vector, p.Vector) {
			return fmt.Sprintf("record %s differs", p.ID)
		}
	}
	return ""
}

func joinDetail(a, b string) string {
	if b == "" {
		return a
	}
	return a + "; " + b
}
