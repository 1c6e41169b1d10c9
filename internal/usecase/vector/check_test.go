package vector

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/domain"
	"github.com/kailas-cloud/ragdex/internal/domain/catalog"
	filerepo "github.com/kailas-cloud/ragdex/internal/repository/snapshot/file"
)

func TestCheck_Consistent(t *testing.T) {
	e := newEngine(t, filerepo.New(t.TempDir(), zap.NewNop()), nil)
	ingest(t, e, "A.txt", docA)

	rep := mustCheck(t, e)
	if rep.CatalogChunks != 3 || rep.Records != 3 || rep.Documents != 1 {
		t.Fatalf("unexpected report %+v", rep)
	}
}

func TestCheck_PersistedMismatch(t *testing.T) {
	inner := filerepo.New(t.TempDir(), zap.NewNop())
	e := newEngine(t, forgetfulRepo{Repository: inner}, nil)
	ingest(t, e, "A.txt", docA)

	rep, err := e.Check(context.Background())
	var viol *domain.ConsistencyViolationError
	if !errors.As(err, &viol) {
		t.Fatalf("expected ConsistencyViolationError, got %v", err)
	}
	if !errors.Is(err, domain.ErrConsistencyViolation) {
		t.Fatalf("expected ErrConsistencyViolation, got %v", err)
	}
	if rep.PersistedMatches || viol.Detail == "" {
		t.Fatalf("expected persisted mismatch detail, got %+v", rep)
	}
}

func TestCheck_LiveViolation(t *testing.T) {
	e := newEngine(t, filerepo.New(t.TempDir(), zap.NewNop()), nil)
	ingest(t, e, "A.txt", docA)

	// Corrupt the live catalog directly: one id dropped, one phantom added.
	cat := catalog.New()
	cat.Record("A.txt", []string{"A.txt#0", "A.txt#1", "A.txt#9"})
	e.live = &state{store: e.live.store, catalog: cat}

	rep, err := e.Check(context.Background())
	if !errors.Is(err, domain.ErrConsistencyViolation) {
		t.Fatalf("expected ErrConsistencyViolation, got %v", err)
	}
	if len(rep.MissingRecords) != 1 || rep.MissingRecords[0] != "A.txt#9" {
		t.Errorf("unexpected missing records %v", rep.MissingRecords)
	}
	if len(rep.OrphanRecords) != 1 || rep.OrphanRecords[0] != "A.txt#2" {
		t.Errorf("unexpected orphan records %v", rep.OrphanRecords)
	}
}
