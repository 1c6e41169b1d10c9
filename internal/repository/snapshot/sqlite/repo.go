// Package sqlite persists index snapshots in a single SQLite database.
// Commits apply the delta inside one transaction.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/kailas-cloud/ragdex/internal/domain"
	"github.com/kailas-cloud/ragdex/internal/domain/catalog"
	"github.com/kailas-cloud/ragdex/internal/repository/snapshot"
)

// DBFile is the database file name inside the index directory.
const DBFile = "index.db"

const schema = `
CREATE TABLE IF NOT EXISTS chunks (
	id       TEXT PRIMARY KEY,
	document TEXT NOT NULL,
	seq      INTEGER NOT NULL,
	text     TEXT NOT NULL,
	vector   BLOB NOT NULL,
	pos      INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS chunks_document ON chunks(document);
CREATE TABLE IF NOT EXISTS catalog (
	document TEXT NOT NULL,
	ord      INTEGER NOT NULL,
	chunk_id TEXT NOT NULL,
	PRIMARY KEY (document, ord)
);`

// Repo implements usecase/vector.Repository on SQLite.
type Repo struct {
	db   *sql.DB
	path string
}

// New opens (creating if needed) the database in dir.
func New(dir string) (*Repo, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create index dir %s: %w: %w", dir, domain.ErrPersistence, err)
	}
	path := filepath.Join(dir, DBFile)

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open %s: %w: %w", path, domain.ErrPersistence, err)
	}
	// One writer; the engine serialises commits anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, &domain.IndexCorruptionError{Path: path, Err: err}
	}
	return &Repo{db: db, path: path}, nil
}

// Close closes the database.
func (r *Repo) Close() error {
	if err := r.db.Close(); err != nil {
		return fmt.Errorf("close %s: %w", r.path, err)
	}
	return nil
}

// Path returns the database file path.
func (r *Repo) Path() string { return r.path }

// Load reads every chunk and catalog row.
func (r *Repo) Load(ctx context.Context) (domain.Snapshot, error) {
	records, err := r.loadRecords(ctx)
	if err != nil {
		return domain.Snapshot{}, err
	}
	cat, err := r.loadCatalog(ctx)
	if err != nil {
		return domain.Snapshot{}, err
	}

	s := domain.Snapshot{Records: records, Catalog: cat}
	if err := snapshot.Verify(r.path, &s); err != nil {
		return domain.Snapshot{}, err
	}
	return s, nil
}

func (r *Repo) loadRecords(ctx context.Context) ([]domain.VectorRecord, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, document, seq, text, vector FROM chunks ORDER BY pos`)
	if err != nil {
		return nil, r.readErr(ctx, "query chunks", err)
	}
	defer func() { _ = rows.Close() }()

	var records []domain.VectorRecord
	for rows.Next() {
		var (
			rec  domain.VectorRecord
			blob []byte
		)
		if err := rows.Scan(&rec.ID, &rec.Document, &rec.Seq, &rec.Text, &blob); err != nil {
			return nil, &domain.IndexCorruptionError{Path: r.path, Err: err}
		}
		rec.Vector, err = snapshot.DecodeVector(blob)
		if err != nil {
			return nil, &domain.IndexCorruptionError{Path: r.path, Err: fmt.Errorf("chunk %s: %w", rec.ID, err)}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, r.readErr(ctx, "iterate chunks", err)
	}
	return records, nil
}

func (r *Repo) loadCatalog(ctx context.Context) (*catalog.Catalog, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT document, chunk_id FROM catalog ORDER BY document, ord`)
	if err != nil {
		return nil, r.readErr(ctx, "query catalog", err)
	}
	defer func() { _ = rows.Close() }()

	entries := make(map[string][]string)
	for rows.Next() {
		var doc, id string
		if err := rows.Scan(&doc, &id); err != nil {
			return nil, &domain.IndexCorruptionError{Path: r.path, Err: err}
		}
		entries[doc] = append(entries[doc], id)
	}
	if err := rows.Err(); err != nil {
		return nil, r.readErr(ctx, "iterate catalog", err)
	}

	cat, err := catalog.FromMap(entries)
	if err != nil {
		return nil, &domain.IndexCorruptionError{Path: r.path, Err: err}
	}
	return cat, nil
}

// Commit applies delta in one transaction. Catalog entries for
// delta.Documents are rewritten from next.
func (r *Repo) Commit(ctx context.Context, next domain.Snapshot, delta domain.Delta) error {
	if delta.Empty() {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return r.writeErr(ctx, "begin", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, doc := range delta.RemovedDocuments {
		if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE document = ?`, doc); err != nil {
			return r.writeErr(ctx, "delete chunks "+doc, err)
		}
	}

	if len(delta.Added) > 0 {
		var pos int64
		if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(pos), -1) + 1 FROM chunks`).Scan(&pos); err != nil {
			return r.writeErr(ctx, "next position", err)
		}
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO chunks (id, document, seq, text, vector, pos) VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return r.writeErr(ctx, "prepare insert", err)
		}
		defer func() { _ = stmt.Close() }()
		for i, rec := range delta.Added {
			_, err := stmt.ExecContext(ctx,
				rec.ID, rec.Document, rec.Seq, rec.Text, snapshot.EncodeVector(rec.Vector), pos+int64(i))
			if err != nil {
				return r.writeErr(ctx, "insert chunk "+rec.ID, err)
			}
		}
	}

	docs := append(append([]string(nil), delta.RemovedDocuments...), delta.Documents...)
	for _, doc := range docs {
		if _, err := tx.ExecContext(ctx, `DELETE FROM catalog WHERE document = ?`, doc); err != nil {
			return r.writeErr(ctx, "delete catalog "+doc, err)
		}
	}
	for _, doc := range delta.Documents {
		ids, ok := next.Catalog.Lookup(doc)
		if !ok {
			continue
		}
		for ord, id := range ids {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO catalog (document, ord, chunk_id) VALUES (?, ?, ?)`, doc, ord, id)
			if err != nil {
				return r.writeErr(ctx, "insert catalog "+doc, err)
			}
		}
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return r.writeErr(ctx, "commit", err)
	}
	return nil
}

// Quarantine renames both tables aside and recreates them empty.
func (r *Repo) Quarantine(ctx context.Context) error {
	suffix := "_corrupt_" + strconv.FormatInt(time.Now().Unix(), 10)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return r.writeErr(ctx, "begin", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range []string{
		`DROP INDEX IF EXISTS chunks_document`,
		`ALTER TABLE chunks RENAME TO chunks` + suffix,
		`ALTER TABLE catalog RENAME TO catalog` + suffix,
		schema,
	} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return r.writeErr(ctx, "quarantine", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return r.writeErr(ctx, "quarantine commit", err)
	}
	return nil
}

func (r *Repo) readErr(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s: %w", op, ctxErr)
	}
	return &domain.IndexCorruptionError{Path: r.path, Err: fmt.Errorf("%s: %w", op, err)}
}

func (r *Repo) writeErr(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s: %w", op, ctxErr)
	}
	return fmt.Errorf("%s %s: %w: %w", op, r.path, domain.ErrPersistence, err)
}
