package eventstore

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	ferrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
)

// MemoryDSN opens a private in-memory history, used by tests.
const MemoryDSN = ":memory:"

const historySchema = `
CREATE TABLE IF NOT EXISTS build_records (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	build_id   TEXT    NOT NULL,
	generation INTEGER NOT NULL DEFAULT 0,
	kind       TEXT    NOT NULL,
	at_ms      INTEGER NOT NULL,
	data       BLOB    NOT NULL
);
CREATE INDEX IF NOT EXISTS build_records_build ON build_records(build_id);
CREATE INDEX IF NOT EXISTS build_records_at ON build_records(at_ms);
`

const selectRecords = `SELECT seq, build_id, generation, kind, at_ms, data FROM build_records`

// SQLiteStore keeps build history in a SQLite database file.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (creating if needed) the history database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path != MemoryDSN {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, historyError(err, "create history directory", path)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, historyError(err, "open history database", path)
	}
	// A single connection serializes writers and keeps an in-memory database alive.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(historySchema); err != nil {
		_ = db.Close()
		return nil, historyError(err, "initialize history schema", path)
	}
	return &SQLiteStore{db: db, path: path}, nil
}

func historyError(err error, msg, path string) error {
	return ferrors.WrapError(err, ferrors.CategoryFileSystem, msg).WithContext("path", path).Build()
}

func (s *SQLiteStore) Append(ctx context.Context, r Record) error {
	at := r.At
	if at.IsZero() {
		at = time.Now()
	}
	data := []byte(r.Data)
	if len(data) == 0 {
		data = []byte("null")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO build_records (build_id, generation, kind, at_ms, data) VALUES (?, ?, ?, ?, ?)`,
		r.BuildID, int64(r.Generation), r.Kind, at.UnixMilli(), data)
	if err != nil {
		return historyError(err, "append build record", s.path)
	}
	return nil
}

func (s *SQLiteStore) ForBuild(ctx context.Context, buildID string) ([]Record, error) {
	return s.query(ctx, selectRecords+` WHERE build_id = ? ORDER BY seq`, buildID)
}

func (s *SQLiteStore) Between(ctx context.Context, from, to time.Time) ([]Record, error) {
	return s.query(ctx, selectRecords+` WHERE at_ms BETWEEN ? AND ? ORDER BY seq`, from.UnixMilli(), to.UnixMilli())
}

func (s *SQLiteStore) query(ctx context.Context, q string, args ...any) (out []Record, err error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, historyError(err, "query build records", s.path)
	}
	defer func() { err = errors.Join(err, rows.Close()) }()

	for rows.Next() {
		var (
			r   Record
			gen int64
			at  int64
		)
		if err := rows.Scan(&r.Seq, &r.BuildID, &gen, &r.Kind, &at, &r.Data); err != nil {
			return nil, historyError(err, "scan build record", s.path)
		}
		r.Generation = uint64(gen)
		r.At = time.UnixMilli(at)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, historyError(err, "read build records", s.path)
	}
	return out, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
