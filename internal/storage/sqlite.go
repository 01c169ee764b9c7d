package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/multierr"

	"versync/internal/clock"
	"versync/internal/version"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - Initial versions table
const currentSchemaVersion = 1

// SQLiteStore keeps the version log in a SQLite database.
// Uses WAL mode and a single connection, so writes are serialized.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)
var _ Store = (*InMemoryStore)(nil)

// OpenSQLite creates or opens the database at path and applies the schema.
// It's safe to call on an existing database.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

func applySchema(db *sql.DB) error {
	var current int
	if err := db.QueryRow("PRAGMA user_version").Scan(&current); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if current > currentSchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported %d", current, currentSchemaVersion)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Append adds h at the end of the branch.
func (s *SQLiteStore) Append(ctx context.Context, h version.Header) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return appendTx(ctx, tx, h)
	})
}

// Branch returns the MASTER versions in append order.
func (s *SQLiteStore) Branch(ctx context.Context) (version.Branch, error) {
	rows, err := s.rows(ctx, s.db, StatusMaster)
	if err != nil {
		return nil, err
	}
	return headers(rows), nil
}

// Last returns the newest MASTER version.
func (s *SQLiteStore) Last(ctx context.Context) (version.Header, bool, error) {
	h, err := headTx(ctx, s.db)
	if err != nil || h == nil {
		return version.Header{}, false, err
	}
	return *h, true, nil
}

// Dirty returns the DIRTY versions in the order they were demoted.
func (s *SQLiteStore) Dirty(ctx context.Context) (version.Branch, error) {
	rows, err := s.rows(ctx, s.db, StatusDirty)
	if err != nil {
		return nil, err
	}
	return headers(rows), nil
}

// Rebase demotes and appends in one transaction.
func (s *SQLiteStore) Rebase(ctx context.Context, demote, adopt version.Branch) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, h := range demote {
			seq, err := nextSeq(ctx, tx)
			if err != nil {
				return err
			}
			res, err := tx.ExecContext(ctx,
				`UPDATE versions SET status = ?, seq = ? WHERE clock = ? AND status = ?`,
				StatusDirty, seq, h.Clock.String(), StatusMaster)
			if err != nil {
				return fmt.Errorf("demote %s: %w", h, err)
			}
			if n, _ := res.RowsAffected(); n == 0 {
				return fmt.Errorf("demote %s: %w", h, ErrNotOnBranch)
			}
		}
		for _, h := range adopt {
			if err := appendTx(ctx, tx, h); err != nil {
				return fmt.Errorf("adopt %s: %w", h, err)
			}
		}
		return nil
	})
}

// Pending returns the MASTER versions not uploaded yet and their base.
func (s *SQLiteStore) Pending(ctx context.Context) (*version.Header, version.Branch, error) {
	rows, err := s.rows(ctx, s.db, StatusMaster)
	if err != nil {
		return nil, nil, err
	}
	base, out := pending(rows)
	return base, out, nil
}

// MarkUploaded flags MASTER versions as uploaded. Unknown versions are ignored.
func (s *SQLiteStore) MarkUploaded(ctx context.Context, hs version.Branch) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, h := range hs {
			if _, err := tx.ExecContext(ctx,
				`UPDATE versions SET uploaded = 1 WHERE clock = ? AND status = ?`,
				h.Clock.String(), StatusMaster); err != nil {
				return fmt.Errorf("mark uploaded %s: %w", h, err)
			}
		}
		return nil
	})
}

// NextClock returns the clock for the machine's next version.
func (s *SQLiteStore) NextClock(ctx context.Context, machine string) (clock.VectorClock, error) {
	all, err := s.rows(ctx, s.db, "")
	if err != nil {
		return nil, err
	}
	var used int64
	for _, r := range all {
		if c := r.header.Clock.Get(machine); c > used {
			used = c
		}
	}
	return nextClock(masterHead(all), machine, used), nil
}

func (s *SQLiteStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return multierr.Append(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// rows loads records with the given status, or every record for "".
func (s *SQLiteStore) rows(ctx context.Context, q queryer, status Status) ([]*record, error) {
	query := `SELECT owner, clock, timestamp, status, uploaded FROM versions`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY seq`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query versions: %w", err)
	}
	defer rows.Close()

	var out []*record
	for rows.Next() {
		var (
			owner, clockText, st string
			ts                   int64
			uploaded             bool
		)
		if err := rows.Scan(&owner, &clockText, &ts, &st, &uploaded); err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		vc, err := clock.Parse(clockText)
		if err != nil {
			return nil, fmt.Errorf("stored clock: %w", err)
		}
		out = append(out, &record{
			header:   version.Header{Owner: owner, Clock: vc, Timestamp: ts},
			status:   Status(st),
			uploaded: uploaded,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate versions: %w", err)
	}
	return out, nil
}

func headers(records []*record) version.Branch {
	out := make(version.Branch, 0, len(records))
	for _, r := range records {
		out = append(out, r.header)
	}
	return out
}

func masterHead(records []*record) *version.Header {
	if r := head(records); r != nil {
		return &r.header
	}
	return nil
}

func headTx(ctx context.Context, q queryer) (*version.Header, error) {
	var (
		owner, clockText string
		ts               int64
	)
	err := q.QueryRowContext(ctx,
		`SELECT owner, clock, timestamp FROM versions WHERE status = ? ORDER BY seq DESC LIMIT 1`,
		StatusMaster).Scan(&owner, &clockText, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query head: %w", err)
	}
	vc, err := clock.Parse(clockText)
	if err != nil {
		return nil, fmt.Errorf("stored clock: %w", err)
	}
	return &version.Header{Owner: owner, Clock: vc, Timestamp: ts}, nil
}

func nextSeq(ctx context.Context, tx *sql.Tx) (int64, error) {
	var seq int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM versions`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("next seq: %w", err)
	}
	return seq, nil
}

func appendTx(ctx context.Context, tx *sql.Tx, h version.Header) error {
	last, err := headTx(ctx, tx)
	if err != nil {
		return err
	}
	if err := checkAppend(last, h); err != nil {
		return err
	}

	seq, err := nextSeq(ctx, tx)
	if err != nil {
		return err
	}

	var status string
	err = tx.QueryRowContext(ctx, `SELECT status FROM versions WHERE clock = ?`, h.Clock.String()).Scan(&status)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = tx.ExecContext(ctx,
			`INSERT INTO versions (clock, owner, timestamp, status, seq) VALUES (?, ?, ?, ?, ?)`,
			h.Clock.String(), h.Owner, h.Timestamp, StatusMaster, seq)
		if err != nil {
			return fmt.Errorf("insert version: %w", err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("query version: %w", err)
	case Status(status) == StatusMaster:
		return ErrDuplicate
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE versions SET status = ?, seq = ? WHERE clock = ?`,
		StatusMaster, seq, h.Clock.String()); err != nil {
		return fmt.Errorf("promote version: %w", err)
	}
	return nil
}
