package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS sessions (
	token TEXT PRIMARY KEY,
	backend_token TEXT NOT NULL DEFAULT '',
	user_id INTEGER NOT NULL,
	name TEXT NOT NULL DEFAULT '',
	emp_no TEXT NOT NULL DEFAULT '',
	group_id INTEGER NOT NULL DEFAULT 0,
	group_name TEXT NOT NULL DEFAULT '',
	section_id INTEGER NOT NULL DEFAULT 0,
	section_name TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	expires_at TEXT NOT NULL
)`

// timeLayout is fixed-width so stored times compare correctly as text.
const timeLayout = "2006-01-02 15:04:05.000000"

// SQLStore keeps sessions in a SQLite table.
type SQLStore struct {
	DB *sql.DB
}

// OpenSQLite opens (or creates) the session database at path. Use ":memory:" in tests.
func OpenSQLite(path string) (*SQLStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open session db: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	} else if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("session db pragma: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create sessions table: %w", err)
	}
	return &SQLStore{DB: db}, nil
}

func (s *SQLStore) Save(ctx context.Context, sess *Session) error {
	_, err := s.DB.ExecContext(ctx, `INSERT INTO sessions
		(token, backend_token, user_id, name, emp_no, group_id, group_name, section_id, section_name, created_at, expires_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(token) DO UPDATE SET expires_at=excluded.expires_at`,
		sess.Token, sess.BackendToken, sess.UserID, sess.Name, sess.EmpNo, sess.GroupID, sess.GroupName,
		sess.SectionID, sess.SectionName, sess.CreatedAt.UTC().Format(timeLayout), sess.ExpiresAt.UTC().Format(timeLayout))
	return err
}

func (s *SQLStore) Get(ctx context.Context, token string) (*Session, error) {
	var sess Session
	var created, expires string
	err := s.DB.QueryRowContext(ctx, `SELECT token, backend_token, user_id, name, emp_no, group_id, group_name,
		section_id, section_name, created_at, expires_at FROM sessions WHERE token = ?`, token).
		Scan(&sess.Token, &sess.BackendToken, &sess.UserID, &sess.Name, &sess.EmpNo, &sess.GroupID, &sess.GroupName,
			&sess.SectionID, &sess.SectionName, &created, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	// A row whose times cannot be read has no trustworthy expiry; drop it.
	if sess.CreatedAt, err = time.Parse(timeLayout, created); err == nil {
		sess.ExpiresAt, err = time.Parse(timeLayout, expires)
	}
	if err != nil {
		_ = s.Delete(ctx, token)
		return nil, fmt.Errorf("%w: unreadable session times: %v", ErrNotFound, err)
	}
	return &sess, nil
}

func (s *SQLStore) Delete(ctx context.Context, token string) error {
	_, err := s.DB.ExecContext(ctx, "DELETE FROM sessions WHERE token = ?", token)
	return err
}

// DeleteExpired removes sessions that expired before now and returns how many were removed.
func (s *SQLStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.DB.ExecContext(ctx, "DELETE FROM sessions WHERE expires_at < ?", now.UTC().Format(timeLayout))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *SQLStore) Close() error { return s.DB.Close() }
