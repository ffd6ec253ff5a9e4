package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"gallery/internal/metrics"
	"gallery/internal/models"
	"gallery/internal/store"
)

// DBType represents the type of database
type DBType string

const (
	SQLite   DBType = "sqlite3"
	Postgres DBType = "postgres"
)

// SQLStore implements store.Store with one table per collection keyed by id.
type SQLStore struct {
	db     *sql.DB
	dbType DBType
}

var _ store.Store = (*SQLStore)(nil)

// New creates a new SQLStore with the given driver and connection string
func New(driver, connStr string) (*SQLStore, error) {
	dbType := DBType(driver)
	if dbType != SQLite && dbType != Postgres {
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}

	db, err := sql.Open(driver, connStr)
	if err != nil {
		return nil, err
	}
	if dbType == SQLite {
		// One writer at a time; also keeps ":memory:" on a single connection.
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLStore{db: db, dbType: dbType}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL
func (s *SQLStore) rebind(query string) string {
	if s.dbType == SQLite {
		return query
	}
	var result strings.Builder
	argNum := 1
	for _, c := range query {
		if c == '?' {
			fmt.Fprintf(&result, "$%d", argNum)
			argNum++
		} else {
			result.WriteRune(c)
		}
	}
	return result.String()
}

func (s *SQLStore) initSchema() error {
	var stmts []string
	if s.dbType == Postgres {
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS users (
				id BIGSERIAL PRIMARY KEY,
				username TEXT NOT NULL UNIQUE,
				password_hash TEXT NOT NULL,
				role TEXT NOT NULL
			);`,
			`CREATE TABLE IF NOT EXISTS libraries (
				id BIGSERIAL PRIMARY KEY,
				name TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMPTZ NOT NULL
			);`,
			`CREATE TABLE IF NOT EXISTS media (
				id BIGSERIAL PRIMARY KEY,
				name TEXT NOT NULL,
				filename TEXT NOT NULL,
				type TEXT NOT NULL,
				library_id BIGINT NOT NULL,
				topic TEXT NOT NULL,
				uploaded_at TIMESTAMPTZ NOT NULL,
				size BIGINT NOT NULL,
				width INTEGER NOT NULL DEFAULT 0,
				height INTEGER NOT NULL DEFAULT 0
			);`,
		}
	} else {
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS users (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				username TEXT NOT NULL UNIQUE,
				password_hash TEXT NOT NULL,
				role TEXT NOT NULL
			);`,
			`CREATE TABLE IF NOT EXISTS libraries (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				name TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				created_at DATETIME NOT NULL
			);`,
			`CREATE TABLE IF NOT EXISTS media (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				name TEXT NOT NULL,
				filename TEXT NOT NULL,
				type TEXT NOT NULL,
				library_id INTEGER NOT NULL,
				topic TEXT NOT NULL,
				uploaded_at DATETIME NOT NULL,
				size INTEGER NOT NULL,
				width INTEGER NOT NULL DEFAULT 0,
				height INTEGER NOT NULL DEFAULT 0
			);`,
		}
	}
	stmts = append(stmts, `CREATE INDEX IF NOT EXISTS idx_media_library ON media(library_id);`)

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) observe(op string, errp *error) func() {
	start := time.Now()
	return func() { metrics.ObserveStore(string(s.dbType), op, start, errp) }
}

// insertID runs an INSERT and returns the new row id on either dialect.
func (s *SQLStore) insertID(ctx context.Context, tx *sql.Tx, query string, args ...any) (int64, error) {
	if s.dbType == Postgres {
		var id int64
		err := tx.QueryRowContext(ctx, s.rebind(query+" RETURNING id"), args...).Scan(&id)
		return id, err
	}
	result, err := tx.ExecContext(ctx, s.rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

// User functions

func (s *SQLStore) ListUsers(ctx context.Context) (_ []models.User, err error) {
	defer s.observe("list_users", &err)()
	rows, err := s.db.QueryContext(ctx, "SELECT id, username, password_hash, role FROM users ORDER BY id ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Password, &u.Role); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *SQLStore) GetUserByUsername(ctx context.Context, username string) (_ models.User, err error) {
	defer s.observe("get_user", &err)()
	var u models.User
	err = s.db.QueryRowContext(ctx, s.rebind("SELECT id, username, password_hash, role FROM users WHERE username = ?"), username).
		Scan(&u.ID, &u.Username, &u.Password, &u.Role)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, store.ErrNotFound
	}
	return u, err
}

func (s *SQLStore) CreateUser(ctx context.Context, u *models.User) (err error) {
	defer s.observe("create_user", &err)()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	id, err := s.insertID(ctx, tx, "INSERT INTO users (username, password_hash, role) VALUES (?, ?, ?)",
		u.Username, u.Password, string(u.Role))
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrConflict
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	u.ID = id
	return nil
}

func (s *SQLStore) DeleteUser(ctx context.Context, id int64) (err error) {
	defer s.observe("delete_user", &err)()
	_, err = s.db.ExecContext(ctx, s.rebind("DELETE FROM users WHERE id = ?"), id)
	return err
}

// Library functions

func (s *SQLStore) ListLibraries(ctx context.Context) (_ []models.Library, err error) {
	defer s.observe("list_libraries", &err)()
	rows, err := s.db.QueryContext(ctx, "SELECT id, name, description, created_at FROM libraries ORDER BY id ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	libs := []models.Library{}
	for rows.Next() {
		var l models.Library
		if err := rows.Scan(&l.ID, &l.Name, &l.Description, &l.CreatedAt); err != nil {
			return nil, err
		}
		libs = append(libs, l)
	}
	return libs, rows.Err()
}

func (s *SQLStore) GetLibrary(ctx context.Context, id int64) (_ models.Library, err error) {
	defer s.observe("get_library", &err)()
	var l models.Library
	err = s.db.QueryRowContext(ctx, s.rebind("SELECT id, name, description, created_at FROM libraries WHERE id = ?"), id).
		Scan(&l.ID, &l.Name, &l.Description, &l.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Library{}, store.ErrNotFound
	}
	return l, err
}

func (s *SQLStore) CreateLibrary(ctx context.Context, l *models.Library) (err error) {
	defer s.observe("create_library", &err)()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	id, err := s.insertID(ctx, tx, "INSERT INTO libraries (name, description, created_at) VALUES (?, ?, ?)",
		l.Name, l.Description, l.CreatedAt)
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	l.ID = id
	return nil
}

// DeleteLibrary removes the library and its media in one transaction.
func (s *SQLStore) DeleteLibrary(ctx context.Context, id int64) (_ []models.Media, err error) {
	defer s.observe("delete_library", &err)()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	removed, err := s.queryMedia(ctx, tx, "SELECT "+mediaColumns+" FROM media WHERE library_id = ? ORDER BY id ASC", id)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, s.rebind("DELETE FROM media WHERE library_id = ?"), id); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, s.rebind("DELETE FROM libraries WHERE id = ?"), id); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return removed, nil
}

// Media functions

const mediaColumns = "id, name, filename, type, library_id, topic, uploaded_at, size, width, height"

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *SQLStore) queryMedia(ctx context.Context, q querier, query string, args ...any) ([]models.Media, error) {
	rows, err := q.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	media := []models.Media{}
	for rows.Next() {
		var m models.Media
		if err := rows.Scan(&m.ID, &m.Name, &m.Filename, &m.Type, &m.LibraryID, &m.Topic,
			&m.UploadedAt, &m.Size, &m.Width, &m.Height); err != nil {
			return nil, err
		}
		media = append(media, m)
	}
	return media, rows.Err()
}

func (s *SQLStore) ListMedia(ctx context.Context, filter models.MediaFilter) (_ []models.Media, err error) {
	defer s.observe("list_media", &err)()
	query := "SELECT " + mediaColumns + " FROM media"
	var where []string
	var args []any
	if filter.LibraryID != 0 {
		where = append(where, "library_id = ?")
		args = append(args, filter.LibraryID)
	}
	if filter.Topic != "" {
		where = append(where, "topic = ?")
		args = append(args, filter.Topic)
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	return s.queryMedia(ctx, s.db, query+" ORDER BY id ASC", args...)
}

func (s *SQLStore) GetMedia(ctx context.Context, id int64) (_ models.Media, err error) {
	defer s.observe("get_media", &err)()
	media, err := s.queryMedia(ctx, s.db, "SELECT "+mediaColumns+" FROM media WHERE id = ?", id)
	if err != nil {
		return models.Media{}, err
	}
	if len(media) == 0 {
		return models.Media{}, store.ErrNotFound
	}
	return media[0], nil
}

func (s *SQLStore) AddMedia(ctx context.Context, libraryID int64, items []models.Media) (_ []models.Media, err error) {
	defer s.observe("add_media", &err)()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	err = tx.QueryRowContext(ctx, s.rebind("SELECT 1 FROM libraries WHERE id = ?"), libraryID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrLibraryMissing
	}
	if err != nil {
		return nil, err
	}

	added := make([]models.Media, len(items))
	for i, m := range items {
		m.LibraryID = libraryID
		m.ID, err = s.insertID(ctx, tx,
			"INSERT INTO media (name, filename, type, library_id, topic, uploaded_at, size, width, height) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
			m.Name, m.Filename, string(m.Type), m.LibraryID, m.Topic, m.UploadedAt, m.Size, m.Width, m.Height)
		if err != nil {
			return nil, err
		}
		added[i] = m
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return added, nil
}

func (s *SQLStore) DeleteMedia(ctx context.Context, id int64) (_ models.Media, err error) {
	defer s.observe("delete_media", &err)()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Media{}, err
	}
	defer func() { _ = tx.Rollback() }()

	media, err := s.queryMedia(ctx, tx, "SELECT "+mediaColumns+" FROM media WHERE id = ?", id)
	if err != nil {
		return models.Media{}, err
	}
	if len(media) == 0 {
		return models.Media{}, store.ErrNotFound
	}
	if _, err := tx.ExecContext(ctx, s.rebind("DELETE FROM media WHERE id = ?"), id); err != nil {
		return models.Media{}, err
	}
	if err := tx.Commit(); err != nil {
		return models.Media{}, err
	}
	return media[0], nil
}
