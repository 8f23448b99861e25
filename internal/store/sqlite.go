package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
)

// driverName is mattn's sqlite3 driver with a Unicode-aware fold(text)
// function; the built-in lower() only folds ASCII.
const driverName = "sqlite3_fold"

func init() {
	sql.Register(driverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("fold", strings.ToLower, true)
		},
	})
}

type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open(driverName, dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection keeps PRAGMAs in effect and serialises writers.
	db.SetMaxOpenConns(1)

	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err = db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store := &SQLiteStore{db: db, now: func() time.Time { return time.Now().UTC() }}
	if err = store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS users (
        id TEXT PRIMARY KEY, -- UUID
        external_user_id TEXT UNIQUE NOT NULL,
        password_hash TEXT NOT NULL,
        created_at DATETIME NOT NULL
    );

    CREATE TABLE IF NOT EXISTS ocr_responses (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        user_id TEXT, -- NULL for anonymous uploads
        extracted_text TEXT NOT NULL DEFAULT '',
        original_name TEXT,
        image_size INTEGER CHECK (image_size >= 0),
        mime_type TEXT,
        processing_time INTEGER CHECK (processing_time >= 0),
        is_demo BOOLEAN NOT NULL DEFAULT FALSE,
        created_at DATETIME NOT NULL,
        FOREIGN KEY (user_id) REFERENCES users (id) ON DELETE CASCADE
    );

    CREATE INDEX IF NOT EXISTS idx_ocr_responses_user_created
        ON ocr_responses (user_id, created_at);

    CREATE TABLE IF NOT EXISTS contacts (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        user_id TEXT NOT NULL,
        name TEXT NOT NULL CHECK (name <> ''),
        title TEXT,
        company TEXT,
        email TEXT,
        phone TEXT,
        address TEXT,
        website TEXT,
        notes TEXT,
        status TEXT NOT NULL DEFAULT 'new',
        tags_json TEXT NOT NULL DEFAULT '[]', -- JSON array of strings
        last_contact DATETIME,
        ocr_response_id INTEGER,
        created_at DATETIME NOT NULL,
        updated_at DATETIME NOT NULL,
        FOREIGN KEY (user_id) REFERENCES users (id) ON DELETE CASCADE,
        FOREIGN KEY (ocr_response_id) REFERENCES ocr_responses (id) ON DELETE SET NULL
    );

    CREATE INDEX IF NOT EXISTS idx_contacts_user_created
        ON contacts (user_id, created_at);
    `
	_, err := s.db.Exec(schema)
	return err
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

func isConstraintViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint
	}
	return false
}

// User methods
func (s *SQLiteStore) CreateUser(ctx context.Context, externalUserID, passwordHash string) (*User, error) {
	if externalUserID == "" || passwordHash == "" {
		return nil, fmt.Errorf("%w: user id and password are required", ErrInvalidInput)
	}

	user := &User{
		ID:             uuid.NewString(),
		ExternalUserID: externalUserID,
		PasswordHash:   passwordHash,
		CreatedAt:      s.now(),
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO users (id, external_user_id, password_hash, created_at) VALUES (?, ?, ?, ?)",
		user.ID, user.ExternalUserID, user.PasswordHash, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("user %s: %w", externalUserID, ErrDuplicate)
		}
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}
	return user, nil
}

func (s *SQLiteStore) GetUserByExternalID(ctx context.Context, externalUserID string) (*User, error) {
	return s.getUser(ctx, "SELECT id, external_user_id, password_hash, created_at FROM users WHERE external_user_id = ?", externalUserID)
}

func (s *SQLiteStore) GetUserByID(ctx context.Context, id string) (*User, error) {
	return s.getUser(ctx, "SELECT id, external_user_id, password_hash, created_at FROM users WHERE id = ?", id)
}

func (s *SQLiteStore) getUser(ctx context.Context, query string, arg any) (*User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, query, arg).Scan(&user.ID, &user.ExternalUserID, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return &user, nil
}
