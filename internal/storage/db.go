package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned when a looked-up row does not exist.
var ErrNotFound = errors.New("not found")

// DB wraps the SQL connection used for decks, revisions, export jobs and
// settings.
type DB struct {
	conn    *sql.DB
	dialect Dialect
	dataDir string // root directory for exported and linked files
}

// New opens (or creates) the SQLite file at dbPath. dataDir is created if
// missing.
func New(dbPath, dataDir string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	conn, err := sql.Open(DialectSQLite.Driver, sqliteDSN(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite only supports one writer; a single connection avoids SQLITE_BUSY.
	conn.SetMaxOpenConns(1)

	return open(conn, DialectSQLite, dataDir)
}

// NewServer connects to a MySQL or Postgres server named by driver.
func NewServer(driver string, cfg ServerConfig, dataDir string) (*DB, error) {
	d, err := DialectFor(driver)
	if err != nil {
		return nil, err
	}
	var dsn string
	switch d.Name {
	case "mysql":
		dsn = mysqlDSN(cfg)
	case "postgres":
		dsn = postgresDSN(cfg)
	default:
		return nil, fmt.Errorf("%s is not a server driver", driver)
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	conn, err := sql.Open(d.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d.Name, err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping %s: %w", d.Name, err)
	}
	return open(conn, d, dataDir)
}

func open(conn *sql.DB, d Dialect, dataDir string) (*DB, error) {
	db := &DB{conn: conn, dialect: d, dataDir: dataDir}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// DataDir returns the root data directory.
func (db *DB) DataDir() string {
	return db.dataDir
}

// Conn returns the underlying database connection.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

func (db *DB) Dialect() Dialect {
	return db.dialect
}

func (db *DB) exec(query string, args ...any) (sql.Result, error) {
	return db.conn.Exec(db.dialect.Rebind(query), args...)
}

func (db *DB) query(query string, args ...any) (*sql.Rows, error) {
	return db.conn.Query(db.dialect.Rebind(query), args...)
}

func (db *DB) queryRow(query string, args ...any) *sql.Row {
	return db.conn.QueryRow(db.dialect.Rebind(query), args...)
}

func (db *DB) migrate() error {
	d := db.dialect
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS decks (
			id ` + d.KeyType + ` PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			created_at ` + d.TimeType + ` NOT NULL,
			updated_at ` + d.TimeType + ` NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS slides (
			deck_id ` + d.KeyType + ` NOT NULL,
			slide_id INTEGER NOT NULL,
			sort_order INTEGER NOT NULL,
			background_color VARCHAR(64) NULL,
			background_image ` + d.TextType + ` NULL,
			PRIMARY KEY (deck_id, slide_id)
		)`,
		`CREATE TABLE IF NOT EXISTS elements (
			deck_id ` + d.KeyType + ` NOT NULL,
			slide_id INTEGER NOT NULL,
			element_id BIGINT NOT NULL,
			sort_order INTEGER NOT NULL,
			kind VARCHAR(16) NOT NULL,
			x DOUBLE PRECISION NOT NULL,
			y DOUBLE PRECISION NOT NULL,
			width DOUBLE PRECISION NOT NULL,
			height DOUBLE PRECISION NOT NULL,
			content ` + d.TextType + ` NOT NULL,
			style_json TEXT NOT NULL,
			source TEXT NOT NULL,
			PRIMARY KEY (deck_id, element_id)
		)`,
		`CREATE INDEX idx_elements_slide ON elements(deck_id, slide_id)`,
		`CREATE TABLE IF NOT EXISTS revisions (
			id ` + d.KeyType + ` PRIMARY KEY,
			deck_id ` + d.KeyType + ` NOT NULL,
			label VARCHAR(255) NOT NULL,
			snapshot_json ` + d.TextType + ` NOT NULL,
			created_at ` + d.TimeType + ` NOT NULL
		)`,
		`CREATE INDEX idx_revisions_deck ON revisions(deck_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS export_jobs (
			id ` + d.KeyType + ` PRIMARY KEY,
			deck_id ` + d.KeyType + ` NOT NULL,
			format VARCHAR(16) NOT NULL,
			output_path TEXT NOT NULL,
			schedule VARCHAR(128) NOT NULL,
			enabled BOOLEAN NOT NULL,
			last_run_at ` + d.TimeType + ` NULL,
			last_error TEXT NOT NULL,
			created_at ` + d.TimeType + ` NOT NULL,
			updated_at ` + d.TimeType + ` NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS app_settings (
			setting_key VARCHAR(128) PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS mcp_approvals (
			id ` + d.KeyType + ` PRIMARY KEY,
			tool VARCHAR(64) NOT NULL,
			description TEXT NOT NULL,
			status VARCHAR(16) NOT NULL,
			metadata TEXT NOT NULL,
			created_at ` + d.TimeType + ` NOT NULL
		)`,
	}

	for _, m := range migrations {
		if _, err := db.conn.Exec(m); err != nil {
			// Indexes have no portable IF NOT EXISTS; a rerun reports them as existing.
			if strings.HasPrefix(m, "CREATE INDEX") && isAlreadyExists(err) {
				continue
			}
			return fmt.Errorf("migration failed: %s: %w", m[:40], err)
		}
	}

	return nil
}

func isAlreadyExists(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "already exists") || strings.Contains(msg, "duplicate key name")
}
