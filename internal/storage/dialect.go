package storage

import (
	"fmt"
	"strconv"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Dialect captures the few places where the SQL backends disagree: column
// types, placeholder syntax and upserts. Queries are written with '?'
// placeholders and rebound per dialect.
type Dialect struct {
	Name     string // config name: sqlite, mysql, postgres
	Driver   string // database/sql driver name
	KeyType  string // indexed string keys
	TextType string // unbounded text (image data URLs)
	TimeType string
}

var (
	DialectSQLite = Dialect{
		Name:     "sqlite",
		Driver:   "sqlite",
		KeyType:  "TEXT",
		TextType: "TEXT",
		TimeType: "DATETIME",
	}
	DialectMySQL = Dialect{
		Name:     "mysql",
		Driver:   "mysql",
		KeyType:  "VARCHAR(64)",
		TextType: "LONGTEXT",
		TimeType: "DATETIME(6)",
	}
	DialectPostgres = Dialect{
		Name:     "postgres",
		Driver:   "postgres",
		KeyType:  "TEXT",
		TextType: "TEXT",
		TimeType: "TIMESTAMPTZ",
	}
)

// DialectFor returns the dialect registered under a config driver name.
func DialectFor(name string) (Dialect, error) {
	switch name {
	case "sqlite":
		return DialectSQLite, nil
	case "mysql":
		return DialectMySQL, nil
	case "postgres":
		return DialectPostgres, nil
	default:
		return Dialect{}, fmt.Errorf("unsupported sql driver: %s", name)
	}
}

// Rebind rewrites '?' placeholders into the dialect's native form.
func (d Dialect) Rebind(query string) string {
	if d.Name != "postgres" {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Upsert returns the clause that turns an INSERT into an update of cols
// when keyCol already exists.
func (d Dialect) Upsert(keyCol string, cols ...string) string {
	sets := make([]string, len(cols))
	for i, c := range cols {
		if d.Name == "mysql" {
			sets[i] = fmt.Sprintf("%s = VALUES(%s)", c, c)
		} else {
			sets[i] = fmt.Sprintf("%s = excluded.%s", c, c)
		}
	}
	if d.Name == "mysql" {
		return "ON DUPLICATE KEY UPDATE " + strings.Join(sets, ", ")
	}
	return fmt.Sprintf("ON CONFLICT(%s) DO UPDATE SET %s", keyCol, strings.Join(sets, ", "))
}

// ── DSNs ───────────────────────────────────────────────────

// ServerConfig addresses a MySQL or Postgres server.
type ServerConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

func sqliteDSN(path string) string {
	return path + "?_journal_mode=WAL&_busy_timeout=5000"
}

func mysqlDSN(c ServerConfig) string {
	port := c.Port
	if port == 0 {
		port = 3306
	}
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4",
		c.User, c.Password, c.Host, port, c.Database,
	)
	if c.SSLMode == "require" {
		dsn += "&tls=true"
	}
	return dsn
}

func postgresDSN(c ServerConfig) string {
	port := c.Port
	if port == 0 {
		port = 5432
	}
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, port, c.User, c.Password, c.Database, sslMode,
	)
}
