// Package storage opens the decision audit database and keeps its schema
// current.
//
// PostgreSQL (lib/pq) backs shared audit stores; SQLite (modernc.org/sqlite)
// backs local files and in-memory stores. The driver is picked from the DSN.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/canonica-labs/admission/internal/errors"
)

// Driver names registered with database/sql.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// connectTimeout bounds the initial ping.
const connectTimeout = 5 * time.Second

// Store is an open, migrated audit database.
type Store struct {
	db     *sql.DB
	driver string
}

// ParseDSN returns the database/sql driver and data source name for dsn.
//
//	postgres://... postgresql://...  -> postgres
//	sqlite:<path>                     -> sqlite, <path>
//	file:<path>, :memory:             -> sqlite, unchanged
func ParseDSN(dsn string) (driver, source string, err error) {
	dsn = strings.TrimSpace(dsn)
	switch {
	case dsn == "":
		return "", "", errors.NewInvalidConfig("audit DSN is empty", nil)
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return DriverPostgres, dsn, nil
	case strings.HasPrefix(dsn, "sqlite:"):
		source = strings.TrimPrefix(strings.TrimPrefix(dsn, "sqlite:"), "//")
		if source == "" {
			return "", "", errors.NewInvalidConfig("sqlite DSN has no path", nil)
		}
		return DriverSQLite, source, nil
	case strings.HasPrefix(dsn, "file:"), dsn == ":memory:":
		return DriverSQLite, dsn, nil
	}
	return "", "", errors.NewInvalidConfig(
		fmt.Sprintf("unsupported audit DSN scheme: %s", schemeOf(dsn)), nil)
}

func schemeOf(dsn string) string {
	if i := strings.Index(dsn, ":"); i > 0 {
		return dsn[:i]
	}
	return "(none)"
}

// Open connects to the audit database, verifies connectivity and applies
// pending migrations.
func Open(ctx context.Context, dsn string) (*Store, error) {
	driver, source, err := ParseDSN(dsn)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, source)
	if err != nil {
		return nil, errors.NewAuditUnavailable(dsn, err)
	}

	if driver == DriverSQLite {
		// SQLite allows a single writer, and every connection to
		// ":memory:" is a separate database.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	s := &Store{db: db, driver: driver}

	if err := s.CheckConnectivity(ctx); err != nil {
		db.Close()
		return nil, errors.NewAuditUnavailable(dsn, err)
	}

	if err := NewMigrationRunner(db).Run(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// CheckConnectivity pings the database.
func (s *Store) CheckConnectivity(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	return s.db.PingContext(ctx)
}

// DB returns the underlying connection pool.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Driver returns the database/sql driver name in use.
func (s *Store) Driver() string {
	return s.driver
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
