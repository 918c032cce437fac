package sqlite

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/tursodatabase/libsql-client-go/libsql" // Turso driver
	_ "modernc.org/sqlite"                               // Local SQLite driver
)

// connPragmas are applied by the local driver to every new connection
var connPragmas = []string{
	"busy_timeout(5000)",
	"journal_mode(WAL)",
	"foreign_keys(1)",
}

// IsRemoteURL reports whether dsn points at a libsql (Turso) server
func IsRemoteURL(dsn string) bool {
	lower := strings.ToLower(dsn)
	return strings.HasPrefix(lower, "libsql://") || strings.HasPrefix(lower, "wss://")
}

// OpenSQLite opens (or creates) a SQLite database at the given path.
// libsql:// and wss:// URLs are opened with the Turso driver instead.
func OpenSQLite(path string) (*sql.DB, error) {
	driverName := "sqlite"
	dsn := path

	if IsRemoteURL(path) {
		driverName = "libsql"
	} else {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		for _, pragma := range connPragmas {
			dsn += sep + "_pragma=" + pragma
			sep = "&"
		}
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driverName, err)
	}

	// A single writer avoids SQLITE_BUSY under concurrent saves
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s database: %w", driverName, err)
	}
	return db, nil
}
