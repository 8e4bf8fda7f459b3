// Package dbengine wraps the embedded SQL engine — github.com/mattn/go-sqlite3
// — behind the prepare/bind/step/finalize, trace, and busy-handler surface
// spec.md §1 treats as an external black-box capability.
//
// Statements are driven through the driver's low-level Conn/Stmt interfaces
// (reached via (*sql.Conn).Raw) rather than the high-level database/sql
// query helpers, because the statement executor needs NumInput(),
// declared column types, and row-by-row Next() at the driver level.
package dbengine

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"

	"github.com/charmbracelet/log"
	sqlite3 "github.com/mattn/go-sqlite3"
)

// BusyParams controls the retry loop invoked when the engine reports
// SQLITE_BUSY, per spec.md §4.6/§4.7: after the first attempt, up to
// MaxRetry retries, each preceded by a SleepMS sleep.
type BusyParams struct {
	MaxRetry int
	SleepMS  int
}

// Handle owns one opened database file. Two sessions may point at the
// same path; each gets its own Handle, and the engine's own file locking
// arbitrates between them. Path is immutable for the handle's lifetime.
type Handle struct {
	path   string
	db     *sql.DB
	conn   *sql.Conn
	busy   BusyParams
	log    *log.Logger
	closed bool
}

// Open opens the database file at path with a single dedicated connection
// — statements on a Handle are never interleaved across goroutines, so a
// connection pool would only hide bugs — and applies busy retry params.
func Open(ctx context.Context, path string, busy BusyParams, logger *log.Logger) (*Handle, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("dbengine: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	conn, err := db.Conn(ctx)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("dbengine: acquire connection for %q: %w", path, err)
	}
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		_ = db.Close()
		return nil, fmt.Errorf("dbengine: ping %q: %w", path, err)
	}

	h := &Handle{path: path, db: db, conn: conn, busy: busy, log: logger}
	h.trace("opened")
	return h, nil
}

// Path returns the immutable file path this handle was opened against.
func (h *Handle) Path() string {
	return h.path
}

// Close releases the underlying connection. It is safe to call more than
// once.
func (h *Handle) Close() error {
	if h.closed {
		return nil
	}
	h.closed = true
	h.trace("closed")
	if err := h.conn.Close(); err != nil {
		_ = h.db.Close()
		return fmt.Errorf("dbengine: close connection for %q: %w", h.path, err)
	}
	return h.db.Close()
}

// Pragma applies one allow-listed PRAGMA key=value pair, in the order the
// caller supplies them — each as its own statement, matching the
// original implementation's per-key loop (see SPEC_FULL.md §11).
func (h *Handle) Pragma(ctx context.Context, key, value string) error {
	stmt := fmt.Sprintf("PRAGMA %s=%s;", key, value)
	h.trace(stmt)
	if _, err := h.conn.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("dbengine: pragma %s=%s: %w", key, value, err)
	}
	return nil
}

// Changes returns sqlite3_changes() for this connection's last statement,
// used by the statement executor to populate rowcount for DML statements.
func (h *Handle) Changes(ctx context.Context) (int64, error) {
	var n int64
	if err := h.conn.QueryRowContext(ctx, "SELECT changes()").Scan(&n); err != nil {
		return 0, fmt.Errorf("dbengine: changes: %w", err)
	}
	return n, nil
}

// trace logs a statement the way the original's sqlite3_trace hook did,
// via the structured logger rather than stdout.
func (h *Handle) trace(sql string) {
	if h.log != nil {
		h.log.Debug("sql trace", "path", h.path, "sql", sql)
	}
}

// rawConn reaches the underlying *sqlite3.SQLiteConn so callers can use
// the driver's low-level Prepare/Exec surface.
func (h *Handle) rawConn(ctx context.Context, fn func(*sqlite3.SQLiteConn) error) error {
	return h.conn.Raw(func(dc interface{}) error {
		sc, ok := dc.(*sqlite3.SQLiteConn)
		if !ok {
			return fmt.Errorf("dbengine: unexpected driver connection type %T", dc)
		}
		return fn(sc)
	})
}

// isBusy reports whether err is the engine's SQLITE_BUSY condition.
func isBusy(err error) bool {
	sqliteErr, ok := err.(sqlite3.Error)
	if !ok {
		return false
	}
	return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
}

var _ driver.Conn = (*sqlite3.SQLiteConn)(nil)
