package dbengine

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"regexp"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/kbarnes/sqlited/internal/wire"
)

// Result is what the statement executor hands back to the dispatcher:
// column metadata, the collected rows (nil unless fetch was requested),
// and the rowcount spec.md §4.6 step 8 defines.
type Result struct {
	Columns  []ColumnInfo
	Rows     [][]wire.Value
	RowCount int64
}

// ColumnInfo is one result column's name and declared SQL type, read from
// the engine's own column metadata rather than asserted by the caller.
type ColumnInfo struct {
	Name     string
	DeclType *string
}

// paramPattern matches SQLite's named-parameter sigils (:name, @name,
// $name) in statement text, in the order the engine assigns them bind
// positions — first occurrence of a name claims the next position,
// repeats of the same name reuse it.
var paramPattern = regexp.MustCompile(`[:@$][A-Za-z_][A-Za-z0-9_]*`)

// paramNames returns the ordered, de-duplicated named placeholders found
// in sql, sigil stripped. go-sqlite3's exported surface does not expose
// sqlite3_bind_parameter_name, so names are recovered from the statement
// text itself rather than from the prepared statement.
func paramNames(sql string) []string {
	matches := paramPattern.FindAllString(sql, -1)
	seen := make(map[string]bool, len(matches))
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		name := m[1:]
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}

// Execute prepares sql against the handle, binds parameters, steps through
// the result set, and returns column metadata, rowcount, and — if fetch is
// true — the collected rows. It retries on SQLITE_BUSY per h.busy.
func (h *Handle) Execute(ctx context.Context, sql string, positional []wire.Value, named wire.Map, fetch bool) (Result, error) {
	bound, err := bindArgs(sql, positional, named)
	if err != nil {
		return Result{}, err
	}

	kind := Classify(sql)

	var res Result
	attempt := 0
	for {
		attempt++
		res, err = h.execOnce(ctx, sql, bound, fetch, kind)
		if err == nil {
			return res, nil
		}
		if !isBusy(err) || attempt > h.busy.MaxRetry {
			return Result{}, err
		}
		h.trace(fmt.Sprintf("busy, retry %d/%d", attempt, h.busy.MaxRetry))
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case <-time.After(time.Duration(h.busy.SleepMS) * time.Millisecond):
		}
	}
}

func (h *Handle) execOnce(ctx context.Context, sql string, args []driver.Value, fetch bool, kind StatementKind) (Result, error) {
	var out Result
	err := h.rawConn(ctx, func(sc *sqlite3.SQLiteConn) error {
		stmt, err := sc.Prepare(sql)
		if err != nil {
			return err
		}
		defer stmt.Close()

		if got, want := len(args), stmt.NumInput(); want >= 0 && got != want {
			return fmt.Errorf("dbengine: expected %d parameters, got %d", want, got)
		}

		rows, err := stmt.Query(args)
		if err != nil {
			return err
		}
		defer rows.Close()

		cols := columnInfo(rows)
		if len(cols) > 0 {
			out.Columns = cols
		}

		var n int
		if fetch {
			out.Rows, err = collectRows(rows, len(cols))
			n = len(out.Rows)
		} else {
			n, err = drainRows(rows, len(cols))
		}
		if err != nil {
			return err
		}

		if kind == KindReadOnly {
			out.RowCount = int64(n)
		}
		return nil
	})
	if err != nil || kind == KindReadOnly {
		return out, err
	}
	// changes() is read through h.conn, which Raw keeps locked until its
	// callback returns, so it is queried only after the callback.
	changes, err := h.Changes(ctx)
	if err != nil {
		return out, err
	}
	out.RowCount = changes
	return out, nil
}

// columnInfo reads column names and, where the driver implements the
// optional RowsColumnTypeDatabaseTypeName interface, declared types.
func columnInfo(rows driver.Rows) []ColumnInfo {
	names := rows.Columns()
	out := make([]ColumnInfo, len(names))
	typer, ok := rows.(driver.RowsColumnTypeDatabaseTypeName)
	for i, name := range names {
		out[i] = ColumnInfo{Name: name}
		if ok {
			if dt := typer.ColumnTypeDatabaseTypeName(i); dt != "" {
				d := dt
				out[i].DeclType = &d
			}
		}
	}
	return out
}

func collectRows(rows driver.Rows, ncols int) ([][]wire.Value, error) {
	out := make([][]wire.Value, 0)
	dest := make([]driver.Value, ncols)
	for {
		if err := rows.Next(dest); err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return nil, err
		}
		row := make([]wire.Value, ncols)
		for i, v := range dest {
			row[i] = driverValueToWire(v)
		}
		out = append(out, row)
	}
}

func drainRows(rows driver.Rows, ncols int) (int, error) {
	dest := make([]driver.Value, ncols)
	n := 0
	for {
		if err := rows.Next(dest); err != nil {
			if errors.Is(err, io.EOF) {
				return n, nil
			}
			return n, err
		}
		n++
	}
}

func driverValueToWire(v driver.Value) wire.Value {
	if v == nil {
		return nil
	}
	if t, ok := v.(time.Time); ok {
		return t.Format(time.RFC3339Nano)
	}
	return v
}

// bindArgs resolves positional or named parameters (spec.md §4.5 requires
// exactly one of the two) into driver-ordered values, applying the value
// to SQL-binding table from spec.md §4.6: negative/non-negative integers
// and floats pass through, booleans become 0/1, strings and byte slices
// pass through, and nil binds NULL.
func bindArgs(sql string, positional []wire.Value, named wire.Map) ([]driver.Value, error) {
	if named != nil {
		names := paramNames(sql)
		args := make([]driver.Value, len(names))
		for i, name := range names {
			v, ok := named[name]
			if !ok {
				return nil, fmt.Errorf("dbengine: missing key: %s", name)
			}
			dv, err := toDriverValue(v)
			if err != nil {
				return nil, err
			}
			args[i] = dv
		}
		return args, nil
	}

	args := make([]driver.Value, len(positional))
	for i, v := range positional {
		dv, err := toDriverValue(v)
		if err != nil {
			return nil, err
		}
		args[i] = dv
	}
	return args, nil
}

func toDriverValue(v wire.Value) (driver.Value, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case bool:
		if t {
			return int64(1), nil
		}
		return int64(0), nil
	case int64:
		return t, nil
	case int:
		return int64(t), nil
	case uint64:
		return int64(t), nil
	case float64:
		return t, nil
	case string:
		return t, nil
	case []byte:
		return t, nil
	default:
		return nil, fmt.Errorf("dbengine: unsupported parameter type %T", v)
	}
}
