package dbengine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbarnes/sqlited/internal/wire"
)

func setupHandle(t *testing.T) *Handle {
	t.Helper()
	h, err := Open(context.Background(), ":memory:", BusyParams{MaxRetry: 3, SleepMS: 5}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })
	return h
}

func TestExecuteCreateAndInsert(t *testing.T) {
	h := setupHandle(t)
	ctx := context.Background()

	_, err := h.Execute(ctx, "CREATE TABLE t (id INTEGER PRIMARY KEY, name TEXT)", nil, nil, false)
	require.NoError(t, err)

	res, err := h.Execute(ctx, "INSERT INTO t (id, name) VALUES (?, ?)", []wire.Value{int64(1), "alice"}, nil, false)
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.RowCount)
}

func TestExecuteNamedParameters(t *testing.T) {
	h := setupHandle(t)
	ctx := context.Background()

	_, err := h.Execute(ctx, "CREATE TABLE t (id INTEGER, name TEXT)", nil, nil, false)
	require.NoError(t, err)

	named := wire.Map{"id": int64(2), "name": "bob"}
	_, err = h.Execute(ctx, "INSERT INTO t (id, name) VALUES (:id, :name)", nil, named, false)
	require.NoError(t, err)

	res, err := h.Execute(ctx, "SELECT id, name FROM t WHERE id = :id", nil, wire.Map{"id": int64(2)}, true)
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "bob", res.Rows[0][1])
}

func TestExecuteMissingNamedKey(t *testing.T) {
	h := setupHandle(t)
	ctx := context.Background()

	_, err := h.Execute(ctx, "CREATE TABLE t (id INTEGER, name TEXT)", nil, nil, false)
	require.NoError(t, err)

	_, err = h.Execute(ctx, "INSERT INTO t (id, name) VALUES (:id, :name)", nil, wire.Map{"id": int64(1)}, false)
	assert.Error(t, err, "expected error for missing named key")
}

func TestExecutePositionalCountMismatch(t *testing.T) {
	h := setupHandle(t)
	ctx := context.Background()

	_, err := h.Execute(ctx, "CREATE TABLE t (id INTEGER, name TEXT)", nil, nil, false)
	require.NoError(t, err)

	_, err = h.Execute(ctx, "INSERT INTO t (id, name) VALUES (?, ?)", []wire.Value{int64(1)}, nil, false)
	assert.Error(t, err, "expected error for parameter count mismatch")
}

func TestExecuteFetchColumnsAndDeclTypes(t *testing.T) {
	h := setupHandle(t)
	ctx := context.Background()

	_, err := h.Execute(ctx, "CREATE TABLE t (id INTEGER, name TEXT)", nil, nil, false)
	require.NoError(t, err)
	_, err = h.Execute(ctx, "INSERT INTO t (id, name) VALUES (1, 'x')", nil, nil, false)
	require.NoError(t, err)

	res, err := h.Execute(ctx, "SELECT id, name FROM t", nil, nil, true)
	require.NoError(t, err)
	require.Len(t, res.Columns, 2)
	assert.Equal(t, "id", res.Columns[0].Name)
	assert.Equal(t, "name", res.Columns[1].Name)
	require.NotNil(t, res.Columns[0].DeclType)
	assert.Equal(t, "INTEGER", *res.Columns[0].DeclType)
	require.NotNil(t, res.Columns[1].DeclType)
	assert.Equal(t, "TEXT", *res.Columns[1].DeclType)
	assert.EqualValues(t, 1, res.RowCount)
}

func TestExecuteWithoutFetchOmitsRows(t *testing.T) {
	h := setupHandle(t)
	ctx := context.Background()

	_, err := h.Execute(ctx, "CREATE TABLE t (id INTEGER)", nil, nil, false)
	require.NoError(t, err)
	_, err = h.Execute(ctx, "INSERT INTO t VALUES (1), (2), (3)", nil, nil, false)
	require.NoError(t, err)

	res, err := h.Execute(ctx, "SELECT id FROM t", nil, nil, false)
	require.NoError(t, err)
	assert.Nil(t, res.Rows, "expected nil rows when fetch=false")
	assert.EqualValues(t, 3, res.RowCount, "row counter still increments without fetch")
}

func TestParamNamesDedupesRepeats(t *testing.T) {
	names := paramNames("SELECT * FROM t WHERE a = :x OR b = :x OR c = @y")
	assert.Equal(t, []string{"x", "y"}, names)
}
