package dispatch

import (
	"context"

	"github.com/kbarnes/sqlited/internal/dbengine"
	"github.com/kbarnes/sqlited/internal/protocol"
	"github.com/kbarnes/sqlited/internal/session"
	"github.com/kbarnes/sqlited/internal/wire"
	"github.com/kbarnes/sqlited/internal/writelock"
)

const (
	opExecute         = 1
	opExecuteAndFetch = 2
)

// query implements spec.md §4.5's `query` endpoint: requires an existing
// session, classifies the statement, arbitrates it through the
// write-serialization slot per §4.7, and delegates stepping to §4.6's
// statement executor.
func (d *Dispatcher) query(ctx context.Context, clientID session.ClientID, req wire.Map) protocol.Reply {
	sess, ok := d.sessions.Get(clientID)
	if !ok {
		return errorReply(protocol.StatusInvalidRequest, "no session for client", "")
	}

	sqlText, ok := req.String("query")
	if !ok {
		return errorReply(protocol.StatusInvalidRequest, "missing query", "")
	}

	operation, ok := req.Int("operation")
	if !ok {
		return errorReply(protocol.StatusInvalidRequest, "missing operation", "")
	}
	fetch := operation == opExecuteAndFetch

	positional, named, _ := req.Parameters()

	kind := translateKind(dbengine.Classify(sqlText))

	var result dbengine.Result
	var execErr error
	err := d.writers.Acquire(writelock.HolderID(clientID), kind, func() error {
		result, execErr = sess.Handle.Execute(ctx, sqlText, positional, named, fetch)
		return execErr
	})
	if err != nil {
		return errorReply(protocol.StatusInvalidQuery, "query failed", err.Error())
	}

	return protocol.Reply{
		Header: protocol.Header{
			Status:   protocol.StatusOK,
			Message:  "OK",
			Columns:  toProtocolColumns(result.Columns),
			RowCount: result.RowCount,
		},
		Rows: result.Rows,
	}
}

func toProtocolColumns(cols []dbengine.ColumnInfo) []protocol.Column {
	if cols == nil {
		return nil
	}
	out := make([]protocol.Column, len(cols))
	for i, c := range cols {
		out[i] = protocol.Column{Name: c.Name, DeclType: c.DeclType}
	}
	return out
}

func translateKind(k dbengine.StatementKind) writelock.Kind {
	switch k {
	case dbengine.KindBegin:
		return writelock.KindBegin
	case dbengine.KindCommit:
		return writelock.KindCommit
	case dbengine.KindRollback:
		return writelock.KindRollback
	case dbengine.KindWrite:
		return writelock.KindWrite
	default:
		return writelock.KindReadOnly
	}
}
