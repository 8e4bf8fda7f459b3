package dispatch

import (
	"context"
	"os"

	"github.com/kbarnes/sqlited/internal/protocol"
	"github.com/kbarnes/sqlited/internal/wire"
)

// drop implements spec.md §4.5's `drop` endpoint: erase every session
// pointed at path, then unlink the file. A missing file is not an error;
// this always returns OK after both steps.
func (d *Dispatcher) drop(ctx context.Context, req wire.Map) protocol.Reply {
	path, ok := req.String("database")
	if !ok {
		return errorReply(protocol.StatusInvalidRequest, "missing database", "")
	}

	d.sessions.RemoveByPath(path)

	// Always OK past this point: a missing file is not an error, and
	// spec.md §4.5 draws no other exception for this endpoint.
	_ = os.Remove(path)
	return okReply()
}
