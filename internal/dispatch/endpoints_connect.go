package dispatch

import (
	"context"
	"strconv"

	"github.com/kbarnes/sqlited/internal/dbengine"
	"github.com/kbarnes/sqlited/internal/protocol"
	"github.com/kbarnes/sqlited/internal/session"
	"github.com/kbarnes/sqlited/internal/wire"
)

// connect implements spec.md §4.5's `connect` endpoint: idempotent
// reconnect to the same path, INVALID_REQUEST on a path mismatch, or a
// fresh session with busy-retry params and allow-listed pragmas applied.
func (d *Dispatcher) connect(ctx context.Context, clientID session.ClientID, req wire.Map) protocol.Reply {
	path, ok := req.String("database")
	if !ok {
		return errorReply(protocol.StatusInvalidRequest, "missing database", "")
	}

	if existing, ok := d.sessions.Get(clientID); ok {
		if existing.Path != path {
			return errorReply(protocol.StatusInvalidRequest, "connection from same socket to a different database", "")
		}
		return okReply()
	}

	busy := dbengine.BusyParams{
		MaxRetry: parseIntOrDefault(req, "max_retry", d.defaults.DefaultMaxRetry),
		SleepMS:  parseIntOrDefault(req, "sleep_ms", d.defaults.DefaultSleepMS),
	}

	handle, err := dbengine.Open(ctx, path, busy, d.log)
	if err != nil {
		return errorReply(protocol.StatusDatabaseOpeningError, "failed to open database", err.Error())
	}

	for _, key := range allowedPragmas {
		value, present := req.String(key)
		if !present {
			continue
		}
		if err := handle.Pragma(ctx, key, value); err != nil {
			_ = handle.Close()
			return errorReply(protocol.StatusDatabaseOpeningError, "failed to apply pragma", err.Error())
		}
	}

	d.sessions.Put(&session.Session{ClientID: clientID, Path: path, Handle: handle})
	return okReply()
}

// parseIntOrDefault reads key as a decimal string and coerces it to an
// int; a missing key or a parse failure falls back to def, per spec.md
// §4.5.
func parseIntOrDefault(req wire.Map, key string, def int) int {
	s, ok := req.String(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
