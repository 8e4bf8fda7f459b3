// Package dispatch routes decoded requests to the connect/drop/query
// endpoints of spec.md §4.5, translating session/engine/writelock errors
// into the protocol.Status taxonomy of spec.md §7 — the dispatcher is
// the sole component that performs that translation.
package dispatch

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/kbarnes/sqlited/internal/config"
	"github.com/kbarnes/sqlited/internal/protocol"
	"github.com/kbarnes/sqlited/internal/session"
	"github.com/kbarnes/sqlited/internal/wire"
	"github.com/kbarnes/sqlited/internal/writelock"
)

// allowedPragmas is the fixed pragma allow-list from spec.md §4.5.
var allowedPragmas = []string{"journal_mode", "foreign_keys"}

// Dispatcher holds the shared state every endpoint needs.
type Dispatcher struct {
	sessions *session.Registry
	writers  *writelock.Controller
	defaults config.SessionConfig
	log      *log.Logger
}

// New builds a dispatcher over the given session registry and write-slot
// controller, applying sessionDefaults when a connect omits retry params.
func New(sessions *session.Registry, writers *writelock.Controller, sessionDefaults config.SessionConfig, logger *log.Logger) *Dispatcher {
	return &Dispatcher{
		sessions: sessions,
		writers:  writers,
		defaults: sessionDefaults,
		log:      logger,
	}
}

// Dispatch decodes raw, routes it by its "endpoint" key, and returns the
// reply to encode back to the client.
func (d *Dispatcher) Dispatch(ctx context.Context, clientID session.ClientID, raw []byte) protocol.Reply {
	req, err := wire.Decode(raw)
	if err != nil {
		return errorReply(protocol.StatusDeserializationError, "failed to decode request", err.Error())
	}

	endpoint, ok := req.String("endpoint")
	if !ok {
		return errorReply(protocol.StatusInvalidRequest, "missing endpoint", "")
	}

	switch endpoint {
	case "connect":
		return d.connect(ctx, clientID, req)
	case "drop":
		return d.drop(ctx, req)
	case "query":
		return d.query(ctx, clientID, req)
	default:
		return errorReply(protocol.StatusInvalidRequest, "unknown endpoint", endpoint)
	}
}

func errorReply(status protocol.Status, message, details string) protocol.Reply {
	return protocol.Reply{Header: protocol.Error(status, message, details)}
}

func okReply() protocol.Reply {
	return protocol.Reply{Header: protocol.OK()}
}
