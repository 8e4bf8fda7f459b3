// Package wire adapts the binary object serialization library — treated as
// a black-box capability by the rest of this module — to the typed
// request/reply values the dispatcher and statement executor work with.
//
// Packing and unpacking is delegated to github.com/hashicorp/go-msgpack,
// the same MessagePack codec used for RPC framing in the Serf/Consul
// lineage this package borrows its shape from.
package wire

import (
	"bytes"
	"fmt"

	"github.com/hashicorp/go-msgpack/codec"
)

// RawToString decodes msgpack raw/bin string bytes into Go strings instead
// of []byte, matching the Consul/Serf/Nomad RPC decoders this package is
// borrowed from — without it every string field (endpoint, database,
// query, pragma values, named parameters) decodes as []byte and every
// wire.Map.String lookup fails.
var handle = &codec.MsgpackHandle{RawToString: true}

// Map is a decoded top-level request or a single row-map parameter set.
// Keys are always strings on the wire; values are decoded into the Go
// kinds documented in Value.
type Map map[string]interface{}

// Value is the union every bound parameter or fetched column value belongs
// to: nil, bool, int64 (decoded non-negative integers arrive as uint64),
// float64, string, or []byte. Anything else (nested
// maps or arrays arriving where a scalar is expected) is a caller error.
type Value = interface{}

// Decode unpacks a single top-level MessagePack map from src.
func Decode(src []byte) (Map, error) {
	var out Map
	dec := codec.NewDecoderBytes(src, handle)
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("wire: decode request: %w", err)
	}
	if out == nil {
		return nil, fmt.Errorf("wire: decode request: top-level value was not a map")
	}
	return out, nil
}

// Encode packs v (a map or a slice of rows) into a MessagePack buffer.
func Encode(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := codec.NewEncoder(&buf, handle)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("wire: encode: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodeHeaderAndRows packs the header map and the row payload as two
// independent MessagePack values concatenated on the wire, matching the
// "header map followed by data payload" framing of the reply contract.
func EncodeHeaderAndRows(header Map, rows [][]Value) ([]byte, error) {
	headerBytes, err := Encode(header)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = [][]Value{}
	}
	dataBytes, err := Encode(rows)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(headerBytes)+len(dataBytes))
	out = append(out, headerBytes...)
	out = append(out, dataBytes...)
	return out, nil
}
