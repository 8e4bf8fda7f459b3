package protocol

import "github.com/kbarnes/sqlited/internal/wire"

// Column is one (name, decltype-or-nil) pair, in column order, as described
// by spec.md §3's "columns" header key.
type Column struct {
	Name     string
	DeclType *string
}

// Header carries the fixed set of reply metadata keys from spec.md §3.
// Every endpoint populates all five keys; on error paths RowCount and
// Columns take their sentinel values (-1 and nil respectively).
type Header struct {
	Status   Status
	Message  string
	Details  string
	Columns  []Column
	RowCount int64
}

// Reply is a header plus the row payload. It is encoded as two independent
// MessagePack values concatenated on the wire (see wire.EncodeHeaderAndRows).
type Reply struct {
	Header Header
	Rows   [][]wire.Value
}

// OK builds the success header shared by connect and drop. Query replies
// build their own header carrying columns and rowcount.
func OK() Header {
	return Header{Status: StatusOK, Message: "OK", RowCount: -1}
}

// Error builds an error header with sentinel rowcount/columns, matching
// the "Reply framing" invariant in spec.md §8: every error reply still
// carries all declared keys.
func Error(status Status, message, details string) Header {
	return Header{
		Status:   status,
		Message:  message,
		Details:  details,
		RowCount: -1,
		Columns:  nil,
	}
}

// Encode packs the reply into its wire bytes.
func (r Reply) Encode() ([]byte, error) {
	header := wire.Map{
		"status":  int64(r.Header.Status),
		"message": r.Header.Message,
		"details": r.Header.Details,
	}
	if r.Header.Columns == nil {
		header["columns"] = nil
	} else {
		cols := make([]wire.Value, len(r.Header.Columns))
		for i, c := range r.Header.Columns {
			if c.DeclType == nil {
				cols[i] = []wire.Value{c.Name, nil}
			} else {
				cols[i] = []wire.Value{c.Name, *c.DeclType}
			}
		}
		header["columns"] = cols
	}
	header["rowcount"] = r.Header.RowCount

	rows := make([][]wire.Value, len(r.Rows))
	copy(rows, r.Rows)
	return wire.EncodeHeaderAndRows(header, rows)
}
