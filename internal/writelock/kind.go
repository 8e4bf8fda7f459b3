package writelock

// Kind mirrors dbengine.StatementKind without importing dbengine, so the
// write-serialization slot stays usable independent of the statement
// executor. Callers translate dbengine.StatementKind to writelock.Kind at
// the dispatch boundary.
type Kind int

const (
	KindReadOnly Kind = iota
	KindBegin
	KindCommit
	KindRollback
	KindWrite
)
