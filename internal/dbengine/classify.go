package dbengine

import "strings"

// StatementKind is the write-serialization classification from spec.md
// §4.7: readonly, begin, commit, rollback, or write (any other
// non-readonly statement).
type StatementKind int

const (
	KindReadOnly StatementKind = iota
	KindBegin
	KindCommit
	KindRollback
	KindWrite
)

// Classify inspects the leading keyword of a SQL statement to determine
// its write-serialization kind. The engine's own sqlite3_stmt_readonly()
// flag is not part of go-sqlite3's exported surface, so classification is
// done textually against the statement's first keyword — the same
// keywords spec.md §4.7 names explicitly (BEGIN, COMMIT, ROLLBACK) plus
// the standard read-only statement starters.
func Classify(sql string) StatementKind {
	word := leadingKeyword(sql)
	switch word {
	case "SELECT", "PRAGMA", "EXPLAIN", "WITH", "VALUES":
		return KindReadOnly
	case "BEGIN", "START":
		return KindBegin
	case "COMMIT", "END":
		return KindCommit
	case "ROLLBACK":
		return KindRollback
	default:
		return KindWrite
	}
}

// leadingKeyword returns the first whitespace-delimited token of sql,
// uppercased, skipping leading SQL line comments and blank lines.
func leadingKeyword(sql string) string {
	s := strings.TrimSpace(sql)
	for strings.HasPrefix(s, "--") {
		if idx := strings.IndexByte(s, '\n'); idx >= 0 {
			s = strings.TrimSpace(s[idx+1:])
		} else {
			s = ""
			break
		}
	}
	end := 0
	for end < len(s) && !isWordBoundary(s[end]) {
		end++
	}
	return strings.ToUpper(s[:end])
}

func isWordBoundary(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r', '(', ';':
		return true
	default:
		return false
	}
}
