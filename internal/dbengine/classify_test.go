package dbengine

import "testing"

func TestClassify(t *testing.T) {
	cases := []struct {
		sql  string
		want StatementKind
	}{
		{"SELECT 1", KindReadOnly},
		{"  select * from t", KindReadOnly},
		{"PRAGMA journal_mode=WAL;", KindReadOnly},
		{"EXPLAIN QUERY PLAN SELECT 1", KindReadOnly},
		{"BEGIN", KindBegin},
		{"BEGIN IMMEDIATE", KindBegin},
		{"COMMIT", KindCommit},
		{"COMMIT TRANSACTION", KindCommit},
		{"ROLLBACK", KindRollback},
		{"INSERT INTO t VALUES (1)", KindWrite},
		{"UPDATE t SET a=1", KindWrite},
		{"DELETE FROM t", KindWrite},
		{"-- a comment\nINSERT INTO t VALUES (1)", KindWrite},
	}
	for _, c := range cases {
		if got := Classify(c.sql); got != c.want {
			t.Errorf("Classify(%q) = %v, want %v", c.sql, got, c.want)
		}
	}
}
