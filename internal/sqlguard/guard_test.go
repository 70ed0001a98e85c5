package sqlguard

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/guttosm/tradeexport/internal/domain/errs"
)

func TestValidate_Accepts(t *testing.T) {
	cases := []string{
		"SELECT * FROM t",
		"select id from t",
		"SELECT updated_at FROM t",
		"SELECT * FROM t;",
		"SELECT * FROM t;  \n -- trailing note\n",
		"  \n\t-- leading comment\n/* block\ncomment */ SELECT ID FROM TradeHistories",
		"/* a */ /* b */ -- c\nSeLeCt 1",
		"SELECT * FROM t WHERE Comment = 'drop table t; delete'",
		`SELECT "UPDATE" FROM t`,
		"SELECT `delete` FROM t",
		"SELECT * FROM t WHERE Comment = 'it''s; INSERT'",
		"SELECT * FROM t WHERE Comment = 'C:\\temp'",
		"SELECT * FROM t WHERE Comment = 'a\\\\'",
		"SELECT REPLACE(Comment, 'x', 'y') AS Comment FROM t",
		"SELECT created_by, deleted_flag, dropped, insert_ts FROM t",
		"SELECT * FROM t WHERE x IN (SELECT y FROM u)",
	}
	for _, sql := range cases {
		assert.NoError(t, Validate(sql), sql)
	}
}

func TestValidate_Rejects(t *testing.T) {
	cases := []struct {
		sql    string
		reason string
	}{
		{sql: "", reason: "empty statement"},
		{sql: "  -- only a comment\n", reason: "empty statement"},
		{sql: "select id from t; drop table t", reason: "multiple statements are not allowed"},
		{sql: "SELECT 1; SELECT 2", reason: "multiple statements are not allowed"},
		{sql: "UPDATE t SET x=1", reason: "statement must begin with SELECT"},
		{sql: "WITH x AS (SELECT 1) SELECT * FROM x", reason: "statement must begin with SELECT"},
		{sql: "-- SELECT\nDELETE FROM t", reason: "statement must begin with SELECT"},
		{sql: "SELECT * FROM t WHERE id IN (DELETE FROM t RETURNING id)", reason: "forbidden keyword DELETE"},
		{sql: "SELECT * FROM t FOR UPDATE", reason: "forbidden keyword UPDATE"},
		{sql: "SELECT 1 /* unterminated", reason: "unterminated block comment"},
		{sql: "SELECT 'open", reason: "unterminated quoted literal"},
		{sql: "SELECT * FROM t; ; DROP TABLE t", reason: "multiple statements are not allowed"},
		// a backslash is a plain character on Postgres and SQLite
		{sql: "SELECT 'a\\'; DROP TABLE TradeHistories; --'", reason: "multiple statements are not allowed"},
		{sql: "SELECT \"a\\\"; DELETE FROM t; --\"", reason: "multiple statements are not allowed"},
		{sql: "SELECT * FROM t WHERE Comment = 'it\\'s'", reason: "unterminated quoted literal"},
		// and an escape on MySQL
		{sql: "SELECT 'a\\\\'; DROP TABLE t", reason: "multiple statements are not allowed"},
	}
	for _, tc := range cases {
		err := Validate(tc.sql)
		var rejected *errs.StatementRejectedError
		if assert.ErrorAs(t, err, &rejected, tc.sql) {
			assert.Equal(t, tc.reason, rejected.Reason, tc.sql)
		}
	}
}
