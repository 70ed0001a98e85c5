// Package sqlguard accepts only single, read-only SELECT statements.
//
// It is a defense-in-depth string check, not a SQL parser: deployments must
// still connect with a read-only database role. The tokenizer understands just
// enough of the lexical grammar (comments, quoted literals and identifiers,
// words, statement separators) to avoid false positives such as a column
// named updated_at.
//
// Backslashes inside string literals are escapes on MySQL and ordinary
// characters on Postgres and SQLite. A statement is scanned under both
// conventions and must pass both, so a literal cannot hide a separator from
// the guard while the database sees it.
package sqlguard

import (
	"strings"

	"github.com/guttosm/tradeexport/internal/domain/errs"
)

// forbidden keywords may not appear as bare words anywhere outside literals.
var forbidden = map[string]struct{}{
	"INSERT":   {},
	"UPDATE":   {},
	"DELETE":   {},
	"DROP":     {},
	"ALTER":    {},
	"TRUNCATE": {},
	"CREATE":   {},
	"REPLACE":  {},
}

type tokenKind int

const (
	tokWord tokenKind = iota
	tokSeparator
	tokOpenParen
	tokOther
)

// lexMode selects how backslashes inside quoted strings are read.
type lexMode int

const (
	lexStandard  lexMode = iota // backslash is a plain character
	lexBackslash                // backslash escapes the next byte, as MySQL does
)

var lexModes = []lexMode{lexBackslash, lexStandard}

type token struct {
	kind tokenKind
	text string // upper-cased for words
}

// Validate returns nil when sql is a single SELECT statement, or a
// *errs.StatementRejectedError explaining why it is not.
func Validate(sql string) error {
	for _, mode := range lexModes {
		if err := validate(sql, mode); err != nil {
			return err
		}
	}
	return nil
}

func validate(sql string, mode lexMode) error {
	toks, err := tokenize(sql, mode)
	if err != nil {
		return err
	}
	if len(toks) == 0 {
		return reject("empty statement")
	}
	if toks[0].kind != tokWord || toks[0].text != "SELECT" {
		return reject("statement must begin with SELECT")
	}

	for i, tk := range toks {
		switch tk.kind {
		case tokSeparator:
			if i != len(toks)-1 {
				return reject("multiple statements are not allowed")
			}
		case tokWord:
			if _, bad := forbidden[tk.text]; !bad {
				continue
			}
			// REPLACE(...) is a string function, not the REPLACE statement.
			if tk.text == "REPLACE" && i+1 < len(toks) && toks[i+1].kind == tokOpenParen {
				continue
			}
			return reject("forbidden keyword " + tk.text)
		}
	}
	return nil
}

// tokenize drops whitespace, comments and the contents of quoted literals.
// Consecutive trailing separators collapse into one.
func tokenize(sql string, mode lexMode) ([]token, error) {
	var toks []token
	n := len(sql)

	for i := 0; i < n; {
		c := sql[i]
		switch {
		case isSpace(c):
			i++

		case c == '-' && i+1 < n && sql[i+1] == '-':
			nl := strings.IndexByte(sql[i:], '\n')
			if nl < 0 {
				i = n
			} else {
				i += nl + 1
			}

		case c == '/' && i+1 < n && sql[i+1] == '*':
			end := strings.Index(sql[i+2:], "*/")
			if end < 0 {
				return nil, reject("unterminated block comment")
			}
			i += 2 + end + 2

		case c == '\'' || c == '"' || c == '`':
			end, ok := skipQuoted(sql, i, mode)
			if !ok {
				return nil, reject("unterminated quoted literal")
			}
			toks = append(toks, token{kind: tokOther})
			i = end

		case c == ';':
			if len(toks) == 0 || toks[len(toks)-1].kind != tokSeparator {
				toks = append(toks, token{kind: tokSeparator})
			}
			i++

		case c == '(':
			toks = append(toks, token{kind: tokOpenParen})
			i++

		case isWordStart(c):
			j := i + 1
			for j < n && isWordPart(sql[j]) {
				j++
			}
			toks = append(toks, token{kind: tokWord, text: strings.ToUpper(sql[i:j])})
			i = j

		default:
			toks = append(toks, token{kind: tokOther})
			i++
		}
	}
	return toks, nil
}

// skipQuoted returns the index just past the literal opened at sql[start].
// A doubled quote character escapes itself. Under lexBackslash a backslash
// also escapes the next byte in '...' and "..." strings.
func skipQuoted(sql string, start int, mode lexMode) (int, bool) {
	q := sql[start]
	for i := start + 1; i < len(sql); i++ {
		switch sql[i] {
		case '\\':
			if mode == lexBackslash && q != '`' {
				i++
			}
		case q:
			if i+1 < len(sql) && sql[i+1] == q {
				i++
				continue
			}
			return i + 1, true
		}
	}
	return 0, false
}

func reject(reason string) error {
	return &errs.StatementRejectedError{Reason: reason}
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}

func isWordStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isWordPart(c byte) bool {
	return isWordStart(c) || (c >= '0' && c <= '9') || c == '$'
}
