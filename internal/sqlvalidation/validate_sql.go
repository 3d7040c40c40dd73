// Package sqlvalidation statically checks SQL text dbcut is about to
// execute against postgres before it reaches a live connection: the DDL
// the reflector emits for a destination (CREATE TABLE / ADD INDEX / ADD
// FOREIGN KEY) and the INSERT batches the dumpsql command writes out.
// It is a defense against a dialect generator bug producing malformed
// SQL, not a check on untrusted input — it only ever runs against SQL
// dbcut generated itself.
//
// The parse-then-locate-the-error approach is carried over from the
// teacher's own SQL linter (internal/sqlvalidation, which validates
// hand-authored .lp.sql migration files), narrowed down from "reject
// dangerous patterns in a schema file a person wrote" — a concern that
// does not apply here, since dbcut's own DDL includes legitimate DROP
// TABLEs during a flush — to "confirm the statement parses at all."
package sqlvalidation

import (
	"fmt"
	"regexp"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"

	"github.com/yourorg/dbcut/database"
)

// ValidateStatement parses sql as a single postgres statement. It
// returns a *database.QuerySyntaxError naming the offending line, column
// and (when pg_query's message carries one) the unexpected token, or
// nil if sql parses cleanly.
func ValidateStatement(sql string) error {
	if _, err := pg_query.Parse(sql); err != nil {
		return syntaxError(sql, err)
	}
	return nil
}

// ValidateBatch splits sql into individual statements (semicolon
// separated, quote- and comment-aware) and validates each in isolation,
// returning every failure found rather than stopping at the first —
// the same whole-file-then-statement-by-statement strategy the
// teacher's validateSQLSyntax uses, so one malformed INSERT in a large
// dumpsql batch doesn't hide the rest.
func ValidateBatch(sql string) []error {
	if _, err := pg_query.Parse(sql); err == nil {
		return nil
	}

	var errs []error
	for _, stmt := range splitSQLStatements(sql) {
		trimmed := strings.TrimSpace(stmt.sql)
		if trimmed == "" || isCommentOnly(trimmed) {
			continue
		}
		if _, err := pg_query.Parse(stmt.sql); err != nil {
			wrapped := syntaxError(stmt.sql, err)
			if se, ok := wrapped.(*database.QuerySyntaxError); ok {
				se.Detail = fmt.Sprintf("statement starting at line %d: %s", stmt.startLine, se.Detail)
			}
			errs = append(errs, wrapped)
		}
	}
	return errs
}

func isCommentOnly(stmt string) bool {
	for _, line := range strings.Split(stmt, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "--") {
			return false
		}
	}
	return true
}

var nearTokenPattern = regexp.MustCompile(`at or near "([^"]+)"`)

// syntaxError turns a pg_query parse error into a *database.QuerySyntaxError
// carrying a 1-based line/column and, when available, the token pg_query
// flagged.
func syntaxError(sql string, parseErr error) error {
	msg := strings.TrimPrefix(parseErr.Error(), "failed to parse SQL: ")

	line, col := 1, 1
	if m := nearTokenPattern.FindStringSubmatch(msg); len(m) > 1 {
		if idx := strings.Index(sql, m[1]); idx >= 0 {
			line, col = position(sql, idx)
		}
	}

	return &database.QuerySyntaxError{Detail: fmt.Sprintf("line %d, column %d: %s", line, col, msg)}
}

func position(content string, offset int) (line, col int) {
	line, col = 1, 1
	for i := 0; i < offset && i < len(content); i++ {
		if content[i] == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return line, col
}

type sqlStatement struct {
	sql       string
	startLine int
}

// splitSQLStatements splits sql into individual statements by semicolon,
// tracking quotes and comments so a semicolon inside a string literal or
// a comment never splits a statement in two. Carried over from the
// teacher's validate_sql.go unchanged — the quote/comment state machine
// is dialect-neutral lexing, not something specific to schema-file
// validation.
func splitSQLStatements(sql string) []sqlStatement {
	var statements []sqlStatement
	var currentStmt strings.Builder
	currentLine := 1
	stmtStartLine := 1
	hasSeenNonWhitespace := false

	inSingleQuote := false
	inDoubleQuote := false
	inLineComment := false
	inBlockComment := false

	runes := []rune(sql)
	for i := 0; i < len(runes); i++ {
		ch := runes[i]

		if ch == '\n' {
			currentLine++
			if inLineComment {
				inLineComment = false
			}
		}

		if !inSingleQuote && !inDoubleQuote {
			if !inBlockComment && i+1 < len(runes) && ch == '-' && runes[i+1] == '-' {
				inLineComment = true
			}
			if !inLineComment && i+1 < len(runes) && ch == '/' && runes[i+1] == '*' {
				inBlockComment = true
			}
			if inBlockComment && i+1 < len(runes) && ch == '*' && runes[i+1] == '/' {
				inBlockComment = false
				currentStmt.WriteRune(ch)
				i++
				if i < len(runes) {
					currentStmt.WriteRune(runes[i])
				}
				continue
			}
		}

		if !inLineComment && !inBlockComment {
			if ch == '\'' && (i == 0 || runes[i-1] != '\\') {
				inSingleQuote = !inSingleQuote
			}
			if ch == '"' && (i == 0 || runes[i-1] != '\\') {
				inDoubleQuote = !inDoubleQuote
			}
		}

		if ch == ';' && !inSingleQuote && !inDoubleQuote && !inLineComment && !inBlockComment {
			currentStmt.WriteRune(ch)
			statements = append(statements, sqlStatement{sql: currentStmt.String(), startLine: stmtStartLine})
			currentStmt.Reset()
			hasSeenNonWhitespace = false
			continue
		}

		if !hasSeenNonWhitespace && !inLineComment && !inBlockComment {
			if ch != ' ' && ch != '\t' && ch != '\n' && ch != '\r' {
				stmtStartLine = currentLine
				hasSeenNonWhitespace = true
			}
		}

		currentStmt.WriteRune(ch)
	}

	if currentStmt.Len() > 0 {
		statements = append(statements, sqlStatement{sql: currentStmt.String(), startLine: stmtStartLine})
	}

	return statements
}
