package ledger

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"
)

//go:embed schema_sqlite.sql
var sqliteSchema string

//go:embed schema_mysql.sql
var mysqlSchema string

// initSchema executes the dialect's DDL. Every statement is idempotent.
func initSchema(ctx context.Context, db *sql.DB, driver string) error {
	script := sqliteSchema
	if driver == DriverMySQL {
		script = mysqlSchema
	}
	for _, stmt := range splitStatements(script) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ledger: schema exec failed: %w", err)
		}
	}
	return nil
}

// splitStatements splits a SQL script on semicolons, dropping empty and
// comment-only fragments.
func splitStatements(script string) []string {
	raw := strings.Split(script, ";")
	stmts := make([]string, 0, len(raw))
	for _, s := range raw {
		trimmed := strings.TrimSpace(s)
		if trimmed == "" || isCommentOnly(trimmed) {
			continue
		}
		stmts = append(stmts, trimmed)
	}
	return stmts
}

// isCommentOnly reports whether s holds nothing but "--" line comments.
func isCommentOnly(s string) bool {
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "--") {
			return false
		}
	}
	return true
}
