// internal/repository/postgres/schema.go
package postgres

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"finflow-ledger/internal/repository"
)

//go:embed schema.sql
var schemaSQL string

// Migrate creates the ledger tables if they do not exist yet. Statements run
// one at a time so it works the same on both drivers.
func Migrate(ctx context.Context, q repository.DBExecutor) error {
	for _, stmt := range strings.Split(schemaSQL, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := q.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement %q: %w", firstLine(stmt), err)
		}
	}
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
