package persistence

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	sqlassets "github.com/clinica-io/clinica-backend/database"
)

// BootstrapControlPlane applies the control-plane DDL (clinics registry and
// operator users) in a single transaction. SQL is embedded at build time so
// binaries stay self-contained. Idempotent; intended for the CLI and tests.
func BootstrapControlPlane(ctx context.Context, pool *pgxpool.Pool) error {
	if pool == nil {
		return fmt.Errorf("bootstrap control plane: pool is required")
	}

	var statements []string
	statements = append(statements, splitStatements(sqlassets.ClinicsSQL)...)
	statements = append(statements, splitStatements(sqlassets.ControlUsersSQL)...)

	tx, err := pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	for _, stmt := range statements {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply ddl: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// splitStatements breaks an embedded SQL asset into executable statements,
// dropping comment-only and empty fragments. Good enough for the DDL we ship;
// none of it embeds semicolons in literals.
func splitStatements(sql string) []string {
	var out []string
	for _, raw := range strings.Split(sql, ";") {
		var lines []string
		for _, line := range strings.Split(raw, "\n") {
			trimmed := strings.TrimSpace(line)
			if trimmed == "" || strings.HasPrefix(trimmed, "--") {
				continue
			}
			lines = append(lines, line)
		}
		stmt := strings.TrimSpace(strings.Join(lines, "\n"))
		if stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}
