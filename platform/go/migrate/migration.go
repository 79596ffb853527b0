package migrate

import (
	"context"
	"regexp"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the slice of pgx a migration body may use. pgx.Tx satisfies it, so
// every Up/Down runs inside the transaction the ledger store opens for it.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Migration is one named, timestamp-ordered schema change. The trailing run
// of decimal digits in Name is its ordering timestamp; a name without one is
// not executable. Up must tolerate re-runs against a half-created schema
// (probe before create), because an aborted run is retried without rollback.
type Migration struct {
	Name string
	Up   func(ctx context.Context, db DB) error
	Down func(ctx context.Context, db DB) error
}

var trailingDigits = regexp.MustCompile(`([0-9]+)$`)

// Timestamp extracts the ordering timestamp embedded in the migration name.
// ok is false when the name carries no trailing digit run or it overflows.
func (m Migration) Timestamp() (ts int64, ok bool) {
	match := trailingDigits.FindStringSubmatch(m.Name)
	if match == nil {
		return 0, false
	}
	ts, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return ts, true
}
