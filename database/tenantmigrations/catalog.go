// Package tenantmigrations holds the ordered schema catalog applied to every
// clinic database. Names carry their ordering timestamp as a trailing digit
// run; the list order matches ascending timestamps and must never be
// rearranged. Bodies probe before creating so a run aborted between the
// schema change and its ledger row can be retried safely.
package tenantmigrations

import (
	"context"
	"fmt"

	"github.com/clinica-io/clinica-backend/platform/go/migrate"
)

// Catalog returns the full ordered migration list for clinic databases.
func Catalog() []migrate.Migration {
	return []migrate.Migration{
		{
			Name: "create_branches_table_20240105093000",
			Up: func(ctx context.Context, db migrate.DB) error {
				_, err := db.Exec(ctx, `
					CREATE TABLE IF NOT EXISTS branches (
						id serial PRIMARY KEY,
						name varchar(255) NOT NULL,
						address text,
						phone varchar(32),
						created_at timestamptz NOT NULL DEFAULT now()
					)`)
				return err
			},
			Down: dropTable("branches"),
		},
		{
			Name: "create_users_table_20240105093500",
			Up: func(ctx context.Context, db migrate.DB) error {
				_, err := db.Exec(ctx, `
					CREATE TABLE IF NOT EXISTS users (
						id serial PRIMARY KEY,
						full_name varchar(255) NOT NULL,
						email varchar(255) NOT NULL UNIQUE,
						password_hash varchar(255) NOT NULL,
						is_active boolean NOT NULL DEFAULT true,
						created_at timestamptz NOT NULL DEFAULT now()
					)`)
				return err
			},
			Down: dropTable("users"),
		},
		{
			Name: "create_doctors_table_20240112101500",
			Up: func(ctx context.Context, db migrate.DB) error {
				if _, err := db.Exec(ctx, `
					CREATE TABLE IF NOT EXISTS doctors (
						id serial PRIMARY KEY,
						full_name varchar(255) NOT NULL,
						specialty varchar(255),
						branch_id integer,
						is_active boolean NOT NULL DEFAULT true,
						created_at timestamptz NOT NULL DEFAULT now()
					)`); err != nil {
					return err
				}
				return ensureForeignKey(ctx, db, "doctors", "doctors_branch_id_fkey",
					`ALTER TABLE doctors ADD CONSTRAINT doctors_branch_id_fkey
						FOREIGN KEY (branch_id) REFERENCES branches (id)`)
			},
			Down: dropTable("doctors"),
		},
		{
			Name: "create_services_table_20240119084500",
			Up: func(ctx context.Context, db migrate.DB) error {
				_, err := db.Exec(ctx, `
					CREATE TABLE IF NOT EXISTS services (
						id serial PRIMARY KEY,
						name varchar(255) NOT NULL,
						duration_minutes integer NOT NULL DEFAULT 30,
						price_cents bigint NOT NULL DEFAULT 0,
						created_at timestamptz NOT NULL DEFAULT now()
					)`)
				return err
			},
			Down: dropTable("services"),
		},
		{
			Name: "create_reservations_table_20240126112000",
			Up: func(ctx context.Context, db migrate.DB) error {
				if _, err := db.Exec(ctx, `
					CREATE TABLE IF NOT EXISTS reservations (
						id serial PRIMARY KEY,
						public_id uuid NOT NULL UNIQUE,
						patient_name varchar(255) NOT NULL,
						patient_phone varchar(32),
						branch_id integer NOT NULL,
						doctor_id integer NOT NULL,
						service_id integer,
						scheduled_at timestamptz NOT NULL,
						status varchar(32) NOT NULL DEFAULT 'booked',
						created_at timestamptz NOT NULL DEFAULT now()
					)`); err != nil {
					return err
				}
				for _, fk := range []struct{ name, ddl string }{
					{"reservations_branch_id_fkey",
						`ALTER TABLE reservations ADD CONSTRAINT reservations_branch_id_fkey
							FOREIGN KEY (branch_id) REFERENCES branches (id)`},
					{"reservations_doctor_id_fkey",
						`ALTER TABLE reservations ADD CONSTRAINT reservations_doctor_id_fkey
							FOREIGN KEY (doctor_id) REFERENCES doctors (id)`},
					{"reservations_service_id_fkey",
						`ALTER TABLE reservations ADD CONSTRAINT reservations_service_id_fkey
							FOREIGN KEY (service_id) REFERENCES services (id)`},
				} {
					if err := ensureForeignKey(ctx, db, "reservations", fk.name, fk.ddl); err != nil {
						return err
					}
				}
				return nil
			},
			Down: dropTable("reservations"),
		},
		{
			Name: "create_permissions_tables_20240209133000",
			Up: func(ctx context.Context, db migrate.DB) error {
				if _, err := db.Exec(ctx, `
					CREATE TABLE IF NOT EXISTS permissions (
						id serial PRIMARY KEY,
						slug varchar(128) NOT NULL UNIQUE,
						description text
					)`); err != nil {
					return err
				}
				if _, err := db.Exec(ctx, `
					CREATE TABLE IF NOT EXISTS permission_user (
						user_id integer NOT NULL REFERENCES users (id) ON DELETE CASCADE,
						permission_id integer NOT NULL REFERENCES permissions (id) ON DELETE CASCADE,
						PRIMARY KEY (user_id, permission_id)
					)`); err != nil {
					return err
				}
				return nil
			},
			Down: func(ctx context.Context, db migrate.DB) error {
				if _, err := db.Exec(ctx, `DROP TABLE IF EXISTS permission_user`); err != nil {
					return err
				}
				_, err := db.Exec(ctx, `DROP TABLE IF EXISTS permissions`)
				return err
			},
		},
		{
			Name: "add_reservation_indexes_20240216090000",
			Up: func(ctx context.Context, db migrate.DB) error {
				if _, err := db.Exec(ctx,
					`CREATE INDEX IF NOT EXISTS reservations_doctor_day_idx
						ON reservations (doctor_id, scheduled_at)`); err != nil {
					return err
				}
				_, err := db.Exec(ctx,
					`CREATE INDEX IF NOT EXISTS reservations_status_idx
						ON reservations (status)`)
				return err
			},
			Down: func(ctx context.Context, db migrate.DB) error {
				if _, err := db.Exec(ctx, `DROP INDEX IF EXISTS reservations_doctor_day_idx`); err != nil {
					return err
				}
				_, err := db.Exec(ctx, `DROP INDEX IF EXISTS reservations_status_idx`)
				return err
			},
		},
	}
}

func dropTable(name string) func(ctx context.Context, db migrate.DB) error {
	return func(ctx context.Context, db migrate.DB) error {
		_, err := db.Exec(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, name))
		return err
	}
}

// ensureForeignKey adds a constraint only when absent; ALTER TABLE has no
// IF NOT EXISTS form for constraints.
func ensureForeignKey(ctx context.Context, db migrate.DB, table, constraint, ddl string) error {
	var exists bool
	if err := db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.table_constraints
			WHERE table_name = $1 AND constraint_name = $2
		)`, table, constraint).Scan(&exists); err != nil {
		return fmt.Errorf("probe constraint %s: %w", constraint, err)
	}
	if exists {
		return nil
	}
	if _, err := db.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("add constraint %s: %w", constraint, err)
	}
	return nil
}
