package migratecmd

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/clinica-io/clinica-backend/database/tenantmigrations"
	clinicsrepo "github.com/clinica-io/clinica-backend/domains/clinics/be/repo"
	platformlogging "github.com/clinica-io/clinica-backend/platform/go/logging"
	"github.com/clinica-io/clinica-backend/platform/go/migrate"
	"github.com/clinica-io/clinica-backend/platform/go/persistence"
	"github.com/clinica-io/clinica-backend/platform/go/tenant"
)

// Command groups tenant migration helpers.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Tenant schema migrations (run/run-all/pending)",
	}

	cmd.AddCommand(runCommand())
	cmd.AddCommand(runAllCommand())
	cmd.AddCommand(pendingCommand())
	return cmd
}

func runCommand() *cobra.Command {
	var databaseURL string

	c := &cobra.Command{
		Use:   "run <database-name>",
		Short: "Apply pending migrations to one clinic database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			databaseName, err := tenant.SanitizeDatabaseName(args[0])
			if err != nil {
				return fmt.Errorf("database name: %w", err)
			}

			runner, cleanup, err := buildRunner(databaseURL)
			if err != nil {
				return err
			}
			defer cleanup()

			count, err := runner.Run(ctx, databaseName)
			if err != nil {
				return fmt.Errorf("migrate %s (applied %d before failure): %w", databaseName, count, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d migration(s) applied.\n", databaseName, count)
			return nil
		},
	}

	c.Flags().StringVar(&databaseURL, "database-url", "", "PostgreSQL connection string")
	_ = c.MarkFlagRequired("database-url")

	return c
}

func runAllCommand() *cobra.Command {
	var (
		databaseURL string
		activeOnly  bool
	)

	c := &cobra.Command{
		Use:   "run-all",
		Short: "Apply pending migrations to every registered clinic database",
		Long:  "Sweeps the clinic registry and migrates each database, continuing past per-database failures. Exits non-zero if any database failed.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			pool, err := persistence.NewControlPlanePool(ctx, persistence.PoolConfig{ConnString: databaseURL})
			if err != nil {
				return fmt.Errorf("init pool: %w", err)
			}
			defer persistence.ClosePool(pool)

			runner, cleanup, err := buildRunner(databaseURL)
			if err != nil {
				return err
			}
			defer cleanup()

			repo := clinicsrepo.NewPostgresRepository(pool)
			names, err := repo.ListDatabaseNames(ctx, activeOnly)
			if err != nil {
				return fmt.Errorf("list clinic databases: %w", err)
			}

			summary := runner.RunAll(ctx, names)

			applied := make([]string, 0, len(summary.Applied))
			for name := range summary.Applied {
				applied = append(applied, name)
			}
			sort.Strings(applied)
			for _, name := range applied {
				fmt.Fprintf(cmd.OutOrStdout(), "ok\t%s\t%d applied\n", name, summary.Applied[name])
			}

			failed := make([]string, 0, len(summary.Failed))
			for name := range summary.Failed {
				failed = append(failed, name)
			}
			sort.Strings(failed)
			for _, name := range failed {
				fmt.Fprintf(cmd.OutOrStdout(), "FAIL\t%s\t%v\n", name, summary.Failed[name])
			}

			if len(failed) > 0 {
				return fmt.Errorf("%d of %d database(s) failed to migrate", len(failed), len(names))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "All %d database(s) migrated.\n", len(names))
			return nil
		},
	}

	c.Flags().StringVar(&databaseURL, "database-url", "", "PostgreSQL connection string")
	c.Flags().BoolVar(&activeOnly, "active-only", false, "Only migrate active clinics")
	_ = c.MarkFlagRequired("database-url")

	return c
}

func pendingCommand() *cobra.Command {
	var databaseURL string

	c := &cobra.Command{
		Use:   "pending <database-name>",
		Short: "List migrations not yet applied to a clinic database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			databaseName, err := tenant.SanitizeDatabaseName(args[0])
			if err != nil {
				return fmt.Errorf("database name: %w", err)
			}

			runner, cleanup, err := buildRunner(databaseURL)
			if err != nil {
				return err
			}
			defer cleanup()

			pending, err := runner.Pending(ctx, databaseName)
			if err != nil {
				return fmt.Errorf("list pending for %s: %w", databaseName, err)
			}

			if len(pending) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "%s is up to date.\n", databaseName)
				return nil
			}
			for _, m := range pending {
				fmt.Fprintln(cmd.OutOrStdout(), m.Name)
			}
			return nil
		},
	}

	c.Flags().StringVar(&databaseURL, "database-url", "", "PostgreSQL connection string")
	_ = c.MarkFlagRequired("database-url")

	return c
}

func buildRunner(databaseURL string) (*migrate.Runner, func(), error) {
	logger, err := platformlogging.NewLogger(platformlogging.Config{Component: "cli", Level: "info"})
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}

	dialer, err := persistence.NewPgxDialer(databaseURL, persistence.TenantPoolConfig{})
	if err != nil {
		return nil, nil, fmt.Errorf("init dialer: %w", err)
	}

	registry := persistence.NewRegistry(persistence.RegistryConfig{
		Dial:   dialer,
		Logger: logger,
	})

	runner := migrate.NewRunner(migrate.RunnerConfig{
		Open:    migrate.NewStoreOpener(registry),
		Catalog: tenantmigrations.Catalog(),
		Logger:  logger,
	})

	cleanup := func() {
		registry.Close()
		_ = logger.Sync()
	}
	return runner, cleanup, nil
}
