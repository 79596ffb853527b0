package cliniccmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/clinica-io/clinica-backend/database/tenantmigrations"
	"github.com/clinica-io/clinica-backend/domains/clinics/be/provisioning"
	clinicsrepo "github.com/clinica-io/clinica-backend/domains/clinics/be/repo"
	"github.com/clinica-io/clinica-backend/domains/clinics/be/service"
	platformlogging "github.com/clinica-io/clinica-backend/platform/go/logging"
	"github.com/clinica-io/clinica-backend/platform/go/migrate"
	"github.com/clinica-io/clinica-backend/platform/go/persistence"
	"github.com/clinica-io/clinica-backend/platform/go/requesttrace"
)

// Command groups clinic registry helpers.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clinic",
		Short: "Clinic utilities (onboard/provision/list)",
	}

	cmd.AddCommand(createCommand())
	cmd.AddCommand(provisionCommand())
	cmd.AddCommand(listCommand())
	return cmd
}

func createCommand() *cobra.Command {
	var (
		databaseURL string
		name        string
		slug        string
	)

	c := &cobra.Command{
		Use:   "create",
		Short: "Onboard a clinic (registry record, database, schema)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := requesttrace.IntoContext(context.Background(), requesttrace.System(""))

			svc, cleanup, err := buildService(ctx, databaseURL)
			if err != nil {
				return err
			}
			defer cleanup()

			created, err := svc.Create(ctx, service.CreateInput{Name: name, Slug: slug})
			if err != nil {
				if errors.Is(err, service.ErrConflictSlug) {
					return fmt.Errorf("clinic slug %q already exists", slug)
				}
				// Registry record may exist with provisioning incomplete.
				if created.ID != 0 {
					fmt.Fprintf(cmd.OutOrStdout(),
						"Clinic registered (id=%d, database=%s) but provisioning failed: %v\nRe-run `clinica clinic provision --id %d` once the cause is fixed.\n",
						created.ID, created.DatabaseName, err, created.ID)
					return nil
				}
				return fmt.Errorf("create clinic: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Clinic onboarded. ID: %d | Slug: %s | Database: %s\n",
				created.ID, created.Slug, created.DatabaseName)
			return nil
		},
	}

	c.Flags().StringVar(&databaseURL, "database-url", "", "PostgreSQL connection string (control plane)")
	c.Flags().StringVar(&name, "name", "", "Clinic display name")
	c.Flags().StringVar(&slug, "slug", "", "Clinic slug (drives the database name)")

	_ = c.MarkFlagRequired("database-url")
	_ = c.MarkFlagRequired("name")
	_ = c.MarkFlagRequired("slug")

	return c
}

func provisionCommand() *cobra.Command {
	var (
		databaseURL string
		clinicID    int64
	)

	c := &cobra.Command{
		Use:   "provision",
		Short: "Re-run provisioning for an existing clinic (idempotent)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := requesttrace.IntoContext(context.Background(), requesttrace.System(""))

			svc, cleanup, err := buildService(ctx, databaseURL)
			if err != nil {
				return err
			}
			defer cleanup()

			clinic, err := svc.Get(ctx, clinicID)
			if err != nil {
				if errors.Is(err, service.ErrNotFound) {
					return fmt.Errorf("clinic %d not found", clinicID)
				}
				return fmt.Errorf("get clinic: %w", err)
			}

			if err := svc.Provision(ctx, clinic); err != nil {
				return fmt.Errorf("provision clinic %d: %w", clinicID, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Clinic %d provisioned (database %s).\n", clinic.ID, clinic.DatabaseName)
			return nil
		},
	}

	c.Flags().StringVar(&databaseURL, "database-url", "", "PostgreSQL connection string (control plane)")
	c.Flags().Int64Var(&clinicID, "id", 0, "Clinic id")

	_ = c.MarkFlagRequired("database-url")
	_ = c.MarkFlagRequired("id")

	return c
}

func listCommand() *cobra.Command {
	var (
		databaseURL string
		activeOnly  bool
	)

	c := &cobra.Command{
		Use:   "list",
		Short: "List registered clinics",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			pool, err := persistence.NewControlPlanePool(ctx, persistence.PoolConfig{ConnString: databaseURL})
			if err != nil {
				return fmt.Errorf("init pool: %w", err)
			}
			defer persistence.ClosePool(pool)

			repo := clinicsrepo.NewPostgresRepository(pool)
			res, err := repo.List(ctx, service.ListOptions{Page: 1, PageSize: 500, ActiveOnly: activeOnly})
			if err != nil {
				return fmt.Errorf("list clinics: %w", err)
			}

			for _, clinic := range res.Clinics {
				state := "active"
				if !clinic.IsActive {
					state = "inactive"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%s\t%s\n", clinic.ID, clinic.Slug, clinic.DatabaseName, state)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Total: %d\n", res.TotalItems)
			return nil
		},
	}

	c.Flags().StringVar(&databaseURL, "database-url", "", "PostgreSQL connection string (control plane)")
	c.Flags().BoolVar(&activeOnly, "active-only", false, "Only list active clinics")
	_ = c.MarkFlagRequired("database-url")

	return c
}

// buildService assembles the clinics service with a real provisioner over a
// fresh control-plane pool. cleanup closes both the pool and the registry.
func buildService(ctx context.Context, databaseURL string) (*service.Service, func(), error) {
	logger, err := platformlogging.NewLogger(platformlogging.Config{Component: "cli", Level: "info"})
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}

	pool, err := persistence.NewControlPlanePool(ctx, persistence.PoolConfig{ConnString: databaseURL})
	if err != nil {
		return nil, nil, fmt.Errorf("init pool: %w", err)
	}

	dialer, err := persistence.NewPgxDialer(databaseURL, persistence.TenantPoolConfig{})
	if err != nil {
		persistence.ClosePool(pool)
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

	repo := clinicsrepo.NewPostgresRepository(pool)
	prov := provisioning.NewDBProvisioner(pool, runner)
	svc := service.New(repo, prov, logger)

	cleanup := func() {
		registry.Close()
		persistence.ClosePool(pool)
		_ = logger.Sync()
	}
	return svc, cleanup, nil
}
