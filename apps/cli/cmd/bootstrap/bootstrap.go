package bootstrap

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/clinica-io/clinica-backend/platform/go/persistence"
)

// Command groups bootstrap helpers (control-plane init).
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Bootstrap platform resources (control-plane registry tables)",
	}

	cmd.AddCommand(controlPlaneCommand())
	return cmd
}

func controlPlaneCommand() *cobra.Command {
	var databaseURL string

	c := &cobra.Command{
		Use:   "control-plane",
		Short: "Create the clinics registry and operator tables",
		Long:  "Applies the embedded control-plane DDL (clinics registry, operators). Idempotent; safe to re-run.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			pool, err := persistence.NewControlPlanePool(ctx, persistence.PoolConfig{ConnString: databaseURL})
			if err != nil {
				return fmt.Errorf("init pool: %w", err)
			}
			defer persistence.ClosePool(pool)

			if err := persistence.BootstrapControlPlane(ctx, pool); err != nil {
				return fmt.Errorf("bootstrap control plane: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Control plane bootstrap complete.")
			return nil
		},
	}

	c.Flags().StringVar(&databaseURL, "database-url", "", "PostgreSQL connection string")
	_ = c.MarkFlagRequired("database-url")

	return c
}
