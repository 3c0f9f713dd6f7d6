package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Moadams/ProjectTracker/internal/migrate"
	"github.com/Moadams/ProjectTracker/internal/obs"
)

func (a *app) migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database schema migrations",
		Long:  `Applies or rolls back the embedded SQL migrations against DATABASE_URL.`,
	}

	run := func(dir migrate.Direction) *cobra.Command {
		return &cobra.Command{
			Use:   string(dir),
			Short: fmt.Sprintf("Migrate the schema %s", dir),
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := migrate.Run(a.cfg.DatabaseURL, dir); err != nil {
					return fmt.Errorf("migrate %s: %w", dir, err)
				}
				obs.Logger().Info("migrations applied", zap.String("direction", string(dir)))
				return nil
			},
		}
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show the applied schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, dirty, err := migrate.Version(a.cfg.DatabaseURL)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "version=%d dirty=%t\n", v, dirty)
			return nil
		},
	}

	cmd.AddCommand(run(migrate.Up), run(migrate.Down), versionCmd)
	return cmd
}
