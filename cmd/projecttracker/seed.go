package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Moadams/ProjectTracker/internal/obs"
)

func (a *app) seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create builtin roles and the configured admin principal",
		Long: `Ensures ADMIN, MANAGER, DEVELOPER and CONTRACTOR roles exist. When ADMIN_EMAIL
and ADMIN_PASSWORD are set, an ADMIN principal is created unless it already exists.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.DatabaseURL == "" {
				return fmt.Errorf("seed: DATABASE_URL is not set")
			}
			ctx := cmd.Context()
			svc, err := buildServices(ctx, a.cfg)
			if err != nil {
				return err
			}
			defer svc.close(context.WithoutCancel(ctx))

			if err := svc.auth.Seed(ctx, a.cfg.AdminEmail, a.cfg.AdminPassword); err != nil {
				return fmt.Errorf("seed: %w", err)
			}
			obs.Logger().Info("seed complete")
			return nil
		},
	}
}
