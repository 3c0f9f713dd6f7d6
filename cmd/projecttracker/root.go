package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Moadams/ProjectTracker/internal/config"
	"github.com/Moadams/ProjectTracker/internal/obs"
)

// app carries state shared by every subcommand once config is loaded.
type app struct {
	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "projecttracker",
		Short:         "ProjectTracker API server",
		Long:          `projecttracker serves the authentication and project API and runs database maintenance.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			a.cfg = cfg
			obs.ConfigureLogger(cfg.Env, cfg.LogLevel)
			return nil
		},
	}
	root.AddCommand(a.serveCmd(), a.migrateCmd(), a.seedCmd())
	return root
}
