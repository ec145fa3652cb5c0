package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"submission-backend/internal/bootstrap"
	"submission-backend/internal/shared/config"
	"submission-backend/internal/shared/storage/db"
)

func newRemindCmd(appFn func() (*bootstrap.App, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "remind",
		Short: "Run one reminder sweep now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFn()
			if err != nil {
				return err
			}
			defer app.Close()

			summary, err := app.SubmissionsService.SendReminders(cmd.Context())
			if err != nil {
				return err
			}
			return json.NewEncoder(cmd.OutOrStdout()).Encode(summary)
		},
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down|status]",
		Short:     "Apply, roll back or inspect database migrations",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down", "status"},
		RunE: func(cmd *cobra.Command, args []string) error {
			direction := "up"
			if len(args) == 1 {
				direction = args[0]
			}
			cfg := config.Load()
			if cfg.DatabaseURL == "" {
				return errors.New("DATABASE_URL is required")
			}

			ctx := cmd.Context()
			sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFor(db.ProfileMigrate))
			if err != nil {
				return err
			}
			defer sqlDB.Close()

			switch direction {
			case "down":
				return db.RollbackMigration(ctx, sqlDB)
			case "status":
				return db.MigrationStatus(ctx, sqlDB)
			default:
				return db.RunMigrations(ctx, sqlDB)
			}
		},
	}
}

func newRoleCmd(appFn func() (*bootstrap.App, error), grant bool) *cobra.Command {
	use, short := "grant-role <user-id> <role>", "Add a user to a workflow role"
	if !grant {
		use, short = "revoke-role <user-id> <role>", "Remove a user from a workflow role"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFn()
			if err != nil {
				return err
			}
			defer app.Close()

			userID, role := args[0], args[1]
			if grant {
				err = app.UsersService.GrantRole(cmd.Context(), userID, role)
			} else {
				err = app.UsersService.RevokeRole(cmd.Context(), userID, role)
			}
			if err != nil {
				return err
			}
			verb := "granted"
			if !grant {
				verb = "revoked"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s for %s\n", verb, role, userID)
			return nil
		},
	}
}
