package main

// Operator CLI for the submission backend:
//   go run ./cmd/subctl validate ./data.xlsx
//   go run ./cmd/subctl remind
//   go run ./cmd/subctl grant-role google:123 InstitutionManager

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"submission-backend/internal/bootstrap"
	"submission-backend/internal/shared/config"
	"submission-backend/internal/shared/telemetry"
)

var errInvalidWorkbook = errors.New("workbook failed validation")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(loadApp)
	if err := root.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errInvalidWorkbook) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func loadApp() (*bootstrap.App, error) {
	cfg := config.Load()
	telemetry.Setup(cfg.LogLevel)
	return bootstrap.Build(cfg)
}

func newRootCmd(appFn func() (*bootstrap.App, error)) *cobra.Command {
	root := &cobra.Command{
		Use:           "subctl",
		Short:         "Operate the submission approval backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newValidateCmd(),
		newRemindCmd(appFn),
		newMigrateCmd(),
		newRoleCmd(appFn, true),
		newRoleCmd(appFn, false),
	)
	return root
}
