// Package cmd defines and implements the CLI commands for the employee-store executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/employee-store/internal/config"
	"github.com/JakeFAU/employee-store/internal/employee"
	"github.com/JakeFAU/employee-store/internal/server"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App defines the application interface that commands will use.
type App interface {
	Service() *employee.Service
	Config() config.Config
	Logger() *zap.Logger
	Run(ctx context.Context) error
	Close(ctx context.Context) error
}

// newApp is the application factory. Tests replace it to inject failures.
var newApp = func(ctx context.Context, cfgPath string) (App, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	return server.Build(ctx, &cfg)
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "employee-store",
		Short: "Maintain named employee values and report grouped totals.",
		Long: `employee-store keeps a table of named integer values in memory, SQLite or
Postgres. It serves a JSON API, applies the first-letter increment rule and
reports ABC sums: per-initial totals that meet a threshold.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := newApp(cmd.Context(), cfgFile)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML, TOML or JSON)")

	cmd.AddCommand(
		newServeCmd(),
		newListCmd(),
		newAddCmd(),
		newUpdateCmd(),
		newDeleteCmd(),
		newIncrementRuleCmd(),
		newABCSumsCmd(),
	)
	return cmd
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// execute runs root and closes the App the executed command resolved,
// whether or not the command succeeded.
func execute(ctx context.Context, root *cobra.Command) error {
	executed, err := root.ExecuteContextC(ctx)
	if executed == nil || executed.Context() == nil {
		return err
	}
	if appInstance, ok := executed.Context().Value(appKey).(App); ok && appInstance != nil {
		if closeErr := appInstance.Close(context.Background()); closeErr != nil {
			appInstance.Logger().Warn("application close failed", zap.Error(closeErr))
		}
	}
	return err
}

// Execute is the main entry point.
func Execute() {
	if err := execute(context.Background(), newRootCmd()); err != nil {
		os.Exit(1)
	}
}
