// Package commands implements the csvnome command line: the same load,
// truncate and save flow as the web UI, without a browser.
package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/csvnome/internal/config"
	"github.com/JonMunkholm/csvnome/internal/core"
	"github.com/JonMunkholm/csvnome/internal/history"
	"github.com/JonMunkholm/csvnome/internal/logging"
)

// app is the state shared by subcommands, built in PersistentPreRunE.
type app struct {
	logLevel string
	column   string

	cfg          *config.Config
	service      *core.Service
	closeHistory func()
}

// Execute runs the root command with os.Args.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "csvnome",
		Short:         `Truncate the "nome" column of a CSV file to its first word`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd.Context())
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.closeHistory != nil {
				a.closeHistory()
			}
		},
	}

	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error (default from LOG_LEVEL or warn)")
	root.PersistentFlags().StringVar(&a.column, "column", "", "column to truncate (default from PROCESS_COLUMN or nome)")

	root.AddCommand(processCmd(a), showCmd(a))
	return root
}

func (a *app) setup(ctx context.Context) error {
	// A missing .env is normal for the CLI; shell variables take precedence.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if a.column != "" {
		cfg.Processing.Column = a.column
	}

	level := a.logLevel
	if level == "" {
		level = "warn"
		if _, set := os.LookupEnv("LOG_LEVEL"); set {
			level = cfg.Logging.Level
		}
	}
	// stdout carries command output, so logs go to stderr.
	logging.SetupWriter(os.Stderr, level, cfg.Logging.Format)

	rec, closeFn, err := history.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.service = core.NewService(cfg, rec)
	a.closeHistory = closeFn
	return nil
}

// userError turns a flow error into the message printed for the user.
func userError(err error) error {
	if core.IsUserFacing(err) {
		return fmt.Errorf("%s", core.FormatUserError(err))
	}
	return err
}
