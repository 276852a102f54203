package main

import (
	"errors"
	"fmt"

	"github.com/kubex/rubix-directory/config"
	"github.com/kubex/rubix-directory/directory"
	"github.com/kubex/rubix-directory/logger"
	"github.com/kubex/rubix-directory/storage"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// app carries what every subcommand needs once the root pre-run has completed.
type app struct {
	cfg   *config.Config
	log   *zap.SugaredLogger
	store storage.Provider
	svc   *directory.Service
}

type loggerAware interface {
	SetLogger(log *zap.SugaredLogger)
}

func newRootCmd() *cobra.Command {
	var configPath string
	var output string
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "rubix-directory",
		Short:         "Visibility scoped user directory",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if output != "table" && output != "json" {
				return fmt.Errorf("unknown output format %q", output)
			}
			return a.open(configPath)
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			return a.close()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (yaml, json or toml)")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "table", "Output format (table, json)")

	rootCmd.AddCommand(newQueryCmd(a))
	rootCmd.AddCommand(newCountCmd(a))
	rootCmd.AddCommand(newDeleteUserCmd(a))
	rootCmd.AddCommand(newMigrateCmd(a))

	return rootCmd
}

func (a *app) open(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.Logging.Level)
	if err != nil {
		return err
	}

	storageJSON, err := cfg.StorageJSON()
	if err != nil {
		return err
	}
	store, err := storage.Load(storageJSON)
	if err != nil {
		return err
	}
	if aware, ok := store.(loggerAware); ok {
		aware.SetLogger(log)
	}
	if err := store.Connect(); err != nil {
		log.Errorw("storage connect failed", "provider", cfg.Storage.Provider, "error", err)
		return err
	}

	a.cfg = cfg
	a.log = log
	a.store = store
	a.svc = directory.NewService(store, directory.WithLogger(log))
	return nil
}

func (a *app) close() error {
	var errs []error
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	if a.log != nil {
		_ = a.log.Sync()
	}
	return errors.Join(errs...)
}

func getOutputFormat(cmd *cobra.Command) string {
	output, _ := cmd.Flags().GetString("output")
	return output
}
