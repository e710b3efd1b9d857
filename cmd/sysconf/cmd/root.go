/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/phuslu/log"
	"github.com/spf13/cobra"
	"github.com/ssargent/sysconf/pkg/config"
	"github.com/ssargent/sysconf/pkg/di"
	"github.com/ssargent/sysconf/pkg/logging"
	"github.com/ssargent/sysconf/pkg/storage"
	"github.com/ssargent/sysconf/pkg/store"
)

var container *di.Container

// SetContainer injects the dependency container
func SetContainer(c *di.Container) {
	container = c
}

type appKey struct{}

// app is the per-invocation state built by the root command
type app struct {
	cfg        *config.Config
	configPath string
	logger     *log.Logger
}

func (a *app) sysconf() store.ReadWriter {
	return container.GetStorageFactory().OpenSysconf(a.cfg.SysconfPath, a.logger)
}

// openSnapshots returns nil when snapshots are disabled. Callers close the store.
func (a *app) openSnapshots() (*storage.SnapshotStore, error) {
	return container.GetStorageFactory().OpenSnapshots(a.cfg.Snapshots, a.logger)
}

func appFrom(cmd *cobra.Command) (*app, error) {
	a, ok := cmd.Context().Value(appKey{}).(*app)
	if !ok {
		return nil, fmt.Errorf("configuration not loaded")
	}
	if container == nil {
		return nil, fmt.Errorf("dependency container not initialized")
	}
	return a, nil
}

// loadApp reads the config file when present and applies flag overrides
func loadApp(configPath, sysconfPath, logLevel string) (*app, error) {
	cfg := config.DefaultConfig()
	if config.ConfigExists(configPath) {
		loaded, err := config.LoadConfig(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if sysconfPath != "" {
		cfg.SysconfPath = sysconfPath
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &app{
		cfg:        cfg,
		configPath: configPath,
		logger:     logging.New(cfg.Logging.Level),
	}, nil
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sysconf",
	Short: "sysconf - SYSCONF settings editor",
	Long: `sysconf reads and edits a console SYSCONF settings file: a fixed
16 KiB buffer of named, typed entries. Values are replaced in place and
never change size. Every save is preceded by a snapshot of the old buffer.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		sysconfPath, _ := cmd.Flags().GetString("file")
		logLevel, _ := cmd.Flags().GetString("log-level")

		a, err := loadApp(configPath, sysconfPath, logLevel)
		if err != nil {
			return err
		}

		cmd.SetContext(context.WithValue(cmd.Context(), appKey{}, a))
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", config.GetDefaultConfigPath(), "Path to the configuration file")
	rootCmd.PersistentFlags().StringP("file", "f", "", "SYSCONF file (overrides sysconf_path)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (overrides logging.level)")
}
