/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/ssargent/sysconf/pkg/api"
	"github.com/ssargent/sysconf/pkg/clocksync"
	"github.com/ssargent/sysconf/pkg/config"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long: `Start the sysconf REST API server. Every request performs one
load-modify-save cycle on the SYSCONF file and requests are serialized.

Examples:
  sysconf serve
  sysconf serve --port 9000 --bind 0.0.0.0`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := appFrom(cmd)
		if err != nil {
			return err
		}

		if cmd.Flags().Changed("port") {
			a.cfg.Server.Port, _ = cmd.Flags().GetInt("port")
		}
		if cmd.Flags().Changed("bind") {
			a.cfg.Server.Bind, _ = cmd.Flags().GetString("bind")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return serve(ctx, a, cmd)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntP("port", "p", 8080, "Port to listen on (overrides server.port)")
	serveCmd.Flags().String("bind", "127.0.0.1", "Address to bind (overrides server.bind)")
}

func serve(ctx context.Context, a *app, cmd *cobra.Command) error {
	apiKey := a.cfg.Server.APIKey
	if apiKey == "" || apiKey == "auto" {
		generated, err := config.GenerateSecureKey(32)
		if err != nil {
			return err
		}
		apiKey = generated
		cmd.Printf("Generated API key for this session: %s\n", apiKey)
	}

	snaps, err := a.openSnapshots()
	if err != nil {
		return fmt.Errorf("open snapshots: %w", err)
	}

	rw := a.sysconf()
	deps := api.Dependencies{Storage: rw, Logger: a.logger}

	var snapshotter clocksync.Snapshotter
	if snaps != nil {
		defer snaps.Close()
		deps.Snapshots = snaps
		snapshotter = snaps
	}

	ts := container.GetTimeSourceFactory().CreateTimeSource(a.cfg.TimeService, a.logger)
	deps.Syncer = clocksync.NewSyncer(rw, ts, snapshotter, clocksync.Config{
		Retries:    a.cfg.TimeService.Retries,
		RetryDelay: a.cfg.TimeService.RetryDelay,
	}, a.logger)

	starter := container.GetServerFactory().CreateServerStarter()
	return starter.StartServer(ctx, deps, api.ServerConfig{
		Port:   a.cfg.Server.Port,
		Bind:   a.cfg.Server.Bind,
		APIKey: apiKey,

		SnapshotKeep: a.cfg.Snapshots.Keep,
	})
}
