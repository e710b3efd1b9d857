package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/ssargent/sysconf/pkg/clocksync"
)

// syncCmd represents the sync command
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Correct the RTC counter bias from a reference time",
	Long: `Fetch the current time from the configured time service, compute the
difference to the local clock and add it to the IPL.CB counter bias.

Examples:
  sysconf sync
  sysconf sync --dry-run`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := appFrom(cmd)
		if err != nil {
			return err
		}
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		return runSync(cmd.Context(), a, cmd.OutOrStdout(), dryRun)
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.Flags().Bool("dry-run", false, "Compute the new bias without saving")
}

func runSync(ctx context.Context, a *app, w io.Writer, dryRun bool) error {
	snaps, err := a.openSnapshots()
	if err != nil {
		return fmt.Errorf("open snapshots: %w", err)
	}

	var snapshotter clocksync.Snapshotter
	if snaps != nil {
		defer snaps.Close()
		snapshotter = snaps
	}

	ts := container.GetTimeSourceFactory().CreateTimeSource(a.cfg.TimeService, a.logger)
	syncer := clocksync.NewSyncer(a.sysconf(), ts, snapshotter, clocksync.Config{
		Retries:    a.cfg.TimeService.Retries,
		RetryDelay: a.cfg.TimeService.RetryDelay,
		DryRun:     dryRun,
	}, a.logger)

	result, err := syncer.Run(ctx)
	if err != nil {
		return err
	}
	if snaps != nil && result.SnapshotID != "" && a.cfg.Snapshots.Keep > 0 {
		if _, err := snaps.Prune(a.cfg.Snapshots.Keep); err != nil {
			a.logger.Warn().Err(err).Msg("snapshot prune failed")
		}
	}

	fmt.Fprintf(w, "delta: %+d s\n", result.Delta)
	fmt.Fprintf(w, "counter bias: %d -> %d\n", result.PreviousBias, result.NewBias)
	if result.Saved {
		fmt.Fprintln(w, "saved")
	} else {
		fmt.Fprintln(w, "dry run, nothing saved")
	}
	return nil
}
