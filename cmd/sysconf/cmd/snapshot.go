package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/segmentio/ksuid"
	"github.com/spf13/cobra"
	"github.com/ssargent/sysconf/pkg/storage"
	"github.com/ssargent/sysconf/pkg/store"
)

// snapshotCmd represents the snapshot command group
var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Manage SYSCONF snapshots",
	Long:  `List, restore and prune the buffers saved before each write.`,
}

var snapshotListCmd = &cobra.Command{
	Use:   "list",
	Short: "List snapshots, oldest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := appFrom(cmd)
		if err != nil {
			return err
		}
		return listSnapshots(a, cmd.OutOrStdout())
	},
}

var snapshotRestoreCmd = &cobra.Command{
	Use:   "restore <id>",
	Short: "Write a snapshot back to the SYSCONF file",
	Long: `Write a snapshot back to the SYSCONF file. The buffer being replaced
is snapshotted first, so a restore can itself be undone.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := appFrom(cmd)
		if err != nil {
			return err
		}
		return restoreSnapshot(a, cmd.OutOrStdout(), args[0])
	},
}

var snapshotPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete all but the newest snapshots",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := appFrom(cmd)
		if err != nil {
			return err
		}
		keep, _ := cmd.Flags().GetInt("keep")
		if !cmd.Flags().Changed("keep") {
			keep = a.cfg.Snapshots.Keep
		}
		return pruneSnapshots(a, cmd.OutOrStdout(), keep)
	},
}

func init() {
	rootCmd.AddCommand(snapshotCmd)
	snapshotCmd.AddCommand(snapshotListCmd, snapshotRestoreCmd, snapshotPruneCmd)
	snapshotPruneCmd.Flags().Int("keep", 0, "Number of snapshots to keep (defaults to snapshots.keep)")
}

func requireSnapshots(a *app) (*storage.SnapshotStore, error) {
	snaps, err := a.openSnapshots()
	if err != nil {
		return nil, fmt.Errorf("open snapshots: %w", err)
	}
	if snaps == nil {
		return nil, fmt.Errorf("snapshots are disabled in %s", a.configPath)
	}
	return snaps, nil
}

func listSnapshots(a *app, w io.Writer) error {
	snaps, err := requireSnapshots(a)
	if err != nil {
		return err
	}
	defer snaps.Close()

	list, err := snaps.List()
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tFINGERPRINT\tCOMPRESSION\tSIZE")
	for _, s := range list {
		fmt.Fprintf(tw, "%s\t%s\t%016x\t%s\t%d\n",
			s.ID, s.CreatedAt.Format("2006-01-02 15:04:05"), s.Fingerprint, s.Compression, s.StoredSize)
	}
	return tw.Flush()
}

func restoreSnapshot(a *app, w io.Writer, idText string) error {
	id, err := ksuid.Parse(idText)
	if err != nil {
		return fmt.Errorf("invalid snapshot id %q: %w", idText, err)
	}

	snaps, err := requireSnapshots(a)
	if err != nil {
		return err
	}
	defer snaps.Close()

	data, _, err := snaps.Get(id)
	if err != nil {
		return err
	}
	restored, err := store.FromBytes(data)
	if err != nil {
		return err
	}

	rw := a.sysconf()
	if current, err := store.Load(rw); err == nil {
		if _, _, err := snaps.Create(current.Bytes()); err != nil {
			return fmt.Errorf("snapshot sysconf: %w", err)
		}
	} else {
		a.logger.Warn().Err(err).Msg("current sysconf unreadable, restoring without snapshot")
	}

	if err := restored.Save(rw); err != nil {
		return err
	}

	fmt.Fprintf(w, "Restored %s to %s\n", id, a.cfg.SysconfPath)
	return nil
}

func pruneSnapshots(a *app, w io.Writer, keep int) error {
	snaps, err := requireSnapshots(a)
	if err != nil {
		return err
	}
	defer snaps.Close()

	removed, err := snaps.Prune(keep)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Removed %d snapshots, kept at most %d\n", removed, keep)
	return nil
}
