package cmd

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/ssargent/sysconf/pkg/query"
	"github.com/ssargent/sysconf/pkg/store"
)

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all entries",
	Long: `List every entry in offset table order with its type, offset,
payload length and value. --where conditions filter on name, type, length
or offset and must all match.

Examples:
  sysconf list
  sysconf list --json -f ./SYSCONF
  sysconf list --where 'name^=IPL.' --where 'type=Long'`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := appFrom(cmd)
		if err != nil {
			return err
		}
		asJSON, _ := cmd.Flags().GetBool("json")
		where, _ := cmd.Flags().GetStringArray("where")
		return listEntries(a, cmd.OutOrStdout(), asJSON, where)
	},
}

// getCmd represents the get command
var getCmd = &cobra.Command{
	Use:   "get <name>",
	Short: "Print the value of an entry",
	Long: `Print the value of an entry. Scalars print as decimal, bools as
true/false and arrays as hex.

Examples:
  sysconf get IPL.CB
  sysconf get IPL.NIK --raw`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := appFrom(cmd)
		if err != nil {
			return err
		}
		raw, _ := cmd.Flags().GetBool("raw")
		return getEntry(a, cmd.OutOrStdout(), args[0], raw)
	},
}

// setCmd represents the set command
var setCmd = &cobra.Command{
	Use:   "set <name> <value>",
	Short: "Replace the value of an entry",
	Long: `Replace the value of an existing entry in place. The new value must
have exactly the entry's current payload length. The buffer is snapshotted
before it is saved.

Value kinds: u8, s8, u16, s16, u32, s32, bool, hex, str. Without --kind the
entry's type decides (Byte=u8, Short=u16, Long=u32, Bool=bool, arrays=hex).

Examples:
  sysconf set IPL.LNG 1
  sysconf set IPL.CB 0xFFFFFFFF
  sysconf set IPL.NIK --kind str wii`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := appFrom(cmd)
		if err != nil {
			return err
		}
		kind, _ := cmd.Flags().GetString("kind")
		return setEntry(a, cmd.OutOrStdout(), args[0], kind, args[1])
	},
}

// checkCmd represents the check command
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check the structure of a SYSCONF file",
	Long: `Check that the offset table fits the buffer and that every record
decodes, lies after the table and does not overlap another record.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := appFrom(cmd)
		if err != nil {
			return err
		}
		return checkSysconf(a, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(listCmd, getCmd, setCmd, checkCmd)

	listCmd.Flags().Bool("json", false, "Print entries as JSON")
	listCmd.Flags().StringArray("where", nil, "Filter condition such as type=Long or name^=IPL. (repeatable)")
	getCmd.Flags().Bool("raw", false, "Print the payload as hex regardless of type")
	setCmd.Flags().String("kind", "", "Value kind (defaults to the entry's type)")
}

type entryRow struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Offset int    `json:"offset"`
	Length int    `json:"length"`
	Value  string `json:"value"`
}

func listEntries(a *app, w io.Writer, asJSON bool, where []string) error {
	queries := make([]query.FieldQuery, 0, len(where))
	for _, cond := range where {
		q, err := query.Parse(cond)
		if err != nil {
			return err
		}
		queries = append(queries, q)
	}

	conf, err := store.Load(a.sysconf())
	if err != nil {
		return err
	}

	entries, err := conf.Entries()
	if err != nil {
		return err
	}
	entries = query.Filter(entries, queries)

	rows := make([]entryRow, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, entryRow{
			Name:   e.Name,
			Type:   e.Type,
			Offset: e.Offset,
			Length: len(e.Value),
			Value:  store.FormatValue(e),
		})
	}

	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tTYPE\tOFFSET\tLEN\tVALUE")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t0x%04X\t%d\t%s\n", r.Name, r.Type, r.Offset, r.Length, r.Value)
	}
	return tw.Flush()
}

func getEntry(a *app, w io.Writer, name string, raw bool) error {
	conf, err := store.Load(a.sysconf())
	if err != nil {
		return err
	}

	e, err := conf.Get(name)
	if err != nil {
		return err
	}

	if raw {
		fmt.Fprintln(w, hex.EncodeToString(e.Value))
		return nil
	}
	fmt.Fprintln(w, store.FormatValue(e))
	return nil
}

func setEntry(a *app, w io.Writer, name, kind, text string) error {
	rw := a.sysconf()
	conf, err := store.Load(rw)
	if err != nil {
		return err
	}

	e, err := conf.Get(name)
	if err != nil {
		return err
	}
	if kind == "" {
		kind = store.DefaultKind(e.Class)
	}

	value, err := store.ParseValue(kind, text)
	if err != nil {
		return err
	}

	original := conf.Bytes()
	if err := conf.Replace(name, value); err != nil {
		return err
	}

	snapshotID, err := snapshotBeforeSave(a, original)
	if err != nil {
		return err
	}
	if err := conf.Save(rw); err != nil {
		return err
	}

	updated, err := conf.Get(name)
	if err != nil {
		return err
	}

	a.logger.Info().Str("entry", name).Str("snapshot", snapshotID).Msg("entry replaced")
	fmt.Fprintf(w, "%s = %s\n", name, store.FormatValue(updated))
	return nil
}

// snapshotBeforeSave records original in the snapshot store when snapshots
// are enabled and returns the snapshot ID
func snapshotBeforeSave(a *app, original []byte) (string, error) {
	snaps, err := a.openSnapshots()
	if err != nil {
		return "", fmt.Errorf("open snapshots: %w", err)
	}
	if snaps == nil {
		return "", nil
	}
	defer snaps.Close()

	snap, _, err := snaps.Create(original)
	if err != nil {
		return "", fmt.Errorf("snapshot sysconf: %w", err)
	}

	if a.cfg.Snapshots.Keep > 0 {
		if _, err := snaps.Prune(a.cfg.Snapshots.Keep); err != nil {
			a.logger.Warn().Err(err).Msg("snapshot prune failed")
		}
	}

	return snap.ID.String(), nil
}

func checkSysconf(a *app, w io.Writer) error {
	conf, err := store.Load(a.sysconf())
	if err != nil {
		return err
	}

	if err := conf.Validate(); err != nil {
		fmt.Fprintf(w, "FAIL: %v\n", err)
		return err
	}

	fmt.Fprintf(w, "OK: %d entries\n", conf.Count())
	return nil
}
