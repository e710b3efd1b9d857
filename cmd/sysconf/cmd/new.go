package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/ssargent/sysconf/pkg/codec"
	"github.com/ssargent/sysconf/pkg/store"
)

// newCmd represents the new command
var newCmd = &cobra.Command{
	Use:   "new",
	Short: "Create a fresh SYSCONF file",
	Long: `Create a fresh SYSCONF file from a list of entries. Each --entry is
NAME=TYPE:VALUE where TYPE is one of BigArray, SmallArray, Byte, Short, Long
or Bool. Array values are hex.

Examples:
  sysconf new -f ./SYSCONF --entry IPL.CB=Long:0 --entry IPL.LNG=Byte:1
  sysconf new -f ./SYSCONF --entry IPL.NIK=SmallArray:776969 --force`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := appFrom(cmd)
		if err != nil {
			return err
		}
		entries, _ := cmd.Flags().GetStringArray("entry")
		force, _ := cmd.Flags().GetBool("force")
		return newSysconf(a, cmd.OutOrStdout(), entries, force)
	},
}

func init() {
	rootCmd.AddCommand(newCmd)
	newCmd.Flags().StringArray("entry", nil, "Entry as NAME=TYPE:VALUE (repeatable)")
	newCmd.Flags().Bool("force", false, "Overwrite an existing file")
}

// parseEntrySpec parses NAME=TYPE:VALUE
func parseEntrySpec(s string) (store.EntrySpec, error) {
	name, rest, ok := strings.Cut(s, "=")
	if !ok || name == "" {
		return store.EntrySpec{}, fmt.Errorf("entry %q: want NAME=TYPE:VALUE", s)
	}
	typeName, text, ok := strings.Cut(rest, ":")
	if !ok {
		return store.EntrySpec{}, fmt.Errorf("entry %q: want NAME=TYPE:VALUE", s)
	}

	class, err := codec.ParseTypeClass(typeName)
	if err != nil {
		return store.EntrySpec{}, fmt.Errorf("entry %q: %w", s, err)
	}
	value, err := store.ParseValue(store.DefaultKind(class), text)
	if err != nil {
		return store.EntrySpec{}, fmt.Errorf("entry %q: %w", s, err)
	}

	return store.EntrySpec{Name: name, Class: class, Value: value}, nil
}

func newSysconf(a *app, w io.Writer, entries []string, force bool) error {
	path := a.cfg.SysconfPath
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists, use --force to overwrite", path)
	}

	specs := make([]store.EntrySpec, 0, len(entries))
	for _, s := range entries {
		spec, err := parseEntrySpec(s)
		if err != nil {
			return err
		}
		specs = append(specs, spec)
	}

	conf, err := store.Build(specs)
	if err != nil {
		return err
	}
	if err := conf.Save(a.sysconf()); err != nil {
		return err
	}

	fmt.Fprintf(w, "Created %s with %d entries\n", path, conf.Count())
	return nil
}
