/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/ssargent/sysconf/pkg/config"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a sysconf configuration file",
	Long: `Create a configuration file with defaults and a generated API key.

Examples:
  sysconf init
  sysconf init -f /mnt/nand/shared2/sys/SYSCONF
  sysconf init --config ./sysconf.yaml --force`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := appFrom(cmd)
		if err != nil {
			return err
		}
		sysconfPath, _ := cmd.Flags().GetString("file")
		force, _ := cmd.Flags().GetBool("force")
		printKey, _ := cmd.Flags().GetBool("print-key")
		return initConfig(cmd.OutOrStdout(), a.configPath, sysconfPath, force, printKey)
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().Bool("force", false, "Overwrite an existing configuration file")
	initCmd.Flags().Bool("print-key", false, "Print the generated API key")
}

func initConfig(w io.Writer, configPath, sysconfPath string, force, printKey bool) error {
	if config.ConfigExists(configPath) && !force {
		fmt.Fprintf(w, "Configuration already exists at %s. Use --force to overwrite.\n", configPath)
		return nil
	}

	cfg, err := config.BootstrapConfig(configPath, sysconfPath)
	if err != nil {
		return fmt.Errorf("bootstrap config: %w", err)
	}

	fmt.Fprintf(w, "Configuration created at %s\n", configPath)
	fmt.Fprintf(w, "SYSCONF file: %s\n", cfg.SysconfPath)
	if printKey {
		fmt.Fprintf(w, "API key: %s\n", cfg.Server.APIKey)
	}
	return nil
}
