package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the configuration after environment overrides",
	Long: `Print the configuration profiler runs with: config.json merged over the
defaults, with environment overrides applied. The host password is never printed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := newDeps(cmd)
		if err != nil {
			return err
		}
		format, _ := cmd.Flags().GetString("format")
		if format == "json" {
			cfg := *d.cfg
			cfg.Host.Password = ""
			return printData(os.Stdout, format, cfg)
		}
		return printData(os.Stdout, format, d.cfg)
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print where the configuration and state live",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := newDeps(cmd)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Config:  %s\n", d.config.ConfigPath())
		fmt.Fprintf(os.Stdout, "State:   %s\n", d.config.StatePath())
		fmt.Fprintf(os.Stdout, "Backups: %s\n", d.config.BackupsDir(d.cfg))
		fmt.Fprintf(os.Stdout, "Reports: %s\n", d.config.ReportsDir())
		return nil
	},
}

func init() {
	configShowCmd.Flags().StringP("format", "f", "yaml", "Output format: yaml or json")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}
