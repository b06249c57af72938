package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/barysiuk/profiler/internal/core"
)

var manifestCmd = &cobra.Command{
	Use:   "manifest",
	Short: "Build or check a manifest",
	Long:  `Build a manifest from the host's installed add-ons, or validate an existing one.`,
}

var manifestBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Write a manifest of the host's installed repositories and add-ons",
	Long: `Query the host for its installed repositories and add-ons, active skin and
version, and print the manifest. With --output it is written to a file instead.
Built-in repositories are left out.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := newDeps(cmd)
		if err != nil {
			return err
		}
		client, err := d.hostClient()
		if err != nil {
			return err
		}
		defer func() { _ = client.Close() }()

		m, err := core.BuildManifest(cmd.Context(), client)
		if err != nil {
			return err
		}

		if out, _ := cmd.Flags().GetString("output"); out != "" {
			if err := core.WriteManifest(core.ExpandPath(out), m); err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "Wrote %s: %d repositories, %d add-ons\n", out, len(m.Repos), len(m.Addons))
			return nil
		}
		format, _ := cmd.Flags().GetString("format")
		return printData(os.Stdout, format, m)
	},
}

var manifestValidateCmd = &cobra.Command{
	Use:   "validate <manifest.json>",
	Short: "Check a manifest's shape",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := core.LoadManifest(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "%s is valid: %d repositories, %d add-ons\n", args[0], len(m.Repos), len(m.Addons))
		for _, r := range m.Repos {
			source := "by id"
			switch {
			case r.ZipInBackup != "":
				source = "bundled " + r.ZipInBackup
			case r.ZipURL != "":
				source = "from " + r.ZipURL
			}
			fmt.Fprintf(os.Stdout, "  %-40s %s\n", r.ID, source)
		}
		return nil
	},
}

func init() {
	manifestBuildCmd.Flags().StringP("output", "o", "", "Write the manifest to this file")
	manifestBuildCmd.Flags().StringP("format", "f", "json", "Output format: json or yaml")

	manifestCmd.AddCommand(manifestBuildCmd)
	manifestCmd.AddCommand(manifestValidateCmd)
	rootCmd.AddCommand(manifestCmd)
}
