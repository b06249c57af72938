package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/barysiuk/profiler/internal/core"
	"github.com/barysiuk/profiler/internal/core/host"
)

var hostCmd = &cobra.Command{
	Use:   "host",
	Short: "Inspect and drive the configured host",
	Long: `Inspect and drive the configured host.

Builtin commands (installing add-ons, rescanning folders, switching skins)
run through a small bridge add-on on the host. 'profiler host install-bridge'
writes it into the host's add-on folder.`,
}

var hostStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check that the host answers and show what it runs",
	Args:  cobra.NoArgs,
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

		ctx := cmd.Context()
		if err := client.Ping(ctx); err != nil {
			return fmt.Errorf("host %s is not answering: %w", d.cfg.Host.URL, err)
		}
		major, err := client.MajorVersion(ctx)
		if err != nil {
			return err
		}
		skin, err := client.ActiveSkin(ctx)
		if err != nil {
			return err
		}
		addons, err := client.InstalledAddons(ctx)
		if err != nil {
			return err
		}

		repos, disabled := 0, 0
		bridge := "not installed, run 'profiler host install-bridge'"
		for _, a := range addons {
			if a.ID == client.BridgeAddon() {
				bridge = "enabled"
				if a.Enabled != nil && !*a.Enabled {
					bridge = "disabled, run 'profiler host install-bridge'"
				}
			}
			if core.IsRepository(a.ID) {
				repos++
			}
			if a.Enabled != nil && !*a.Enabled {
				disabled++
			}
		}

		fmt.Fprintf(os.Stdout, "Host:       %s (%s)\n", d.cfg.Host.URL, d.cfg.Host.Transport)
		fmt.Fprintf(os.Stdout, "Kodi:       %d\n", major)
		fmt.Fprintf(os.Stdout, "Skin:       %s\n", skin)
		fmt.Fprintf(os.Stdout, "Add-ons:    %d installed (%d repositories, %d disabled)\n", len(addons), repos, disabled)
		fmt.Fprintf(os.Stdout, "Bridge:     %s (%s)\n", client.BridgeAddon(), bridge)

		if st, err := d.config.ReadState(); err == nil && st.PendingFinalize {
			fmt.Fprintf(os.Stdout, "\nA restore is waiting for 'profiler finalize' (skin %s).\n", st.PendingSkin)
		}
		return nil
	},
}

var hostIntrospectCmd = &cobra.Command{
	Use:   "introspect",
	Short: "Print the host's JSON-RPC schema",
	Args:  cobra.NoArgs,
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

		schema, err := client.Introspect(cmd.Context())
		if err != nil {
			return err
		}
		return printData(os.Stdout, "json", schema)
	},
}

var hostInstallZipCmd = &cobra.Command{
	Use:   "install-zip <archive>",
	Short: "Install one add-on archive through the host",
	Long: `Check an add-on archive and ask the host to install it. The path must be
readable by the host. The add-on id is taken from the file name
(repository.foo-1.2.0.zip installs repository.foo) unless --id is given.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := newDeps(cmd)
		if err != nil {
			return err
		}

		archive, err := filepath.Abs(core.ExpandPath(args[0]))
		if err != nil {
			return err
		}
		id, _ := cmd.Flags().GetString("id")
		if id == "" {
			id = addonIDFromArchive(archive)
		}
		if err := core.ValidateArchive(archive, id); err != nil {
			return err
		}

		client, err := d.hostClient()
		if err != nil {
			return err
		}
		defer func() { _ = client.Close() }()

		if err := client.InstallLocalArchive(cmd.Context(), archive); err != nil {
			return fmt.Errorf("installing %s: %w", id, err)
		}
		fmt.Fprintf(os.Stdout, "Asked the host to install %s from %s\n", id, archive)
		return nil
	},
}

var hostInstallBridgeCmd = &cobra.Command{
	Use:   "install-bridge",
	Short: "Install the bridge add-on builtin commands run through",
	Long: `Write the bridge add-on into the host's add-on folder (home_dir/addons).
The host only registers new folders when it starts, so restart it after the
first run and run this command again to enable the add-on.`,
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

		ctx := cmd.Context()
		id := client.BridgeAddon()
		addons, err := client.InstalledAddons(ctx)
		if err != nil {
			return err
		}
		for _, a := range addons {
			if a.ID != id {
				continue
			}
			if a.Enabled == nil || *a.Enabled {
				fmt.Fprintf(os.Stdout, "Bridge add-on %s is installed and enabled.\n", id)
				return nil
			}
			if err := client.EnableAddon(ctx, id); err != nil {
				return fmt.Errorf("enabling %s: %w", id, err)
			}
			fmt.Fprintf(os.Stdout, "Enabled bridge add-on %s.\n", id)
			return nil
		}

		dir, err := host.WriteBridge(d.cfg.AddonsDir(), id)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Wrote bridge add-on to %s.\n", dir)
		fmt.Fprintln(os.Stdout, "Restart the host, then run 'profiler host install-bridge' again to enable it.")
		return nil
	},
}

func init() {
	hostInstallZipCmd.Flags().String("id", "", "Add-on id the archive must contain")

	hostCmd.AddCommand(hostStatusCmd)
	hostCmd.AddCommand(hostIntrospectCmd)
	hostCmd.AddCommand(hostInstallZipCmd)
	hostCmd.AddCommand(hostInstallBridgeCmd)
	rootCmd.AddCommand(hostCmd)
}

// addonIDFromArchive strips the extension and a trailing "-<version>" from
// a package file name.
func addonIDFromArchive(path string) string {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if i := strings.LastIndex(name, "-"); i > 0 && i+1 < len(name) && name[i+1] >= '0' && name[i+1] <= '9' {
		return name[:i]
	}
	return name
}
