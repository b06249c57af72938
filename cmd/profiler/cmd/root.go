package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/juju/loggo"
	"github.com/spf13/cobra"

	"github.com/barysiuk/profiler/internal/core"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

var logger = loggo.GetLogger("profiler.cli")

// logFile is the --log-file handle, closed by Execute.
var logFile *os.File

var rootCmd = &cobra.Command{
	Use:   "profiler",
	Short: "Back up and restore a Kodi profile",
	Long: `Profiler captures a Kodi profile (settings, sources, add-on data and the
list of installed repositories and add-ons) into a single archive, and
restores it onto another device by reinstalling every add-on through
Kodi's JSON-RPC control channel.

Backups can be kept locally or in an S3-compatible bucket.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogging(cmd)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("profiler %s (commit: %s, built: %s)\n", Version, Commit, Date)
	},
}

func init() {
	rootCmd.PersistentFlags().String("config-dir", "", "Configuration directory (default: $"+core.HomeEnvVar+" or ~/.profiler)")
	rootCmd.PersistentFlags().String("log-level", "<root>=WARNING", "Logging configuration, e.g. '<root>=INFO;profiler.host=DEBUG'")
	rootCmd.PersistentFlags().String("log-file", "", "Also append log output to this file")
	rootCmd.PersistentFlags().Bool("no-tui", false, "Never show the interactive progress display")
	rootCmd.AddCommand(versionCmd)
}

// setupLogging routes loggo output to stderr, plus --log-file when set.
func setupLogging(cmd *cobra.Command) error {
	if path, _ := cmd.Flags().GetString("log-file"); path != "" {
		f, err := os.OpenFile(core.ExpandPath(path), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		logFile = f
	}
	w := logSink(cmd.ErrOrStderr(), logFile, false)
	if _, err := loggo.ReplaceDefaultWriter(loggo.NewSimpleWriter(w, logFormatter)); err != nil {
		return fmt.Errorf("configuring logging: %w", err)
	}

	spec, _ := cmd.Flags().GetString("log-level")
	if err := loggo.ConfigureLoggers(spec); err != nil {
		return fmt.Errorf("invalid --log-level: %w", err)
	}
	return nil
}

// logSink picks where log lines go. A quiet sink leaves the terminal alone
// and writes to the log file only, if there is one.
func logSink(stderr io.Writer, file *os.File, quiet bool) io.Writer {
	switch {
	case file != nil && quiet:
		return file
	case file != nil:
		return io.MultiWriter(stderr, file)
	case quiet:
		return io.Discard
	}
	return stderr
}

// quietLogging keeps log output off the terminal until the returned function
// is called.
func quietLogging(cmd *cobra.Command) (restore func()) {
	w := loggo.NewSimpleWriter(logSink(cmd.ErrOrStderr(), logFile, true), logFormatter)
	prev, err := loggo.ReplaceDefaultWriter(w)
	if err != nil {
		return func() {}
	}
	return func() { _, _ = loggo.ReplaceDefaultWriter(prev) }
}

func logFormatter(entry loggo.Entry) string {
	ts := entry.Timestamp.Format(time.TimeOnly)
	return fmt.Sprintf("%s %-7s %s %s", ts, entry.Level, entry.Module, entry.Message)
}

// Execute runs the root command. SIGINT and SIGTERM cancel the context
// commands run under.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer func() {
		if logFile != nil {
			_ = logFile.Close()
		}
	}()
	return rootCmd.ExecuteContext(ctx)
}
