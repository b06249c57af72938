package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/juju/errors"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/barysiuk/profiler/internal/core"
	"github.com/barysiuk/profiler/internal/tui"
)

// errItemsFailed is returned after a run in which at least one item failed
// for a reason other than user cancellation.
const errItemsFailed = errors.ConstError("some items failed to install")

const renderWidth = 80

// isTerminal reports whether f is attached to a terminal.
func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// useTUI reports whether the interactive progress display should be shown.
func useTUI(cmd *cobra.Command) bool {
	if off, _ := cmd.Flags().GetBool("no-tui"); off {
		return false
	}
	return isTerminal(os.Stdin) && isTerminal(os.Stdout)
}

// withProgress runs work with the interactive display when available, or
// with progress written to the log otherwise.
func withProgress(cmd *cobra.Command, work func(ctx context.Context, p core.Progress) error) error {
	if useTUI(cmd) {
		defer quietLogging(cmd)()
		return tui.Run(cmd.Context(), os.Stdin, os.Stdout, work)
	}
	return work(cmd.Context(), &core.LogProgress{Logger: logger})
}

// addFormatFlag adds --format to a command that prints a report.
func addFormatFlag(cmd *cobra.Command) {
	cmd.Flags().StringP("format", "f", "text", "Output format: text, json, yaml or markdown")
}

// structuredFormat reports whether --format asks for machine-readable output.
func structuredFormat(cmd *cobra.Command) bool {
	switch format, _ := cmd.Flags().GetString("format"); format {
	case "json", "yaml", "yml":
		return true
	}
	return false
}

// printReport writes r in the format chosen by --format.
func printReport(cmd *cobra.Command, w io.Writer, r *core.Report) error {
	format, _ := cmd.Flags().GetString("format")
	switch format {
	case "", "text":
		fmt.Fprint(w, tui.Summary(r))
		return nil
	case "markdown", "md":
		if f, ok := w.(*os.File); ok && isTerminal(f) {
			fmt.Fprintln(w, tui.RenderReport(r, renderWidth))
			return nil
		}
		fmt.Fprint(w, tui.ReportMarkdown(r))
		return nil
	default:
		return printData(w, format, r)
	}
}

// printData writes v as JSON or YAML.
func printData(w io.Writer, format string, v any) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown format %q (want text, json, yaml or markdown)", format)
	}
}

// reportOutcome turns a finished run into the command's error: the run
// error if there was one, errItemsFailed if any item failed for a reason
// other than cancelling a phase, nil otherwise.
func reportOutcome(r *core.Report, runErr error) error {
	if runErr != nil {
		return runErr
	}
	if r != nil && r.HasHardFailures() {
		return errItemsFailed
	}
	return nil
}
