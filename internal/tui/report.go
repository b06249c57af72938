package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/barysiuk/profiler/internal/core"
)

// MaxListedFailures is how many failures a summary prints.
const MaxListedFailures = 5

// ReportMarkdown formats a reconciliation report as Markdown.
func ReportMarkdown(r *core.Report) string {
	var b strings.Builder
	b.WriteString("# Reconciliation report\n\n")
	if r.Cancelled() {
		b.WriteString("> Cancelled before every item was handled.\n\n")
	}
	writeCategory(&b, "Repositories", r.Repos)
	writeCategory(&b, "Add-ons", r.Addons)
	return b.String()
}

func writeCategory(b *strings.Builder, title string, c core.CategoryReport) {
	fmt.Fprintf(b, "## %s\n\n", title)
	fmt.Fprintf(b, "| installed | skipped | failed |\n|---|---|---|\n| %d | %d | %d |\n\n",
		len(c.Installed), len(c.Skipped), len(c.Failed))
	if len(c.Installed) > 0 {
		b.WriteString("Installed: " + codeList(c.Installed) + "\n\n")
	}
	for _, f := range c.Failed {
		fmt.Fprintf(b, "- `%s`: %s\n", f.ID, f.Error)
	}
	if len(c.Failed) > 0 {
		b.WriteString("\n")
	}
}

func codeList(ids []string) string {
	quoted := make([]string, len(ids))
	for i, id := range ids {
		quoted[i] = "`" + id + "`"
	}
	return strings.Join(quoted, ", ")
}

// RenderReport renders the report for a terminal of the given width. It
// falls back to the raw Markdown if rendering fails.
func RenderReport(r *core.Report, width int) string {
	md := ReportMarkdown(r)
	if width <= 0 {
		width = 80
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		logger.Debugf("report renderer: %v", err)
		return md
	}
	out, err := renderer.Render(md)
	if err != nil {
		logger.Debugf("rendering report: %v", err)
		return md
	}
	return clampWidth(strings.TrimRight(out, "\n"), width)
}

// Summary returns the plain-text outcome of a run: per-category counts
// followed by the first MaxListedFailures failures.
func Summary(r *core.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Repositories: %s\n", counts(r.Repos))
	fmt.Fprintf(&b, "Add-ons:      %s\n", counts(r.Addons))

	failures := r.Failures()
	if len(failures) == 0 {
		return b.String()
	}
	b.WriteString("\n")
	for _, f := range r.FirstFailures(MaxListedFailures) {
		fmt.Fprintf(&b, "  %s %s: %s\n", errorStyle.Render("✗"), f.ID, f.Error)
	}
	if more := len(failures) - MaxListedFailures; more > 0 {
		fmt.Fprintf(&b, "  %s\n", mutedStyle.Render(fmt.Sprintf("... and %d more", more)))
	}
	return b.String()
}

func counts(c core.CategoryReport) string {
	parts := []string{
		installedStyle.Render(fmt.Sprintf("%d installed", len(c.Installed))),
		mutedStyle.Render(fmt.Sprintf("%d skipped", len(c.Skipped))),
	}
	failed := fmt.Sprintf("%d failed", len(c.Failed))
	if len(c.Failed) > 0 {
		failed = errorStyle.Render(failed)
	} else {
		failed = mutedStyle.Render(failed)
	}
	return strings.Join(append(parts, failed), ", ")
}

// clampWidth truncates each line to at most maxWidth visible characters
// (ANSI-escape aware).
func clampWidth(content string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		if lipgloss.Width(line) > maxWidth {
			lines[i] = ansi.Truncate(line, maxWidth, "")
		}
	}
	return strings.Join(lines, "\n")
}
