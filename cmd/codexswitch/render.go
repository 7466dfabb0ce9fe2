package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"golang.org/x/term"

	"github.com/janekbaraniewski/codexswitch/internal/core"
	"github.com/janekbaraniewski/codexswitch/internal/usagecache"
)

var (
	colorText    = lipgloss.Color("#CDD6F4")
	colorSubtext = lipgloss.Color("#A6ADC8")
	colorDim     = lipgloss.Color("#585B70")
	colorGreen   = lipgloss.Color("#A6E3A1")
	colorYellow  = lipgloss.Color("#F9E2AF")
	colorRed     = lipgloss.Color("#F38BA8")
	colorAccent  = lipgloss.Color("#CBA6F7")

	headerStyle  = lipgloss.NewStyle().Foreground(colorSubtext).Bold(true)
	nameStyle    = lipgloss.NewStyle().Foreground(colorText)
	activeStyle  = lipgloss.NewStyle().Foreground(colorAccent).Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(colorDim)
	okStyle      = lipgloss.NewStyle().Foreground(colorGreen)
	warningStyle = lipgloss.NewStyle().Foreground(colorYellow)
	errorStyle   = lipgloss.NewStyle().Foreground(colorRed)
)

const (
	columnGap     = "  "
	minMessageCol = 12
	emptyCell     = "-"
)

// statusRow is one profile as shown by status, refresh and watch.
type statusRow struct {
	Name       string        `json:"name"`
	Active     bool          `json:"active"`
	Cached     bool          `json:"cached"`
	Stale      bool          `json:"stale"`
	FetchedAt  *time.Time    `json:"fetchedAt,omitempty"`
	AgeSeconds *int64        `json:"ageSeconds,omitempty"`
	Summary    *core.Summary `json:"summary,omitempty"`
}

func buildStatusRows(list []core.Profile, views map[string]usagecache.SummaryView, active string) []statusRow {
	rows := make([]statusRow, 0, len(list))
	for _, p := range list {
		row := statusRow{Name: p.Name, Active: p.Name == active}
		if view, ok := views[p.Name]; ok {
			fetched := view.FetchedAt
			age := int64(view.Age / time.Second)
			summary := view.Summary
			row.Cached = true
			row.Stale = view.Stale
			row.FetchedAt = &fetched
			row.AgeSeconds = &age
			row.Summary = &summary
		}
		rows = append(rows, row)
	}
	return rows
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type cell struct {
	text  string
	style lipgloss.Style
}

// tableRenderer prints status rows as aligned columns. Colour and width
// limits only apply when writing to a terminal.
type tableRenderer struct {
	color bool
	width int
}

func newTableRenderer(w io.Writer) tableRenderer {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return tableRenderer{}
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		width = 0
	}
	return tableRenderer{color: true, width: width}
}

func (r tableRenderer) render(w io.Writer, rows []statusRow) {
	header := []string{"", "PROFILE", "STATUS", "PLAN", "PRIMARY", "SECONDARY", "RESETS", "CREDITS", "UPDATED", "MESSAGE"}
	table := make([][]cell, 0, len(rows))
	for _, row := range rows {
		table = append(table, statusCells(row))
	}

	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = ansi.StringWidth(h)
	}
	for _, cells := range table {
		for i, c := range cells {
			widths[i] = max(widths[i], ansi.StringWidth(c.text))
		}
	}

	last := len(header) - 1
	if r.width > 0 {
		used := 0
		for i := 0; i < last; i++ {
			used += widths[i] + len(columnGap)
		}
		widths[last] = min(widths[last], max(r.width-used, minMessageCol))
	}

	headerCells := make([]cell, len(header))
	for i, h := range header {
		headerCells[i] = cell{text: h, style: headerStyle}
	}
	r.writeLine(w, headerCells, widths)
	for _, cells := range table {
		r.writeLine(w, cells, widths)
	}
}

func (r tableRenderer) writeLine(w io.Writer, cells []cell, widths []int) {
	parts := make([]string, len(cells))
	for i, c := range cells {
		text := ansi.Truncate(c.text, widths[i], "…")
		if i < len(cells)-1 {
			text += strings.Repeat(" ", widths[i]-ansi.StringWidth(text))
		}
		if r.color {
			text = c.style.Render(text)
		}
		parts[i] = text
	}
	fmt.Fprintln(w, strings.TrimRight(strings.Join(parts, columnGap), " "))
}

func statusCells(row statusRow) []cell {
	marker := cell{text: " ", style: activeStyle}
	name := cell{text: row.Name, style: nameStyle}
	if row.Active {
		marker.text = "*"
		name.style = activeStyle
	}
	if row.Summary == nil {
		return []cell{
			marker, name,
			{text: "not fetched", style: dimStyle},
			dash(), dash(), dash(), dash(), dash(), dash(), dash(),
		}
	}

	s := row.Summary
	var primary, secondary *core.RateWindow
	if s.RateLimit != nil {
		primary, secondary = s.RateLimit.PrimaryWindow, s.RateLimit.SecondaryWindow
	}
	updated := cell{text: formatAge(time.Duration(*row.AgeSeconds) * time.Second), style: dimStyle}
	if row.Stale {
		updated.text += " (stale)"
		updated.style = warningStyle
	}

	return []cell{
		marker, name,
		{text: string(s.Status), style: statusStyle(s.Status)},
		plain(deref(s.PlanType)),
		usageCell(primary),
		usageCell(secondary),
		plain(formatReset(primary)),
		plain(formatCredits(s.Credits)),
		updated,
		{text: s.Message, style: dimStyle},
	}
}

func statusStyle(status core.SummaryStatus) lipgloss.Style {
	switch status {
	case core.SummaryOK:
		return okStyle
	case core.SummaryWarning:
		return warningStyle
	default:
		return errorStyle
	}
}

func usageCell(w *core.RateWindow) cell {
	if w == nil || w.UsedPercent == nil {
		return dash()
	}
	pct := *w.UsedPercent
	style := okStyle
	switch {
	case pct >= 90:
		style = errorStyle
	case pct >= 70:
		style = warningStyle
	}
	return cell{text: fmt.Sprintf("%.0f%%", pct), style: style}
}

func plain(text string) cell {
	if text == "" {
		return dash()
	}
	return cell{text: text, style: nameStyle}
}

func dash() cell { return cell{text: emptyCell, style: dimStyle} }

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func formatReset(w *core.RateWindow) string {
	if w == nil || w.ResetAfterSeconds == nil {
		return ""
	}
	return "in " + formatDuration(time.Duration(*w.ResetAfterSeconds*float64(time.Second)))
}

func formatCredits(c *core.Credits) string {
	switch {
	case c == nil:
		return ""
	case c.Unlimited != nil && *c.Unlimited:
		return "unlimited"
	case c.Balance != nil && *c.Balance != "":
		return *c.Balance
	case c.HasCredits != nil && !*c.HasCredits:
		return "none"
	}
	return ""
}

func formatAge(d time.Duration) string {
	if d < time.Minute {
		return "just now"
	}
	return formatDuration(d) + " ago"
}

// formatDuration keeps the two most significant units, e.g. "2d4h" or "1h5m".
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return "<1m"
	}
	days := int(d / (24 * time.Hour))
	hours := int(d % (24 * time.Hour) / time.Hour)
	minutes := int(d % time.Hour / time.Minute)
	switch {
	case days > 0 && hours > 0:
		return fmt.Sprintf("%dd%dh", days, hours)
	case days > 0:
		return fmt.Sprintf("%dd", days)
	case hours > 0 && minutes > 0:
		return fmt.Sprintf("%dh%dm", hours, minutes)
	case hours > 0:
		return fmt.Sprintf("%dh", hours)
	}
	return fmt.Sprintf("%dm", minutes)
}
