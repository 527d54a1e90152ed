package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/rubiojr/annots/pkg/core"
	"github.com/rubiojr/annots/pkg/search"
	"github.com/rubiojr/annots/pkg/storage"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86")).
			Background(lipgloss.Color("235")).
			Padding(0, 1).
			Margin(0, 0, 1, 0)

	dayStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("214")).
			Margin(1, 0, 0, 0)

	pageStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("33")).
			Bold(true)

	annotStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1).
			Margin(0, 0, 0, 2)

	noteStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("32")).
			Italic(true)

	metaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)

	noDataStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true).
			Margin(1, 0)
)

// maxBodyWidth wraps highlight text in the terminal.
const maxBodyWidth = 80

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// renderPages prints page clusters, one header per page.
func renderPages(w io.Writer, title string, pages *search.PageClusters, loc *time.Location) {
	fmt.Fprintln(w, titleStyle.Render(title))
	if pages.Len() == 0 {
		fmt.Fprintln(w, noDataStyle.Render("No annotations found."))
		return
	}
	for _, entry := range pages.Entries() {
		renderPage(w, entry.PageURL, entry.Annotations, loc)
	}
}

func renderPage(w io.Writer, pageURL string, annots []core.Annotation, loc *time.Location) {
	fmt.Fprintf(w, "%s %s\n", pageStyle.Render(pageURL), metaStyle.Render(fmt.Sprintf("(%d)", len(annots))))
	for _, a := range annots {
		fmt.Fprintln(w, renderAnnotation(a, loc))
	}
}

// renderDays prints day clusters, newest day first.
func renderDays(w io.Writer, days *search.DayClusters, loc *time.Location) {
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("%d days, %d annotations", days.Len(), days.Count())))
	if days.Len() == 0 {
		fmt.Fprintln(w, noDataStyle.Render("No annotations found."))
		return
	}
	for _, entry := range days.Entries() {
		fmt.Fprintln(w, dayStyle.Render(entry.Day.In(loc).Format("Monday, January 2 2006")))
		for _, page := range entry.Pages.Entries() {
			renderPage(w, page.PageURL, page.Annotations, loc)
		}
	}
}

func renderAnnotation(a core.Annotation, loc *time.Location) string {
	var content strings.Builder

	if a.Body != "" {
		content.WriteString(lipgloss.NewStyle().Width(maxBodyWidth).Render(a.Body))
	}
	if a.Comment != "" {
		if content.Len() > 0 {
			content.WriteString("\n")
		}
		content.WriteString(noteStyle.Width(maxBodyWidth).Render(a.Comment))
	}
	content.WriteString("\n")
	content.WriteString(metaStyle.Render(fmt.Sprintf("%s  %s", a.LastEdited.In(loc).Format("2006-01-02 15:04"), a.URL)))

	return annotStyle.Render(content.String())
}

// formatNumber formats a number with K/M suffixes for readability
func formatNumber(n int) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	} else if n < 1000000 {
		return fmt.Sprintf("%.1fK", float64(n)/1000)
	} else {
		return fmt.Sprintf("%.1fM", float64(n)/1000000)
	}
}

// formatTime formats a time relative to now or as an absolute date
func formatTime(t, now time.Time) string {
	diff := now.Sub(t)

	if diff >= 0 && diff < 24*time.Hour {
		if diff < time.Hour {
			minutes := int(diff.Minutes())
			if minutes < 1 {
				return "just now"
			}
			return fmt.Sprintf("%d minutes ago", minutes)
		}
		return fmt.Sprintf("%d hours ago", int(diff.Hours()))
	}

	if diff >= 0 && diff < 7*24*time.Hour {
		return fmt.Sprintf("%d days ago", int(diff.Hours()/24))
	}

	if t.Year() == now.Year() {
		return t.Format("Jan 2, 15:04")
	}
	return t.Format("Jan 2, 2006")
}

// formatStats prints storage statistics
func formatStats(w io.Writer, stats *storage.Stats, now time.Time) {
	fmt.Fprintln(w, titleStyle.Render("Storage Statistics"))

	rows := []struct {
		label string
		value int
	}{
		{"Annotations", stats.Annotations},
		{"Pages", stats.Pages},
		{"Indexed terms", stats.Terms},
		{"Bookmarks", stats.Bookmarks},
		{"Tags", stats.Tags},
		{"Collections", stats.Lists},
	}
	for _, row := range rows {
		fmt.Fprintf(w, "%-14s %s\n", row.label+":", formatNumber(row.value))
	}

	if stats.Annotations == 0 {
		fmt.Fprintln(w, noDataStyle.Render("No annotations imported yet."))
	}
	if stats.OldestEdit != nil && stats.NewestEdit != nil {
		fmt.Fprintf(w, "%-14s %s\n", "Oldest edit:", formatTime(*stats.OldestEdit, now))
		fmt.Fprintf(w, "%-14s %s\n", "Newest edit:", formatTime(*stats.NewestEdit, now))
	}
	if stats.InstallTime != nil {
		fmt.Fprintf(w, "%-14s %s\n", "Installed:", stats.InstallTime.Format(time.RFC3339))
	}
}
