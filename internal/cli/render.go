package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/kjstillabower/weather-zones/internal/models"
	"github.com/kjstillabower/weather-zones/internal/table"
	"github.com/kjstillabower/weather-zones/internal/ui"
)

// maxRenderedResults caps the search result list shown to the user.
const maxRenderedResults = 8

func renderTable(w io.Writer, view table.View) {
	if len(view.Rows) == 0 {
		fmt.Fprintln(w, "No zones yet. Use 'add' to save a city.")
		return
	}

	fmt.Fprintf(w, "%-4s %-20s %-20s %-4s %8s %6s %-16s %s\n",
		"ID", "NAME", "CITY", "CC", "TEMP", "HUM", "CONDITIONS", "UPDATED")
	for _, z := range view.Rows {
		fmt.Fprintln(w, formatZoneRow(z))
	}
	fmt.Fprintf(w, "rows %d-%d of %d   page %d/%d", view.Start, view.End, view.Total, view.CurrentPage, view.TotalPages)
	if view.HasPrev || view.HasNext {
		nav := make([]string, 0, 2)
		if view.HasPrev {
			nav = append(nav, "prev")
		}
		if view.HasNext {
			nav = append(nav, "next")
		}
		fmt.Fprintf(w, "   (%s)", strings.Join(nav, ", "))
	}
	fmt.Fprintln(w)
}

func formatZoneRow(z models.Zone) string {
	temp, hum, cond, updated := "-", "-", "-", "-"
	if z.Weather != nil {
		temp = fmt.Sprintf("%.1f°C", z.Weather.TemperatureC)
		hum = fmt.Sprintf("%d%%", z.Weather.Humidity)
		cond = z.Weather.Conditions
		updated = z.Weather.CachedAt.Local().Format("Jan 2 15:04")
	} else if !z.UpdatedAt.IsZero() {
		updated = z.UpdatedAt.Local().Format("Jan 2 15:04")
	}
	return fmt.Sprintf("%-4d %-20s %-20s %-4s %8s %6s %-16s %s",
		z.ID, truncate(z.Name, 20), truncate(z.CityName, 20), z.CountryCode, temp, hum, truncate(cond, 16), updated)
}

// renderSearchResults prints the numbered result list, capped, and returns
// how many rows were shown so the caller can bound the pick.
func renderSearchResults(w io.Writer, results []models.CitySearchItem) int {
	if len(results) == 0 {
		fmt.Fprintln(w, "No matching cities.")
		return 0
	}
	if len(results) > maxRenderedResults {
		results = results[:maxRenderedResults]
	}
	for i, c := range results {
		loc := c.Region
		if loc != "" {
			loc += ", "
		}
		fmt.Fprintf(w, "  %d) %s (%s%s)\n", i+1, c.Name, loc, c.Country)
	}
	return len(results)
}

func renderToasts(w io.Writer, toasts []ui.Toast) {
	for _, t := range toasts {
		fmt.Fprintf(w, "[%s] %s\n", strings.ToUpper(string(t.Severity)), t.Message)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
