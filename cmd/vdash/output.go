package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/j-veylop/vehicle-dashboard/internal/models"
)

// Output formats accepted by --format.
const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

func validateFormat(format string) error {
	switch format {
	case formatText, formatJSON, formatYAML:
		return nil
	default:
		return fmt.Errorf("unknown format %q (use text, json or yaml)", format)
	}
}

// number formats v with thousands separators, rounded to at most two decimals.
func number(v float64) string {
	return humanize.CommafWithDigits(math.Round(v*100)/100, 2)
}

func writeSnapshot(w io.Writer, format, userID string, windowDays int, snap models.MetricsSnapshot) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(snap); err != nil {
			return err
		}
		return enc.Close()
	default:
		writeSnapshotText(w, userID, windowDays, snap)
		return nil
	}
}

func writeSnapshotText(w io.Writer, userID string, windowDays int, snap models.MetricsSnapshot) {
	fmt.Fprintf(w, "Vehicle dashboard for %s (as of %s)\n", userID, snap.ComputedAt.Format("2006-01-02 15:04"))
	fmt.Fprintln(w, strings.Repeat("-", 48))

	if !snap.HasData() {
		fmt.Fprintln(w, "No odometer readings or fuel entries yet.")
		return
	}

	fmt.Fprintf(w, "%-22s %s\n", "Current reading:", number(snap.CurrentReading))
	fmt.Fprintf(w, "\nLast %d days\n", windowDays)
	fmt.Fprintf(w, "  %-20s %s\n", "Distance:", number(snap.WindowDistance))
	fmt.Fprintf(w, "  %-20s %s\n", "Fuel:", number(snap.WindowFuel))
	fmt.Fprintf(w, "  %-20s %s\n", "Cost:", number(snap.WindowCost))
	fmt.Fprintf(w, "  %-20s %s\n", "Efficiency:", number(snap.WindowEfficiency))

	if len(snap.MonthlyDistance) > 0 {
		fmt.Fprintln(w, "\nMonthly")
		fmt.Fprintf(w, "  %-8s  %12s  %12s\n", "Month", "Distance", "Efficiency")
		for i, md := range snap.MonthlyDistance {
			eff := "-"
			if i < len(snap.MonthlyEfficiency) && snap.MonthlyEfficiency[i].FuelUsed > 0 {
				eff = number(snap.MonthlyEfficiency[i].Efficiency)
			}
			fmt.Fprintf(w, "  %-8s  %12s  %12s\n", md.Month, number(md.Distance), eff)
		}
	}

	if len(snap.Anomalies) > 0 {
		fmt.Fprintln(w, "\nWarnings")
		for _, a := range snap.Anomalies {
			fmt.Fprintf(w, "  ! %s\n", describeAnomaly(a))
		}
	}

	fmt.Fprintf(w, "\n%s, %s\n",
		plural(snap.OdometerCount, "odometer reading"),
		plural(snap.FuelCount, "fuel entry"))
}

func describeAnomaly(a models.Anomaly) string {
	switch a.Kind {
	case models.AnomalyNegativeWindowDistance:
		return fmt.Sprintf("odometer went backwards in the trailing window (%s)", number(a.Value))
	case models.AnomalyNegativeMonthDistance:
		month := "?"
		if a.Month != nil {
			month = a.Month.String()
		}
		return fmt.Sprintf("odometer went backwards in %s (%s)", month, number(a.Value))
	default:
		return fmt.Sprintf("%s (%s)", a.Kind, number(a.Value))
	}
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	if strings.HasSuffix(noun, "y") {
		noun = strings.TrimSuffix(noun, "y") + "ie"
	}
	return fmt.Sprintf("%s %ss", humanize.Comma(int64(n)), noun)
}

// when formats t relative to now, e.g. "3 days ago".
func when(t, now time.Time) string {
	return humanize.RelTime(t, now, "ago", "from now")
}
