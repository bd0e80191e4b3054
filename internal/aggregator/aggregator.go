// Package aggregator derives vehicle metrics from odometer and fuel events.
//
// ComputeSnapshot is a pure function: it never mutates its inputs, keeps no
// state between calls and may be called concurrently.
package aggregator

import (
	"slices"
	"time"

	"github.com/j-veylop/vehicle-dashboard/internal/models"
)

// ComputeSnapshot derives a MetricsSnapshot from the given events as of now.
// Inputs may be in any order. Empty inputs produce a zero-valued snapshot.
func ComputeSnapshot(
	readings []models.OdometerReading,
	entries []models.FuelEntry,
	now time.Time,
	opts ...Option,
) models.MetricsSnapshot {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	windowStart := now.Add(-o.window)

	snap := models.MetricsSnapshot{
		ComputedAt:        now,
		WindowStart:       windowStart,
		MonthlyDistance:   []models.MonthlyDistance{},
		MonthlyEfficiency: []models.MonthlyEfficiency{},
		CurrentReading:    currentReading(readings),
		OdometerCount:     len(readings),
		FuelCount:         len(entries),
	}

	computeWindow(&snap, readings, entries, windowStart)
	computeMonthly(&snap, readings, entries, o)

	return snap
}

// currentReading returns the value of the latest reading. Readings sharing
// the latest timestamp resolve to the highest value.
func currentReading(readings []models.OdometerReading) float64 {
	if len(readings) == 0 {
		return 0
	}
	latest := readings[0]
	for _, r := range readings[1:] {
		switch {
		case r.Timestamp.After(latest.Timestamp):
			latest = r
		case r.Timestamp.Equal(latest.Timestamp) && sanitize(r.Value) > sanitize(latest.Value):
			latest = r
		}
	}
	return sanitize(latest.Value)
}

func computeWindow(
	snap *models.MetricsSnapshot,
	readings []models.OdometerReading,
	entries []models.FuelEntry,
	windowStart time.Time,
) {
	var cost costSum
	var fuel float64
	for _, e := range entries {
		if e.Timestamp.Before(windowStart) {
			continue
		}
		cost.add(e.Price, e.Quantity)
		fuel += sanitize(e.Quantity)
	}

	var inWindow []models.OdometerReading
	for _, r := range readings {
		if !r.Timestamp.Before(windowStart) {
			inWindow = append(inWindow, r)
		}
	}
	sortByTime(inWindow)

	snap.WindowCost = cost.float64()
	snap.WindowFuel = fuel
	snap.WindowDistance = span(inWindow)
	snap.WindowEfficiency = ratio(snap.WindowDistance, fuel)

	if snap.WindowDistance < 0 {
		snap.Anomalies = append(snap.Anomalies, models.Anomaly{
			Kind:  models.AnomalyNegativeWindowDistance,
			Value: snap.WindowDistance,
		})
	}
}

func computeMonthly(
	snap *models.MetricsSnapshot,
	readings []models.OdometerReading,
	entries []models.FuelEntry,
	o options,
) {
	var keys []models.MonthKey
	groups := make(map[models.MonthKey][]models.OdometerReading)
	for _, r := range readings {
		key := models.MonthKeyOf(r.Timestamp, o.location)
		if _, seen := groups[key]; !seen {
			keys = append(keys, key)
		}
		groups[key] = append(groups[key], r)
	}

	fuelByMonth := make(map[models.MonthKey]float64)
	for _, e := range entries {
		fuelByMonth[models.MonthKeyOf(e.Timestamp, o.location)] += sanitize(e.Quantity)
	}

	if o.order == ChronologicalOrder {
		slices.SortFunc(keys, func(a, b models.MonthKey) int {
			switch {
			case a.Before(b):
				return -1
			case b.Before(a):
				return 1
			default:
				return 0
			}
		})
	}

	for _, key := range keys {
		group := groups[key]
		sortByTime(group)

		distance := span(group)
		fuelUsed := fuelByMonth[key]

		snap.MonthlyDistance = append(snap.MonthlyDistance, models.MonthlyDistance{
			Month:    key,
			Distance: distance,
			Readings: len(group),
		})
		snap.MonthlyEfficiency = append(snap.MonthlyEfficiency, models.MonthlyEfficiency{
			Month:      key,
			Efficiency: ratio(distance, fuelUsed),
			FuelUsed:   fuelUsed,
		})

		if distance < 0 {
			month := key
			snap.Anomalies = append(snap.Anomalies, models.Anomaly{
				Kind:  models.AnomalyNegativeMonthDistance,
				Month: &month,
				Value: distance,
			})
		}
	}
}

// sortByTime sorts readings oldest first. Callers pass slices they own.
func sortByTime(readings []models.OdometerReading) {
	slices.SortStableFunc(readings, func(a, b models.OdometerReading) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
}

// span returns last minus first of time-sorted readings; fewer than two is 0.
func span(sorted []models.OdometerReading) float64 {
	if len(sorted) < 2 {
		return 0
	}
	return sanitize(sorted[len(sorted)-1].Value) - sanitize(sorted[0].Value)
}

// ratio returns distance/fuel, or 0 when fuel is not positive.
func ratio(distance, fuel float64) float64 {
	if fuel <= 0 {
		return 0
	}
	return sanitize(distance / fuel)
}
