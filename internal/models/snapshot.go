package models

import (
	"fmt"
	"time"
)

// MonthKey identifies a calendar month.
type MonthKey struct {
	Year  int
	Month time.Month
}

// MonthKeyOf returns the month key of t in loc. A nil loc uses t's own location.
func MonthKeyOf(t time.Time, loc *time.Location) MonthKey {
	if loc != nil {
		t = t.In(loc)
	}
	return MonthKey{Year: t.Year(), Month: t.Month()}
}

// ParseMonthKey parses a "YYYY-MM" string. The month may omit its leading zero.
func ParseMonthKey(s string) (MonthKey, error) {
	var year, month int
	if _, err := fmt.Sscanf(s, "%d-%d", &year, &month); err != nil {
		return MonthKey{}, fmt.Errorf("invalid month key %q: %w", s, err)
	}
	if month < 1 || month > 12 {
		return MonthKey{}, fmt.Errorf("invalid month key %q: month out of range", s)
	}
	return MonthKey{Year: year, Month: time.Month(month)}, nil
}

// String returns the key formatted as "YYYY-MM".
func (k MonthKey) String() string {
	return fmt.Sprintf("%04d-%02d", k.Year, int(k.Month))
}

// Before reports whether k is an earlier month than other.
func (k MonthKey) Before(other MonthKey) bool {
	if k.Year != other.Year {
		return k.Year < other.Year
	}
	return k.Month < other.Month
}

// MarshalText implements encoding.TextMarshaler.
func (k MonthKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *MonthKey) UnmarshalText(text []byte) error {
	parsed, err := ParseMonthKey(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// MonthlyDistance is the distance covered within one calendar month.
type MonthlyDistance struct {
	Month    MonthKey `json:"month" yaml:"month"`
	Distance float64  `json:"distance" yaml:"distance"`
	Readings int      `json:"readings" yaml:"readings"`
}

// MonthlyEfficiency is distance per fuel unit within one calendar month.
type MonthlyEfficiency struct {
	Month      MonthKey `json:"month" yaml:"month"`
	Efficiency float64  `json:"efficiency" yaml:"efficiency"`
	FuelUsed   float64  `json:"fuelUsed" yaml:"fuel_used"`
}

// AnomalyKind classifies a data-quality problem found during aggregation.
type AnomalyKind string

const (
	// AnomalyNegativeWindowDistance means the trailing window's newest reading
	// is lower than its oldest.
	AnomalyNegativeWindowDistance AnomalyKind = "negative_window_distance"
	// AnomalyNegativeMonthDistance means a month's last reading is lower than
	// its first.
	AnomalyNegativeMonthDistance AnomalyKind = "negative_month_distance"
)

// Anomaly flags a suspicious value that was still reported as computed.
type Anomaly struct {
	Kind  AnomalyKind `json:"kind" yaml:"kind"`
	Month *MonthKey   `json:"month,omitempty" yaml:"month,omitempty"`
	Value float64     `json:"value" yaml:"value"`
}

// MetricsSnapshot holds every metric derived from one aggregation run.
type MetricsSnapshot struct {
	ComputedAt        time.Time           `json:"computedAt" yaml:"computed_at"`
	WindowStart       time.Time           `json:"windowStart" yaml:"window_start"`
	MonthlyDistance   []MonthlyDistance   `json:"monthlyDistance" yaml:"monthly_distance"`
	MonthlyEfficiency []MonthlyEfficiency `json:"monthlyEfficiency" yaml:"monthly_efficiency"`
	Anomalies         []Anomaly           `json:"anomalies,omitempty" yaml:"anomalies,omitempty"`
	CurrentReading    float64             `json:"currentReading" yaml:"current_reading"`
	WindowCost        float64             `json:"windowCost" yaml:"window_cost"`
	WindowDistance    float64             `json:"windowDistance" yaml:"window_distance"`
	WindowFuel        float64             `json:"windowFuel" yaml:"window_fuel"`
	WindowEfficiency  float64             `json:"windowEfficiency" yaml:"window_efficiency"`
	OdometerCount     int                 `json:"odometerCount" yaml:"odometer_count"`
	FuelCount         int                 `json:"fuelCount" yaml:"fuel_count"`
}

// HasData returns true if any odometer or fuel event contributed.
func (s *MetricsSnapshot) HasData() bool {
	return s.OdometerCount > 0 || s.FuelCount > 0
}

// Month returns the distance and efficiency rows for key, if present.
func (s *MetricsSnapshot) Month(key MonthKey) (MonthlyDistance, MonthlyEfficiency, bool) {
	for i, md := range s.MonthlyDistance {
		if md.Month == key {
			var me MonthlyEfficiency
			if i < len(s.MonthlyEfficiency) {
				me = s.MonthlyEfficiency[i]
			}
			return md, me, true
		}
	}
	return MonthlyDistance{}, MonthlyEfficiency{}, false
}
