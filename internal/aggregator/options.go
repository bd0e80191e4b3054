package aggregator

import (
	"fmt"
	"strings"
	"time"
)

// DefaultWindow is the length of the trailing window.
const DefaultWindow = 30 * 24 * time.Hour

// MonthOrder selects how monthly rows are ordered in a snapshot.
type MonthOrder int

const (
	// ChronologicalOrder sorts monthly rows from oldest to newest month.
	ChronologicalOrder MonthOrder = iota
	// ScanOrder keeps the order in which months are first seen while scanning
	// the odometer readings as given.
	ScanOrder
)

// String returns the configuration name of the order.
func (o MonthOrder) String() string {
	switch o {
	case ChronologicalOrder:
		return "chronological"
	case ScanOrder:
		return "scan"
	default:
		return "unknown"
	}
}

// ParseMonthOrder parses "chronological" or "scan".
func ParseMonthOrder(s string) (MonthOrder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "chronological":
		return ChronologicalOrder, nil
	case "scan":
		return ScanOrder, nil
	default:
		return ChronologicalOrder, fmt.Errorf("unknown month order %q (use chronological or scan)", s)
	}
}

type options struct {
	window   time.Duration
	location *time.Location
	order    MonthOrder
}

func defaultOptions() options {
	return options{
		window:   DefaultWindow,
		location: time.Local,
		order:    ChronologicalOrder,
	}
}

// Option customizes ComputeSnapshot.
type Option func(*options)

// WithWindow sets the trailing window length. Non-positive values are ignored.
func WithWindow(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.window = d
		}
	}
}

// WithWindowDays sets the trailing window length in days.
func WithWindowDays(days int) Option {
	return WithWindow(time.Duration(days) * 24 * time.Hour)
}

// WithLocation sets the time zone used to assign events to calendar months.
func WithLocation(loc *time.Location) Option {
	return func(o *options) {
		if loc != nil {
			o.location = loc
		}
	}
}

// WithMonthOrder sets the ordering of monthly rows.
func WithMonthOrder(order MonthOrder) Option {
	return func(o *options) {
		o.order = order
	}
}
