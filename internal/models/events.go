// Package models defines data structures and domain types.
package models

import "time"

// OdometerReading is a single odometer value recorded for a user's vehicle.
type OdometerReading struct {
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	UserID    string    `json:"userId" yaml:"user_id"`
	ID        int64     `json:"id" yaml:"id"`
	Value     float64   `json:"value" yaml:"value"` // distance units, e.g. km
}

// FuelEntry is a single fuel purchase.
type FuelEntry struct {
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	UserID    string    `json:"userId" yaml:"user_id"`
	ID        int64     `json:"id" yaml:"id"`
	Quantity  float64   `json:"quantity" yaml:"quantity"` // liters
	Price     float64   `json:"price" yaml:"price"`       // per unit of quantity
}

// Cost returns the total cost of the purchase.
func (f FuelEntry) Cost() float64 {
	return f.Price * f.Quantity
}
