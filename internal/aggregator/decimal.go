package aggregator

import (
	"math"
	"strings"

	"github.com/cockroachdb/apd/v3"
)

var decimalCtx = apd.BaseContext.WithPrecision(34)

// ParseAmount parses a user or store supplied number. Empty, malformed, NaN
// and infinite input all yield 0 so a bad field never halts aggregation.
func ParseAmount(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	d, _, err := apd.NewFromString(s)
	if err != nil || d.Form != apd.Finite {
		return 0
	}
	f, err := d.Float64()
	if err != nil {
		return 0
	}
	return sanitize(f)
}

// sanitize maps NaN and infinities to 0.
func sanitize(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// costSum accumulates price*quantity products exactly.
type costSum struct {
	total apd.Decimal
}

func (c *costSum) add(price, quantity float64) {
	price, quantity = sanitize(price), sanitize(quantity)
	if price == 0 || quantity == 0 {
		return
	}

	var p, q, product apd.Decimal
	if _, err := p.SetFloat64(price); err != nil {
		return
	}
	if _, err := q.SetFloat64(quantity); err != nil {
		return
	}
	if _, err := decimalCtx.Mul(&product, &p, &q); err != nil {
		return
	}
	_, _ = decimalCtx.Add(&c.total, &c.total, &product)
}

func (c *costSum) float64() float64 {
	f, err := c.total.Float64()
	if err != nil {
		return 0
	}
	return sanitize(f)
}
