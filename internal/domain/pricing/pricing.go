// Package pricing computes priced quotes for carts. Quote computation is a
// pure function of its inputs: the same cart and profile always produce the
// same quote, and nothing here touches storage.
package pricing

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Line is a single cart line for quote calculation.
type Line struct {
	ItemID    string
	Name      string
	UnitPrice decimal.Decimal
	Quantity  int
}

// Quote holds the priced breakdown of a cart, captured on the order at
// creation time. Total = max(0, Subtotal - GreenToken - AttendanceDiscount).
type Quote struct {
	Subtotal           decimal.Decimal
	GreenToken         decimal.Decimal
	AttendanceDiscount decimal.Decimal
	DiscountPercent    decimal.Decimal
	Total              decimal.Decimal
}

// Input carries the member-profile facts that influence a quote.
type Input struct {
	// GreenToken indicates the member opted into the reusable-container
	// programme for this order.
	GreenToken bool
	// Attendance is the member's attendance percentage, when known.
	Attendance *decimal.Decimal
}

// Config holds the tunable pricing constants.
type Config struct {
	// GreenTokenAmount is the flat adjustment applied before any
	// percentage discount.
	GreenTokenAmount decimal.Decimal
	// AttendanceThreshold is the minimum attendance percentage required
	// for the attendance discount.
	AttendanceThreshold decimal.Decimal
	// AttendancePercent is the percentage discount applied on the
	// post-green-token subtotal.
	AttendancePercent decimal.Decimal
}

// DefaultConfig returns the standard pricing constants: 5 off for the green
// token, 10% off at 75% attendance.
func DefaultConfig() Config {
	return Config{
		GreenTokenAmount:    decimal.NewFromInt(5),
		AttendanceThreshold: decimal.NewFromInt(75),
		AttendancePercent:   decimal.NewFromInt(10),
	}
}

// Engine computes quotes with a fixed adjustment order.
type Engine struct {
	cfg Config
}

// NewEngine creates an Engine with the given constants.
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Quote prices the cart. Adjustments apply in a fixed order: the flat
// green-token amount first (only when opted in and the subtotal is
// positive, capped at the subtotal), then the attendance percentage on the
// remaining amount (only when attendance is known, at or above the
// threshold, and the configured percentage is positive). Every component
// is non-negative and the total is floored at zero.
func (e *Engine) Quote(lines []Line, in Input) Quote {
	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}

	green := decimal.Zero
	if in.GreenToken && subtotal.IsPositive() {
		green = decimal.Min(e.cfg.GreenTokenAmount, subtotal)
	}
	afterGreen := subtotal.Sub(green)

	attendance := decimal.Zero
	percent := decimal.Zero
	if in.Attendance != nil &&
		in.Attendance.GreaterThanOrEqual(e.cfg.AttendanceThreshold) &&
		e.cfg.AttendancePercent.IsPositive() {
		percent = e.cfg.AttendancePercent
		attendance = afterGreen.Mul(percent).Div(hundred).Round(2)
	}

	total := afterGreen.Sub(attendance)
	if total.IsNegative() {
		total = decimal.Zero
	}

	return Quote{
		Subtotal:           subtotal.Round(2),
		GreenToken:         green.Round(2),
		AttendanceDiscount: attendance,
		DiscountPercent:    percent,
		Total:              total.Round(2),
	}
}
