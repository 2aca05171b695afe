package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func attendance(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func TestQuote_EmptyCart(t *testing.T) {
	e := NewEngine(DefaultConfig())

	q := e.Quote(nil, Input{GreenToken: true, Attendance: attendance("90")})

	assert.True(t, q.Subtotal.IsZero())
	assert.True(t, q.GreenToken.IsZero())
	assert.True(t, q.AttendanceDiscount.IsZero())
	assert.True(t, q.Total.IsZero())
}

func TestQuote_SubtotalOnly(t *testing.T) {
	e := NewEngine(DefaultConfig())

	q := e.Quote([]Line{
		{ItemID: "m1", UnitPrice: dec("65"), Quantity: 2},
		{ItemID: "m2", UnitPrice: dec("95"), Quantity: 1},
	}, Input{})

	assert.True(t, dec("225").Equal(q.Subtotal), "subtotal = %s", q.Subtotal)
	assert.True(t, dec("225").Equal(q.Total))
}

func TestQuote_AttendanceDiscount(t *testing.T) {
	e := NewEngine(DefaultConfig())

	// 225 subtotal, 80% attendance over the 75 threshold -> 10% off.
	q := e.Quote([]Line{
		{ItemID: "m1", UnitPrice: dec("65"), Quantity: 2},
		{ItemID: "m2", UnitPrice: dec("95"), Quantity: 1},
	}, Input{Attendance: attendance("80")})

	assert.True(t, dec("225").Equal(q.Subtotal))
	assert.True(t, dec("22.5").Equal(q.AttendanceDiscount), "discount = %s", q.AttendanceDiscount)
	assert.True(t, dec("202.5").Equal(q.Total), "total = %s", q.Total)
}

func TestQuote_AttendanceBelowThreshold(t *testing.T) {
	e := NewEngine(DefaultConfig())

	q := e.Quote([]Line{
		{ItemID: "m1", UnitPrice: dec("100"), Quantity: 1},
	}, Input{Attendance: attendance("74.9")})

	assert.True(t, q.AttendanceDiscount.IsZero())
	assert.True(t, dec("100").Equal(q.Total))
}

func TestQuote_GreenTokenBeforeAttendance(t *testing.T) {
	e := NewEngine(DefaultConfig())

	// Green token applies to the subtotal, attendance to the remainder:
	// 105 - 5 = 100, then 10% of 100 = 10.
	q := e.Quote([]Line{
		{ItemID: "m1", UnitPrice: dec("105"), Quantity: 1},
	}, Input{GreenToken: true, Attendance: attendance("75")})

	assert.True(t, dec("5").Equal(q.GreenToken))
	assert.True(t, dec("10").Equal(q.AttendanceDiscount))
	assert.True(t, dec("90").Equal(q.Total))
}

func TestQuote_GreenTokenCappedAtSubtotal(t *testing.T) {
	e := NewEngine(DefaultConfig())

	q := e.Quote([]Line{
		{ItemID: "m1", UnitPrice: dec("3"), Quantity: 1},
	}, Input{GreenToken: true})

	assert.True(t, dec("3").Equal(q.GreenToken))
	assert.True(t, q.Total.IsZero())
	assert.False(t, q.Total.IsNegative())
}

func TestQuote_Idempotent(t *testing.T) {
	e := NewEngine(DefaultConfig())
	lines := []Line{
		{ItemID: "m1", UnitPrice: dec("12.50"), Quantity: 3},
		{ItemID: "m2", UnitPrice: dec("7.25"), Quantity: 2},
	}
	in := Input{GreenToken: true, Attendance: attendance("88")}

	first := e.Quote(lines, in)
	second := e.Quote(lines, in)

	assert.True(t, first.Subtotal.Equal(second.Subtotal))
	assert.True(t, first.GreenToken.Equal(second.GreenToken))
	assert.True(t, first.AttendanceDiscount.Equal(second.AttendanceDiscount))
	assert.True(t, first.Total.Equal(second.Total))
}

func TestQuote_ComponentsNonNegative(t *testing.T) {
	e := NewEngine(DefaultConfig())

	cases := []struct {
		name string
		in   Input
	}{
		{"plain", Input{}},
		{"green token", Input{GreenToken: true}},
		{"attendance", Input{Attendance: attendance("100")}},
		{"both", Input{GreenToken: true, Attendance: attendance("100")}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			q := e.Quote([]Line{{ItemID: "m1", UnitPrice: dec("0.01"), Quantity: 1}}, tc.in)

			assert.False(t, q.Subtotal.IsNegative())
			assert.False(t, q.GreenToken.IsNegative())
			assert.False(t, q.AttendanceDiscount.IsNegative())
			assert.False(t, q.Total.IsNegative())
			assert.True(t, q.Total.Equal(q.Subtotal.Sub(q.GreenToken).Sub(q.AttendanceDiscount)) || q.Total.IsZero())
		})
	}
}
