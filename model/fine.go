package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// FineAmount computes the accrued fine for a loan: whole days the reference
// date is past the due date, times the daily rate. Both dates are DateLayout
// strings; a reference on or before the due date yields zero. The result is a
// pure function of its inputs, so recomputing for a fixed reference date can
// never lower an amount.
func FineAmount(dueDate, reference string, dailyRate decimal.Decimal) (decimal.Decimal, error) {
	due, err := time.Parse(DateLayout, dueDate)
	if err != nil {
		return decimal.Zero, err
	}
	ref, err := time.Parse(DateLayout, reference)
	if err != nil {
		return decimal.Zero, err
	}

	days := int64(ref.Sub(due).Hours() / 24)
	if days <= 0 {
		return decimal.Zero, nil
	}
	return dailyRate.Mul(decimal.NewFromInt(days)), nil
}
