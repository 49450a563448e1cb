package model

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// DateLayout is the wire and storage format for loan dates.
const DateLayout = "2006-01-02"

// Loan carries the fine columns coalesced from the fine table: amount zero
// and paid false when no fine row exists.
type Loan struct {
	LoanID  int64   `json:"loan_id"`
	ISBN    string  `json:"isbn"`
	CardID  string  `json:"card_id"`
	DateOut string  `json:"date_out"`
	DueDate string  `json:"due_date"`
	DateIn  *string `json:"date_in"`

	FineAmount decimal.Decimal `json:"fine_amt"`
	FinePaid   bool            `json:"paid"`
}

// Active reports whether the book is still out.
func (l *Loan) Active() bool {
	return l.DateIn == nil
}

type Fine struct {
	LoanID int64           `json:"loan_id"`
	Amount decimal.Decimal `json:"amount"`
	Paid   bool            `json:"paid"`
}

type CheckoutRequest struct {
	CardID string `json:"card_id"`
	ISBN   string `json:"isbn"`
}

type CheckinRequest struct {
	LoanID int64 `json:"loan_id"`
}

type PayFinesRequest struct {
	CardID string `json:"card_id"`
}

type UpdateFinesRequest struct {
	Date string `json:"date"`
}

// BookWithLoan marshals as the [book, loan|null] tuple; Loan is nil for a
// book that has never been out or is back on the shelf.
type BookWithLoan struct {
	Book Book
	Loan *Loan
}

func (p BookWithLoan) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{p.Book, p.Loan})
}

// LoanWithBook marshals as the [loan, book] tuple.
type LoanWithBook struct {
	Loan Loan
	Book Book
}

func (p LoanWithBook) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{p.Loan, p.Book})
}
