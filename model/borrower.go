package model

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

type Borrower struct {
	CardID  string `json:"card_id"`
	SSN     string `json:"ssn"`
	Name    string `json:"name"`
	Address string `json:"address"`
	Phone   string `json:"phone,omitempty"`
}

type FindBorrower struct {
	CardID *string `json:"card_id"`
	SSN    *string `json:"ssn"`
}

type BorrowerCreateRequest struct {
	SSN     string `json:"ssn"`
	Name    string `json:"name"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
	CardID  string `json:"card_id"`
}

// BorrowerSummary pairs a borrower with their loan and fine totals. It
// marshals as the [borrower, active_loans, total_loans, fine_owed] tuple the
// borrower search endpoint returns.
type BorrowerSummary struct {
	Borrower    Borrower
	ActiveLoans int
	TotalLoans  int
	FineOwed    decimal.Decimal
}

func (s BorrowerSummary) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{s.Borrower, s.ActiveLoans, s.TotalLoans, s.FineOwed})
}
