package store

import (
	"database/sql"

	"github.com/shopspring/decimal"

	"github.com/openshelf/openshelf/errs"
	"github.com/openshelf/openshelf/model"
)

// upsertFineTx records the accrued amount for a loan. A fine that has been
// paid is final: the WHERE on the conflict clause leaves it untouched.
func upsertFineTx(tx *sql.Tx, loanID int64, amount decimal.Decimal) error {
	_, err := tx.Exec(`
		INSERT INTO fine (loan_id, amount)
		VALUES (?, ?)
		ON CONFLICT(loan_id) DO UPDATE SET amount = EXCLUDED.amount WHERE paid = 0`,
		loanID, amount.StringFixed(2))
	if err != nil {
		return errs.Store(err, "failed to upsert fine")
	}
	return nil
}

// UpsertFineAmount sets the current fine amount for a loan, skipping fines
// already marked paid.
func (s *Store) UpsertFineAmount(loanID int64, amount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return errs.Store(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	if err := upsertFineTx(tx, loanID, amount); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return errs.Store(err, "failed to commit fine")
	}
	return nil
}

// PayLoanFine marks a single loan's fine as paid. Missing fines are not
// found; paying twice is a conflict.
func (s *Store) PayLoanFine(loanID int64) (*model.Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return nil, errs.Store(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	var paid bool
	err = tx.QueryRow(`SELECT paid FROM fine WHERE loan_id = ?`, loanID).Scan(&paid)
	if err == sql.ErrNoRows {
		return nil, errs.NotFoundf("no fine exists for loan %d", loanID)
	}
	if err != nil {
		return nil, errs.Store(err, "failed to query fine")
	}
	if paid {
		return nil, errs.Conflictf("fine for loan %d has already been paid", loanID)
	}

	if _, err := tx.Exec(`UPDATE fine SET paid = 1 WHERE loan_id = ?`, loanID); err != nil {
		return nil, errs.Store(err, "failed to update fine")
	}

	loan, err := scanLoan(tx.QueryRow(`
		SELECT ` + loanColumns + `
		FROM loan l
		LEFT JOIN fine f ON f.loan_id = l.loan_id
		WHERE l.loan_id = ?`, loanID))
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, errs.Store(err, "failed to commit fine payment")
	}
	return loan, nil
}

// PayBorrowerFines settles every unpaid fine of a borrower in one
// transaction and returns the affected loans. A borrower with nothing owed
// gets an empty list, so paying twice is harmless.
func (s *Store) PayBorrowerFines(cardID string) ([]*model.Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return nil, errs.Store(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	rows, err := tx.Query(`
		SELECT f.loan_id
		FROM fine f
		JOIN loan l ON l.loan_id = f.loan_id
		WHERE l.card_id = ? AND f.paid = 0
		ORDER BY f.loan_id`, cardID)
	if err != nil {
		return nil, errs.Store(err, "failed to query unpaid fines")
	}
	loanIDs := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, errs.Store(err, "failed to scan fine")
		}
		loanIDs = append(loanIDs, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, errs.Store(err, "failed to iterate fines")
	}
	if len(loanIDs) == 0 {
		return []*model.Loan{}, nil
	}

	list := make([]*model.Loan, 0, len(loanIDs))
	for _, id := range loanIDs {
		if _, err := tx.Exec(`UPDATE fine SET paid = 1 WHERE loan_id = ?`, id); err != nil {
			return nil, errs.Store(err, "failed to update fine")
		}
		loan, err := scanLoan(tx.QueryRow(`
			SELECT ` + loanColumns + `
			FROM loan l
			LEFT JOIN fine f ON f.loan_id = l.loan_id
			WHERE l.loan_id = ?`, id))
		if err != nil {
			return nil, err
		}
		list = append(list, loan)
	}

	if err := tx.Commit(); err != nil {
		return nil, errs.Store(err, "failed to commit fine payments")
	}
	return list, nil
}

// BorrowerFineTotal sums a borrower's fines, optionally including settled
// ones.
func (s *Store) BorrowerFineTotal(cardID string, includePaid bool) (decimal.Decimal, error) {
	stmt := `
		SELECT COALESCE(f.amount, '0')
		FROM fine f
		JOIN loan l ON l.loan_id = f.loan_id
		WHERE l.card_id = ?`
	if !includePaid {
		stmt += ` AND f.paid = 0`
	}

	rows, err := s.db.Query(stmt, cardID)
	if err != nil {
		return decimal.Zero, errs.Store(err, "failed to query fines")
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return decimal.Zero, errs.Store(err, "failed to scan fine")
		}
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return decimal.Zero, errs.Store(err, "invalid fine amount in store")
		}
		total = total.Add(amount)
	}
	return total, rows.Err()
}
