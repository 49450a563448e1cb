package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/openshelf/openshelf/errs"
	"github.com/openshelf/openshelf/log"
	"github.com/openshelf/openshelf/model"
	"github.com/openshelf/openshelf/query"
)

var borrowerSortFields = map[string]string{
	"card":     "br.card_id",
	"card_id":  "br.card_id",
	"name":     "br.name",
	"borrower": "br.name",
	"phone":    "br.phone",
	"address":  "br.address",
	"fine_amt": "fine_owed",
}

const borrowerDefaultSort = "br.card_id"

// CreateBorrower registers a borrower. One card per SSN; the card number is
// generated as the next in sequence unless the caller supplies one.
func (s *Store) CreateBorrower(create *model.BorrowerCreateRequest) (*model.Borrower, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return nil, errs.Store(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM borrower WHERE ssn = ?)`, create.SSN).Scan(&exists); err != nil {
		return nil, errs.Store(err, "failed to check ssn")
	}
	if exists {
		return nil, errs.Conflictf("a borrower with SSN %s already has a card", create.SSN)
	}

	cardID := create.CardID
	if cardID == "" {
		cardID, err = nextCardID(tx)
		if err != nil {
			return nil, err
		}
	} else {
		if err := tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM borrower WHERE card_id = ?)`, cardID).Scan(&exists); err != nil {
			return nil, errs.Store(err, "failed to check card")
		}
		if exists {
			return nil, errs.Conflictf("card %s is already issued", cardID)
		}
	}

	if _, err := tx.Exec(`
		INSERT INTO borrower (card_id, ssn, name, address, phone)
		VALUES (?, ?, ?, ?, ?)`,
		cardID, create.SSN, create.Name, create.Address, create.Phone,
	); err != nil {
		return nil, errs.Store(err, "failed to insert borrower")
	}

	if err := tx.Commit(); err != nil {
		return nil, errs.Store(err, "failed to commit borrower")
	}
	return &model.Borrower{
		CardID:  cardID,
		SSN:     create.SSN,
		Name:    create.Name,
		Address: create.Address,
		Phone:   create.Phone,
	}, nil
}

// nextCardID continues the IDnnnnnn sequence from the highest card issued so
// far.
func nextCardID(tx *sql.Tx) (string, error) {
	var last sql.NullString
	err := tx.QueryRow(`
		SELECT MAX(card_id) FROM borrower WHERE card_id LIKE 'ID%'`,
	).Scan(&last)
	if err != nil {
		return "", errs.Store(err, "failed to query card sequence")
	}

	next := 1
	if last.Valid {
		var n int
		if _, err := fmt.Sscanf(last.String, "ID%06d", &n); err == nil {
			next = n + 1
		}
	}
	return fmt.Sprintf("ID%06d", next), nil
}

// GetBorrower returns the matching borrower, or nil when absent.
func (s *Store) GetBorrower(find *model.FindBorrower) (*model.Borrower, error) {
	where, args := []string{"1 = 1"}, []any{}

	if v := find.CardID; v != nil {
		where, args = append(where, "card_id = ?"), append(args, *v)
	}
	if v := find.SSN; v != nil {
		where, args = append(where, "ssn = ?"), append(args, *v)
	}

	stmt := `
		SELECT card_id, ssn, name, address, phone
		FROM borrower
		WHERE ` + strings.Join(where, " AND ") + `
		LIMIT 1`

	var borrower model.Borrower
	err := s.db.QueryRow(stmt, args...).Scan(
		&borrower.CardID,
		&borrower.SSN,
		&borrower.Name,
		&borrower.Address,
		&borrower.Phone,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		log.Error("Failed to query borrower", zap.Error(err))
		return nil, errs.Store(err, "failed to query borrower")
	}
	return &borrower, nil
}

func borrowerWhere(q *query.Query) (where []string, args []any) {
	where, args = []string{"1 = 1"}, []any{}

	if v := q.Borrower(); v != "" {
		where, args = append(where, "br.name LIKE ?"), append(args, like(v))
	}
	if v := q.Card(); v != "" {
		where, args = append(where, "br.card_id LIKE ?"), append(args, like(v))
	}
	if v := q.Phone(); v != "" {
		where, args = append(where, "br.phone LIKE ?"), append(args, like(v))
	}
	if v := q.AnyTerm; v != "" {
		where = append(where, "(br.name LIKE ? OR br.card_id LIKE ? OR br.phone LIKE ? OR br.address LIKE ?)")
		args = append(args, like(v), like(v), like(v), like(v))
	}
	return where, args
}

// SearchBorrowers returns one page of plain borrower records.
func (s *Store) SearchBorrowers(q *query.Query, page, limit int) ([]*model.Borrower, int, error) {
	where, args := borrowerWhere(q)
	whereClause := strings.Join(where, " AND ")

	var total int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM borrower br WHERE `+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, errs.Store(err, "failed to count borrowers")
	}

	stmt := `
		SELECT br.card_id, br.ssn, br.name, br.address, br.phone
		FROM borrower br
		WHERE ` + whereClause + `
		ORDER BY ` + sortClause(q, borrowerSortFields, borrowerDefaultSort) + `
		LIMIT ? OFFSET ?`
	args = append(args, limit, (page-1)*limit)

	log.Debug("SQL query", zap.String("query", stmt), zap.Any("args", args))

	rows, err := s.db.Query(stmt, args...)
	if err != nil {
		log.Error("Failed to query borrowers", zap.Error(err))
		return nil, 0, errs.Store(err, "failed to query borrowers")
	}
	defer rows.Close()

	list := make([]*model.Borrower, 0)
	for rows.Next() {
		var borrower model.Borrower
		if err := rows.Scan(&borrower.CardID, &borrower.SSN, &borrower.Name, &borrower.Address, &borrower.Phone); err != nil {
			return nil, 0, errs.Store(err, "failed to scan borrower")
		}
		list = append(list, &borrower)
	}
	return list, total, rows.Err()
}

// SearchBorrowersWithInfo aggregates each borrower's loan counts and unpaid
// fine total. The fine_is filter works on the aggregate, so it lands in a
// HAVING clause and the match count is taken over the grouped subquery.
func (s *Store) SearchBorrowersWithInfo(q *query.Query, page, limit int) ([]*model.BorrowerSummary, int, error) {
	where, args := borrowerWhere(q)
	whereClause := strings.Join(where, " AND ")

	having := "1 = 1"
	switch q.FineIs() {
	case query.FineOwed:
		having = "fine_owed > 0"
	case query.FinePaid:
		having = "fine_owed = 0 AND SUM(CASE WHEN f.paid = 1 THEN 1 ELSE 0 END) > 0"
	}

	grouped := `
		SELECT
			br.card_id,
			br.ssn,
			br.name,
			br.address,
			br.phone,
			COUNT(DISTINCT CASE WHEN l.date_in IS NULL THEN l.loan_id END) AS active_loans,
			COUNT(DISTINCT l.loan_id) AS total_loans,
			COALESCE(SUM(CASE WHEN f.paid = 0 THEN CAST(f.amount AS REAL) ELSE 0 END), 0) AS fine_owed
		FROM borrower br
		LEFT JOIN loan l ON l.card_id = br.card_id
		LEFT JOIN fine f ON f.loan_id = l.loan_id
		WHERE ` + whereClause + `
		GROUP BY br.card_id, br.ssn, br.name, br.address, br.phone
		HAVING ` + having

	var total int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM (`+grouped+`)`, args...).Scan(&total); err != nil {
		return nil, 0, errs.Store(err, "failed to count borrowers with info")
	}

	stmt := grouped + `
		ORDER BY ` + sortClause(q, borrowerSortFields, borrowerDefaultSort) + `
		LIMIT ? OFFSET ?`
	args = append(args, limit, (page-1)*limit)

	log.Debug("SQL query", zap.String("query", stmt), zap.Any("args", args))

	rows, err := s.db.Query(stmt, args...)
	if err != nil {
		log.Error("Failed to query borrowers with info", zap.Error(err))
		return nil, 0, errs.Store(err, "failed to query borrowers with info")
	}
	defer rows.Close()

	list := make([]*model.BorrowerSummary, 0)
	for rows.Next() {
		var summary model.BorrowerSummary
		var fineOwed float64
		if err := rows.Scan(
			&summary.Borrower.CardID,
			&summary.Borrower.SSN,
			&summary.Borrower.Name,
			&summary.Borrower.Address,
			&summary.Borrower.Phone,
			&summary.ActiveLoans,
			&summary.TotalLoans,
			&fineOwed,
		); err != nil {
			return nil, 0, errs.Store(err, "failed to scan borrower summary")
		}
		summary.FineOwed = decimal.NewFromFloat(fineOwed).Round(2)
		list = append(list, &summary)
	}
	return list, total, rows.Err()
}
