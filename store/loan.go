package store

import (
	"database/sql"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/openshelf/openshelf/errs"
	"github.com/openshelf/openshelf/log"
	"github.com/openshelf/openshelf/model"
	"github.com/openshelf/openshelf/query"
)

var loanSortFields = map[string]string{
	"loan_id":  "l.loan_id",
	"isbn":     "l.isbn",
	"title":    "b.title",
	"card":     "l.card_id",
	"card_id":  "l.card_id",
	"borrower": "br.name",
	"date_out": "l.date_out",
	"due_date": "l.due_date",
	"date_in":  "l.date_in",
	"fine_amt": "CAST(f.amount AS REAL)",
}

const loanDefaultSort = "l.loan_id"

const loanColumns = `
	l.loan_id,
	l.isbn,
	l.card_id,
	l.date_out,
	l.due_date,
	l.date_in,
	COALESCE(f.amount, '0') AS fine_amt,
	COALESCE(f.paid, 0) AS paid
`

func buildLoan(loanID int64, isbn, cardID, dateOut, dueDate string, dateIn sql.NullString, fineAmt string, paid bool) (*model.Loan, error) {
	amount, err := decimal.NewFromString(fineAmt)
	if err != nil {
		return nil, errs.Store(err, "invalid fine amount in store")
	}
	loan := &model.Loan{
		LoanID:     loanID,
		ISBN:       isbn,
		CardID:     cardID,
		DateOut:    dateOut,
		DueDate:    dueDate,
		FineAmount: amount,
		FinePaid:   paid,
	}
	if dateIn.Valid {
		loan.DateIn = &dateIn.String
	}
	return loan, nil
}

func scanLoan(scanner interface{ Scan(dest ...any) error }) (*model.Loan, error) {
	var loanID int64
	var isbn, cardID, dateOut, dueDate string
	var dateIn sql.NullString
	var fineAmt string
	var paid bool
	if err := scanner.Scan(&loanID, &isbn, &cardID, &dateOut, &dueDate, &dateIn, &fineAmt, &paid); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, errs.Store(err, "failed to scan loan")
	}
	return buildLoan(loanID, isbn, cardID, dateOut, dueDate, dateIn, fineAmt, paid)
}

// GetLoan returns the loan with its fine columns coalesced, or nil when absent.
func (s *Store) GetLoan(loanID int64) (*model.Loan, error) {
	stmt := `
		SELECT ` + loanColumns + `
		FROM loan l
		LEFT JOIN fine f ON f.loan_id = l.loan_id
		WHERE l.loan_id = ?`
	return scanLoan(s.db.QueryRow(stmt, loanID))
}

// CheckoutLoan runs the whole check-then-act sequence in one write
// transaction: book not already out, borrower under the active-loan cap and
// free of unpaid fines, then the insert. Concurrent checkouts of the same
// isbn see exactly one success.
func (s *Store) CheckoutLoan(cardID, isbn, dateOut, dueDate string, maxActiveLoans int) (*model.Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return nil, errs.Store(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	var onLoan bool
	if err := tx.QueryRow(
		`SELECT EXISTS(SELECT 1 FROM loan WHERE isbn = ? AND date_in IS NULL)`, isbn,
	).Scan(&onLoan); err != nil {
		return nil, errs.Store(err, "failed to check availability")
	}
	if onLoan {
		return nil, errs.Conflictf("book with ISBN %s is currently on loan", isbn)
	}

	var owed float64
	if err := tx.QueryRow(`
		SELECT COALESCE(SUM(CAST(f.amount AS REAL)), 0)
		FROM fine f
		JOIN loan l ON l.loan_id = f.loan_id
		WHERE l.card_id = ? AND f.paid = 0`, cardID,
	).Scan(&owed); err != nil {
		return nil, errs.Store(err, "failed to check unpaid fines")
	}
	if owed > 0 {
		return nil, errs.Conflictf("borrower %s has unpaid fines", cardID)
	}

	var active int
	if err := tx.QueryRow(
		`SELECT COUNT(*) FROM loan WHERE card_id = ? AND date_in IS NULL`, cardID,
	).Scan(&active); err != nil {
		return nil, errs.Store(err, "failed to count active loans")
	}
	if active >= maxActiveLoans {
		return nil, errs.LimitExceededf("borrower %s has reached the maximum of %d active loans", cardID, maxActiveLoans)
	}

	var loanID int64
	if err := tx.QueryRow(`
		INSERT INTO loan (isbn, card_id, date_out, due_date)
		VALUES (?, ?, ?, ?)
		RETURNING loan_id`, isbn, cardID, dateOut, dueDate,
	).Scan(&loanID); err != nil {
		return nil, errs.Store(err, "failed to insert loan")
	}

	if err := tx.Commit(); err != nil {
		return nil, errs.Store(err, "failed to commit checkout")
	}

	return &model.Loan{
		LoanID:     loanID,
		ISBN:       isbn,
		CardID:     cardID,
		DateOut:    dateOut,
		DueDate:    dueDate,
		FineAmount: decimal.Zero,
	}, nil
}

// CheckinLoan flips date_in and upserts the accrued fine in the same
// transaction. Checking in twice is a conflict; a paid fine is never touched.
func (s *Store) CheckinLoan(loanID int64, dateIn string, dailyRate decimal.Decimal) (*model.Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return nil, errs.Store(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	var dueDate string
	var current sql.NullString
	err = tx.QueryRow(`SELECT due_date, date_in FROM loan WHERE loan_id = ?`, loanID).Scan(&dueDate, &current)
	if err == sql.ErrNoRows {
		return nil, errs.NotFoundf("loan with ID %d does not exist", loanID)
	}
	if err != nil {
		return nil, errs.Store(err, "failed to query loan")
	}
	if current.Valid {
		return nil, errs.Conflictf("loan with ID %d has already been returned", loanID)
	}

	if _, err := tx.Exec(`UPDATE loan SET date_in = ? WHERE loan_id = ?`, dateIn, loanID); err != nil {
		return nil, errs.Store(err, "failed to update loan")
	}

	amount, err := model.FineAmount(dueDate, dateIn, dailyRate)
	if err != nil {
		return nil, errs.Store(err, "failed to compute fine")
	}
	if amount.IsPositive() {
		if err := upsertFineTx(tx, loanID, amount); err != nil {
			return nil, err
		}
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
		return nil, errs.Store(err, "failed to commit checkin")
	}
	return loan, nil
}

// loanWhere translates the filters every loan search shares.
func loanWhere(q *query.Query, today string, withBook bool) (where []string, args []any) {
	where, args = []string{"1 = 1"}, []any{}

	if v := q.LoanID(); v != "" {
		where, args = append(where, "l.loan_id = ?"), append(args, v)
	}
	if v := q.ISBN(); v != "" {
		where, args = append(where, "l.isbn LIKE ?"), append(args, like(v))
	}
	if v := q.Card(); v != "" {
		where, args = append(where, "l.card_id LIKE ?"), append(args, like(v))
	}
	if v := q.Borrower(); v != "" {
		where, args = append(where, "br.name LIKE ?"), append(args, like(v))
	}
	if withBook {
		if v := q.Title(); v != "" {
			where, args = append(where, "b.title LIKE ?"), append(args, like(v))
		}
		if v := q.Author(); v != "" {
			where, args = append(where, `l.isbn IN (
				SELECT ba.isbn FROM book_author ba
				JOIN author a ON a.author_id = ba.author_id
				WHERE a.name LIKE ?)`), append(args, like(v))
		}
	}

	switch q.LoanIs() {
	case query.LoanActive:
		where = append(where, "l.date_in IS NULL")
	case query.LoanReturned:
		where = append(where, "l.date_in IS NOT NULL")
	}
	switch q.Due() {
	case query.DuePast:
		where, args = append(where, "l.due_date < ? AND l.date_in IS NULL"), append(args, today)
	case query.DueFuture:
		where, args = append(where, "l.due_date >= ?"), append(args, today)
	}
	switch q.FineIs() {
	case query.FineOwed:
		where = append(where, "(f.paid = 0 AND CAST(f.amount AS REAL) > 0)")
	case query.FinePaid:
		where = append(where, "f.paid = 1")
	}

	if v := q.AnyTerm; v != "" {
		clauses := []string{"CAST(l.loan_id AS TEXT) LIKE ?", "l.isbn LIKE ?", "l.card_id LIKE ?", "br.name LIKE ?"}
		args = append(args, like(v), like(v), like(v), like(v))
		if withBook {
			clauses = append(clauses, "b.title LIKE ?")
			args = append(args, like(v))
		}
		where = append(where, "("+strings.Join(clauses, " OR ")+")")
	}
	return where, args
}

// SearchLoans returns one page of loans with their fine columns.
func (s *Store) SearchLoans(q *query.Query, page, limit int, today string) ([]*model.Loan, int, error) {
	where, args := loanWhere(q, today, false)
	whereClause := strings.Join(where, " AND ")

	fromClause := `
		FROM loan l
		LEFT JOIN borrower br ON br.card_id = l.card_id
		LEFT JOIN fine f ON f.loan_id = l.loan_id
	`

	var total int
	if err := s.db.QueryRow(`SELECT COUNT(l.loan_id) `+fromClause+` WHERE `+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, errs.Store(err, "failed to count loans")
	}

	stmt := `
		SELECT ` + loanColumns + fromClause + `
		WHERE ` + whereClause + `
		ORDER BY ` + loanSortClause(q) + `
		LIMIT ? OFFSET ?`
	args = append(args, limit, (page-1)*limit)

	log.Debug("SQL query", zap.String("query", stmt), zap.Any("args", args))

	rows, err := s.db.Query(stmt, args...)
	if err != nil {
		log.Error("Failed to query loans", zap.Error(err))
		return nil, 0, errs.Store(err, "failed to query loans")
	}
	defer rows.Close()

	list := make([]*model.Loan, 0)
	for rows.Next() {
		loan, err := scanLoan(rows)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, loan)
	}
	return list, total, rows.Err()
}

// SearchLoansWithBook inner-joins the book for each loan.
func (s *Store) SearchLoansWithBook(q *query.Query, page, limit int, today string) ([]*model.LoanWithBook, int, error) {
	where, args := loanWhere(q, today, true)
	whereClause := strings.Join(where, " AND ")

	fromClause := `
		FROM loan l
		JOIN book b ON b.isbn = l.isbn
		LEFT JOIN borrower br ON br.card_id = l.card_id
		LEFT JOIN fine f ON f.loan_id = l.loan_id
	`

	var total int
	if err := s.db.QueryRow(`SELECT COUNT(l.loan_id) `+fromClause+` WHERE `+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, errs.Store(err, "failed to count loans with books")
	}

	stmt := `
		SELECT ` + loanColumns + `,
			b.title,
			COALESCE((SELECT sortconcat(a.name)
			 FROM book_author ba
			 JOIN author a ON a.author_id = ba.author_id
			 WHERE ba.isbn = b.isbn), '') AS authors
		` + fromClause + `
		WHERE ` + whereClause + `
		ORDER BY ` + loanSortClause(q) + `
		LIMIT ? OFFSET ?`
	args = append(args, limit, (page-1)*limit)

	log.Debug("SQL query", zap.String("query", stmt), zap.Any("args", args))

	rows, err := s.db.Query(stmt, args...)
	if err != nil {
		log.Error("Failed to query loans with books", zap.Error(err))
		return nil, 0, errs.Store(err, "failed to query loans with books")
	}
	defer rows.Close()

	list := make([]*model.LoanWithBook, 0)
	for rows.Next() {
		var loanID int64
		var isbn, cardID, dateOut, dueDate string
		var dateIn sql.NullString
		var fineAmt string
		var paid bool
		var title, authors string
		if err := rows.Scan(&loanID, &isbn, &cardID, &dateOut, &dueDate, &dateIn, &fineAmt, &paid, &title, &authors); err != nil {
			return nil, 0, errs.Store(err, "failed to scan loan with book")
		}
		loan, err := buildLoan(loanID, isbn, cardID, dateOut, dueDate, dateIn, fineAmt, paid)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, &model.LoanWithBook{
			Loan: *loan,
			Book: model.Book{ISBN: isbn, Title: title, Authors: splitAuthors(authors)},
		})
	}
	return list, total, rows.Err()
}

// loanSortClause defaults to newest loans first, matching the original list
// ordering.
func loanSortClause(q *query.Query) string {
	_, hasSort := loanSortFields[q.Sort()]
	_, hasOrder := q.Get("order")
	if !hasSort && !hasOrder {
		return loanDefaultSort + " DESC"
	}
	return sortClause(q, loanSortFields, loanDefaultSort)
}

// ListOverdueLoans returns loans that were, or still are, past due as of the
// given date and whose fine is not already settled.
func (s *Store) ListOverdueLoans(asOf string) ([]*model.Loan, error) {
	stmt := `
		SELECT ` + loanColumns + `
		FROM loan l
		LEFT JOIN fine f ON f.loan_id = l.loan_id
		WHERE l.due_date < ?
		  AND (l.date_in IS NULL OR l.date_in > l.due_date)
		  AND COALESCE(f.paid, 0) = 0
		ORDER BY l.loan_id`

	rows, err := s.db.Query(stmt, asOf)
	if err != nil {
		return nil, errs.Store(err, "failed to query overdue loans")
	}
	defer rows.Close()

	list := make([]*model.Loan, 0)
	for rows.Next() {
		loan, err := scanLoan(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, loan)
	}
	return list, rows.Err()
}
