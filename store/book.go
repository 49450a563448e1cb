package store

import (
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/openshelf/openshelf/errs"
	"github.com/openshelf/openshelf/log"
	"github.com/openshelf/openshelf/model"
	"github.com/openshelf/openshelf/query"
)

// bookSortFields is the sort allow-list for book searches; anything else
// falls back to the default title ordering.
var bookSortFields = map[string]string{
	"isbn":   "b.isbn",
	"title":  "b.title",
	"author": "authors",
}

const bookDefaultSort = "b.title"

// CreateBook inserts a book and its author links in one transaction. Authors
// are created on first use and shared by name.
func (s *Store) CreateBook(create *model.BookCreateRequest) (*model.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return nil, errs.Store(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM book WHERE isbn = ?)`, create.ISBN).Scan(&exists); err != nil {
		return nil, errs.Store(err, "failed to check book")
	}
	if exists {
		return nil, errs.Conflictf("book with ISBN %s already exists", create.ISBN)
	}

	if _, err := tx.Exec(`INSERT INTO book (isbn, title) VALUES (?, ?)`, create.ISBN, create.Title); err != nil {
		return nil, errs.Store(err, "failed to insert book")
	}

	for _, name := range create.Authors {
		authorID, err := getOrCreateAuthor(tx, name)
		if err != nil {
			return nil, err
		}
		if _, err := tx.Exec(`INSERT INTO book_author (author_id, isbn) VALUES (?, ?)`, authorID, create.ISBN); err != nil {
			return nil, errs.Store(err, "failed to link author")
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, errs.Store(err, "failed to commit book")
	}
	return &model.Book{ISBN: create.ISBN, Title: create.Title, Authors: create.Authors}, nil
}

func getOrCreateAuthor(tx *sql.Tx, name string) (int64, error) {
	var authorID int64
	err := tx.QueryRow(`SELECT author_id FROM author WHERE name = ?`, name).Scan(&authorID)
	if err == nil {
		return authorID, nil
	}
	if err != sql.ErrNoRows {
		return 0, errs.Store(err, "failed to look up author")
	}

	if err := tx.QueryRow(`INSERT INTO author (name) VALUES (?) RETURNING author_id`, name).Scan(&authorID); err != nil {
		return 0, errs.Store(err, "failed to insert author")
	}
	return authorID, nil
}

// GetBook returns the matching book with its authors, or nil when absent.
func (s *Store) GetBook(find *model.FindBook) (*model.Book, error) {
	where, args := []string{"1 = 1"}, []any{}

	if v := find.ISBN; v != nil {
		where, args = append(where, "b.isbn = ?"), append(args, *v)
	}
	if v := find.Title; v != nil {
		where, args = append(where, "b.title = ?"), append(args, *v)
	}

	stmt := `
		SELECT
			b.isbn,
			b.title,
			sortconcat(a.name) AS authors
		FROM book b
		LEFT JOIN book_author ba ON ba.isbn = b.isbn
		LEFT JOIN author a ON a.author_id = ba.author_id
		WHERE ` + strings.Join(where, " AND ") + `
		GROUP BY b.isbn, b.title
		LIMIT 1
	`

	var book model.Book
	var authors string
	err := s.db.QueryRow(stmt, args...).Scan(&book.ISBN, &book.Title, &authors)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		log.Error("Failed to query book", zap.Error(err))
		return nil, errs.Store(err, "failed to query book")
	}
	book.Authors = splitAuthors(authors)
	return &book, nil
}

func splitAuthors(concatenated string) []string {
	if concatenated == "" {
		return []string{}
	}
	return strings.Split(concatenated, ",")
}

// bookWhere translates the recognized book filters of a query; unknown
// filters are left for other entities to interpret.
func bookWhere(q *query.Query) (where []string, args []any) {
	where, args = []string{"1 = 1"}, []any{}

	if v := q.ISBN(); v != "" {
		where, args = append(where, "b.isbn LIKE ?"), append(args, like(v))
	}
	if v := q.Title(); v != "" {
		where, args = append(where, "b.title LIKE ?"), append(args, like(v))
	}
	if v := q.Author(); v != "" {
		where, args = append(where, `b.isbn IN (
			SELECT ba2.isbn FROM book_author ba2
			JOIN author a2 ON a2.author_id = ba2.author_id
			WHERE a2.name LIKE ?)`), append(args, like(v))
	}
	if v := q.AnyTerm; v != "" {
		where = append(where, `(b.title LIKE ? OR b.isbn LIKE ? OR b.isbn IN (
			SELECT ba3.isbn FROM book_author ba3
			JOIN author a3 ON a3.author_id = ba3.author_id
			WHERE a3.name LIKE ?))`)
		args = append(args, like(v), like(v), like(v))
	}
	return where, args
}

func like(term string) string {
	return "%" + term + "%"
}

// SearchBooks returns one page of matching books plus the pre-pagination
// match count.
func (s *Store) SearchBooks(q *query.Query, page, limit int) ([]*model.Book, int, error) {
	where, args := bookWhere(q)
	whereClause := strings.Join(where, " AND ")

	countStmt := `
		SELECT COUNT(*)
		FROM book b
		WHERE ` + whereClause

	var total int
	if err := s.db.QueryRow(countStmt, args...).Scan(&total); err != nil {
		return nil, 0, errs.Store(err, "failed to count books")
	}

	stmt := `
		SELECT
			b.isbn,
			b.title,
			sortconcat(a.name) AS authors
		FROM book b
		LEFT JOIN book_author ba ON ba.isbn = b.isbn
		LEFT JOIN author a ON a.author_id = ba.author_id
		WHERE ` + whereClause + `
		GROUP BY b.isbn, b.title
		ORDER BY ` + sortClause(q, bookSortFields, bookDefaultSort) + `
		LIMIT ? OFFSET ?`
	args = append(args, limit, (page-1)*limit)

	log.Debug("SQL query", zap.String("query", stmt), zap.Any("args", args))

	rows, err := s.db.Query(stmt, args...)
	if err != nil {
		log.Error("Failed to query books", zap.Error(err))
		return nil, 0, errs.Store(err, "failed to query books")
	}
	defer rows.Close()

	list := make([]*model.Book, 0)
	for rows.Next() {
		var book model.Book
		var authors string
		if err := rows.Scan(&book.ISBN, &book.Title, &authors); err != nil {
			return nil, 0, errs.Store(err, "failed to scan book")
		}
		book.Authors = splitAuthors(authors)
		list = append(list, &book)
	}
	return list, total, rows.Err()
}

// SearchBooksWithLoan left-joins each book's active loan: a book on the shelf
// appears with a nil loan.
func (s *Store) SearchBooksWithLoan(q *query.Query, page, limit int, today string) ([]*model.BookWithLoan, int, error) {
	where, args := bookWhere(q)

	if v := q.Borrower(); v != "" {
		where, args = append(where, "br.name LIKE ?"), append(args, like(v))
	}
	if v := q.Card(); v != "" {
		where, args = append(where, "l.card_id LIKE ?"), append(args, like(v))
	}
	if available, ok := q.Available(); ok {
		if available {
			where = append(where, "l.loan_id IS NULL")
		} else {
			where = append(where, "l.loan_id IS NOT NULL")
		}
	}
	switch q.LoanIs() {
	case query.LoanActive:
		where = append(where, "l.loan_id IS NOT NULL")
	case query.LoanReturned:
		where = append(where, "l.loan_id IS NULL")
	}
	switch q.Due() {
	case query.DuePast:
		where, args = append(where, "l.due_date < ?"), append(args, today)
	case query.DueFuture:
		where, args = append(where, "l.due_date >= ?"), append(args, today)
	}
	switch q.FineIs() {
	case query.FineOwed:
		where = append(where, "(f.paid = 0 AND CAST(f.amount AS REAL) > 0)")
	case query.FinePaid:
		where = append(where, "f.paid = 1")
	}

	whereClause := strings.Join(where, " AND ")
	fromClause := `
		FROM book b
		LEFT JOIN loan l ON l.isbn = b.isbn AND l.date_in IS NULL
		LEFT JOIN fine f ON f.loan_id = l.loan_id
		LEFT JOIN borrower br ON br.card_id = l.card_id
	`

	countStmt := `SELECT COUNT(DISTINCT b.isbn) ` + fromClause + ` WHERE ` + whereClause
	var total int
	if err := s.db.QueryRow(countStmt, args...).Scan(&total); err != nil {
		return nil, 0, errs.Store(err, "failed to count books with loans")
	}

	stmt := `
		SELECT
			b.isbn,
			b.title,
			COALESCE((SELECT sortconcat(a.name)
			 FROM book_author ba
			 JOIN author a ON a.author_id = ba.author_id
			 WHERE ba.isbn = b.isbn), '') AS authors,
			l.loan_id,
			l.card_id,
			l.date_out,
			l.due_date,
			l.date_in,
			COALESCE(f.amount, '0') AS fine_amt,
			COALESCE(f.paid, 0) AS paid
		` + fromClause + `
		WHERE ` + whereClause + `
		ORDER BY ` + sortClause(q, bookSortFields, bookDefaultSort) + `
		LIMIT ? OFFSET ?`
	args = append(args, limit, (page-1)*limit)

	log.Debug("SQL query", zap.String("query", stmt), zap.Any("args", args))

	rows, err := s.db.Query(stmt, args...)
	if err != nil {
		log.Error("Failed to query books with loans", zap.Error(err))
		return nil, 0, errs.Store(err, "failed to query books with loans")
	}
	defer rows.Close()

	list := make([]*model.BookWithLoan, 0)
	for rows.Next() {
		var pair model.BookWithLoan
		var authors string
		var loanID sql.NullInt64
		var cardID, dateOut, dueDate, dateIn sql.NullString
		var fineAmt string
		var paid bool
		if err := rows.Scan(
			&pair.Book.ISBN,
			&pair.Book.Title,
			&authors,
			&loanID,
			&cardID,
			&dateOut,
			&dueDate,
			&dateIn,
			&fineAmt,
			&paid,
		); err != nil {
			return nil, 0, errs.Store(err, "failed to scan book with loan")
		}
		pair.Book.Authors = splitAuthors(authors)
		if loanID.Valid {
			loan, err := buildLoan(loanID.Int64, pair.Book.ISBN, cardID.String, dateOut.String, dueDate.String, dateIn, fineAmt, paid)
			if err != nil {
				return nil, 0, err
			}
			pair.Loan = loan
		}
		list = append(list, &pair)
	}
	return list, total, rows.Err()
}

// sortClause resolves sort:/order: against an entity allow-list, falling back
// to the entity default for unknown fields.
func sortClause(q *query.Query, allowed map[string]string, defaultField string) string {
	field := defaultField
	if v, ok := allowed[q.Sort()]; ok {
		field = v
	}
	direction := "ASC"
	if q.Order() == query.Descending {
		direction = "DESC"
	}
	return fmt.Sprintf("%s %s", field, direction)
}
