// Package search exposes the paginated entity searches behind the list
// endpoints. It resolves pagination, parses the query string and delegates
// filter translation to the store.
package search

import (
	"strconv"
	"time"

	"github.com/openshelf/openshelf/errs"
	"github.com/openshelf/openshelf/model"
	"github.com/openshelf/openshelf/query"
	"github.com/openshelf/openshelf/store"
)

type Service struct {
	store *store.Store

	// now is replaceable in tests; due:past and due:future compare against it.
	now func() time.Time
}

func NewService(store *store.Store) *Service {
	return &Service{
		store: store,
		now:   time.Now,
	}
}

func (s *Service) today() string {
	return s.now().Format(model.DateLayout)
}

// resolvePagination validates page and limit. Zero means the caller did not
// pass the parameter, in which case a page:/limit: keyword in the query may
// still supply it; pagination is mandatory, so anything non-positive fails.
func resolvePagination(q *query.Query, page, limit int) (int, int, error) {
	if page == 0 {
		if v, ok := q.Get("page"); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return 0, 0, errs.Validationf("invalid page %q", v)
			}
			page = n
		}
	}
	if limit == 0 {
		if v, ok := q.Get("limit"); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return 0, 0, errs.Validationf("invalid limit %q", v)
			}
			limit = n
		}
	}
	if page <= 0 {
		return 0, 0, errs.Validationf("page must be a positive integer")
	}
	if limit <= 0 {
		return 0, 0, errs.Validationf("limit must be a positive integer")
	}
	return page, limit, nil
}

func (s *Service) Books(raw string, page, limit int) (*model.Results[*model.Book], error) {
	q := query.Parse(raw)
	page, limit, err := resolvePagination(q, page, limit)
	if err != nil {
		return nil, err
	}
	items, total, err := s.store.SearchBooks(q, page, limit)
	if err != nil {
		return nil, err
	}
	return &model.Results[*model.Book]{Items: items, Total: total, Page: page}, nil
}

func (s *Service) BooksWithLoan(raw string, page, limit int) (*model.JoinedResults[*model.BookWithLoan], error) {
	q := query.Parse(raw)
	page, limit, err := resolvePagination(q, page, limit)
	if err != nil {
		return nil, err
	}
	results, total, err := s.store.SearchBooksWithLoan(q, page, limit, s.today())
	if err != nil {
		return nil, err
	}
	return &model.JoinedResults[*model.BookWithLoan]{Results: results, Total: total, Page: page}, nil
}

func (s *Service) Loans(raw string, page, limit int) (*model.Results[*model.Loan], error) {
	q := query.Parse(raw)
	page, limit, err := resolvePagination(q, page, limit)
	if err != nil {
		return nil, err
	}
	items, total, err := s.store.SearchLoans(q, page, limit, s.today())
	if err != nil {
		return nil, err
	}
	return &model.Results[*model.Loan]{Items: items, Total: total, Page: page}, nil
}

func (s *Service) LoansWithBook(raw string, page, limit int) (*model.JoinedResults[*model.LoanWithBook], error) {
	q := query.Parse(raw)
	page, limit, err := resolvePagination(q, page, limit)
	if err != nil {
		return nil, err
	}
	results, total, err := s.store.SearchLoansWithBook(q, page, limit, s.today())
	if err != nil {
		return nil, err
	}
	return &model.JoinedResults[*model.LoanWithBook]{Results: results, Total: total, Page: page}, nil
}

func (s *Service) Borrowers(raw string, page, limit int) (*model.Results[*model.Borrower], error) {
	q := query.Parse(raw)
	page, limit, err := resolvePagination(q, page, limit)
	if err != nil {
		return nil, err
	}
	items, total, err := s.store.SearchBorrowers(q, page, limit)
	if err != nil {
		return nil, err
	}
	return &model.Results[*model.Borrower]{Items: items, Total: total, Page: page}, nil
}

func (s *Service) BorrowersWithInfo(raw string, page, limit int) (*model.JoinedResults[*model.BorrowerSummary], error) {
	q := query.Parse(raw)
	page, limit, err := resolvePagination(q, page, limit)
	if err != nil {
		return nil, err
	}
	results, total, err := s.store.SearchBorrowersWithInfo(q, page, limit)
	if err != nil {
		return nil, err
	}
	return &model.JoinedResults[*model.BorrowerSummary]{Results: results, Total: total, Page: page}, nil
}
