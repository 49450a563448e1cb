// Package circulation implements the lending rules: checkout, checkin, fine
// accrual and fine settlement. The store enforces the atomic parts; this
// layer owns validation, existence checks and date arithmetic.
package circulation

import (
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/openshelf/openshelf/errs"
	"github.com/openshelf/openshelf/log"
	"github.com/openshelf/openshelf/model"
	"github.com/openshelf/openshelf/store"
	"github.com/openshelf/openshelf/validator"
	"github.com/openshelf/openshelf/worker"
)

type Config struct {
	LoanPeriodDays int
	MaxActiveLoans int
	DailyRate      decimal.Decimal
}

type Service struct {
	store *store.Store
	pool  *worker.FineUpdatePool
	cfg   Config

	now func() time.Time
}

func NewService(store *store.Store, pool *worker.FineUpdatePool, cfg Config) *Service {
	return &Service{
		store: store,
		pool:  pool,
		cfg:   cfg,
		now:   time.Now,
	}
}

func (s *Service) today() string {
	return s.now().Format(model.DateLayout)
}

// Checkout lends a book to a borrower. The due date is the checkout date plus
// the configured loan period; the availability, fine and loan-cap checks run
// atomically in the store.
func (s *Service) Checkout(req *model.CheckoutRequest) (*model.Loan, error) {
	if req.CardID == "" {
		return nil, errs.Validationf("card_id is required")
	}
	if req.ISBN == "" {
		return nil, errs.Validationf("isbn is required")
	}

	borrower, err := s.store.GetBorrower(&model.FindBorrower{CardID: &req.CardID})
	if err != nil {
		return nil, err
	}
	if borrower == nil {
		return nil, errs.NotFoundf("borrower with card %s does not exist", req.CardID)
	}

	book, err := s.store.GetBook(&model.FindBook{ISBN: &req.ISBN})
	if err != nil {
		return nil, err
	}
	if book == nil {
		return nil, errs.NotFoundf("book with ISBN %s does not exist", req.ISBN)
	}

	out := s.now()
	dateOut := out.Format(model.DateLayout)
	dueDate := out.AddDate(0, 0, s.cfg.LoanPeriodDays).Format(model.DateLayout)

	loan, err := s.store.CheckoutLoan(req.CardID, req.ISBN, dateOut, dueDate, s.cfg.MaxActiveLoans)
	if err != nil {
		return nil, err
	}

	log.Info("Book checked out",
		zap.Int64("loan_id", loan.LoanID),
		zap.String("card_id", loan.CardID),
		zap.String("isbn", loan.ISBN),
		zap.String("due_date", loan.DueDate))
	return loan, nil
}

// Checkin returns a book. Any fine accrued up to today is recorded in the
// same transaction that closes the loan.
func (s *Service) Checkin(req *model.CheckinRequest) (*model.Loan, error) {
	if req.LoanID <= 0 {
		return nil, errs.Validationf("loan_id is required")
	}

	loan, err := s.store.CheckinLoan(req.LoanID, s.today(), s.cfg.DailyRate)
	if err != nil {
		return nil, err
	}

	log.Info("Book checked in",
		zap.Int64("loan_id", loan.LoanID),
		zap.String("isbn", loan.ISBN),
		zap.String("fine_amt", loan.FineAmount.StringFixed(2)))
	return loan, nil
}

// UpdateFines recomputes every unsettled fine as of the given date, or today
// when the date is empty. Loans returned late accrue against their return
// date, loans still out accrue against the reference date, and paid fines are
// never revisited, so rerunning the batch is idempotent.
func (s *Service) UpdateFines(asOf string) error {
	if asOf == "" {
		asOf = s.today()
	} else if _, err := time.Parse(model.DateLayout, asOf); err != nil {
		return errs.Validationf("invalid date %q, want YYYY-MM-DD", asOf)
	}

	overdue, err := s.store.ListOverdueLoans(asOf)
	if err != nil {
		return err
	}
	if len(overdue) == 0 {
		log.Info("No overdue loans", zap.String("as_of", asOf))
		return nil
	}

	jobs := make([]worker.FineUpdateJob, 0, len(overdue))
	for _, loan := range overdue {
		jobs = append(jobs, worker.FineUpdateJob{Loan: loan, AsOf: asOf, Rate: s.cfg.DailyRate})
	}
	if err := s.pool.Process(jobs); err != nil {
		return err
	}

	log.Info("Fines updated", zap.String("as_of", asOf), zap.Int("loans", len(jobs)))
	return nil
}

// PayLoanFine settles the fine on a single loan.
func (s *Service) PayLoanFine(loanID int64) (*model.Loan, error) {
	if loanID <= 0 {
		return nil, errs.Validationf("loan_id is required")
	}
	return s.store.PayLoanFine(loanID)
}

// PayBorrowerFines settles every unpaid fine a borrower owes, all or
// nothing.
func (s *Service) PayBorrowerFines(req *model.PayFinesRequest) ([]*model.Loan, error) {
	if req.CardID == "" {
		return nil, errs.Validationf("card_id is required")
	}

	borrower, err := s.store.GetBorrower(&model.FindBorrower{CardID: &req.CardID})
	if err != nil {
		return nil, err
	}
	if borrower == nil {
		return nil, errs.NotFoundf("borrower with card %s does not exist", req.CardID)
	}
	return s.store.PayBorrowerFines(req.CardID)
}

// BorrowerFineTotal reports what a borrower owes right now.
func (s *Service) BorrowerFineTotal(cardID string, includePaid bool) (decimal.Decimal, error) {
	if cardID == "" {
		return decimal.Zero, errs.Validationf("card_id is required")
	}

	borrower, err := s.store.GetBorrower(&model.FindBorrower{CardID: &cardID})
	if err != nil {
		return decimal.Zero, err
	}
	if borrower == nil {
		return decimal.Zero, errs.NotFoundf("borrower with card %s does not exist", cardID)
	}
	return s.store.BorrowerFineTotal(cardID, includePaid)
}

// RegisterBorrower validates and creates a borrower, issuing the next card in
// sequence unless one is supplied.
func (s *Service) RegisterBorrower(create *model.BorrowerCreateRequest) (*model.Borrower, error) {
	if err := validator.ValidateBorrowerCreate(create); err != nil {
		return nil, err
	}

	borrower, err := s.store.CreateBorrower(create)
	if err != nil {
		return nil, err
	}
	log.Info("Borrower registered", zap.String("card_id", borrower.CardID))
	return borrower, nil
}

// AddBook validates and catalogs a book.
func (s *Service) AddBook(create *model.BookCreateRequest) (*model.Book, error) {
	if err := validator.ValidateBookCreate(create); err != nil {
		return nil, err
	}
	if !validator.ValidISBN13(create.ISBN) {
		log.Warn("ISBN-13 checksum mismatch", zap.String("isbn", create.ISBN))
	}

	book, err := s.store.CreateBook(create)
	if err != nil {
		return nil, err
	}
	log.Info("Book cataloged", zap.String("isbn", book.ISBN), zap.String("title", book.Title))
	return book, nil
}
