package circulation

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openshelf/openshelf/config"
	"github.com/openshelf/openshelf/errs"
	"github.com/openshelf/openshelf/log"
	"github.com/openshelf/openshelf/model"
	"github.com/openshelf/openshelf/store"
	"github.com/openshelf/openshelf/store/db"
	"github.com/openshelf/openshelf/worker"
)

func init() {
	config.Opts = config.GetDefaultOptions()
	config.Opts.LogLevel = "error"
	log.Logger = log.NewLogger()
}

type clock struct {
	t time.Time
}

func (c *clock) now() time.Time { return c.t }

func (c *clock) set(date string) {
	t, err := time.Parse(model.DateLayout, date)
	if err != nil {
		panic(err)
	}
	c.t = t
}

func newTestService(t *testing.T) (*Service, *store.Store, *clock) {
	t.Helper()
	d, err := db.NewDB(t.TempDir() + "/test.db")
	require.NoError(t, err)
	require.NoError(t, d.Migrate(context.Background()))
	t.Cleanup(func() { d.Close() })

	s := store.NewStore(d)
	svc := NewService(s, worker.NewFineUpdatePool(s, 2), Config{
		LoanPeriodDays: 14,
		MaxActiveLoans: 3,
		DailyRate:      decimal.RequireFromString("0.25"),
	})
	c := &clock{}
	c.set("2024-03-01")
	svc.now = c.now
	return svc, s, c
}

func seedCatalog(t *testing.T, svc *Service, isbns ...string) {
	t.Helper()
	for _, isbn := range isbns {
		_, err := svc.AddBook(&model.BookCreateRequest{ISBN: isbn, Title: "Book " + isbn, Authors: []string{"An Author"}})
		require.NoError(t, err)
	}
}

func seedBorrower(t *testing.T, svc *Service, ssn string) *model.Borrower {
	t.Helper()
	borrower, err := svc.RegisterBorrower(&model.BorrowerCreateRequest{
		SSN:     ssn,
		Name:    "Test Borrower",
		Address: "100 Main St",
	})
	require.NoError(t, err)
	return borrower
}

func TestCheckout(t *testing.T) {
	svc, _, _ := newTestService(t)
	seedCatalog(t, svc, "9780134190440")
	ada := seedBorrower(t, svc, "123456789")

	loan, err := svc.Checkout(&model.CheckoutRequest{CardID: ada.CardID, ISBN: "9780134190440"})
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01", loan.DateOut)
	assert.Equal(t, "2024-03-15", loan.DueDate)

	// Same book, second borrower: the copy is out.
	grace := seedBorrower(t, svc, "987654321")
	_, err = svc.Checkout(&model.CheckoutRequest{CardID: grace.CardID, ISBN: "9780134190440"})
	assert.Equal(t, errs.KindConflict, errs.KindOf(err))
}

func TestCheckoutUnknownEntities(t *testing.T) {
	svc, _, _ := newTestService(t)
	seedCatalog(t, svc, "9780134190440")
	ada := seedBorrower(t, svc, "123456789")

	_, err := svc.Checkout(&model.CheckoutRequest{CardID: "ID999999", ISBN: "9780134190440"})
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))

	_, err = svc.Checkout(&model.CheckoutRequest{CardID: ada.CardID, ISBN: "9780000000002"})
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))

	_, err = svc.Checkout(&model.CheckoutRequest{ISBN: "9780134190440"})
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))
}

func TestCheckoutLimit(t *testing.T) {
	svc, _, _ := newTestService(t)
	isbns := []string{"9780134190440", "9780131103627", "9780262033848", "9781491941959"}
	seedCatalog(t, svc, isbns...)
	ada := seedBorrower(t, svc, "123456789")

	for _, isbn := range isbns[:3] {
		_, err := svc.Checkout(&model.CheckoutRequest{CardID: ada.CardID, ISBN: isbn})
		require.NoError(t, err)
	}

	_, err := svc.Checkout(&model.CheckoutRequest{CardID: ada.CardID, ISBN: isbns[3]})
	require.Equal(t, errs.KindLimitExceeded, errs.KindOf(err))
	assert.Contains(t, err.Error(), "3")
}

func TestCheckinAccruesFine(t *testing.T) {
	svc, _, c := newTestService(t)
	seedCatalog(t, svc, "9780134190440")
	ada := seedBorrower(t, svc, "123456789")

	loan, err := svc.Checkout(&model.CheckoutRequest{CardID: ada.CardID, ISBN: "9780134190440"})
	require.NoError(t, err)

	// Five days past the 2024-03-15 due date.
	c.set("2024-03-20")
	returned, err := svc.Checkin(&model.CheckinRequest{LoanID: loan.LoanID})
	require.NoError(t, err)
	assert.True(t, returned.FineAmount.Equal(decimal.RequireFromString("1.25")),
		"got %s", returned.FineAmount)
	assert.False(t, returned.FinePaid)

	_, err = svc.Checkin(&model.CheckinRequest{LoanID: loan.LoanID})
	assert.Equal(t, errs.KindConflict, errs.KindOf(err))
}

func TestUpdateFinesIdempotent(t *testing.T) {
	svc, s, c := newTestService(t)
	seedCatalog(t, svc, "9780134190440", "9780131103627")
	ada := seedBorrower(t, svc, "123456789")
	grace := seedBorrower(t, svc, "987654321")

	out, err := svc.Checkout(&model.CheckoutRequest{CardID: ada.CardID, ISBN: "9780134190440"})
	require.NoError(t, err)
	returned, err := svc.Checkout(&model.CheckoutRequest{CardID: grace.CardID, ISBN: "9780131103627"})
	require.NoError(t, err)

	// Grace returns two days late; Ada keeps hers out.
	c.set("2024-03-17")
	_, err = svc.Checkin(&model.CheckinRequest{LoanID: returned.LoanID})
	require.NoError(t, err)

	require.NoError(t, svc.UpdateFines("2024-03-20"))

	adaLoan, err := s.GetLoan(out.LoanID)
	require.NoError(t, err)
	assert.True(t, adaLoan.FineAmount.Equal(decimal.RequireFromString("1.25")), "got %s", adaLoan.FineAmount)

	graceLoan, err := s.GetLoan(returned.LoanID)
	require.NoError(t, err)
	assert.True(t, graceLoan.FineAmount.Equal(decimal.RequireFromString("0.50")), "got %s", graceLoan.FineAmount)

	// Rerunning with the same reference date changes nothing.
	require.NoError(t, svc.UpdateFines("2024-03-20"))
	again, err := s.GetLoan(out.LoanID)
	require.NoError(t, err)
	assert.True(t, again.FineAmount.Equal(adaLoan.FineAmount))

	// A later reference date only grows the open loan's fine.
	require.NoError(t, svc.UpdateFines("2024-03-21"))
	later, err := s.GetLoan(out.LoanID)
	require.NoError(t, err)
	assert.True(t, later.FineAmount.Equal(decimal.RequireFromString("1.50")), "got %s", later.FineAmount)
	graceAgain, err := s.GetLoan(returned.LoanID)
	require.NoError(t, err)
	assert.True(t, graceAgain.FineAmount.Equal(decimal.RequireFromString("0.50")))
}

func TestUpdateFinesRejectsBadDate(t *testing.T) {
	svc, _, _ := newTestService(t)
	err := svc.UpdateFines("03/20/2024")
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))
}

func TestPayLoanFine(t *testing.T) {
	svc, _, c := newTestService(t)
	seedCatalog(t, svc, "9780134190440")
	ada := seedBorrower(t, svc, "123456789")

	loan, err := svc.Checkout(&model.CheckoutRequest{CardID: ada.CardID, ISBN: "9780134190440"})
	require.NoError(t, err)
	c.set("2024-03-20")
	_, err = svc.Checkin(&model.CheckinRequest{LoanID: loan.LoanID})
	require.NoError(t, err)

	paid, err := svc.PayLoanFine(loan.LoanID)
	require.NoError(t, err)
	assert.True(t, paid.FinePaid)

	_, err = svc.PayLoanFine(loan.LoanID)
	assert.Equal(t, errs.KindConflict, errs.KindOf(err))

	// A paid fine never grows, even if the batch runs again.
	require.NoError(t, svc.UpdateFines("2024-04-01"))
	total, err := svc.BorrowerFineTotal(ada.CardID, true)
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.RequireFromString("1.25")), "got %s", total)
}

func TestPayBorrowerFines(t *testing.T) {
	svc, _, c := newTestService(t)
	seedCatalog(t, svc, "9780134190440", "9780131103627")
	ada := seedBorrower(t, svc, "123456789")

	var loans []*model.Loan
	for _, isbn := range []string{"9780134190440", "9780131103627"} {
		loan, err := svc.Checkout(&model.CheckoutRequest{CardID: ada.CardID, ISBN: isbn})
		require.NoError(t, err)
		loans = append(loans, loan)
	}
	// Both come back two days late.
	c.set("2024-03-17")
	for _, loan := range loans {
		_, err := svc.Checkin(&model.CheckinRequest{LoanID: loan.LoanID})
		require.NoError(t, err)
	}

	_, err := svc.PayBorrowerFines(&model.PayFinesRequest{CardID: "ID999999"})
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))

	paid, err := svc.PayBorrowerFines(&model.PayFinesRequest{CardID: ada.CardID})
	require.NoError(t, err)
	require.Len(t, paid, 2)

	owed, err := svc.BorrowerFineTotal(ada.CardID, false)
	require.NoError(t, err)
	assert.True(t, owed.IsZero())

	// Nothing left to settle: an empty list, not an error.
	again, err := svc.PayBorrowerFines(&model.PayFinesRequest{CardID: ada.CardID})
	require.NoError(t, err)
	assert.Empty(t, again)
}

// A misconfigured worker count must not stall the batch.
func TestUpdateFinesZeroWorkerPool(t *testing.T) {
	svc, s, c := newTestService(t)
	svc.pool = worker.NewFineUpdatePool(s, 0)
	seedCatalog(t, svc, "9780134190440")
	ada := seedBorrower(t, svc, "123456789")

	_, err := svc.Checkout(&model.CheckoutRequest{CardID: ada.CardID, ISBN: "9780134190440"})
	require.NoError(t, err)

	c.set("2024-03-20")
	require.NoError(t, svc.UpdateFines(""))
	owed, err := svc.BorrowerFineTotal(ada.CardID, false)
	require.NoError(t, err)
	assert.True(t, owed.Equal(decimal.RequireFromString("1.25")), "got %s", owed)
}

// Full circulation cycle: register, catalog, borrow, accrue, settle, borrow
// again.
func TestCirculationScenario(t *testing.T) {
	svc, _, c := newTestService(t)
	seedCatalog(t, svc, "9780134190440", "9780131103627")

	ada, err := svc.RegisterBorrower(&model.BorrowerCreateRequest{
		SSN:     "123 45 6789",
		Name:    "Ada Lovelace",
		Address: "100 Main St",
		Phone:   "(555) 123-4567",
	})
	require.NoError(t, err)
	assert.Equal(t, "ID000001", ada.CardID)

	loan, err := svc.Checkout(&model.CheckoutRequest{CardID: ada.CardID, ISBN: "9780134190440"})
	require.NoError(t, err)

	c.set("2024-03-25")
	require.NoError(t, svc.UpdateFines(""))
	owed, err := svc.BorrowerFineTotal(ada.CardID, false)
	require.NoError(t, err)
	assert.True(t, owed.Equal(decimal.RequireFromString("2.50")), "got %s", owed)

	// Fines block further borrowing until settled.
	_, err = svc.Checkout(&model.CheckoutRequest{CardID: ada.CardID, ISBN: "9780131103627"})
	require.Equal(t, errs.KindConflict, errs.KindOf(err))

	_, err = svc.Checkin(&model.CheckinRequest{LoanID: loan.LoanID})
	require.NoError(t, err)
	_, err = svc.PayBorrowerFines(&model.PayFinesRequest{CardID: ada.CardID})
	require.NoError(t, err)

	_, err = svc.Checkout(&model.CheckoutRequest{CardID: ada.CardID, ISBN: "9780131103627"})
	require.NoError(t, err)
}
